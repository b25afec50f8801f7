package httpadapter

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kirillkom/answer-engine/internal/core/domain"
)

// sseWriter frames pipeline output as server-sent events: one event per
// answer chunk, a terminal event carrying the full envelope, then [DONE].
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

type sseChunkEvent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type sseCompleteEvent struct {
	Type     string                 `json:"type"`
	Response *domain.SearchResponse `json:"response"`
}

type sseErrorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming is not supported by response writer")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	return &sseWriter{w: w, flusher: flusher}, nil
}

func (s *sseWriter) sendChunk(text string) {
	s.sendEvent(sseChunkEvent{Type: "chunk", Text: text})
}

func (s *sseWriter) sendComplete(response *domain.SearchResponse) {
	s.sendEvent(sseCompleteEvent{Type: "complete", Response: response})
}

func (s *sseWriter) sendError(err error) {
	s.sendEvent(sseErrorEvent{Type: "error", Error: err.Error()})
	s.sendDone()
}

func (s *sseWriter) sendDone() {
	_, _ = io.WriteString(s.w, "data: [DONE]\n\n")
	s.flusher.Flush()
}

func (s *sseWriter) sendEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(s.w, "data: %s\n\n", payload)
	s.flusher.Flush()
}
