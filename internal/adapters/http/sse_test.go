package httpadapter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/answer-engine/internal/core/domain"
)

func TestStreamSearchFramesChunksAndEnvelope(t *testing.T) {
	search := &fakeSearchService{
		chunks: []string{"Quantum ", "computers ", "use qubits."},
		response: &domain.SearchResponse{
			AnswerText: "Quantum computers use qubits.",
			FollowUps:  []string{"a?", "b?", "c?"},
		},
	}
	handler := newTestRouter(search, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/search/stream", strings.NewReader(`{"query":"quantum"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if got := res.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %q", got)
	}

	events := parseSSEEvents(t, res.Body.String())
	if len(events) != 5 {
		t.Fatalf("expected 3 chunks + complete + [DONE], got %d events: %v", len(events), events)
	}

	var reassembled strings.Builder
	for _, raw := range events[:3] {
		var chunk sseChunkEvent
		if err := json.Unmarshal([]byte(raw), &chunk); err != nil {
			t.Fatalf("decode chunk event %q: %v", raw, err)
		}
		if chunk.Type != "chunk" {
			t.Fatalf("expected chunk event, got %q", chunk.Type)
		}
		reassembled.WriteString(chunk.Text)
	}
	if reassembled.String() != "Quantum computers use qubits." {
		t.Fatalf("chunk concatenation mismatch: %q", reassembled.String())
	}

	var complete sseCompleteEvent
	if err := json.Unmarshal([]byte(events[3]), &complete); err != nil {
		t.Fatalf("decode complete event: %v", err)
	}
	if complete.Type != "complete" || complete.Response == nil {
		t.Fatalf("expected terminal envelope event, got %q", events[3])
	}
	if complete.Response.AnswerText != "Quantum computers use qubits." {
		t.Fatalf("unexpected envelope answer: %q", complete.Response.AnswerText)
	}

	if events[4] != "[DONE]" {
		t.Fatalf("expected [DONE] terminator, got %q", events[4])
	}
}

func TestStreamSearchEmitsErrorEvent(t *testing.T) {
	search := &fakeSearchService{
		chunks: []string{"partial "},
		err:    domain.WrapError(domain.ErrSynthesis, "synthesize answer", http.ErrHandlerTimeout),
	}
	handler := newTestRouter(search, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/search/stream", strings.NewReader(`{"query":"q"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	events := parseSSEEvents(t, res.Body.String())
	if len(events) != 3 {
		t.Fatalf("expected chunk + error + [DONE], got %v", events)
	}

	var errEvent sseErrorEvent
	if err := json.Unmarshal([]byte(events[1]), &errEvent); err != nil {
		t.Fatalf("decode error event: %v", err)
	}
	if errEvent.Type != "error" || errEvent.Error == "" {
		t.Fatalf("expected error event with message, got %q", events[1])
	}
	if events[2] != "[DONE]" {
		t.Fatalf("expected [DONE] after error, got %q", events[2])
	}
}

func parseSSEEvents(t *testing.T, body string) []string {
	t.Helper()
	var events []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		payload, found := strings.CutPrefix(line, "data: ")
		if !found {
			t.Fatalf("unexpected SSE line %q", line)
		}
		events = append(events, payload)
	}
	return events
}
