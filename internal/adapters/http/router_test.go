package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/answer-engine/internal/core/domain"
)

type fakeSearchService struct {
	response *domain.SearchResponse
	err      error
	chunks   []string
	lastReq  domain.SearchRequest
}

func (f *fakeSearchService) Search(_ context.Context, req domain.SearchRequest, onChunk func(string)) (*domain.SearchResponse, error) {
	f.lastReq = req
	if onChunk != nil {
		for _, chunk := range f.chunks {
			onChunk(chunk)
		}
	}
	return f.response, f.err
}

type fakeHistoryReader struct {
	records []domain.SearchRecord
	err     error
	limit   int
}

func (f *fakeHistoryReader) ListRecent(_ context.Context, limit int) ([]domain.SearchRecord, error) {
	f.limit = limit
	return f.records, f.err
}

func newTestRouter(search *fakeSearchService, history *fakeHistoryReader) http.Handler {
	if search == nil {
		search = &fakeSearchService{response: &domain.SearchResponse{}}
	}
	if history == nil {
		history = &fakeHistoryReader{}
	}
	return NewRouter(search, history, 0, 0).Handler()
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	handler := newTestRouter(nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"query":"   "}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank query, got %d", res.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["error"] == "" {
		t.Fatalf("expected error message in response body")
	}
}

func TestSearchRejectsInvalidJSON(t *testing.T) {
	handler := newTestRouter(nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{not json`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed json, got %d", res.Code)
	}
}

func TestSearchRejectsGet(t *testing.T) {
	handler := newTestRouter(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/search", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", res.Code)
	}
}

func TestSearchReturnsEnvelope(t *testing.T) {
	search := &fakeSearchService{response: &domain.SearchResponse{
		AnswerText:    "The answer.",
		EnhancedQuery: "enhanced query",
		FollowUps:     []string{"a?", "b?", "c?"},
		Counts:        domain.SourceCounts{Web: 2, Indexed: 1, Total: 3},
	}}
	handler := newTestRouter(search, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/search",
		strings.NewReader(`{"query":"quantum computing","num_sources":5,"allow_external_knowledge":true}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if search.lastReq.Query != "quantum computing" {
		t.Fatalf("expected query forwarded, got %q", search.lastReq.Query)
	}
	if search.lastReq.NumSources != 5 || !search.lastReq.AllowExternalKnowledge {
		t.Fatalf("expected options forwarded, got %+v", search.lastReq)
	}

	var body domain.SearchResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if body.AnswerText != "The answer." {
		t.Fatalf("expected answer text in envelope, got %q", body.AnswerText)
	}
	if len(body.FollowUps) != 3 {
		t.Fatalf("expected 3 follow-ups, got %d", len(body.FollowUps))
	}
}

func TestSearchMapsSynthesisErrorTo500(t *testing.T) {
	search := &fakeSearchService{
		err: domain.WrapError(domain.ErrSynthesis, "synthesize answer", errors.New("upstream boom")),
	}
	handler := newTestRouter(search, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"query":"q"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for synthesis failure, got %d", res.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body["error"] != "search failed" {
		t.Fatalf("expected generic error message, got %q", body["error"])
	}
	if !strings.Contains(body["details"], "upstream boom") {
		t.Fatalf("expected details to carry cause, got %q", body["details"])
	}
}

func TestSearchMapsTemporaryErrorTo503(t *testing.T) {
	search := &fakeSearchService{
		err: domain.WrapError(domain.ErrTemporary, "call model", errors.New("breaker open")),
	}
	handler := newTestRouter(search, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"query":"q"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for temporary failure, got %d", res.Code)
	}
}

func TestListSearchesReturnsRecords(t *testing.T) {
	history := &fakeHistoryReader{records: []domain.SearchRecord{
		{ID: "one", Query: "first"},
		{ID: "two", Query: "second"},
	}}
	handler := newTestRouter(nil, history)

	req := httptest.NewRequest(http.MethodGet, "/v1/searches?limit=5", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if history.limit != 5 {
		t.Fatalf("expected limit 5 forwarded, got %d", history.limit)
	}

	var body struct {
		Searches []domain.SearchRecord `json:"searches"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(body.Searches) != 2 || body.Searches[0].ID != "one" {
		t.Fatalf("unexpected history payload: %+v", body.Searches)
	}
}

func TestListSearchesRejectsBadLimit(t *testing.T) {
	handler := newTestRouter(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/searches?limit=abc", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric limit, got %d", res.Code)
	}
}

func TestHealthz(t *testing.T) {
	handler := newTestRouter(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}
