package httpadapter

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	handler := newTestRouterWithLimit(1, 1)

	req1 := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res1 := httptest.NewRecorder()
	handler.ServeHTTP(res1, req1)
	if res1.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", res1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", res2.Code)
	}
	if res2.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header for 429 response")
	}
}

func TestRateLimitMiddlewareDisabledWhenZero(t *testing.T) {
	handler := newTestRouterWithLimit(0, 0)

	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusOK {
			t.Fatalf("request %d expected 200 with limiter disabled, got %d", i, res.Code)
		}
	}
}

func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	handler := newTestRouter(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id header")
	}

	req2 := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req2.Header.Set(requestIDHeader, "caller-supplied")
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if got := res2.Header().Get(requestIDHeader); got != "caller-supplied" {
		t.Fatalf("expected caller request id echoed, got %q", got)
	}
}

func newTestRouterWithLimit(rps float64, burst int) http.Handler {
	return NewRouter(&fakeSearchService{}, &fakeHistoryReader{}, rps, burst).Handler()
}
