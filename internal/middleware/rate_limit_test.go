package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestIPRateLimiterReturnsRateLimitedEnvelope(t *testing.T) {
	limiter := NewIPRateLimiterWithMaxEntries(1, time.Minute, 32)
	handler := RequestID(limiter.Middleware("Too many uploads")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	first := httptest.NewRecorder()
	req1 := httptest.NewRequest(http.MethodPost, "/api/imports", nil)
	req1.RemoteAddr = "127.0.0.1:12345"
	handler.ServeHTTP(first, req1)
	if first.Code != http.StatusOK {
		t.Fatalf("expected first request status 200, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodPost, "/api/imports", nil)
	req2.RemoteAddr = "127.0.0.1:12345"
	req2.Header.Set("X-Request-Id", "req-42")
	handler.ServeHTTP(second, req2)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request status 429, got %d", second.Code)
	}
	body := second.Body.String()
	if !strings.Contains(body, `"code":"RATE_LIMITED"`) {
		t.Fatalf("expected RATE_LIMITED error code in response body, got %s", body)
	}
	if !strings.Contains(body, `"requestId":"req-42"`) {
		t.Fatalf("expected request id in envelope, got %s", body)
	}
}

func TestIPRateLimiterWindowResets(t *testing.T) {
	limiter := NewIPRateLimiterWithMaxEntries(1, time.Minute, 32)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	if !limiter.allow("10.0.0.1") {
		t.Fatal("expected first request allowed")
	}
	if limiter.allow("10.0.0.1") {
		t.Fatal("expected second request limited")
	}
	now = now.Add(2 * time.Minute)
	if !limiter.allow("10.0.0.1") {
		t.Fatal("expected request allowed in a new window")
	}
}

func TestIPRateLimiterBoundsEntries(t *testing.T) {
	limiter := NewIPRateLimiterWithMaxEntries(5, time.Minute, 4)
	for i := 0; i < 20; i++ {
		limiter.allow(fmt.Sprintf("10.0.0.%d", i))
	}
	if got := limiter.size(); got > 4 {
		t.Fatalf("expected at most 4 tracked addresses, got %d", got)
	}
}
