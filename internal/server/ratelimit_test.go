package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T) *RateLimiter {
	t.Helper()
	cfg := DefaultRateLimiterConfig()
	cfg.CleanupInterval = time.Hour
	rl := NewRateLimiter(cfg)
	t.Cleanup(rl.Stop)
	return rl
}

func TestRateLimiterScopes(t *testing.T) {
	rl := newTestLimiter(t)

	allowed := 0
	for range 10 {
		if rl.Allow("login", "192.0.2.1", 5) {
			allowed++
		}
	}
	if allowed != 5 {
		t.Errorf("got %d allowed, want 5", allowed)
	}
	if !rl.Allow("login", "192.0.2.2", 5) {
		t.Error("different IP should have its own limiter")
	}
	if !rl.Allow("general", "192.0.2.1", 5) {
		t.Error("different scope should have its own limiter")
	}
	if !rl.Allow("login", "192.0.2.1", 0) {
		t.Error("a zero budget means unlimited")
	}
}

func TestRateLimiterRefill(t *testing.T) {
	rl := newTestLimiter(t)
	now := time.Now()
	// 60 a minute refills one token a second.
	for range 60 {
		if !rl.allowAt("login", "192.0.2.1", 60, now) {
			t.Fatal("burst refused early")
		}
	}
	if rl.allowAt("login", "192.0.2.1", 60, now) {
		t.Fatal("expected the burst to be spent")
	}
	if !rl.allowAt("login", "192.0.2.1", 60, now.Add(1500*time.Millisecond)) {
		t.Error("expected a token after refill")
	}
}

func TestRateLimiterPurge(t *testing.T) {
	rl := newTestLimiter(t)
	now := time.Now()
	rl.allowAt("general", "192.0.2.1", 5, now)
	rl.allowAt("general", "192.0.2.2", 5, now.Add(rl.config.IdleTTL))

	rl.purge(now.Add(time.Minute))
	if rl.Len() != 2 {
		t.Fatalf("fresh limiters purged: %d left", rl.Len())
	}
	rl.purge(now.Add(rl.config.IdleTTL + time.Minute))
	if rl.Len() != 1 {
		t.Fatalf("got %d limiters, want only the recently used one", rl.Len())
	}
	rl.purge(now.Add(2*rl.config.IdleTTL + time.Minute))
	if rl.Len() != 0 {
		t.Errorf("idle limiters kept: %d left", rl.Len())
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := newTestLimiter(t)
	handler := RateLimitMiddleware(rl, "login", 3)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	okCount, limitedCount := 0, 0
	for range 10 {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:12345"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		switch rec.Code {
		case http.StatusOK:
			okCount++
		case http.StatusTooManyRequests:
			limitedCount++
			if rec.Header().Get("Retry-After") == "" {
				t.Error("429 without Retry-After")
			}
		}
	}
	if okCount != 3 || limitedCount != 7 {
		t.Errorf("got %d OK and %d limited, want 3 and 7", okCount, limitedCount)
	}
}

func TestExtractIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{name: "remote addr with port", remoteAddr: "192.0.2.1:12345", want: "192.0.2.1"},
		{name: "remote addr without port", remoteAddr: "192.0.2.1", want: "192.0.2.1"},
		{name: "ipv6 remote addr", remoteAddr: "[2001:db8::1]:443", want: "2001:db8::1"},
		{name: "xff single", remoteAddr: "127.0.0.1:80", xff: "203.0.113.50", want: "203.0.113.50"},
		{name: "xff multiple", remoteAddr: "127.0.0.1:80", xff: "203.0.113.50, 70.41.3.18", want: "203.0.113.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := extractIP(req); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
