package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig holds configuration for rate limiting.
type RateLimiterConfig struct {
	// GeneralRequestsPerMin is the per-IP limit for every request.
	GeneralRequestsPerMin int
	// LoginAttemptsPerMin is the per-IP limit for POST /auth/login.
	LoginAttemptsPerMin int
	// CleanupInterval is how often idle limiters are purged.
	CleanupInterval time.Duration
	// IdleTTL is how long a client's limiter may sit unused before it is purged.
	IdleTTL time.Duration
}

// DefaultRateLimiterConfig returns sensible defaults.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRequestsPerMin: 300,
		LoginAttemptsPerMin:   10,
		CleanupInterval:       5 * time.Minute,
		IdleTTL:               10 * time.Minute,
	}
}

// limiterEntry pairs a client's limiter with the last time it was used.
type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one rate.Limiter per (scope, client IP).
type RateLimiter struct {
	config RateLimiterConfig

	mu      sync.Mutex
	clients map[string]*limiterEntry

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter creates a RateLimiter and starts its cleanup goroutine.
// Call Stop to release it.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = 10 * time.Minute
	}
	rl := &RateLimiter{
		config:  config,
		clients: make(map[string]*limiterEntry),
		stopCh:  make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Stop halts the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stopCh:
			return
		case now := <-ticker.C:
			rl.purge(now)
		}
	}
}

// purge drops limiters idle for longer than the configured TTL.
func (rl *RateLimiter) purge(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, e := range rl.clients {
		if now.Sub(e.lastSeen) > rl.config.IdleTTL {
			delete(rl.clients, key)
		}
	}
}

// Allow reports whether scope and ip may make another request. Each pair
// gets a limiter refilling perMin tokens a minute with a burst of perMin.
func (rl *RateLimiter) Allow(scope, ip string, perMin int) bool {
	return rl.allowAt(scope, ip, perMin, time.Now())
}

func (rl *RateLimiter) allowAt(scope, ip string, perMin int, now time.Time) bool {
	if perMin <= 0 {
		return true
	}
	key := scope + "|" + ip

	rl.mu.Lock()
	e, ok := rl.clients[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(rate.Limit(float64(perMin)/60), perMin)}
		rl.clients[key] = e
	}
	e.lastSeen = now
	rl.mu.Unlock()
	return e.lim.AllowN(now, 1)
}

// Len returns the number of tracked clients.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// RateLimitMiddleware enforces a per-IP budget for scope and answers 429
// once it is spent.
func RateLimitMiddleware(rl *RateLimiter, scope string, perMin int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(scope, extractIP(r), perMin) {
				w.Header().Set("Retry-After", "60")
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractIP returns the client IP. The console runs behind at most one
// reverse proxy, so the leftmost X-Forwarded-For entry wins when present.
func extractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
