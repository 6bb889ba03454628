package server

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxRequestIDLen caps client-supplied request ids.
const maxRequestIDLen = 64

// RequestIDFromContext returns the request ID from the context, if present.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return id
	}
	return ""
}

// --- Request ID Middleware ---

// RequestIDMiddleware keeps a sane X-Request-ID from the client or assigns a
// fresh UUID, and echoes it in the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > maxRequestIDLen || strings.ContainsAny(id, "\r\n") {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// --- Logging Middleware ---

// statusRecorder captures the status code and body size of a response.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// LoggingMiddleware logs one line per request. Server errors log at error
// level, everything else at info. Static assets are not logged.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/static/") {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			level := slog.LevelInfo
			if rw.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.Log(r.Context(), level, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"bytes", rw.written,
				"request_id", RequestIDFromContext(r.Context()),
			)
		})
	}
}

// --- Recovery Middleware ---

// RecoveryMiddleware turns a handler panic into a logged 500.
func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						"error", fmt.Sprintf("%v", rec),
						"stack", string(debug.Stack()),
						"method", r.Method,
						"path", r.URL.Path,
						"request_id", RequestIDFromContext(r.Context()),
					)
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// --- Security Headers Middleware ---

const contentSecurityPolicy = "default-src 'self'; script-src 'self'; style-src 'self'; " +
	"img-src 'self' data:; connect-src 'self'; form-action 'self'; frame-ancestors 'none'"

// SecurityHeadersMiddleware sets security headers on every response. Pages
// carry operator data, so nothing outside /static is cached.
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Content-Security-Policy", contentSecurityPolicy)
		h.Set("Referrer-Policy", "same-origin")
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		if !strings.HasPrefix(r.URL.Path, "/static/") {
			h.Set("Cache-Control", "no-store")
		}
		next.ServeHTTP(w, r)
	})
}

// --- CSRF Middleware ---

const (
	csrfCookieName = "_csrf"
	csrfFieldName  = "csrf_token"
	csrfHeaderName = "X-CSRF-Token"
	csrfTokenBytes = 32
)

// csrfGuard issues and checks double-submit tokens signed with secret.
type csrfGuard struct {
	secret []byte
	secure bool
}

// issue sets a fresh token cookie and returns the request carrying the token.
func (g csrfGuard) issue(w http.ResponseWriter, r *http.Request) (*http.Request, error) {
	token, err := generateCSRFToken(g.secret)
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   g.secure,
	})
	return r.WithContext(withCSRFToken(r.Context(), token)), nil
}

// check reports why a state-changing request fails the CSRF check, or ""
// when it passes.
func (g csrfGuard) check(r *http.Request) string {
	cookie, err := r.Cookie(csrfCookieName)
	if err != nil {
		return "missing CSRF cookie"
	}
	submitted := r.FormValue(csrfFieldName)
	if submitted == "" {
		submitted = r.Header.Get(csrfHeaderName)
	}
	if submitted == "" {
		return "missing CSRF token"
	}
	if !validateCSRFToken(g.secret, cookie.Value, submitted) {
		return "invalid CSRF token"
	}
	return ""
}

// CSRFMiddleware protects state-changing requests with the double-submit
// cookie pattern. Every safe or accepted request gets a fresh token. secure
// marks the cookie Secure, which browsers drop over plain http.
func CSRFMiddleware(secret []byte, secure bool) func(http.Handler) http.Handler {
	g := csrfGuard{secret: secret, secure: secure}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
			case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
				if reason := g.check(r); reason != "" {
					http.Error(w, "Forbidden: "+reason, http.StatusForbidden)
					return
				}
			default:
				next.ServeHTTP(w, r)
				return
			}

			r, err := g.issue(w, r)
			if err != nil {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CSRFTokenFromContext returns the CSRF token from the context, if present.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(ctxKeyCSRFToken).(string)
	return t
}

// generateCSRFToken creates a random token and signs it with HMAC.
func generateCSRFToken(secret []byte) (string, error) {
	randomBytes := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("generating CSRF random bytes: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(randomBytes)
	return encoded + "." + sign(secret, randomBytes), nil
}

// validateCSRFToken checks that the cookie token is signed by secret and
// equals the submitted token.
func validateCSRFToken(secret []byte, cookieToken, submittedToken string) bool {
	random, sig, ok := strings.Cut(cookieToken, ".")
	if !ok || !strings.Contains(submittedToken, ".") {
		return false
	}
	raw, err := base64.RawURLEncoding.DecodeString(random)
	if err != nil {
		return false
	}
	if !hmac.Equal([]byte(sig), []byte(sign(secret, raw))) {
		return false
	}
	return hmac.Equal([]byte(cookieToken), []byte(submittedToken))
}

// sign returns the base64 HMAC-SHA256 of msg under secret.
func sign(secret, msg []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(msg)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
