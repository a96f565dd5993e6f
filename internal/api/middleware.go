package api

import (
	"crypto/subtle"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// requestIDMiddleware attaches a UUID request ID to each request, reusing
// the caller's X-Request-ID when present.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := withRequestInfo(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// adminMiddleware guards operator routes with a static token from the
// X-Ledger-Admin-Token header. An empty configured token disables them.
func adminMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				writeError(w, http.StatusForbidden, "operator routes are disabled")
				return
			}
			got := r.Header.Get("X-Ledger-Admin-Token")
			if got == "" {
				writeError(w, http.StatusUnauthorized, "missing X-Ledger-Admin-Token header")
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeError(w, http.StatusForbidden, "invalid admin token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rr *responseRecorder) WriteHeader(code int) {
	rr.statusCode = code
	rr.ResponseWriter.WriteHeader(code)
}

// accessLogMiddleware logs every request with its status and latency.
func accessLogMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rr := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rr, r)

			ev := logger.Debug()
			if rr.statusCode >= 500 {
				ev = logger.Error()
			}
			info := infoFromCtx(r.Context())
			if info.signer != "" {
				ev = ev.Str("signer", info.signer)
			}
			ev.Str("request_id", info.id).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rr.statusCode).
				Dur("duration", time.Since(start)).
				Str("client_ip", clientIP(r)).
				Msg("request")
		})
	}
}

// rateLimiter is a simple per-IP token bucket rate limiter.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    int // requests per second
	burst   int
	logger  zerolog.Logger
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

func newRateLimiter(rps, burst int, logger zerolog.Logger) *rateLimiter {
	if burst < rps {
		burst = rps
	}
	return &rateLimiter{
		buckets: make(map[string]*bucket),
		rate:    rps,
		burst:   burst,
		logger:  logger,
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := time.Now()
	b, ok := rl.buckets[ip]
	if !ok {
		b = &bucket{tokens: float64(rl.burst), lastCheck: now}
		rl.buckets[ip] = b
	}
	b.tokens += now.Sub(b.lastCheck).Seconds() * float64(rl.rate)
	if b.tokens > float64(rl.burst) {
		b.tokens = float64(rl.burst)
	}
	b.lastCheck = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.allow(ip) {
			rl.logger.Warn().Str("ip", ip).Msg("rate limit exceeded")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}
