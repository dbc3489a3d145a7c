package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter throttles the public auth routes per client IP with a fixed
// window counter in Redis. Per-user AI limits live in the quota package.
type RateLimiter struct {
	client redis.Cmdable
	scope  string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter allows maxReqs requests per windowSec seconds per client IP.
// scope namespaces the Redis keys so several limiters can share one server.
func NewRateLimiter(client redis.Cmdable, scope string, maxReqs, windowSec int) *RateLimiter {
	return &RateLimiter{
		client: client,
		scope:  scope,
		limit:  maxReqs,
		window: time.Duration(windowSec) * time.Second,
		now:    time.Now,
	}
}

// Middleware rejects requests over the limit with 429 and a Retry-After
// pointing at the next window. Redis errors let the request through.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		count, resetIn, err := rl.hit(r.Context(), ip)
		if err != nil {
			slog.Warn("auth rate limiter unavailable, allowing request", "error", err, "ip", ip)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(rl.limit-count, 0)))

		if count > rl.limit {
			w.Header().Set("Retry-After", strconv.Itoa(int(resetIn.Seconds())))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"Demasiados pedidos. Aguarda um momento."}` + "\n"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// hit counts one request in the current window and returns the new count
// and the time left until the window rolls over (rounded up to a second).
func (rl *RateLimiter) hit(ctx context.Context, ip string) (int, time.Duration, error) {
	now := rl.now()
	windowStart := now.Truncate(rl.window)
	key := "ratelimit:" + rl.scope + ":" + ip + ":" + strconv.FormatInt(windowStart.Unix(), 10)

	pipe := rl.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rl.window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}

	resetIn := windowStart.Add(rl.window).Sub(now)
	if rem := resetIn % time.Second; rem != 0 {
		resetIn += time.Second - rem
	}
	return int(incr.Val()), resetIn, nil
}

// clientIP trusts X-Forwarded-For and X-Real-IP; the API runs behind a
// reverse proxy that sets them.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
