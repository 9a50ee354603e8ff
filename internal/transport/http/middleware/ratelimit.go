package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/httprate"

	"github.com/evgeniivall/notes-auth-micro/internal/domain"
	"github.com/evgeniivall/notes-auth-micro/internal/infrastructure/redis"
	"github.com/evgeniivall/notes-auth-micro/internal/logger"
)

type RateLimiter interface {
	AllowFixedWindow(ctx context.Context, key string, limit int, window time.Duration) (redis.Decision, error)
}

// FixedWindowConfig defines the configuration for a fixed-window rate limit.
type FixedWindowConfig struct {
	Scope  string // e.g. "login"
	Limit  int
	Window time.Duration
}

func (c FixedWindowConfig) withDefaults() FixedWindowConfig {
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	if c.Scope == "" {
		c.Scope = "unknown"
	}
	return c
}

// RateLimitFixedWindow limits hits per scope and caller in Redis.
// Limiter errors fail open.
func RateLimitFixedWindow(limiter RateLimiter, cfg FixedWindowConfig, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	cfg = cfg.withDefaults()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || cfg.Limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			key := redis.Key(cfg.Scope, userOrIP(r))
			dec, err := limiter.AllowFixedWindow(r.Context(), key, cfg.Limit, cfg.Window)
			if err != nil {
				logger.WithCtx(r.Context()).Warn().Err(err).Str("scope", cfg.Scope).Msg("rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(dec.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(dec.Remaining))
			if !dec.Allowed {
				if dec.RetryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int((dec.RetryAfter+time.Second-1)/time.Second)))
				}
				writeErr(w, r, domain.ErrRateLimited(cfg.Scope))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitInProcess is the single-instance fallback used when Redis is not configured.
func RateLimitInProcess(cfg FixedWindowConfig, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	cfg = cfg.withDefaults()
	if cfg.Limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(cfg.Limit, cfg.Window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return cfg.Scope + ":" + userOrIP(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeErr(w, r, domain.ErrRateLimited(cfg.Scope))
		}),
	)
}

// userOrIP prefers the authenticated user; otherwise falls back to client IP.
func userOrIP(r *http.Request) string {
	if uid, ok := UserIDFromContext(r.Context()); ok {
		return "u:" + uid
	}
	return "ip:" + clientIP(r)
}

// clientIP reads RemoteAddr only; forwarding headers are resolved by chi's RealIP
// in front of this middleware.
func clientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	return addr
}
