package middleware

import (
	"net/http"
	"time"

	"github.com/evgeniivall/notes-auth-micro/internal/logger"
)

// AccessLog writes one line per request. Must run after RequestID.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := newStatusWriter(w)
		next.ServeHTTP(sw, r)

		lg := logger.WithCtx(r.Context())
		ev := lg.Info()
		if sw.status >= http.StatusInternalServerError {
			ev = lg.Error()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Int("bytes", sw.bytes).
			Dur("duration", time.Since(start)).
			Str("remote_ip", clientIP(r)).
			Msg("http request")
	})
}
