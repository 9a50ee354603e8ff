package middleware

import (
	"net/http"

	"github.com/google/uuid"

	appCtx "github.com/evgeniivall/notes-auth-micro/internal/pkg/context"
)

const (
	HeaderXRequestID = "X-Request-Id"
	maxRequestIDLen  = 128
)

// RequestID reuses a sane incoming X-Request-Id or mints a new one,
// echoes it back and stores it in the context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderXRequestID)
		if !validRequestID(reqID) {
			reqID = uuid.NewString()
		}

		w.Header().Set(HeaderXRequestID, reqID)
		ctx := appCtx.WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c <= 0x20 || c >= 0x7f {
			return false
		}
	}
	return true
}
