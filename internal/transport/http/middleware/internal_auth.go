package middleware

import (
	"crypto/subtle"
	"net/http"
)

const HeaderInternalSecret = "X-Internal-Secret"

// InternalAuth guards operator endpoints such as /metrics with a shared secret.
// An empty secret leaves the endpoint open in development and closed otherwise.
func InternalAuth(secret string, development bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			if development {
				return next
			}
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
			})
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(HeaderInternalSecret)
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
