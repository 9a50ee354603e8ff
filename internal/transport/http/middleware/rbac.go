package middleware

import (
	"net/http"

	"github.com/evgeniivall/notes-auth-micro/internal/domain"
)

// RestrictTo lets through only users holding one of roles.
// Assumes Auth() middleware has already injected the user into context.
func RestrictTo(writeErr WriteErrFunc, roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := RoleFromContext(r.Context())
			if !ok {
				// Middleware ordering issue (Auth not applied)
				writeErr(w, r, domain.ErrTokenMissing())
				return
			}
			if !domain.HasRole(role, roles...) {
				writeErr(w, r, domain.ErrForbidden())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
