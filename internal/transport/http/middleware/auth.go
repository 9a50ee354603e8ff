package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/evgeniivall/notes-auth-micro/internal/application/auth"
	"github.com/evgeniivall/notes-auth-micro/internal/domain"
	"github.com/evgeniivall/notes-auth-micro/internal/infrastructure/security"
)

type SessionVerifier interface {
	Verify(token string) (auth.SessionClaims, error)
}

// UserReader resolves the token subject to a current, active user.
type UserReader interface {
	GetByID(ctx context.Context, id string) (domain.User, error)
}

type WriteErrFunc func(http.ResponseWriter, *http.Request, error)

// Auth is the guard in front of protected routes.
// The token comes from "Authorization: Bearer <token>" or else the jwt cookie.
// The subject must still be an active user whose password has not changed
// since the token was issued. The user is then injected into the context.
func Auth(verifier SessionVerifier, users UserReader, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := SessionToken(r)
			if raw == "" {
				writeErr(w, r, domain.ErrTokenMissing())
				return
			}

			claims, err := verifier.Verify(raw)
			if err != nil {
				writeErr(w, r, err)
				return
			}
			if strings.TrimSpace(claims.UserID) == "" {
				writeErr(w, r, domain.ErrTokenInvalid())
				return
			}

			u, err := users.GetByID(r.Context(), claims.UserID)
			if err != nil {
				if domain.Is(err, "user_not_found") {
					writeErr(w, r, domain.ErrUserNoLongerExists())
					return
				}
				writeErr(w, r, err)
				return
			}

			if u.PasswordChangedAfter(claims.IssuedAt) {
				writeErr(w, r, domain.ErrPasswordChanged())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// SessionToken returns "" when the request carries no usable token.
func SessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if strings.EqualFold(parts[0], "Bearer") {
			if len(parts) == 2 {
				return strings.TrimSpace(parts[1])
			}
			return ""
		}
	}
	if tok, ok := security.ReadSessionCookie(r); ok {
		return tok
	}
	return ""
}
