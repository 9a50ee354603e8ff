package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/evgeniivall/notes-auth-micro/internal/domain"
	"github.com/evgeniivall/notes-auth-micro/internal/infrastructure/security"
)

// CSRFProtection validates Origin/Referer on state-changing requests that
// authenticate with the session cookie. Bearer requests and requests without
// a session cookie are not affected: a browser never attaches the header on its own.
func CSRFProtection(allowedOrigins []string, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	allowedHosts := make(map[string]struct{})
	for _, origin := range allowedOrigins {
		if u, err := url.Parse(strings.TrimSpace(origin)); err == nil && u.Host != "" {
			allowedHosts[strings.ToLower(u.Host)] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !needsOriginCheck(r) {
				next.ServeHTTP(w, r)
				return
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				origin = r.Header.Get("Referer")
			}
			if origin == "" {
				writeErr(w, r, domain.ErrCSRFRejected("missing origin"))
				return
			}

			u, err := url.Parse(origin)
			if err != nil {
				writeErr(w, r, domain.ErrCSRFRejected("invalid origin"))
				return
			}
			if _, ok := allowedHosts[strings.ToLower(u.Host)]; !ok {
				writeErr(w, r, domain.ErrCSRFRejected("cross-origin request"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func needsOriginCheck(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	if strings.HasPrefix(strings.ToLower(r.Header.Get("Authorization")), "bearer ") {
		return false
	}
	_, hasSession := security.ReadSessionCookie(r)
	return hasSession
}
