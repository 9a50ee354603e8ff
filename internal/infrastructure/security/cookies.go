package security

import (
	"net/http"
	"time"
)

const (
	SessionCookieName = "jwt"
	// LoggedOutValue replaces the session token on logout.
	LoggedOutValue = "loggedout"
	loggedOutTTL   = 10 * time.Second
)

func SetSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure, // prod=true, dev=false
		SameSite: http.SameSiteLaxMode,
		Expires:  expiresAt,
	})
}

// SetLoggedOutCookie overwrites the session cookie with a short-lived placeholder.
func SetLoggedOutCookie(w http.ResponseWriter, now time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    LoggedOutValue,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  now.Add(loggedOutTTL),
	})
}

// ReadSessionCookie returns the session token from the jwt cookie.
// The logout placeholder counts as no token.
func ReadSessionCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(SessionCookieName)
	if err != nil || c.Value == "" || c.Value == LoggedOutValue {
		return "", false
	}
	return c.Value, true
}
