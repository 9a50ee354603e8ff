package auth

import "context"

// Logout keeps no server state: the transport replaces the session cookie.
// Tokens already handed out stay valid until they expire or the password changes.
// token is whatever the request carried; it only names the user in the audit
// trail, so a missing or invalid one is not an error.
func (s *Service) Logout(ctx context.Context, token string) {
	fields := map[string]string{}
	if token != "" {
		if claims, err := s.sessions.Verify(token); err == nil && claims.UserID != "" {
			fields["user_id"] = claims.UserID
		}
	}
	s.audit("logout", fields)
}
