package auth

import (
	"context"

	"github.com/evgeniivall/notes-auth-micro/internal/domain"
)

// Login authenticates a user and issues a session token.
// IMPORTANT: must not leak whether the email exists (avoid user enumeration).
func (s *Service) Login(ctx context.Context, email, password string) (AuthResult, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return AuthResult{}, domain.ErrMissingField("email")
	}
	if password == "" {
		return AuthResult{}, domain.ErrMissingField("password")
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if domain.Is(err, "user_not_found") {
			s.burnCompare(ctx, password)
			s.audit("login_failed", map[string]string{"email": email, "reason": "unknown_email"})
			return AuthResult{}, domain.ErrInvalidCredentials()
		}
		return AuthResult{}, err
	}

	if err := s.hasher.Compare(ctx, u.PasswordHash, password); err != nil {
		err = compareError(err, domain.ErrInvalidCredentials())
		if domain.Is(err, "invalid_credentials") {
			s.audit("login_failed", map[string]string{"email": email, "reason": "wrong_password"})
		}
		return AuthResult{}, err
	}

	s.audit("login_success", map[string]string{"user_id": u.ID, "email": u.Email})
	return s.issueSession(u)
}
