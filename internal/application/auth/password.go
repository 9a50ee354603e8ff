package auth

import (
	"context"
	"strings"

	"github.com/evgeniivall/notes-auth-micro/internal/domain"
)

// ForgetPassword stores a fresh reset token for the user and emails the raw token.
// An unknown email yields user_not_found; callers facing the public should
// answer it exactly like a success.
// If the email cannot be delivered the stored token is removed again.
func (s *Service) ForgetPassword(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.ErrMissingField("email")
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	tok, err := s.resets.Generate()
	if err != nil {
		return domain.ErrRandomFailed(err)
	}

	// Overwriting the digest invalidates any earlier raw token.
	if _, err := s.users.Update(ctx, u.ID, domain.UserUpdate{
		ResetTokenDigest:    &tok.Digest,
		ResetTokenExpiresAt: &tok.ExpiresAt,
	}); err != nil {
		return err
	}

	evt := PasswordResetEvent{
		UserID:       u.ID,
		Email:        u.Email,
		Name:         u.Name,
		URL:          s.resetURLBase + tok.Raw,
		ExpiresInSec: int64(s.resets.TTL().Seconds()),
	}
	if err := s.notifier.NotifyPasswordReset(ctx, evt); err != nil {
		s.rollbackResetToken(ctx, u.ID, tok.Digest)
		return domain.ErrEmailSendFailed(err)
	}

	s.audit("password_reset_requested", map[string]string{"user_id": u.ID, "email": u.Email})
	return nil
}

// rollbackResetToken runs even if the request was cancelled, otherwise a
// token nobody received would linger until expiry. It only clears the token
// stored by this call; a newer one from a concurrent request stays.
func (s *Service) rollbackResetToken(ctx context.Context, userID, digest string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	_, err := s.users.Update(ctx, userID, domain.UserUpdate{
		ClearResetToken:        true,
		ExpectResetTokenDigest: &digest,
	})
	if err != nil && !domain.Is(err, "reset_token_invalid") {
		s.audit("password_reset_rollback_failed", map[string]string{"user_id": userID, "error": err.Error()})
	}
}

// ResetPassword sets a new password using a raw reset token and signs the user in.
func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string) (AuthResult, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return AuthResult{}, domain.ErrResetTokenInvalid()
	}
	if err := domain.ValidatePassword("password", newPassword); err != nil {
		return AuthResult{}, err
	}

	digest := s.resets.Digest(rawToken)
	u, err := s.users.GetByResetTokenDigest(ctx, digest)
	if err != nil {
		if domain.Is(err, "user_not_found") {
			return AuthResult{}, domain.ErrResetTokenInvalid()
		}
		return AuthResult{}, err
	}
	now := s.now()
	if u.ResetTokenExpired(now) {
		return AuthResult{}, domain.ErrResetTokenExpired()
	}

	// The write only lands while the digest is still stored, so of two
	// concurrent redemptions exactly one succeeds.
	updated, err := s.setPassword(ctx, u.ID, newPassword, domain.UserUpdate{
		ExpectResetTokenDigest: &digest,
		ResetTokenValidAt:      &now,
	})
	if err != nil {
		return AuthResult{}, err
	}

	s.audit("password_reset_completed", map[string]string{"user_id": u.ID})
	return s.issueSession(updated)
}

type ChangePasswordInput struct {
	ActorID   string
	ActorRole domain.Role

	UserID          string
	CurrentPassword string
	NewPassword     string
}

// ChangePassword replaces a password after checking the current one.
// Users may only change their own password unless they are admins.
func (s *Service) ChangePassword(ctx context.Context, in ChangePasswordInput) (AuthResult, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	if in.UserID == "" {
		return AuthResult{}, domain.ErrMissingField("id")
	}
	if in.ActorID != in.UserID && in.ActorRole != domain.RoleAdmin {
		return AuthResult{}, domain.ErrForbidden()
	}
	if in.CurrentPassword == "" {
		return AuthResult{}, domain.ErrMissingField("currentPassword")
	}
	if err := domain.ValidatePassword("password", in.NewPassword); err != nil {
		return AuthResult{}, err
	}

	u, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return AuthResult{}, err
	}

	if err := s.hasher.Compare(ctx, u.PasswordHash, in.CurrentPassword); err != nil {
		return AuthResult{}, compareError(err, domain.ErrCurrentPasswordWrong())
	}

	updated, err := s.setPassword(ctx, u.ID, in.NewPassword, domain.UserUpdate{})
	if err != nil {
		return AuthResult{}, err
	}

	s.audit("password_changed", map[string]string{"user_id": u.ID, "actor_id": in.ActorID})
	return s.issueSession(updated)
}
