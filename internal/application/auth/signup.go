package auth

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/evgeniivall/notes-auth-micro/internal/domain"
)

var validate = validator.New()

type SignupInput struct {
	Name     string
	Email    string
	Password string
}

func (in *SignupInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = domain.NormalizeEmail(in.Email)

	if err := domain.ValidateName(in.Name); err != nil {
		return err
	}
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	return domain.ValidatePassword("password", in.Password)
}

func validateEmail(email string) error {
	if email == "" {
		return domain.ErrMissingField("email")
	}
	if err := validate.Var(email, "email,max=254"); err != nil {
		return domain.ErrInvalidField("email", "invalid format")
	}
	return nil
}

// Signup creates an active user with the default role and signs them in.
func (s *Service) Signup(ctx context.Context, in SignupInput) (AuthResult, error) {
	if err := in.normalize(); err != nil {
		return AuthResult{}, err
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return AuthResult{}, domain.ErrHashFailed(err)
	}

	now := s.now()
	created, err := s.users.Create(ctx, domain.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		Photo:        domain.DefaultPhoto,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return AuthResult{}, err
	}

	s.audit("signup", map[string]string{"user_id": created.ID, "email": created.Email})
	s.sendWelcome(ctx, created)

	return s.issueSession(created)
}

// sendWelcome is fire-and-forget; a failed welcome email never fails signup.
func (s *Service) sendWelcome(ctx context.Context, u domain.User) {
	evt := WelcomeEvent{
		UserID: u.ID,
		Email:  u.Email,
		Name:   u.Name,
		URL:    s.appURL,
	}
	base := context.WithoutCancel(ctx)

	s.async(func() {
		ctx, cancel := context.WithTimeout(base, notifyTimeout)
		defer cancel()

		if err := s.notifier.NotifyWelcome(ctx, evt); err != nil {
			s.audit("welcome_email_failed", map[string]string{"user_id": evt.UserID, "error": err.Error()})
		}
	})
}
