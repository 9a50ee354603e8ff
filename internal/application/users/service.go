package users

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/evgeniivall/notes-auth-micro/internal/domain"
)

// Repo is the persistence port for user administration.
// Like auth.UserRepo it only ever sees active users.
type Repo interface {
	GetByID(ctx context.Context, id string) (domain.User, error)
	Create(ctx context.Context, u domain.User) (domain.User, error)
	Update(ctx context.Context, id string, upd domain.UserUpdate) (domain.User, error)
	List(ctx context.Context, q domain.ListQuery) ([]domain.User, error)
	Delete(ctx context.Context, id string) error
}

type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
}

var validate = validator.New()

type Service struct {
	repo   Repo
	hasher PasswordHasher

	audit func(action string, fields map[string]string)
	now   func() time.Time
}

func NewService(repo Repo, hasher PasswordHasher) *Service {
	return &Service{
		repo:   repo,
		hasher: hasher,
		audit:  func(string, map[string]string) {},
		now:    time.Now,
	}
}

func (s *Service) WithAudit(fn func(action string, fields map[string]string)) *Service {
	if fn != nil {
		s.audit = fn
	}
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Service) List(ctx context.Context, q domain.ListQuery) ([]domain.User, error) {
	return s.repo.List(ctx, q.WithDefaults())
}

func (s *Service) Get(ctx context.Context, id string) (domain.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.User{}, domain.ErrMissingField("id")
	}
	return s.repo.GetByID(ctx, id)
}

type CreateInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// Create adds an active user on behalf of an admin.
func (s *Service) Create(ctx context.Context, actorID string, in CreateInput) (domain.User, error) {
	name := strings.TrimSpace(in.Name)
	email := domain.NormalizeEmail(in.Email)

	if err := domain.ValidateName(name); err != nil {
		return domain.User{}, err
	}
	if err := validateEmail(email); err != nil {
		return domain.User{}, err
	}
	if err := domain.ValidatePassword("password", in.Password); err != nil {
		return domain.User{}, err
	}
	role, err := domain.ParseRole(strings.TrimSpace(in.Role))
	if err != nil {
		return domain.User{}, err
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return domain.User{}, domain.ErrHashFailed(err)
	}

	now := s.now()
	u, err := s.repo.Create(ctx, domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		Photo:        domain.DefaultPhoto,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return domain.User{}, err
	}

	s.audit("user_created", map[string]string{"user_id": u.ID, "actor_id": actorID, "role": string(u.Role)})
	return u, nil
}

// UpdateInput carries the profile fields an update may touch.
// Password and role changes have their own flows.
type UpdateInput struct {
	Name  *string
	Email *string
}

func (s *Service) Update(ctx context.Context, actorID, id string, in UpdateInput) (domain.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.User{}, domain.ErrMissingField("id")
	}
	if in.Name == nil && in.Email == nil {
		return domain.User{}, domain.ErrNoUpdatableFields()
	}

	var upd domain.UserUpdate
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := domain.ValidateName(name); err != nil {
			return domain.User{}, err
		}
		upd.Name = &name
	}
	if in.Email != nil {
		email := domain.NormalizeEmail(*in.Email)
		if err := validateEmail(email); err != nil {
			return domain.User{}, err
		}
		upd.Email = &email
	}

	u, err := s.repo.Update(ctx, id, upd)
	if err != nil {
		return domain.User{}, err
	}

	s.audit("user_updated", map[string]string{"user_id": id, "actor_id": actorID})
	return u, nil
}

func (s *Service) Delete(ctx context.Context, actorID, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.ErrMissingField("id")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.audit("user_deleted", map[string]string{"user_id": id, "actor_id": actorID})
	return nil
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
