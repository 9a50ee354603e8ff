package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/evgeniivall/notes-auth-micro/internal/domain"
)

type SeederHasher interface {
	Hash(ctx context.Context, password string) (string, error)
}

type SeederRepo interface {
	Create(ctx context.Context, u domain.User) (domain.User, error)
}

// SeedUsers creates the development accounts. Existing accounts are left as they are,
// so it is safe to run on every start. Returns how many users were created.
func SeedUsers(ctx context.Context, repo SeederRepo, hasher SeederHasher, log zerolog.Logger) int {
	type seedUser struct {
		Name  string
		Email string
		Role  domain.Role
		Pass  string
	}

	seeds := []seedUser{
		{Name: "Admin", Email: "admin@example.com", Role: domain.RoleAdmin, Pass: "AdminPassword123!"},
		{Name: "Demo User", Email: "user@example.com", Role: domain.RoleUser, Pass: "UserPassword123!"},
	}

	n := 0
	for _, s := range seeds {
		hash, err := hasher.Hash(ctx, s.Pass)
		if err != nil {
			log.Warn().Err(err).Str("email", s.Email).Msg("seed: hash failed")
			continue
		}

		now := time.Now()
		_, err = repo.Create(ctx, domain.User{
			ID:           uuid.NewString(),
			Name:         s.Name,
			Email:        s.Email,
			Photo:        domain.DefaultPhoto,
			PasswordHash: hash,
			Role:         s.Role,
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			if !domain.Is(err, "email_already_exists") {
				log.Warn().Err(err).Str("email", s.Email).Msg("seed: create failed")
			}
			continue
		}
		n++
	}

	log.Info().Int("created", n).Msg("seed: users seeded")
	return n
}
