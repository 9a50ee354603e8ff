package security

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/evgeniivall/notes-auth-micro/internal/domain"
)

// MinCost is the lowest bcrypt work factor accepted for stored passwords.
const MinCost = 12

type BcryptHasher struct {
	cost int
}

// NewBcryptHasher raises any cost below MinCost to MinCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < MinCost {
		cost = MinCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Cost() int { return h.cost }

func (h *BcryptHasher) Hash(ctx context.Context, password string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", domain.ErrHashFailed(err)
	}
	return string(b), nil
}

func (h *BcryptHasher) Compare(ctx context.Context, hash string, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
