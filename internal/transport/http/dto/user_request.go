package dto

import (
	"strings"

	"github.com/evgeniivall/notes-auth-micro/internal/domain"
)

type CreateUserRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=64,printascii"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
}

func (r *CreateUserRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = domain.NormalizeEmail(r.Email)
	r.Role = strings.TrimSpace(r.Role)
}

// UpdateUserRequest only carries the fields an admin may change.
// Anything else in the body is ignored.
type UpdateUserRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=2,max=64,printascii"`
	Email *string `json:"email" validate:"omitempty,email"`
}

func (r *UpdateUserRequest) Normalize() {
	if r.Name != nil {
		n := strings.TrimSpace(*r.Name)
		r.Name = &n
	}
	if r.Email != nil {
		e := domain.NormalizeEmail(*r.Email)
		r.Email = &e
	}
}
