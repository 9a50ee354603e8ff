package dto

import (
	"strings"

	"github.com/evgeniivall/notes-auth-micro/internal/domain"
)

// -------- Core auth --------

type SignupRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=64,printascii"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

func (r *SignupRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = domain.NormalizeEmail(r.Email)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (r *LoginRequest) Normalize() {
	r.Email = domain.NormalizeEmail(r.Email)
}

// -------- Password reset --------

// Step A: request reset (server always answers 200 to avoid enumeration)
type ForgetPasswordRequest struct {
	Email string `json:"email" validate:"required"`
}

func (r *ForgetPasswordRequest) Normalize() {
	r.Email = domain.NormalizeEmail(r.Email)
}

// Step B: the raw token comes from the path
type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// -------- Password change (authenticated) --------

type ChangePasswordRequest struct {
	// only read when the path carries no user id
	ID              string `json:"id"`
	CurrentPassword string `json:"currentPassword" validate:"required"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
}
