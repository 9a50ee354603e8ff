package dto

import (
	"time"

	"github.com/evgeniivall/notes-auth-micro/internal/domain"
)

// UserView is the public shape of a user. Password material never leaves the service.
type UserView struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	Photo             string     `json:"photo"`
	Role              string     `json:"role"`
	Active            bool       `json:"active"`
	PasswordChangedAt *time.Time `json:"passwordChangedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

func NewUserView(u domain.User) UserView {
	return UserView{
		ID:                u.ID,
		Name:              u.Name,
		Email:             u.Email,
		Photo:             u.Photo,
		Role:              string(u.Role),
		Active:            u.Active,
		PasswordChangedAt: u.PasswordChangedAt,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}

// Project keeps only the requested fields of u. The id is always kept.
// An empty field list returns the full view.
func Project(u domain.User, fields []string) any {
	v := NewUserView(u)
	if len(fields) == 0 {
		return v
	}

	all := map[string]any{
		domain.FieldID:        v.ID,
		domain.FieldName:      v.Name,
		domain.FieldEmail:     v.Email,
		domain.FieldPhoto:     v.Photo,
		domain.FieldRole:      v.Role,
		domain.FieldActive:    v.Active,
		domain.FieldCreatedAt: v.CreatedAt,
		domain.FieldUpdatedAt: v.UpdatedAt,
	}
	if v.PasswordChangedAt != nil {
		all[domain.FieldPasswordChangedAt] = *v.PasswordChangedAt
	}

	out := map[string]any{domain.FieldID: v.ID}
	for _, f := range fields {
		if val, ok := all[f]; ok {
			out[f] = val
		}
	}
	return out
}

// -------- Core auth --------

// AuthData is returned by signup.
type AuthData struct {
	User  UserView `json:"user"`
	Token string   `json:"token"`
}

// TokenData is returned by every other flow that signs the user in.
type TokenData struct {
	Token string `json:"token"`
}

// IdentityData is returned by introspection.
type IdentityData struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

type MessageData struct {
	Message string `json:"message"`
}

// -------- Users --------

type UserData struct {
	User any `json:"user"`
}

type UsersData struct {
	Users []any `json:"users"`
}
