package auth

import (
	"context"
	"errors"
	"time"

	"github.com/evgeniivall/notes-auth-micro/internal/domain"
)

/*
UserRepo
--------
Persistence port for users.
Only describes WHAT the auth flows need, not HOW it's stored.
Every read only sees active users.
*/
type UserRepo interface {
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByResetTokenDigest(ctx context.Context, digest string) (domain.User, error)
	Create(ctx context.Context, u domain.User) (domain.User, error)

	// Update applies upd to a single user atomically and returns the stored result.
	Update(ctx context.Context, id string, upd domain.UserUpdate) (domain.User, error)
}

/*
PasswordHasher
--------------
Abstracts bcrypt. Both calls are CPU heavy and may be queued,
so they take a context.
*/
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Compare(ctx context.Context, hash string, password string) error // nil if match
}

// ErrHasherUnavailable is wrapped by hashers that cannot take work any more.
var ErrHasherUnavailable = errors.New("password hasher unavailable")

/*
SessionIssuer
-------------
Issues and verifies signed session tokens (JWT).
Used by the service and the auth guard.
*/
type SessionClaims struct {
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type SessionToken struct {
	Token     string
	ExpiresAt time.Time
}

type SessionIssuer interface {
	Issue(userID string) (SessionToken, error)
	Verify(token string) (SessionClaims, error)
}

/*
ResetTokenIssuer
----------------
Opaque password reset tokens. Only the digest is ever stored.
*/
type ResetToken struct {
	Raw       string
	Digest    string
	ExpiresAt time.Time
}

type ResetTokenIssuer interface {
	Generate() (ResetToken, error)
	Digest(raw string) string
	TTL() time.Duration
}

/*
Notifier
--------
Delivers account emails, either directly over SMTP or as
events for a mail worker.
*/
type Notifier interface {
	NotifyWelcome(ctx context.Context, evt WelcomeEvent) error
	NotifyPasswordReset(ctx context.Context, evt PasswordResetEvent) error
}

/*
Event payloads
--------------
*/
type WelcomeEvent struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	URL    string `json:"url"`
}

type PasswordResetEvent struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	ExpiresInSec int64  `json:"expires_in_sec"`
}
