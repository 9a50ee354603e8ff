package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/evgeniivall/notes-auth-micro/internal/domain"
)

const (
	notifyTimeout   = 10 * time.Second
	rollbackTimeout = 5 * time.Second
)

type Service struct {
	users    UserRepo
	hasher   PasswordHasher
	sessions SessionIssuer
	resets   ResetTokenIssuer
	notifier Notifier

	audit func(action string, fields map[string]string)
	now   func() time.Time
	async func(func())

	// URLs of the web client, used in emails
	appURL       string // e.g. https://notes.example.com
	resetURLBase string // appURL + "/resetPassword/"

	dummyOnce sync.Once
	dummyHash string
}

type Config struct {
	AppURL string
}

func NewService(
	users UserRepo,
	hasher PasswordHasher,
	sessions SessionIssuer,
	resets ResetTokenIssuer,
	notifier Notifier,
	cfg Config,
) *Service {
	appURL := strings.TrimRight(cfg.AppURL, "/")
	return &Service{
		users:    users,
		hasher:   hasher,
		sessions: sessions,
		resets:   resets,
		notifier: notifier,

		audit: func(string, map[string]string) {},
		now:   time.Now,
		async: func(f func()) { go f() },

		appURL:       appURL,
		resetURLBase: appURL + "/resetPassword/",
	}
}

// AuthResult is the common output of flows that sign the user in.
type AuthResult struct {
	User    domain.User
	Session SessionToken
}

// Identity is what introspection exposes about the current user.
type Identity struct {
	ID   string
	Role domain.Role
}

func (s *Service) WithAudit(fn func(action string, fields map[string]string)) *Service {
	if fn != nil {
		s.audit = fn
	}
	return s
}

// WithClock replaces time.Now, mostly for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// WithAsync replaces the goroutine launcher used for fire-and-forget work.
func (s *Service) WithAsync(fn func(func())) *Service {
	if fn != nil {
		s.async = fn
	}
	return s
}

func (s *Service) issueSession(u domain.User) (AuthResult, error) {
	tok, err := s.sessions.Issue(u.ID)
	if err != nil {
		return AuthResult{}, domain.ErrTokenSignFailed(err)
	}
	return AuthResult{User: u, Session: tok}, nil
}

// setPassword hashes pw and stores it, stamping PasswordChangedAt and
// dropping any outstanding reset token. cond carries the reset token
// condition, if any, the write depends on.
func (s *Service) setPassword(ctx context.Context, userID, pw string, cond domain.UserUpdate) (domain.User, error) {
	hash, err := s.hasher.Hash(ctx, pw)
	if err != nil {
		return domain.User{}, domain.ErrHashFailed(err)
	}
	now := s.now()
	return s.users.Update(ctx, userID, domain.UserUpdate{
		PasswordHash:      &hash,
		PasswordChangedAt: &now,
		ClearResetToken:   true,

		ExpectResetTokenDigest: cond.ExpectResetTokenDigest,
		ResetTokenValidAt:      cond.ResetTokenValidAt,
	})
}

// compareError sorts a failed Compare. Cancellation and an unavailable hasher
// are reported as such; anything else means the password did not match, and
// mismatch is returned.
func compareError(err error, mismatch *domain.Error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, ErrHasherUnavailable):
		return domain.ErrHashFailed(err)
	}
	return mismatch
}

// burnCompare runs a comparison against a throwaway hash so that unknown
// emails take roughly as long as wrong passwords.
func (s *Service) burnCompare(ctx context.Context, pw string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash(context.WithoutCancel(ctx), "notes-auth-dummy-password")
	})
	if s.dummyHash != "" {
		_ = s.hasher.Compare(ctx, s.dummyHash, pw)
	}
}
