package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/evgeniivall/notes-auth-micro/internal/application/auth"
)

const resetTokenBytes = 32

// ResetTokens issues opaque password reset tokens.
// Only the SHA-256 digest is meant to be stored.
type ResetTokens struct {
	ttl time.Duration
	now func() time.Time
}

func NewResetTokens(ttl time.Duration) *ResetTokens {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ResetTokens{ttl: ttl, now: time.Now}
}

func (r *ResetTokens) WithClock(now func() time.Time) *ResetTokens {
	if now != nil {
		r.now = now
	}
	return r
}

func (r *ResetTokens) TTL() time.Duration { return r.ttl }

func (r *ResetTokens) Generate() (auth.ResetToken, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return auth.ResetToken{}, err
	}
	raw := hex.EncodeToString(b)
	return auth.ResetToken{
		Raw:       raw,
		Digest:    r.Digest(raw),
		ExpiresAt: r.now().Add(r.ttl),
	}, nil
}

func (r *ResetTokens) Digest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
