package domain

import (
	"strings"
	"time"
)

const (
	DefaultPhoto = "default.jpg"

	NameMinLen     = 2
	NameMaxLen     = 64
	PasswordMinLen = 8
	// bcrypt ignores everything past 72 bytes.
	PasswordMaxLen = 72
)

type User struct {
	ID           string
	Name         string
	Email        string
	Photo        string
	PasswordHash string
	Role         Role
	Active       bool

	PasswordChangedAt   *time.Time
	ResetTokenDigest    string
	ResetTokenExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PasswordChangedAfter reports whether the password was changed after a
// session token issued at iat. JWT timestamps carry whole seconds, so the
// comparison is done at that granularity.
func (u User) PasswordChangedAfter(iat time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.Unix() > iat.Unix()
}

// ResetTokenExpired reports whether the stored reset token can no longer be used at now.
func (u User) ResetTokenExpired(now time.Time) bool {
	if u.ResetTokenExpiresAt == nil {
		return true
	}
	return !now.Before(*u.ResetTokenExpiresAt)
}

// UserUpdate is a partial update applied atomically to a single user.
// Nil fields are left untouched.
type UserUpdate struct {
	Name  *string
	Email *string
	Role  *Role

	PasswordHash      *string
	PasswordChangedAt *time.Time

	ResetTokenDigest    *string
	ResetTokenExpiresAt *time.Time
	// ClearResetToken wipes both reset fields and wins over the two above.
	ClearResetToken bool

	// ExpectResetTokenDigest makes the update conditional: it only applies
	// while the stored reset digest still equals this value, and, when
	// ResetTokenValidAt is set, the token has not expired at that instant.
	// Otherwise the update fails with reset_token_invalid and changes nothing.
	ExpectResetTokenDigest *string
	ResetTokenValidAt      *time.Time
}

// ResetTokenMatches reports whether usr satisfies the reset token condition of u.
// An update without a condition always matches.
func (u UserUpdate) ResetTokenMatches(usr User) bool {
	if u.ExpectResetTokenDigest == nil {
		return true
	}
	if *u.ExpectResetTokenDigest == "" || usr.ResetTokenDigest != *u.ExpectResetTokenDigest {
		return false
	}
	if u.ResetTokenValidAt != nil && usr.ResetTokenExpired(*u.ResetTokenValidAt) {
		return false
	}
	return true
}

func (u UserUpdate) IsEmpty() bool {
	return u.Name == nil && u.Email == nil && u.Role == nil &&
		u.PasswordHash == nil && u.PasswordChangedAt == nil &&
		u.ResetTokenDigest == nil && u.ResetTokenExpiresAt == nil &&
		!u.ClearResetToken
}

// Apply returns a copy of usr with the update applied.
func (u UserUpdate) Apply(usr User) User {
	if u.Name != nil {
		usr.Name = *u.Name
	}
	if u.Email != nil {
		usr.Email = NormalizeEmail(*u.Email)
	}
	if u.Role != nil {
		usr.Role = *u.Role
	}
	if u.PasswordHash != nil {
		usr.PasswordHash = *u.PasswordHash
	}
	if u.PasswordChangedAt != nil {
		t := *u.PasswordChangedAt
		usr.PasswordChangedAt = &t
	}
	if u.ResetTokenDigest != nil {
		usr.ResetTokenDigest = *u.ResetTokenDigest
	}
	if u.ResetTokenExpiresAt != nil {
		t := *u.ResetTokenExpiresAt
		usr.ResetTokenExpiresAt = &t
	}
	if u.ClearResetToken {
		usr.ResetTokenDigest = ""
		usr.ResetTokenExpiresAt = nil
	}
	return usr
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateName enforces 2-64 printable ASCII characters.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrMissingField("name")
	}
	if len(name) < NameMinLen || len(name) > NameMaxLen {
		return ErrInvalidField("name", "must be between 2 and 64 characters")
	}
	for i := 0; i < len(name); i++ {
		if c := name[i]; c < 0x20 || c > 0x7e {
			return ErrInvalidField("name", "must contain only ASCII characters")
		}
	}
	return nil
}

func ValidatePassword(field, pw string) error {
	if pw == "" {
		return ErrMissingField(field)
	}
	if len(pw) < PasswordMinLen {
		return ErrWeakPassword("min length 8")
	}
	if len(pw) > PasswordMaxLen {
		return ErrWeakPassword("max length 72")
	}
	return nil
}
