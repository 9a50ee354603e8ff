package postgres

import (
	"database/sql"
	"time"

	"github.com/evgeniivall/notes-auth-micro/internal/domain"
)

const userColumns = `id, name, email, photo, password_hash, role, active, password_changed_at, reset_token_digest, reset_token_expires_at, created_at, updated_at`

type userRow struct {
	ID                  string
	Name                string
	Email               string
	Photo               string
	PasswordHash        string
	Role                string
	Active              bool
	PasswordChangedAt   sql.NullTime
	ResetTokenDigest    sql.NullString
	ResetTokenExpiresAt sql.NullTime
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (domain.User, error) {
	var ur userRow
	err := s.Scan(
		&ur.ID,
		&ur.Name,
		&ur.Email,
		&ur.Photo,
		&ur.PasswordHash,
		&ur.Role,
		&ur.Active,
		&ur.PasswordChangedAt,
		&ur.ResetTokenDigest,
		&ur.ResetTokenExpiresAt,
		&ur.CreatedAt,
		&ur.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	return ur.toDomain(), nil
}

func (ur userRow) toDomain() domain.User {
	u := domain.User{
		ID:               ur.ID,
		Name:             ur.Name,
		Email:            ur.Email,
		Photo:            ur.Photo,
		PasswordHash:     ur.PasswordHash,
		Role:             domain.Role(ur.Role),
		Active:           ur.Active,
		ResetTokenDigest: ur.ResetTokenDigest.String,
		CreatedAt:        ur.CreatedAt,
		UpdatedAt:        ur.UpdatedAt,
	}
	if ur.PasswordChangedAt.Valid {
		t := ur.PasswordChangedAt.Time
		u.PasswordChangedAt = &t
	}
	if ur.ResetTokenExpiresAt.Valid {
		t := ur.ResetTokenExpiresAt.Time
		u.ResetTokenExpiresAt = &t
	}
	return u
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
