package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/evgeniivall/notes-auth-micro/internal/domain"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

// ---------- helpers ----------

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate")
}

// isBadUUID reports an id that is not a valid uuid; such a user cannot exist.
func isBadUUID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

func (r *UserRepo) getOne(ctx context.Context, where string, arg any) (domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE ` + where + ` AND active LIMIT 1`

	u, err := scanUser(r.db.QueryRowContext(ctx, q, arg))
	if err != nil {
		if isNoRows(err) || isBadUUID(err) {
			return domain.User{}, domain.ErrUserNotFound()
		}
		return domain.User{}, domain.ErrDBUnavailable(err)
	}
	return u, nil
}

// ---------- auth.UserRepo ----------

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.User{}, domain.ErrMissingField("email")
	}
	return r.getOne(ctx, "email = $1", email)
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (domain.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.User{}, domain.ErrMissingField("id")
	}
	return r.getOne(ctx, "id = $1", id)
}

func (r *UserRepo) GetByResetTokenDigest(ctx context.Context, digest string) (domain.User, error) {
	if digest == "" {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return r.getOne(ctx, "reset_token_digest = $1", digest)
}

func (r *UserRepo) Create(ctx context.Context, u domain.User) (domain.User, error) {
	u.Email = domain.NormalizeEmail(u.Email)
	if u.ID == "" {
		return domain.User{}, domain.ErrMissingField("id")
	}
	if u.Email == "" {
		return domain.User{}, domain.ErrMissingField("email")
	}
	if u.PasswordHash == "" {
		return domain.User{}, domain.ErrMissingField("password_hash")
	}
	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	if u.Photo == "" {
		u.Photo = domain.DefaultPhoto
	}

	const q = `
INSERT INTO users (id, name, email, photo, password_hash, role, active, password_changed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + userColumns

	created, err := scanUser(r.db.QueryRowContext(ctx, q,
		u.ID, u.Name, u.Email, u.Photo, u.PasswordHash, string(u.Role), u.Active, nullTime(u.PasswordChangedAt),
	))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, domain.ErrEmailAlreadyExists()
		}
		return domain.User{}, domain.ErrDBUnavailable(err)
	}
	return created, nil
}

// Update applies upd in a single statement, so concurrent updates to one
// user never interleave field by field.
func (r *UserRepo) Update(ctx context.Context, id string, upd domain.UserUpdate) (domain.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.User{}, domain.ErrMissingField("id")
	}
	if upd.IsEmpty() {
		return r.GetByID(ctx, id)
	}

	sets := make([]string, 0, 8)
	args := []any{id}
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if upd.Name != nil {
		set("name", *upd.Name)
	}
	if upd.Email != nil {
		set("email", domain.NormalizeEmail(*upd.Email))
	}
	if upd.Role != nil {
		set("role", string(*upd.Role))
	}
	if upd.PasswordHash != nil {
		set("password_hash", *upd.PasswordHash)
	}
	if upd.PasswordChangedAt != nil {
		set("password_changed_at", *upd.PasswordChangedAt)
	}
	if upd.ClearResetToken {
		sets = append(sets, "reset_token_digest = NULL", "reset_token_expires_at = NULL")
	} else {
		if upd.ResetTokenDigest != nil {
			set("reset_token_digest", nullString(*upd.ResetTokenDigest))
		}
		if upd.ResetTokenExpiresAt != nil {
			set("reset_token_expires_at", *upd.ResetTokenExpiresAt)
		}
	}
	sets = append(sets, "updated_at = NOW()")

	where := "id = $1 AND active"
	if upd.ExpectResetTokenDigest != nil {
		args = append(args, nullString(*upd.ExpectResetTokenDigest))
		where += fmt.Sprintf(" AND reset_token_digest = $%d", len(args))
		if upd.ResetTokenValidAt != nil {
			args = append(args, *upd.ResetTokenValidAt)
			where += fmt.Sprintf(" AND reset_token_expires_at > $%d", len(args))
		}
	}

	q := `UPDATE users SET ` + strings.Join(sets, ", ") +
		` WHERE ` + where + ` RETURNING ` + userColumns

	u, err := scanUser(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		if isNoRows(err) && upd.ExpectResetTokenDigest != nil {
			// someone else redeemed or replaced the token first
			return domain.User{}, domain.ErrResetTokenInvalid()
		}
		if isNoRows(err) || isBadUUID(err) {
			return domain.User{}, domain.ErrUserNotFound()
		}
		if isUniqueViolation(err) {
			return domain.User{}, domain.ErrEmailAlreadyExists()
		}
		return domain.User{}, domain.ErrDBUnavailable(err)
	}
	return u, nil
}

// ---------- users.Repo ----------

var listColumns = map[string]string{
	domain.FieldName:      "name",
	domain.FieldEmail:     "email",
	domain.FieldRole:      "role",
	domain.FieldActive:    "active",
	domain.FieldCreatedAt: "created_at",
	domain.FieldUpdatedAt: "updated_at",
}

var sqlOps = map[domain.FilterOp]string{
	domain.OpEq:  "=",
	domain.OpGt:  ">",
	domain.OpGte: ">=",
	domain.OpLt:  "<",
	domain.OpLte: "<=",
}

// buildListQuery turns q into SQL. Field names and operators come from fixed
// maps; only values are bound as arguments.
func buildListQuery(q domain.ListQuery) (string, []any, error) {
	q = q.WithDefaults()

	where := []string{"active"}
	var args []any

	for _, f := range q.Filters {
		col, ok := listColumns[f.Field]
		op, okOp := sqlOps[f.Op]
		if !ok || !okOp {
			return "", nil, domain.ErrInvalidField(f.Field, "cannot filter by this field")
		}

		var v any = f.Value
		switch {
		case domain.IsTimeField(f.Field):
			t, err := f.Time()
			if err != nil {
				return "", nil, domain.ErrInvalidField(f.Field, "expected a date")
			}
			v = t
		case f.Field == domain.FieldActive:
			b, err := f.Bool()
			if err != nil {
				return "", nil, domain.ErrInvalidField(f.Field, "expected true or false")
			}
			v = b
		}

		args = append(args, v)
		where = append(where, fmt.Sprintf("%s %s $%d", col, op, len(args)))
	}

	order := make([]string, 0, len(q.Sort)+1)
	for _, s := range q.Sort {
		col, ok := listColumns[s.Field]
		if !ok {
			return "", nil, domain.ErrInvalidField("sort", "cannot sort by "+s.Field)
		}
		if s.Desc {
			col += " DESC"
		}
		order = append(order, col)
	}
	// stable pages
	order = append(order, "id")

	args = append(args, q.Limit, q.Offset())
	sqlText := `SELECT ` + userColumns + ` FROM users WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY ` + strings.Join(order, ", ") +
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	return sqlText, args, nil
}

func (r *UserRepo) List(ctx context.Context, q domain.ListQuery) ([]domain.User, error) {
	sqlText, args, err := buildListQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, domain.ErrDBUnavailable(err)
	}
	defer rows.Close()

	out := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, domain.ErrDBUnavailable(err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrDBUnavailable(err)
	}
	return out, nil
}

func (r *UserRepo) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.ErrMissingField("id")
	}

	const q = `DELETE FROM users WHERE id = $1 AND active`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		if isBadUUID(err) {
			return domain.ErrUserNotFound()
		}
		return domain.ErrDBUnavailable(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrUserNotFound()
	}
	return nil
}

// Ping reports database reachability for readiness checks.
func (r *UserRepo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return domain.ErrDBUnavailable(err)
	}
	return nil
}
