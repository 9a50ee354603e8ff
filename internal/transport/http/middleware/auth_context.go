package middleware

import (
	"context"

	"github.com/evgeniivall/notes-auth-micro/internal/domain"
)

type ctxKey string

const ctxUser ctxKey = "user"

// WithUser attaches the authenticated user to ctx.
func WithUser(ctx context.Context, u domain.User) context.Context {
	return context.WithValue(ctx, ctxUser, u)
}

func UserFromContext(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(ctxUser).(domain.User)
	return u, ok && u.ID != ""
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	u, ok := UserFromContext(ctx)
	return u.ID, ok
}

func RoleFromContext(ctx context.Context) (domain.Role, bool) {
	u, ok := UserFromContext(ctx)
	return u.Role, ok
}
