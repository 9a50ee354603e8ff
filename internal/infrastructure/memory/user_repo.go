package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/evgeniivall/notes-auth-micro/internal/domain"
)

// UserRepo keeps users in a map. Every method holds the lock for its whole
// operation, which gives the same per-user atomicity as the SQL repository.
type UserRepo struct {
	mu      sync.RWMutex
	byID    map[string]domain.User
	byEmail map[string]string // email -> userID
	now     func() time.Time
}

func NewUserRepo() *UserRepo {
	return &UserRepo{
		byID:    make(map[string]domain.User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (r *UserRepo) active(id string) (domain.User, bool) {
	u, ok := r.byID[id]
	if !ok || !u.Active {
		return domain.User{}, false
	}
	return u, true
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.active(r.byEmail[domain.NormalizeEmail(email)])
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.active(id)
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return u, nil
}

func (r *UserRepo) GetByResetTokenDigest(ctx context.Context, digest string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if digest == "" {
		return domain.User{}, domain.ErrUserNotFound()
	}
	for _, u := range r.byID {
		if u.Active && u.ResetTokenDigest == digest {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound()
}

func (r *UserRepo) Create(ctx context.Context, u domain.User) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u.Email = domain.NormalizeEmail(u.Email)
	if u.ID == "" {
		return domain.User{}, domain.ErrMissingField("id")
	}
	if _, exists := r.byEmail[u.Email]; exists {
		return domain.User{}, domain.ErrEmailAlreadyExists()
	}
	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	if u.Photo == "" {
		u.Photo = domain.DefaultPhoto
	}
	now := r.now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = now
	}

	r.byID[u.ID] = u
	r.byEmail[u.Email] = u.ID
	return u, nil
}

func (r *UserRepo) Update(ctx context.Context, id string, upd domain.UserUpdate) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.active(id)
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	if !upd.ResetTokenMatches(u) {
		return domain.User{}, domain.ErrResetTokenInvalid()
	}
	if upd.IsEmpty() {
		return u, nil
	}

	next := upd.Apply(u)
	if next.Email != u.Email {
		if other, taken := r.byEmail[next.Email]; taken && other != id {
			return domain.User{}, domain.ErrEmailAlreadyExists()
		}
		delete(r.byEmail, u.Email)
		r.byEmail[next.Email] = id
	}
	next.UpdatedAt = r.now()

	r.byID[id] = next
	return next, nil
}

func (r *UserRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.active(id)
	if !ok {
		return domain.ErrUserNotFound()
	}
	delete(r.byID, id)
	delete(r.byEmail, u.Email)
	return nil
}

func (r *UserRepo) List(ctx context.Context, q domain.ListQuery) ([]domain.User, error) {
	q = q.WithDefaults()

	r.mu.RLock()
	out := make([]domain.User, 0, len(r.byID))
	for _, u := range r.byID {
		if !u.Active {
			continue
		}
		ok, err := matchesAll(u, q.Filters)
		if err != nil {
			r.mu.RUnlock()
			return nil, err
		}
		if ok {
			out = append(out, u)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		for _, s := range q.Sort {
			c := compareField(out[i], out[j], s.Field)
			if c == 0 {
				continue
			}
			if s.Desc {
				return c > 0
			}
			return c < 0
		}
		return out[i].ID < out[j].ID
	})

	start := q.Offset()
	if start >= len(out) {
		return []domain.User{}, nil
	}
	end := start + q.Limit
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], nil
}

// Ping always succeeds; it lets the in-memory store back readiness checks.
func (r *UserRepo) Ping(ctx context.Context) error { return nil }

func matchesAll(u domain.User, filters []domain.Filter) (bool, error) {
	for _, f := range filters {
		ok, err := matches(u, f)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matches(u domain.User, f domain.Filter) (bool, error) {
	switch f.Field {
	case domain.FieldName:
		return u.Name == f.Value, nil
	case domain.FieldEmail:
		return u.Email == domain.NormalizeEmail(f.Value), nil
	case domain.FieldRole:
		return string(u.Role) == f.Value, nil
	case domain.FieldActive:
		b, err := f.Bool()
		if err != nil {
			return false, domain.ErrInvalidField(f.Field, "expected true or false")
		}
		return u.Active == b, nil
	case domain.FieldCreatedAt, domain.FieldUpdatedAt:
		t, err := f.Time()
		if err != nil {
			return false, domain.ErrInvalidField(f.Field, "expected a date")
		}
		v := u.CreatedAt
		if f.Field == domain.FieldUpdatedAt {
			v = u.UpdatedAt
		}
		return compareTime(v, t, f.Op), nil
	}
	return false, domain.ErrInvalidField(f.Field, "cannot filter by this field")
}

func compareTime(v, t time.Time, op domain.FilterOp) bool {
	switch op {
	case domain.OpGt:
		return v.After(t)
	case domain.OpGte:
		return !v.Before(t)
	case domain.OpLt:
		return v.Before(t)
	case domain.OpLte:
		return !v.After(t)
	default:
		return v.Equal(t)
	}
}

func compareField(a, b domain.User, field string) int {
	switch field {
	case domain.FieldName:
		return strings.Compare(a.Name, b.Name)
	case domain.FieldEmail:
		return strings.Compare(a.Email, b.Email)
	case domain.FieldRole:
		return strings.Compare(string(a.Role), string(b.Role))
	case domain.FieldCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case domain.FieldUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	}
	return 0
}
