package redis

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/evgeniivall/notes-auth-micro/internal/domain"
)

// UserStore is what both the auth flows and user administration need
// from persistence.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByResetTokenDigest(ctx context.Context, digest string) (domain.User, error)
	Create(ctx context.Context, u domain.User) (domain.User, error)
	Update(ctx context.Context, id string, upd domain.UserUpdate) (domain.User, error)
	List(ctx context.Context, q domain.ListQuery) ([]domain.User, error)
	Delete(ctx context.Context, id string) error
}

// CachedUserRepo decorates a UserStore and keeps a Redis copy of each user
// for the auth guard, which looks the user up on every request.
// - Guard read path (Lookups): Redis -> DB fallback -> Redis SETNX
// - Write path: DB -> Redis SET/DEL (best effort)
// Reads through the repository itself always hit the store, since the
// cached copy carries no password material.
// Redis failures never fail a request; they only cost a DB round trip.
type CachedUserRepo struct {
	UserStore
	rdb     *goredis.Client
	ttl     time.Duration
	keyPref string
}

func NewCachedUserRepo(inner UserStore, client *Client, ttl time.Duration) *CachedUserRepo {
	var rdb *goredis.Client
	if client != nil {
		rdb = client.rdb
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedUserRepo{
		UserStore: inner,
		rdb:       rdb,
		ttl:       ttl,
		keyPref:   "user:",
	}
}

func (c *CachedUserRepo) key(userID string) string {
	return c.keyPref + userID
}

// cachedUser holds what the guard and the profile views need.
// Password hash and reset token never reach Redis.
type cachedUser struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	Photo             string     `json:"photo"`
	Role              string     `json:"role"`
	Active            bool       `json:"active"`
	PasswordChangedAt *time.Time `json:"password_changed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func toCached(u domain.User) cachedUser {
	return cachedUser{
		ID: u.ID, Name: u.Name, Email: u.Email, Photo: u.Photo,
		Role: string(u.Role), Active: u.Active, PasswordChangedAt: u.PasswordChangedAt,
		CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt,
	}
}

func (cu cachedUser) toDomain() domain.User {
	return domain.User{
		ID: cu.ID, Name: cu.Name, Email: cu.Email, Photo: cu.Photo,
		Role: domain.Role(cu.Role), Active: cu.Active, PasswordChangedAt: cu.PasswordChangedAt,
		CreatedAt: cu.CreatedAt, UpdatedAt: cu.UpdatedAt,
	}
}

// Lookups returns the cached reader handed to the auth guard.
func (c *CachedUserRepo) Lookups() *CachedLookups {
	return &CachedLookups{c: c}
}

// CachedLookups serves GetByID from Redis. Returned users carry no
// password hash or reset token.
type CachedLookups struct {
	c *CachedUserRepo
}

func (l *CachedLookups) GetByID(ctx context.Context, id string) (domain.User, error) {
	c := l.c

	// 1) Try Redis
	if c.rdb != nil {
		if b, err := c.rdb.Get(ctx, c.key(id)).Bytes(); err == nil {
			var cu cachedUser
			if json.Unmarshal(b, &cu) == nil && cu.Active {
				return cu.toDomain(), nil
			}
		}
		// miss, undecodable entry or redis error -> fall back to DB (do NOT fail auth)
	}

	// 2) DB source of truth
	u, err := c.UserStore.GetByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}

	// 3) Best-effort fill. SETNX: a write that landed while we were reading
	// has already stored a newer copy, and this one must not replace it.
	c.fill(ctx, u)
	return toCached(u).toDomain(), nil
}

func (c *CachedUserRepo) Update(ctx context.Context, id string, upd domain.UserUpdate) (domain.User, error) {
	u, err := c.UserStore.Update(ctx, id, upd)
	if err != nil {
		if domain.Is(err, "user_not_found") {
			c.invalidate(ctx, id)
		}
		return domain.User{}, err
	}
	// SET beats DEL: the next guard lookup is a hit
	c.set(ctx, u)
	return u, nil
}

func (c *CachedUserRepo) Delete(ctx context.Context, id string) error {
	err := c.UserStore.Delete(ctx, id)
	c.invalidate(ctx, id)
	return err
}

func (c *CachedUserRepo) fill(ctx context.Context, u domain.User) {
	if c.rdb == nil {
		return
	}
	b, err := json.Marshal(toCached(u))
	if err != nil {
		return
	}
	_ = c.rdb.SetNX(ctx, c.key(u.ID), b, c.ttl).Err()
}

func (c *CachedUserRepo) set(ctx context.Context, u domain.User) {
	if c.rdb == nil {
		return
	}
	b, err := json.Marshal(toCached(u))
	if err == nil {
		err = c.rdb.Set(ctx, c.key(u.ID), b, c.ttl).Err()
	}
	if err != nil {
		// an older copy must not outlive the write
		c.invalidate(ctx, u.ID)
	}
}

func (c *CachedUserRepo) invalidate(ctx context.Context, id string) {
	if c.rdb == nil {
		return
	}
	_ = c.rdb.Del(ctx, c.key(id)).Err()
}
