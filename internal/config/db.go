package config

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

type DBOptions struct {
	// Attempts bounds how many times the first ping is tried.
	Attempts    uint64
	BaseBackoff time.Duration
	PingTimeout time.Duration
	Debug       bool
	Log         zerolog.Logger
}

func (o DBOptions) withDefaults() DBOptions {
	if o.Attempts == 0 {
		o.Attempts = 5
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = 500 * time.Millisecond
	}
	if o.PingTimeout <= 0 {
		o.PingTimeout = 3 * time.Second
	}
	return o
}

// NewDB opens a pgx backed *sql.DB and waits for it to answer a ping,
// backing off exponentially while the server is still starting.
func NewDB(ctx context.Context, dsn string, opts DBOptions) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty DB DSN")
	}
	opts = opts.withDefaults()

	// ---------------- actual connection ----------------
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(60 * time.Minute)

	backoff := retry.WithMaxRetries(opts.Attempts-1,
		retry.WithCappedDuration(5*time.Second, retry.NewExponential(opts.BaseBackoff)))

	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
		defer cancel()

		if err := db.PingContext(pingCtx); err != nil {
			opts.Log.Warn().Err(err).Int("attempt", attempt).Msg("database not ready")
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect database after %d attempts: %w", attempt, err)
	}

	if opts.Debug {
		// prove we're connected to expected server/user/db (no secrets)
		var who, dbname, ver string
		_ = db.QueryRowContext(ctx, "SELECT current_user").Scan(&who)
		_ = db.QueryRowContext(ctx, "SELECT current_database()").Scan(&dbname)
		_ = db.QueryRowContext(ctx, "SHOW server_version").Scan(&ver)

		opts.Log.Info().Str("user", who).Str("db", dbname).Str("version", ver).Msg("database connected")
	}

	return db, nil
}
