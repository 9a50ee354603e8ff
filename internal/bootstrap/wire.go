package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evgeniivall/notes-auth-micro/internal/application/auth"
	"github.com/evgeniivall/notes-auth-micro/internal/application/users"
	"github.com/evgeniivall/notes-auth-micro/internal/audit"
	"github.com/evgeniivall/notes-auth-micro/internal/config"
	"github.com/evgeniivall/notes-auth-micro/internal/domain"
	"github.com/evgeniivall/notes-auth-micro/internal/infrastructure/db/postgres"
	"github.com/evgeniivall/notes-auth-micro/internal/infrastructure/email"
	"github.com/evgeniivall/notes-auth-micro/internal/infrastructure/memory"
	rabbitmq_pub "github.com/evgeniivall/notes-auth-micro/internal/infrastructure/messaging/rabbitmq"
	"github.com/evgeniivall/notes-auth-micro/internal/infrastructure/redis"
	"github.com/evgeniivall/notes-auth-micro/internal/infrastructure/security"
	"github.com/evgeniivall/notes-auth-micro/internal/logger"
	http_handlers "github.com/evgeniivall/notes-auth-micro/internal/transport/http/handlers"
	"github.com/evgeniivall/notes-auth-micro/internal/transport/http/middleware"
	"github.com/evgeniivall/notes-auth-micro/internal/transport/http/response"
	"github.com/evgeniivall/notes-auth-micro/internal/transport/http/router"
)

/*
========================
 Public entry (prod)
========================
*/

func NewServer() (*http.Server, func(), error) {
	return newServer(defaultDeps())
}

// NewServerWithDeps allows injecting dependencies for testing
func NewServerWithDeps(deps Deps) (*http.Server, func(), error) {
	return newServer(deps)
}

/*
========================
 Dependency injection
========================
*/

type Deps struct {
	LoadConfig func() (*config.Config, error)

	NewDB func(ctx context.Context, dsn string, opts config.DBOptions) (*sql.DB, error)

	// Migrate applies schema migrations when DB_AUTO_MIGRATE is on.
	Migrate func(dsn string) error

	NewRedis func(addr, password string, db int) RedisClient

	NewPublisher func(url, exchange string) (NotifierCloser, error)

	NewRouter func(router.Deps) (http.Handler, error)
}

type RedisClient interface {
	Ping(ctx context.Context) error
	Close() error
}

type NotifierCloser interface {
	auth.Notifier
	Close() error
}

// userStore is satisfied by both the postgres and the in-memory repository.
type userStore interface {
	redis.UserStore
	Ping(ctx context.Context) error
}

/*
========================
 Core bootstrap logic
========================
*/

func newServer(deps Deps) (*http.Server, func(), error) {
	ctx := context.Background()
	lg := logger.Logger

	// 0) config
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	response.SetDevelopment(cfg.IsDevelopment())

	var cleanupFns []func()
	fail := func(err error) (*http.Server, func(), error) {
		runCleanup(cleanupFns)
		return nil, nil, err
	}

	// 1) storage
	var base userStore
	switch cfg.Store {
	case config.StoreMemory:
		lg.Warn().Msg("using in-memory user store; data is lost on restart")
		base = memory.NewUserRepo()
	default:
		if cfg.DBAutoMigrate {
			if deps.Migrate == nil {
				return fail(errors.New("bootstrap: DB_AUTO_MIGRATE set but no migrator"))
			}
			if err := deps.Migrate(cfg.DBAddr); err != nil {
				return fail(fmt.Errorf("migrate: %w", err))
			}
			lg.Info().Msg("migrations applied")
		}

		db, err := deps.NewDB(ctx, cfg.DBAddr, config.DBOptions{Debug: cfg.IsDevelopment(), Log: lg})
		if err != nil {
			return fail(err)
		}
		cleanupFns = append(cleanupFns, func() { _ = db.Close() })
		base = postgres.NewUserRepo(db)
	}

	if cfg.InternalSecret == "" && !cfg.IsDevelopment() {
		lg.Warn().Msg("INTERNAL_SECRET not set; /metrics answers 401")
	}

	// 2) redis (best-effort)
	var redisCli *redis.Client
	if cfg.RedisAddr != "" && deps.NewRedis != nil {
		c := deps.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := c.Ping(pingCtx)
		cancel()

		rc, ok := c.(*redis.Client)
		switch {
		case err != nil:
			lg.Warn().Err(err).Msg("redis unavailable; cache disabled, rate limits in process")
			_ = c.Close()
		case !ok:
			_ = c.Close()
			return fail(errors.New("bootstrap: NewRedis did not return *redis.Client"))
		default:
			lg.Info().Msg("redis connected")
			redisCli = rc
			cleanupFns = append(cleanupFns, func() { _ = rc.Close() })
		}
	}

	// wrap repo with cache; only the guard reads from it
	var store redis.UserStore = base
	var guardUsers middleware.UserReader = base
	if redisCli != nil {
		cached := redis.NewCachedUserRepo(base, redisCli, cfg.UserCacheTTL)
		store = cached
		guardUsers = cached.Lookups()
	}

	// 3) security
	lg.Info().Str("issuer", cfg.JWTIssuer).Int("bcrypt_cost", cfg.BcryptCost).Msg("initializing security")
	hashPool := security.NewHashPool(security.NewBcryptHasher(cfg.BcryptCost), cfg.HashWorkers)
	cleanupFns = append(cleanupFns, hashPool.Close)

	signer := security.NewJWTSigner(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTExpiresInDays)
	resets := security.NewResetTokens(cfg.ResetTokenTTL)

	// seed (dev only)
	if cfg.IsDevelopment() {
		if n := postgres.SeedUsers(ctx, store, hashPool, lg); n > 0 {
			lg.Info().Int("created", n).Msg("seeded development users")
		}
	}

	// 4) notifier
	notifier, err := newNotifier(deps, cfg)
	if err != nil {
		return fail(err)
	}
	if c, ok := notifier.(interface{ Close() error }); ok {
		cleanupFns = append(cleanupFns, func() { _ = c.Close() })
	}

	// 5) services
	auditLog := audit.New(lg)

	authSvc := auth.NewService(store, hashPool, signer, resets, notifier, auth.Config{
		AppURL: cfg.UIAppURL,
	}).WithAudit(auditLog.Record)

	usersSvc := users.NewService(store, hashPool).WithAudit(auditLog.Record)

	// 6) handlers + middleware
	authH := http_handlers.NewAuthHandler(authSvc, cfg.SecureCookies)
	usersH := http_handlers.NewUsersHandler(usersSvc)

	pingers := map[string]http_handlers.Pinger{"db": base}
	if redisCli != nil {
		pingers["redis"] = redisCli
	}
	healthH := http_handlers.NewHealthHandler(pingers)

	authMW := middleware.Auth(signer, guardUsers, response.WriteError)
	adminMW := middleware.RestrictTo(response.WriteError, domain.RoleAdmin)

	// rate limit: redis fixed window (fail-open), in process without redis
	var fwLimiter *redis.FixedWindowLimiter
	if redisCli != nil {
		fwLimiter = redis.NewFixedWindowLimiter(redisCli)
	}
	rl := func(scope string, rate config.Rate) router.Middleware {
		fw := middleware.FixedWindowConfig{Scope: scope, Limit: rate.Limit, Window: rate.Window}
		if fwLimiter == nil {
			return middleware.RateLimitInProcess(fw, response.WriteError)
		}
		return middleware.RateLimitFixedWindow(fwLimiter, fw, response.WriteError)
	}

	// 7) router
	mux, err := deps.NewRouter(router.Deps{
		Health: healthH,
		Auth:   authH,
		Users:  usersH,

		AuthMW:  authMW,
		AdminMW: adminMW,

		CSRFMW:        middleware.CSRFProtection(cfg.CSRFAllowedOrigins, response.WriteError),
		LoginLimitMW:  rl("auth.login", cfg.RateLimitLogin),
		SignupLimitMW: rl("auth.signup", cfg.RateLimitSignup),
		ForgotLimitMW: rl("auth.forget_password", cfg.RateLimitForget),
		InternalMW:    middleware.InternalAuth(cfg.InternalSecret, cfg.IsDevelopment()),

		Metrics:    promhttp.Handler(),
		TrustProxy: cfg.TrustProxy,
	})
	if err != nil {
		return fail(err)
	}

	// 8) server
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	var once sync.Once
	cleanup := func() {
		once.Do(func() { runCleanup(cleanupFns) })
	}

	return srv, cleanup, nil
}

func newNotifier(deps Deps, cfg *config.Config) (auth.Notifier, error) {
	lg := logger.Logger

	switch cfg.Notifier {
	case config.NotifierSMTP:
		return email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			FromName: cfg.Email.FromName,
			Insecure: cfg.Email.Insecure,
		}, lg), nil

	case config.NotifierRabbit:
		if deps.NewPublisher == nil {
			return nil, errors.New("bootstrap: no rabbitmq publisher factory")
		}
		pub, err := deps.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
		if err == nil {
			return pub, nil
		}
		if !cfg.IsDevelopment() {
			return nil, fmt.Errorf("rabbitmq: %w", err)
		}
		lg.Warn().Err(err).Msg("rabbitmq unavailable; emails go to the log")
		return memory.NewLogNotifier(lg), nil

	default:
		return memory.NewLogNotifier(lg), nil
	}
}

/*
========================
 Default deps (prod)
========================
*/

func defaultDeps() Deps {
	return Deps{
		LoadConfig: config.Load,
		NewDB:      config.NewDB,
		Migrate: func(dsn string) error {
			m, err := postgres.NewMigrator(dsn)
			if err != nil {
				return err
			}
			defer m.Close()
			return m.Up()
		},
		NewRedis: func(addr, password string, db int) RedisClient {
			return redis.New(addr, password, db)
		},
		NewPublisher: func(url, exchange string) (NotifierCloser, error) {
			p, err := rabbitmq_pub.NewPublisher(url, exchange, logger.Logger)
			if err != nil {
				return nil, err
			}
			return p, nil
		},
		NewRouter: router.New,
	}
}

/*
========================
 helpers
========================
*/

func runCleanup(fns []func()) {
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
