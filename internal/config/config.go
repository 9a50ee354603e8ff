package config

import (
	"fmt"
	"net/url"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	StorePostgres = "postgres"
	StoreMemory   = "memory"

	NotifierLog    = "log"
	NotifierSMTP   = "smtp"
	NotifierRabbit = "rabbitmq"

	minBcryptCost = 12
)

// Rate is a fixed window limit such as "5/1m".
type Rate struct {
	Limit  int
	Window time.Duration
}

type Config struct {
	//App
	Env string // development / production
	//HTTP
	HTTPAddr         string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	TrustProxy       bool

	//Auth / Security
	JWTSecret          string
	JWTIssuer          string
	JWTExpiresInDays   int
	ResetTokenTTL      time.Duration
	BcryptCost         int
	HashWorkers        int
	SecureCookies      bool
	CSRFAllowedOrigins []string
	InternalSecret     string // guards /metrics when set

	// Web client, used to build links in emails
	UIAppURL string

	// Storage
	Store         string
	DBAddr        string
	DBAutoMigrate bool

	// Redis is optional: without it the user cache is off
	// and rate limits are kept in process.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	UserCacheTTL  time.Duration

	// Notifications
	Notifier       string
	Email          EmailConfig
	RabbitURL      string
	RabbitExchange string

	RateLimitLogin  Rate
	RateLimitSignup Rate
	RateLimitForget Rate
}

type EmailConfig struct {
	From     string
	FromName string
	Host     string
	Port     int
	Username string
	Password string
	Insecure bool
}

func (c *Config) IsDevelopment() bool { return c.Env == EnvDevelopment }

func Load() (*Config, error) {
	// a missing .env file is fine
	_ = godotenv.Load()

	var err error
	cfg := &Config{
		Env:      getEnv("ENV", EnvDevelopment),
		HTTPAddr: getEnv("HTTP_ADDR", ":3000"),

		JWTIssuer: getEnv("JWT_ISSUER", "notes-auth"),
		UIAppURL:  strings.TrimRight(getEnv("UI_APP_URL", "http://localhost:5173"), "/"),

		Store:    strings.ToLower(getEnv("STORE", StorePostgres)),
		Notifier: strings.ToLower(getEnv("NOTIFIER", NotifierLog)),

		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RabbitURL:      os.Getenv("RABBIT_URL"),
		RabbitExchange: getEnv("RABBIT_EXCHANGE", "notes.events"),
		InternalSecret: os.Getenv("INTERNAL_SECRET"),
	}
	if cfg.Env != EnvDevelopment && cfg.Env != EnvProduction {
		return nil, fmt.Errorf("invalid ENV %q: want %s or %s", cfg.Env, EnvDevelopment, EnvProduction)
	}

	// required values
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("missing required env var: JWT_SECRET")
	}
	if cfg.Env == EnvProduction && len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 bytes in production")
	}

	switch cfg.Store {
	case StorePostgres:
		cfg.DBAddr = os.Getenv("DB_ADDR")
		if cfg.DBAddr == "" {
			return nil, fmt.Errorf("missing required env var: DB_ADDR")
		}
		if err := validatePostgresDSN(cfg.DBAddr); err != nil {
			return nil, err
		}
	case StoreMemory:
		if cfg.Env == EnvProduction {
			return nil, fmt.Errorf("STORE=memory is not allowed in production")
		}
	default:
		return nil, fmt.Errorf("invalid STORE %q", cfg.Store)
	}

	if cfg.JWTExpiresInDays, err = getInt("JWT_EXPIRES_IN_DAYS", 90); err != nil {
		return nil, err
	}
	if cfg.JWTExpiresInDays <= 0 {
		return nil, fmt.Errorf("JWT_EXPIRES_IN_DAYS must be positive")
	}

	resetSec, err := getInt("RESET_PASSWORD_TOKEN_EXPIRES_IN_SEC", 600)
	if err != nil {
		return nil, err
	}
	if resetSec <= 0 {
		return nil, fmt.Errorf("RESET_PASSWORD_TOKEN_EXPIRES_IN_SEC must be positive")
	}
	cfg.ResetTokenTTL = time.Duration(resetSec) * time.Second

	if cfg.BcryptCost, err = getInt("BCRYPT_COST", minBcryptCost); err != nil {
		return nil, err
	}
	if cfg.BcryptCost < minBcryptCost {
		cfg.BcryptCost = minBcryptCost
	}
	if cfg.HashWorkers, err = getInt("HASH_WORKERS", runtime.NumCPU()); err != nil {
		return nil, err
	}

	if cfg.SecureCookies, err = getBool("COOKIE_SECURE", cfg.Env == EnvProduction); err != nil {
		return nil, err
	}
	if cfg.TrustProxy, err = getBool("TRUST_PROXY", false); err != nil {
		return nil, err
	}
	if cfg.DBAutoMigrate, err = getBool("DB_AUTO_MIGRATE", false); err != nil {
		return nil, err
	}

	cfg.CSRFAllowedOrigins = splitList(getEnv("CSRF_ALLOWED_ORIGINS", cfg.UIAppURL))

	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.UserCacheTTL, err = getDuration("USER_CACHE_TTL", 30*time.Second); err != nil {
		return nil, err
	}

	if cfg.Email, err = loadEmail(cfg.Env == EnvDevelopment); err != nil {
		return nil, err
	}
	switch cfg.Notifier {
	case NotifierLog:
	case NotifierSMTP:
		if cfg.Email.Host == "" || cfg.Email.From == "" {
			return nil, fmt.Errorf("NOTIFIER=smtp needs EMAIL_HOST and EMAIL_FROM")
		}
	case NotifierRabbit:
		if cfg.RabbitURL == "" {
			return nil, fmt.Errorf("NOTIFIER=rabbitmq needs RABBIT_URL")
		}
	default:
		return nil, fmt.Errorf("invalid NOTIFIER %q", cfg.Notifier)
	}

	if cfg.RateLimitLogin, err = getRate("RATE_LIMIT_LOGIN", Rate{Limit: 5, Window: time.Minute}); err != nil {
		return nil, err
	}
	if cfg.RateLimitSignup, err = getRate("RATE_LIMIT_SIGNUP", Rate{Limit: 10, Window: time.Hour}); err != nil {
		return nil, err
	}
	if cfg.RateLimitForget, err = getRate("RATE_LIMIT_FORGET", Rate{Limit: 3, Window: 10 * time.Minute}); err != nil {
		return nil, err
	}

	//Timeout values are optional and have a default value if not
	if cfg.HTTPReadTimeout, err = getDuration("HTTP_READ_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPWriteTimeout, err = getDuration("HTTP_WRITE_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPIdleTimeout, err = getDuration("HTTP_IDLE_TIMEOUT", time.Minute); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEmail reads EMAIL_*; in development MAILTRAP_* values win so a
// local inbox catches everything.
func loadEmail(dev bool) (EmailConfig, error) {
	get := func(key, def string) string {
		if dev {
			if v := os.Getenv("MAILTRAP_" + key); v != "" {
				return v
			}
		}
		return getEnv("EMAIL_"+key, def)
	}

	ec := EmailConfig{
		From:     get("FROM", ""),
		FromName: get("FROM_NAME", "Notes App"),
		Host:     get("HOST", ""),
		Username: get("USERNAME", ""),
		Password: get("PASSWORD", ""),
	}

	port, err := strconv.Atoi(get("PORT", "587"))
	if err != nil || port <= 0 || port > 65535 {
		return EmailConfig{}, fmt.Errorf("invalid email port %q", get("PORT", "587"))
	}
	ec.Port = port

	if ec.Insecure, err = strconv.ParseBool(get("INSECURE", "false")); err != nil {
		return EmailConfig{}, fmt.Errorf("invalid bool for EMAIL_INSECURE: %w", err)
	}
	return ec, nil
}

func validatePostgresDSN(dsn string) error {
	u, err := url.Parse(dsn)
	if err != nil {
		return fmt.Errorf("invalid DB_ADDR: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("invalid DB_ADDR scheme %q: want postgres", u.Scheme)
	}
	if strings.Trim(u.Path, "/") == "" {
		return fmt.Errorf("DB_ADDR must name a database")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for %s: %q: %w", key, v, err)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid bool for %s: %q: %w", key, v, err)
	}
	return b, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q: %w", key, v, err)
	}
	return d, nil
}

// getRate parses "<limit>/<window>", e.g. "5/1m" or "3/10m".
func getRate(key string, def Rate) (Rate, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, w, ok := strings.Cut(v, "/")
	if !ok {
		return Rate{}, fmt.Errorf("invalid rate for %s: %q: want <limit>/<window>", key, v)
	}
	limit, err := strconv.Atoi(strings.TrimSpace(n))
	if err != nil || limit <= 0 {
		return Rate{}, fmt.Errorf("invalid rate limit for %s: %q", key, v)
	}
	window, err := time.ParseDuration(strings.TrimSpace(w))
	if err != nil || window <= 0 {
		return Rate{}, fmt.Errorf("invalid rate window for %s: %q", key, v)
	}
	return Rate{Limit: limit, Window: window}, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimRight(strings.TrimSpace(part), "/"); part != "" {
			out = append(out, part)
		}
	}
	return out
}
