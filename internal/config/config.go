// Package config loads application configuration from environment
// variables, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/meeting-room-reservation/internal/database"
)

// MinJWTSecretLen is the shortest accepted JWT_SECRET.
const MinJWTSecretLen = 32

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env  string // APP_ENV
	Port string // APP_PORT

	DB database.Settings // DB_USER, DB_PASS, DB_HOST, DB_PORT, DB_NAME, DB_MAX_OPEN_CONNS, DB_CONN_MAX_LIFETIME

	JWTSecret  string        // JWT_SECRET
	AccessTTL  time.Duration // ACCESS_TOKEN_TTL_MIN
	RefreshTTL time.Duration // REFRESH_TOKEN_TTL_DAYS
	BcryptCost int           // BCRYPT_COST

	TxTimeout     time.Duration // TX_TIMEOUT
	SweepInterval time.Duration // STATUS_SWEEP_INTERVAL

	AllowedOrigins []string // ALLOWED_ORIGINS, comma separated

	LogLevel  string // LOG_LEVEL
	LogFormat string // LOG_FORMAT

	AMQPURL     string // RABBITMQ_URL or AMQP_URL; empty disables events
	EventLogDir string // EVENT_LOG_DIR

	SuperAdmin SuperAdminConfig

	Redis     RedisConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
}

// SuperAdminConfig holds the account seeded at startup when no
// SUPER_ADMIN exists yet.  Seeding is skipped while Password is empty.
type SuperAdminConfig struct {
	Username string // SUPER_ADMIN_USERNAME
	Email    string // SUPER_ADMIN_EMAIL
	Password string // SUPER_ADMIN_PASSWORD
}

// Enabled reports whether a bootstrap account is configured.
func (s SuperAdminConfig) Enabled() bool { return s.Password != "" }

// LoadDotEnv loads the given .env files (".env" when none are named) into
// the process environment.  Missing files are ignored; variables already
// set are never overwritten.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the configuration from the environment.  Every missing or
// malformed required variable is reported in the returned error.
func Load() (Config, error) {
	var l loader
	cfg := Config{
		Env:  l.must("APP_ENV"),
		Port: l.must("APP_PORT"),
		DB: database.Settings{
			User:            l.must("DB_USER"),
			Pass:            os.Getenv("DB_PASS"),
			Host:            l.must("DB_HOST"),
			Port:            l.must("DB_PORT"),
			Name:            l.must("DB_NAME"),
			MaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 25),
			ConnMaxLifetime: envDur("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		JWTSecret:      l.must("JWT_SECRET"),
		AccessTTL:      time.Duration(l.mustInt("ACCESS_TOKEN_TTL_MIN")) * time.Minute,
		RefreshTTL:     time.Duration(l.mustInt("REFRESH_TOKEN_TTL_DAYS")) * 24 * time.Hour,
		BcryptCost:     l.mustInt("BCRYPT_COST"),
		TxTimeout:      envDur("TX_TIMEOUT", 5*time.Second),
		SweepInterval:  envDur("STATUS_SWEEP_INTERVAL", time.Minute),
		AllowedOrigins: splitList(envStr("ALLOWED_ORIGINS", "http://localhost:3000")),
		LogLevel:       envStr("LOG_LEVEL", "info"),
		LogFormat:      envStr("LOG_FORMAT", "json"),
		AMQPURL:        envStr("RABBITMQ_URL", os.Getenv("AMQP_URL")),
		EventLogDir:    envStr("EVENT_LOG_DIR", "logs"),
		SuperAdmin: SuperAdminConfig{
			Username: envStr("SUPER_ADMIN_USERNAME", "superadmin"),
			Email:    envStr("SUPER_ADMIN_EMAIL", "superadmin@example.com"),
			Password: os.Getenv("SUPER_ADMIN_PASSWORD"),
		},
		Redis:          LoadRedisConfig(),
		Cache:          LoadCacheConfig(),
		RateLimit:      LoadRateLimitConfig(),
	}
	if cfg.JWTSecret != "" && len(cfg.JWTSecret) < MinJWTSecretLen {
		l.fail(fmt.Errorf("JWT_SECRET must be at least %d characters", MinJWTSecretLen))
	}
	if cfg.TxTimeout <= 0 {
		l.fail(errors.New("TX_TIMEOUT must be positive"))
	}
	return cfg, l.err()
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c Config) IsProduction() bool {
	switch strings.ToLower(c.Env) {
	case "prod", "production":
		return true
	}
	return false
}

type loader struct{ errs []error }

func (l *loader) fail(err error) { l.errs = append(l.errs, err) }

func (l *loader) err() error { return errors.Join(l.errs...) }

// must retrieves a required environment variable.
func (l *loader) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		l.fail(fmt.Errorf("missing required env var: %s", key))
	}
	return v
}

// mustInt is like must but also parses the value as a positive integer.
func (l *loader) mustInt(key string) int {
	s := l.must(key)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		l.fail(fmt.Errorf("invalid int for %s: %q", key, s))
		return 0
	}
	return n
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	if dur, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return dur
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
