// Package config reads the service settings from the environment, optionally seeded by a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"task-lifecycle-api/database"
	"task-lifecycle-api/service"
)

const StoreMemory = "memory"

type Config struct {
	Port    int
	GinMode string

	StoreDriver string
	SQLitePath  string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	JWTSecret string
	JWTTTL    time.Duration

	TransitionPolicy service.Policy
	CORSOrigins      []string

	WebhookURL        string
	NATSURL           string
	NATSSubjectPrefix string
	EventBuffer       int

	LogLevel string
	LogFile  string

	ShutdownTimeout time.Duration
}

// AuthEnabled reports whether requests must carry a bearer token.
func (c Config) AuthEnabled() bool { return c.JWTSecret != "" }

// CacheEnabled reports whether task reads go through Redis.
func (c Config) CacheEnabled() bool { return c.RedisAddr != "" }

// DatabaseConfig selects the SQL driver and DSN for the configured store.
func (c Config) DatabaseConfig() database.Config {
	if c.StoreDriver == database.DriverPostgres {
		return database.Config{Driver: database.DriverPostgres, DSN: c.DatabaseURL}
	}
	return database.Config{Driver: database.DriverSQLite, DSN: c.SQLitePath}
}

// Load reads .env (when present) and then the environment. Every malformed value is reported.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	p := &parser{}
	cfg := Config{
		Port:    p.int("SERVER_PORT", 3000),
		GinMode: getEnv("GIN_MODE", "release"),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", database.DriverSQLite)),
		SQLitePath:  getEnv("SQLITE_PATH", "./tasks.db"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       p.int("REDIS_DB", 0),
		CacheTTL:      p.duration("CACHE_TTL", 5*time.Minute),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTTTL:    p.duration("JWT_TTL", time.Hour),

		CORSOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),

		WebhookURL:        os.Getenv("WEBHOOK_URL"),
		NATSURL:           os.Getenv("NATS_URL"),
		NATSSubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "tasks.events"),
		EventBuffer:       p.int("EVENT_BUFFER", 256),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  os.Getenv("LOG_FILE"),

		ShutdownTimeout: p.duration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}

	policy, err := service.ParsePolicy(os.Getenv("TASK_TRANSITION_POLICY"))
	if err != nil {
		p.fail(err)
	}
	cfg.TransitionPolicy = policy

	switch cfg.StoreDriver {
	case database.DriverSQLite, StoreMemory:
	case database.DriverPostgres:
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = database.PostgresDSN(
				getEnv("DB_HOST", "localhost"),
				getEnv("DB_PORT", "5432"),
				getEnv("DB_USER", "postgres"),
				os.Getenv("DB_PASSWORD"),
				getEnv("DB_NAME", "tasks"),
				getEnv("DB_SSLMODE", "disable"),
			)
		}
	default:
		p.fail(fmt.Errorf("STORE_DRIVER must be sqlite, postgres or memory, got %q", cfg.StoreDriver))
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		p.fail(fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", cfg.Port))
	}
	if cfg.EventBuffer <= 0 {
		p.fail(fmt.Errorf("EVENT_BUFFER must be positive, got %d", cfg.EventBuffer))
	}

	if len(p.errs) > 0 {
		return Config{}, errors.Join(p.errs...)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parser collects conversion errors so Load can report all of them at once.
type parser struct {
	errs []error
}

func (p *parser) fail(err error) {
	p.errs = append(p.errs, err)
}

func (p *parser) int(key string, defaultValue int) int {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		p.fail(fmt.Errorf("%s must be an integer, got %q", key, value))
		return defaultValue
	}
	return n
}

func (p *parser) duration(key string, defaultValue time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		p.fail(fmt.Errorf("%s must be a duration like 30s or 5m, got %q", key, value))
		return defaultValue
	}
	return d
}
