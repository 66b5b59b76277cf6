package config

import (
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the central typed configuration struct. It is registered as a
// PROCESS-scope provider, so every component that takes *Config shares it.
type Config struct {
	App      AppConfig
	Log      LogConfig
	Database DatabaseConfig
	Cache    CacheConfig
}

type AppConfig struct {
	Name  string
	Env   string // local | production | testing
	Debug bool
	Host  string
	Port  string

	// ShutdownTimeout bounds graceful shutdown, including registry teardown.
	ShutdownTimeout time.Duration
}

// Addr returns the host:port the HTTP server listens on.
func (a AppConfig) Addr() string { return net.JoinHostPort(a.Host, a.Port) }

type LogConfig struct {
	Level  string // debug | info | warn | error
	Format string // json | console
}

type DatabaseConfig struct {
	Driver   string
	DSN      string
	MaxConns int
}

type CacheConfig struct {
	URL     string // redis://host:port/db; empty selects the in-memory cache
	TTL     time.Duration
	MaxSize int
}

// Load reads .env (if present) and populates a Config from environment variables.
// Call once at bootstrap: cfg := config.Load()
func Load(envFiles ...string) *Config {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	// Non-fatal: .env may not exist in production
	_ = godotenv.Load(files...)

	return &Config{
		App: AppConfig{
			Name:            env("APP_NAME", "spritze"),
			Env:             env("APP_ENV", "local"),
			Debug:           envBool("APP_DEBUG", true),
			Host:            env("APP_HOST", ""),
			Port:            env("APP_PORT", "8000"),
			ShutdownTimeout: GetDuration("APP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Log: LogConfig{
			Level:  env("LOG_LEVEL", "info"),
			Format: env("LOG_FORMAT", "json"),
		},
		Database: DatabaseConfig{
			Driver:   env("DB_DRIVER", "sqlite"),
			DSN:      env("DB_DSN", "file:app.db"),
			MaxConns: GetInt("DB_MAX_CONNS", 10),
		},
		Cache: CacheConfig{
			URL:     env("CACHE_URL", ""),
			TTL:     GetDuration("CACHE_TTL", 5*time.Minute),
			MaxSize: GetInt("CACHE_MAX_SIZE", 1024),
		},
	}
}

// Get returns a raw env value, falling back to defaultVal.
func Get(key, defaultVal string) string {
	return env(key, defaultVal)
}

// GetInt returns an int env value.
func GetInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// GetBool returns a bool env value.
func GetBool(key string, defaultVal bool) bool {
	return envBool(key, defaultVal)
}

// GetDuration returns a duration env value such as "30s" or "5m".
func GetDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// ── helpers ─────────────────────────────────────────────────────────────────

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
