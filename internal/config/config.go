// Package config provides centralized configuration management for the importer.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	State       StateConfig
	Import      ImportConfig
	Fetch       FetchConfig
	Assets      AssetsConfig
	Diagnostics DiagnosticsConfig
	Rate        RateLimitConfig
	Security    SecurityConfig
	Logging     LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 60s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"60s"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// AutoMigrate applies embedded migrations on startup (default: true)
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" default:"true"`
}

// RedisConfig holds Redis connection settings, used when STATE_BACKEND=redis.
type RedisConfig struct {
	Address  string `env:"REDIS_ADDRESS" default:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" default:"0"`

	// KeyPrefix namespaces the import state key (default: postimport)
	KeyPrefix string `env:"REDIS_KEY_PREFIX" default:"postimport"`
}

// StateConfig selects where the single active ImportState lives.
type StateConfig struct {
	// Backend is "postgres" or "redis" (default: postgres)
	Backend string `env:"STATE_BACKEND" default:"postgres"`
}

// ImportConfig holds batch runner settings.
type ImportConfig struct {
	// Dir holds temporary copies of uploaded CSV files (default: data/imports)
	Dir string `env:"IMPORT_DIR" default:"data/imports"`

	// ChunkSize is the number of rows processed per chunk (default: 25)
	ChunkSize int `env:"IMPORT_CHUNK_SIZE" default:"25"`

	// ExecutionBudget is the allowed wall-clock time for one chunk (default: 30s)
	ExecutionBudget time.Duration `env:"IMPORT_EXECUTION_BUDGET" default:"30s"`

	// BudgetFraction is the share of ExecutionBudget after which a chunk yields (default: 0.8)
	BudgetFraction float64 `env:"IMPORT_BUDGET_FRACTION" default:"0.8"`

	// LeaseTTL bounds how long a crashed chunk blocks the next one (default: 5m)
	LeaseTTL time.Duration `env:"IMPORT_LEASE_TTL" default:"5m"`

	// SweepInterval is how often a suspended run without a pending trigger is re-queued (default: 1m)
	SweepInterval time.Duration `env:"IMPORT_SWEEP_INTERVAL" default:"1m"`

	// MaxFileSize is the maximum accepted upload size in bytes (default: 100MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"104857600"`

	// Delimiter is the default CSV delimiter: "," or ";" (default: ,)
	Delimiter string `env:"IMPORT_DELIMITER" default:","`

	// AliasesFile optionally overrides the header alias table (YAML)
	AliasesFile string `env:"IMPORT_ALIASES_FILE"`

	// QueueSize is the capacity of the in-process chunk trigger queue (default: 16)
	QueueSize int `env:"IMPORT_QUEUE_SIZE" default:"16"`
}

// FetchConfig holds remote image download settings.
type FetchConfig struct {
	// Timeout bounds a single HTTP request (default: 60s)
	Timeout time.Duration `env:"FETCH_TIMEOUT" default:"60s"`

	// HeadCheck issues a HEAD request before GET (default: false)
	HeadCheck bool `env:"FETCH_HEAD_CHECK" default:"false"`

	// MaxBytes caps a downloaded image body (default: 20MB)
	MaxBytes int64 `env:"FETCH_MAX_BYTES" default:"20971520"`

	// UserAgent is sent with every request
	UserAgent string `env:"FETCH_USER_AGENT" default:"PostImport/1.0"`
}

// AssetsConfig holds asset byte storage settings.
type AssetsConfig struct {
	// Dir is the root of stored image files (default: data/uploads)
	Dir string `env:"ASSETS_DIR" default:"data/uploads"`
}

// DiagnosticsConfig holds the append-only diagnostic trail settings.
type DiagnosticsConfig struct {
	// Sink is "postgres" or "file" (default: postgres)
	Sink string `env:"DIAG_SINK" default:"postgres"`

	// LogFile is the path used when Sink is "file" (default: data/import-log.txt)
	LogFile string `env:"DIAG_LOG_FILE" default:"data/import-log.txt"`
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// Burst is the number of requests allowed above the steady rate (default: 20)
	Burst int `env:"RATE_LIMIT_BURST" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey enables X-API-Key checks on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// DelimiterRune returns the configured delimiter as a rune.
func (c *ImportConfig) DelimiterRune() rune {
	if c.Delimiter == "" {
		return ','
	}
	return []rune(c.Delimiter)[0]
}
