// Package config provides centralized configuration for the tracker engine.
// Settings load from environment variables with sensible defaults and are
// validated on startup so misconfiguration fails fast.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Engine   EngineConfig
	Sweeper  SweeperConfig
	Rate     RateLimitConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading the request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing the response (default: 30s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds store backend settings.
type DatabaseConfig struct {
	// Driver selects the store backend: "postgres" or "memory" (default: postgres)
	Driver string `env:"STORE_DRIVER" default:"postgres"`

	// URL is the PostgreSQL connection string (required for the postgres driver)
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// EngineConfig holds the tracker engine's processing ceilings.
type EngineConfig struct {
	// MaxBatchRows is the largest bulk-import batch accepted (default: 1000)
	MaxBatchRows int `env:"ENGINE_MAX_BATCH_ROWS" default:"1000"`

	// MaxCellLength is the longest accepted text cell in characters (default: 10000)
	MaxCellLength int `env:"ENGINE_MAX_CELL_LENGTH" default:"10000"`

	// MaxCSVBytes is the largest accepted delimited-text blob (default: 10MB)
	MaxCSVBytes int64 `env:"ENGINE_MAX_CSV_BYTES" default:"10485760"`

	// DefaultPageSize is the page size when the caller does not specify one (default: 50)
	DefaultPageSize int `env:"ENGINE_DEFAULT_PAGE_SIZE" default:"50"`

	// MaxPageSize caps the caller-requested page size (default: 200)
	MaxPageSize int `env:"ENGINE_MAX_PAGE_SIZE" default:"200"`
}

// SweeperConfig holds settings for the background update-archiving job.
type SweeperConfig struct {
	// Enabled controls whether the sweeper runs (default: true)
	Enabled bool `env:"SWEEPER_ENABLED" default:"true"`

	// Retention is how long processed updates stay unarchived (default: 720h)
	Retention time.Duration `env:"SWEEPER_RETENTION" default:"720h"`

	// CheckInterval is how often the sweeper runs (default: 1h)
	CheckInterval time.Duration `env:"SWEEPER_CHECK_INTERVAL" default:"1h"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`
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
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
