// Package config provides centralized configuration management for the service.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Copy     CopyConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Export   ExportConfig
	Watch    WatchConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request headers and body (default: 0, imports stream)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"0s"`

	// WriteTimeout is the maximum duration for writing a response (default: 0, exports stream)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// CopyConfig holds JSON Lines copy settings.
type CopyConfig struct {
	// MaxBodySize is the maximum import request body in bytes (default: 1GB)
	MaxBodySize int64 `env:"COPY_MAX_BODY_SIZE" default:"1073741824"`

	// MaxConcurrent is the maximum number of parallel copies (default: 4)
	MaxConcurrent int `env:"COPY_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long to wait for a copy slot (default: 30s)
	MaxWaitTime time.Duration `env:"COPY_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration of one copy session (default: 30m)
	Timeout time.Duration `env:"COPY_TIMEOUT" default:"30m"`

	// ChunkSize is the line reader read size in bytes (default: 64KB)
	ChunkSize int `env:"COPY_CHUNK_SIZE" default:"65536"`

	// MaxLineBytes rejects longer lines; 0 disables the check (default: 64MB)
	MaxLineBytes int `env:"COPY_MAX_LINE_BYTES" default:"67108864"`

	// StrictTerminator drops a final line that has no trailing newline (default: false)
	StrictTerminator bool `env:"COPY_STRICT_TERMINATOR" default:"false"`

	// FlushBytes is the export write buffer threshold (default: 64KB)
	FlushBytes int `env:"COPY_FLUSH_BYTES" default:"65536"`

	// HistorySize is how many sessions are kept for /api/sessions (default: 100)
	HistorySize int `env:"COPY_HISTORY_SIZE" default:"100"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// CopyLimit is requests per minute for import and export endpoints (default: 10)
	CopyLimit int `env:"RATE_LIMIT_COPY" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey protects /api routes with an X-API-Key header (default: false)
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

// ExportConfig holds scheduled export settings.
type ExportConfig struct {
	// Schedule is a cron expression; empty disables scheduled exports
	Schedule string `env:"EXPORT_SCHEDULE"`

	// Tables is a comma-separated list of tables to export
	Tables []string `env:"EXPORT_TABLES"`

	// Dir is where export files are written (default: exports)
	Dir string `env:"EXPORT_DIR" default:"exports"`

	// Compression is none, gzip, zstd or lz4 (default: gzip)
	Compression string `env:"EXPORT_COMPRESSION" default:"gzip"`
}

// WatchConfig holds drop-directory import settings.
type WatchConfig struct {
	// Dir is the drop directory; empty disables the watcher
	Dir string `env:"WATCH_DIR"`

	// Debounce is how long a file must stay unchanged before import (default: 500ms)
	Debounce time.Duration `env:"WATCH_DEBOUNCE" default:"500ms"`
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
