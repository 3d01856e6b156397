package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/jsonlcopy/internal/compress"
)

// Load reads the configuration from the environment, then validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := loadSection(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// parsers convert an environment string into a field value, keyed by the
// field types the Config sections use.
var parsers = map[reflect.Type]func(string) (any, error){
	reflect.TypeOf(""): func(s string) (any, error) { return s, nil },
	reflect.TypeOf(0): func(s string) (any, error) { return strconv.Atoi(s) },
	reflect.TypeOf(int64(0)): func(s string) (any, error) {
		return strconv.ParseInt(s, 10, 64)
	},
	reflect.TypeOf(false): func(s string) (any, error) { return strconv.ParseBool(s) },
	reflect.TypeOf(time.Duration(0)): func(s string) (any, error) {
		return time.ParseDuration(s)
	},
	reflect.TypeOf([]string(nil)): func(s string) (any, error) { return splitList(s), nil },
}

// loadSection fills a section struct, or the Config itself, from env tags.
// An empty variable falls back to envAlt, then to default.
func loadSection(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Type.Kind() == reflect.Struct {
			if err := loadSection(v.Field(i)); err != nil {
				return err
			}
			continue
		}

		name := field.Tag.Get("env")
		if name == "" {
			continue
		}
		value := envValue(name, field.Tag.Get("envAlt"))
		if value == "" {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", name)
			}
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		parse, ok := parsers[field.Type]
		if !ok {
			return fmt.Errorf("%s: unsupported field type %s", name, field.Type)
		}
		parsed, err := parse(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", name, value, err)
		}
		v.Field(i).Set(reflect.ValueOf(parsed).Convert(field.Type))
	}
	return nil
}

func envValue(name, alt string) string {
	if value := os.Getenv(name); value != "" || alt == "" {
		return value
	}
	return os.Getenv(alt)
}

// splitList parses comma-separated values, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Copy validation
	if c.Copy.MaxBodySize <= 0 {
		errs = append(errs, "COPY_MAX_BODY_SIZE must be positive")
	}
	if c.Copy.MaxConcurrent <= 0 {
		errs = append(errs, "COPY_MAX_CONCURRENT must be positive")
	}
	if c.Copy.MaxWaitTime <= 0 {
		errs = append(errs, "COPY_MAX_WAIT_TIME must be positive")
	}
	if c.Copy.Timeout <= 0 {
		errs = append(errs, "COPY_TIMEOUT must be positive")
	}
	if c.Copy.ChunkSize <= 0 {
		errs = append(errs, "COPY_CHUNK_SIZE must be positive")
	}
	if c.Copy.MaxLineBytes < 0 {
		errs = append(errs, "COPY_MAX_LINE_BYTES must be non-negative")
	}
	if c.Copy.HistorySize <= 0 {
		errs = append(errs, "COPY_HISTORY_SIZE must be positive")
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.CopyLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_COPY must be positive when rate limiting is enabled")
	}

	// Export validation
	if c.Export.Schedule != "" && len(c.Export.Tables) == 0 {
		errs = append(errs, "EXPORT_SCHEDULE is set but EXPORT_TABLES is empty")
	}
	if _, err := compress.ParseType(c.Export.Compression); err != nil {
		errs = append(errs, fmt.Sprintf("EXPORT_COMPRESSION (%q) must be one of: none, gzip, zstd, lz4", c.Export.Compression))
	}

	// Watch validation
	if c.Watch.Dir != "" && c.Watch.Debounce <= 0 {
		errs = append(errs, "WATCH_DEBOUNCE must be positive")
	}

	// Security validation
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs and API keys are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Copy: {MaxBodySize: %d, MaxConcurrent: %d, ChunkSize: %d}, ",
		c.Copy.MaxBodySize, c.Copy.MaxConcurrent, c.Copy.ChunkSize))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute))
	b.WriteString(fmt.Sprintf("Security: {RequireAPIKey: %v, APIKeys: %d}, ",
		c.Security.RequireAPIKey, len(c.Security.APIKeys)))
	b.WriteString(fmt.Sprintf("Export: {Schedule: %q, Tables: %v}, ", c.Export.Schedule, c.Export.Tables))
	b.WriteString(fmt.Sprintf("Watch: {Dir: %q}, ", c.Watch.Dir))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
