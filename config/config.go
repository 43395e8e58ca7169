package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/oxhq/scopeq/highlight"
	"github.com/oxhq/scopeq/internal/logging"
)

// Environment variables read by FromEnv.
const (
	EnvDatabaseURL       = "SCOPEQ_DATABASE_URL"
	EnvWorkers           = "SCOPEQ_WORKERS"
	EnvMaxInjectionDepth = "SCOPEQ_MAX_INJECTION_DEPTH"
	EnvCacheTTL          = "SCOPEQ_CACHE_TTL"
	EnvDebug             = "SCOPEQ_DEBUG"
	EnvLogLevel          = "SCOPEQ_LOG_LEVEL"
)

// Config holds the tool configuration
type Config struct {
	// Database for cached spans and check runs; empty disables persistence.
	DatabaseURL string

	// Concurrency
	Workers int

	// Injections
	MaxInjectionDepth int

	// Result cache lifetime; zero keeps results for the whole run.
	CacheTTL time.Duration

	// Logging
	Debug    bool
	LogLevel logging.LogLevel
}

// Default returns a config with sensible defaults
func Default() Config {
	return Config{
		DatabaseURL:       "",
		Workers:           runtime.NumCPU(),
		MaxInjectionDepth: highlight.DefaultMaxInjectionDepth,
		CacheTTL:          10 * time.Minute,
		Debug:             false,
		LogLevel:          logging.LogLevelWarning,
	}
}

// FromEnv loads the given .env files (".env" when none are named) and
// overlays SCOPEQ_* variables on the defaults. Missing .env files are not an
// error; variables already set in the process environment win over the
// files. Malformed values are ignored and the default kept.
func FromEnv(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", file, err)
		}
	}

	cfg := Default()

	if v := os.Getenv(EnvDatabaseURL); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}
	if v := os.Getenv(EnvMaxInjectionDepth); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MaxInjectionDepth = n
		}
	}
	if v := os.Getenv(EnvCacheTTL); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.CacheTTL = d
		}
	}
	if v := os.Getenv(EnvDebug); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		if level, ok := logging.ParseLevel(v); ok {
			cfg.LogLevel = level
		}
	}
	if cfg.Debug {
		cfg.LogLevel = logging.LogLevelDebug
	}

	return cfg, nil
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	var errs []error
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.MaxInjectionDepth < 0 {
		errs = append(errs, fmt.Errorf("max injection depth must not be negative, got %d", c.MaxInjectionDepth))
	}
	if c.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("cache ttl must not be negative, got %s", c.CacheTTL))
	}
	if _, ok := logging.ParseLevel(string(c.LogLevel)); !ok {
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	return errors.Join(errs...)
}
