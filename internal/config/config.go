// Package config loads and validates the settings every entrypoint in
// this module needs: the HTTP surface, the Redis-backed storage layer,
// and the archiver's sweep behavior.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the orchestrator service.
type Config struct {
	// API Server
	APIHost  string
	APIPort  int
	LogLevel string

	// Storage (Redis)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	// Retry defaults, applied when a step definition omits them.
	// DefaultStepTimeout is loaded and validated but not applied to steps.
	DefaultMaxRetries    int
	DefaultRetryInterval int64 // seconds
	DefaultStepTimeout   int64 // seconds

	ShutdownTimeout time.Duration

	// Archiver
	ArchiveSweepInterval time.Duration
	ArchiveBucketURL     string
}

const (
	DefaultAPIPort = 8080
	DefaultAPIHost = "0.0.0.0"
	MaxTCPPort     = 65535

	DefaultRedisAddr   = "localhost:6379"
	DefaultRedisDB     = 0
	DefaultRedisPrefix = "txsaga"

	DefaultMaxRetries    = 3
	DefaultRetryInterval = 5  // seconds
	DefaultStepTimeout   = 30 // seconds
	MaxStepTimeout       = 365 * 24 * 60 * 60

	DefaultShutdownTimeout      = 10 * time.Second
	DefaultArchiveSweepInterval = 30 * time.Second
	DefaultArchiveBucketURL     = "mem://"

	MaxRetryCount = 1000
)

var (
	ErrInvalidAPIPort       = errors.New("invalid API port")
	ErrInvalidStepTimeout   = errors.New("step timeout must be positive")
	ErrInvalidRetryInterval = errors.New("retry interval must be non-negative")
	ErrInvalidMaxRetries    = errors.New("max retries must be non-negative")
	ErrInvalidRedisAddr     = errors.New("redis address must not be empty")
)

// NewDefaultConfig returns a Config with sensible defaults for all
// settings, matching the teacher's NewDefaultConfig shape.
func NewDefaultConfig() *Config {
	return &Config{
		APIHost:  DefaultAPIHost,
		APIPort:  DefaultAPIPort,
		LogLevel: "info",

		RedisAddr:   DefaultRedisAddr,
		RedisDB:     DefaultRedisDB,
		RedisPrefix: DefaultRedisPrefix,

		DefaultMaxRetries:    DefaultMaxRetries,
		DefaultRetryInterval: DefaultRetryInterval,
		DefaultStepTimeout:   DefaultStepTimeout,

		ShutdownTimeout: DefaultShutdownTimeout,

		ArchiveSweepInterval: DefaultArchiveSweepInterval,
		ArchiveBucketURL:     DefaultArchiveBucketURL,
	}
}

// LoadFromEnv overlays environment variables onto c, returning an error
// if any value is present but cannot be parsed or is out of range.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("API_HOST"); v != "" {
		c.APIHost = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("REDIS_PREFIX"); v != "" {
		c.RedisPrefix = v
	}
	if v := os.Getenv("ARCHIVE_BUCKET_URL"); v != "" {
		c.ArchiveBucketURL = v
	}

	if err := loadEnvInt("API_PORT", &c.APIPort, 0, MaxTCPPort); err != nil {
		return err
	}
	if err := loadEnvInt("REDIS_DB", &c.RedisDB, -1, MaxTCPPort); err != nil {
		return err
	}
	if err := loadEnvInt(
		"DEFAULT_MAX_RETRIES", &c.DefaultMaxRetries, -1, MaxRetryCount,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"DEFAULT_RETRY_INTERVAL", &c.DefaultRetryInterval, -1, MaxStepTimeout,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"DEFAULT_STEP_TIMEOUT", &c.DefaultStepTimeout, 0, MaxStepTimeout,
	); err != nil {
		return err
	}

	if v := os.Getenv("SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SHUTDOWN_TIMEOUT_SECONDS: %q", v)
		}
		c.ShutdownTimeout = time.Duration(secs) * time.Second
	}
	if v := os.Getenv("ARCHIVE_SWEEP_INTERVAL_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid ARCHIVE_SWEEP_INTERVAL_SECONDS: %q", v)
		}
		c.ArchiveSweepInterval = time.Duration(secs) * time.Second
	}

	return nil
}

// Validate checks that all configuration values are usable.
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}
	if c.DefaultStepTimeout <= 0 {
		return ErrInvalidStepTimeout
	}
	if c.DefaultRetryInterval < 0 {
		return ErrInvalidRetryInterval
	}
	if c.DefaultMaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	if c.RedisAddr == "" {
		return ErrInvalidRedisAddr
	}
	return nil
}

// loadEnvInt reads key from the environment, parses it as an integer, and
// sets *dst if the value is in the range (min, max]. A missing key is not
// an error; an unparseable one is.
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("invalid %s: %d out of range (%d, %d]",
			key, tv, min, max)
	}
	*dst = tv
	return nil
}
