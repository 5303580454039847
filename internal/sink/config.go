package sink

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/JaimeStill/assay/pkg/retry"
)

// Config bounds the transactional commit and the analytics reconciler.
type Config struct {
	CommitRetries        int    `toml:"commit_retries"`
	CommitDelay          string `toml:"commit_delay"`
	ReconcileInterval    string `toml:"reconcile_interval"`
	ReconcileGrace       string `toml:"reconcile_grace"`
	ReconcileBatch       int    `toml:"reconcile_batch"`
	ReconcileMaxAttempts int    `toml:"reconcile_max_attempts"`
	ReconcileBaseDelay   string `toml:"reconcile_base_delay"`
	ReconcileMaxDelay    string `toml:"reconcile_max_delay"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	CommitRetries        string
	CommitDelay          string
	ReconcileInterval    string
	ReconcileGrace       string
	ReconcileMaxAttempts string
}

// CommitRetry returns the backoff for the transactional insert.
func (c *Config) CommitRetry() retry.Config {
	base := parse(c.CommitDelay)
	return retry.Config{
		MaxRetries:      c.CommitRetries,
		BaseDelay:       base,
		MaxDelay:        base * 8,
		BackoffMultiple: 2,
	}
}

// ReconcileRetry returns the backoff between projection attempts.
func (c *Config) ReconcileRetry() retry.Config {
	return retry.Config{
		MaxRetries:      c.ReconcileMaxAttempts,
		BaseDelay:       parse(c.ReconcileBaseDelay),
		MaxDelay:        parse(c.ReconcileMaxDelay),
		BackoffMultiple: 2,
	}
}

// ReconcileIntervalDuration returns the pause between reconciler passes.
func (c *Config) ReconcileIntervalDuration() time.Duration {
	return parse(c.ReconcileInterval)
}

// ReconcileGraceDuration returns how long a pending projection is left to
// the writer that created it.
func (c *Config) ReconcileGraceDuration() time.Duration {
	return parse(c.ReconcileGrace)
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.CommitRetries != 0 {
		c.CommitRetries = overlay.CommitRetries
	}
	if overlay.CommitDelay != "" {
		c.CommitDelay = overlay.CommitDelay
	}
	if overlay.ReconcileInterval != "" {
		c.ReconcileInterval = overlay.ReconcileInterval
	}
	if overlay.ReconcileGrace != "" {
		c.ReconcileGrace = overlay.ReconcileGrace
	}
	if overlay.ReconcileBatch != 0 {
		c.ReconcileBatch = overlay.ReconcileBatch
	}
	if overlay.ReconcileMaxAttempts != 0 {
		c.ReconcileMaxAttempts = overlay.ReconcileMaxAttempts
	}
	if overlay.ReconcileBaseDelay != "" {
		c.ReconcileBaseDelay = overlay.ReconcileBaseDelay
	}
	if overlay.ReconcileMaxDelay != "" {
		c.ReconcileMaxDelay = overlay.ReconcileMaxDelay
	}
}

func (c *Config) loadDefaults() {
	if c.CommitRetries == 0 {
		c.CommitRetries = 3
	}
	if c.CommitDelay == "" {
		c.CommitDelay = "250ms"
	}
	if c.ReconcileInterval == "" {
		c.ReconcileInterval = "30s"
	}
	if c.ReconcileGrace == "" {
		c.ReconcileGrace = "2m"
	}
	if c.ReconcileBatch == 0 {
		c.ReconcileBatch = 100
	}
	if c.ReconcileMaxAttempts == 0 {
		c.ReconcileMaxAttempts = 8
	}
	if c.ReconcileBaseDelay == "" {
		c.ReconcileBaseDelay = "30s"
	}
	if c.ReconcileMaxDelay == "" {
		c.ReconcileMaxDelay = "30m"
	}
}

func (c *Config) loadEnv(env *Env) {
	if v := getenv(env.CommitRetries); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.CommitRetries = n
		}
	}
	if v := getenv(env.CommitDelay); v != "" {
		c.CommitDelay = v
	}
	if v := getenv(env.ReconcileInterval); v != "" {
		c.ReconcileInterval = v
	}
	if v := getenv(env.ReconcileGrace); v != "" {
		c.ReconcileGrace = v
	}
	if v := getenv(env.ReconcileMaxAttempts); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ReconcileMaxAttempts = n
		}
	}
}

func (c *Config) validate() error {
	if c.CommitRetries < 0 {
		return fmt.Errorf("commit_retries must be non-negative")
	}
	if c.ReconcileBatch < 1 {
		return fmt.Errorf("reconcile_batch must be positive")
	}
	if c.ReconcileMaxAttempts < 1 {
		return fmt.Errorf("reconcile_max_attempts must be positive")
	}

	durations := map[string]string{
		"commit_delay":         c.CommitDelay,
		"reconcile_interval":   c.ReconcileInterval,
		"reconcile_grace":      c.ReconcileGrace,
		"reconcile_base_delay": c.ReconcileBaseDelay,
		"reconcile_max_delay":  c.ReconcileMaxDelay,
	}
	for name, v := range durations {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	return nil
}

func parse(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

func getenv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
