package jobs

import (
	"fmt"
	"os"
	"time"
)

// Backend names.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds queue parameters.
type Config struct {
	Backend      string `toml:"backend"`
	KeyPrefix    string `toml:"key_prefix"`
	ResultTTL    string `toml:"result_ttl"`
	LeaseTimeout string `toml:"lease_timeout"`
	MaxQueueAge  string `toml:"max_queue_age"`
	PollInterval string `toml:"poll_interval"`
	MaxWait      string `toml:"max_wait"`
	ReapBatch    int    `toml:"reap_batch"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Backend      string
	KeyPrefix    string
	ResultTTL    string
	LeaseTimeout string
	MaxQueueAge  string
}

// ResultTTLDuration returns how long terminal jobs stay in the queue store.
func (c *Config) ResultTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.ResultTTL)
	return d
}

// LeaseTimeoutDuration returns the visibility timeout of a running job.
func (c *Config) LeaseTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.LeaseTimeout)
	return d
}

// MaxQueueAgeDuration returns how long a job may wait in the queue.
func (c *Config) MaxQueueAgeDuration() time.Duration {
	d, _ := time.ParseDuration(c.MaxQueueAge)
	return d
}

// PollIntervalDuration returns the WaitFor polling interval.
func (c *Config) PollIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.PollInterval)
	return d
}

// MaxWaitDuration returns the upper bound for a single WaitFor call.
func (c *Config) MaxWaitDuration() time.Duration {
	d, _ := time.ParseDuration(c.MaxWait)
	return d
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
	if overlay.Backend != "" {
		c.Backend = overlay.Backend
	}
	if overlay.KeyPrefix != "" {
		c.KeyPrefix = overlay.KeyPrefix
	}
	if overlay.ResultTTL != "" {
		c.ResultTTL = overlay.ResultTTL
	}
	if overlay.LeaseTimeout != "" {
		c.LeaseTimeout = overlay.LeaseTimeout
	}
	if overlay.MaxQueueAge != "" {
		c.MaxQueueAge = overlay.MaxQueueAge
	}
	if overlay.PollInterval != "" {
		c.PollInterval = overlay.PollInterval
	}
	if overlay.MaxWait != "" {
		c.MaxWait = overlay.MaxWait
	}
	if overlay.ReapBatch != 0 {
		c.ReapBatch = overlay.ReapBatch
	}
}

func (c *Config) loadDefaults() {
	if c.Backend == "" {
		c.Backend = BackendRedis
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "assay"
	}
	if c.ResultTTL == "" {
		c.ResultTTL = "24h"
	}
	if c.LeaseTimeout == "" {
		c.LeaseTimeout = "60s"
	}
	if c.MaxQueueAge == "" {
		c.MaxQueueAge = "1h"
	}
	if c.PollInterval == "" {
		c.PollInterval = "500ms"
	}
	if c.MaxWait == "" {
		c.MaxWait = "10m"
	}
	if c.ReapBatch == 0 {
		c.ReapBatch = 100
	}
}

func (c *Config) loadEnv(env *Env) {
	if v := getenv(env.Backend); v != "" {
		c.Backend = v
	}
	if v := getenv(env.KeyPrefix); v != "" {
		c.KeyPrefix = v
	}
	if v := getenv(env.ResultTTL); v != "" {
		c.ResultTTL = v
	}
	if v := getenv(env.LeaseTimeout); v != "" {
		c.LeaseTimeout = v
	}
	if v := getenv(env.MaxQueueAge); v != "" {
		c.MaxQueueAge = v
	}
}

func (c *Config) validate() error {
	switch c.Backend {
	case BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("invalid backend %q: must be %s or %s", c.Backend, BackendRedis, BackendMemory)
	}
	for name, v := range map[string]string{
		"result_ttl":    c.ResultTTL,
		"lease_timeout": c.LeaseTimeout,
		"max_queue_age": c.MaxQueueAge,
		"poll_interval": c.PollInterval,
		"max_wait":      c.MaxWait,
	} {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.ReapBatch < 1 {
		return fmt.Errorf("invalid reap_batch: %d", c.ReapBatch)
	}
	return nil
}

func getenv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
