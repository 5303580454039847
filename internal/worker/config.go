package worker

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds worker pool parameters.
type Config struct {
	// ID prefixes worker ids. Defaults to the host name.
	ID                string `toml:"id"`
	Concurrency       int    `toml:"concurrency"`
	PollWait          string `toml:"poll_wait"`
	HeartbeatInterval string `toml:"heartbeat_interval"`
	HeartbeatTTL      string `toml:"heartbeat_ttl"`
	ExtendInterval    string `toml:"extend_interval"`
	ReapInterval      string `toml:"reap_interval"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	ID                string
	Concurrency       string
	PollWait          string
	HeartbeatInterval string
	ReapInterval      string
}

// PollWaitDuration returns how long an idle worker blocks waiting for a job.
func (c *Config) PollWaitDuration() time.Duration {
	return parse(c.PollWait)
}

// HeartbeatIntervalDuration returns the pause between liveness heartbeats.
func (c *Config) HeartbeatIntervalDuration() time.Duration {
	return parse(c.HeartbeatInterval)
}

// HeartbeatTTLDuration returns how long a heartbeat keeps a worker listed.
func (c *Config) HeartbeatTTLDuration() time.Duration {
	return parse(c.HeartbeatTTL)
}

// ExtendIntervalDuration returns the pause between lease renewals.
func (c *Config) ExtendIntervalDuration() time.Duration {
	return parse(c.ExtendInterval)
}

// ReapIntervalDuration returns the pause between reaper passes.
func (c *Config) ReapIntervalDuration() time.Duration {
	return parse(c.ReapInterval)
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
	if overlay.ID != "" {
		c.ID = overlay.ID
	}
	if overlay.Concurrency != 0 {
		c.Concurrency = overlay.Concurrency
	}
	if overlay.PollWait != "" {
		c.PollWait = overlay.PollWait
	}
	if overlay.HeartbeatInterval != "" {
		c.HeartbeatInterval = overlay.HeartbeatInterval
	}
	if overlay.HeartbeatTTL != "" {
		c.HeartbeatTTL = overlay.HeartbeatTTL
	}
	if overlay.ExtendInterval != "" {
		c.ExtendInterval = overlay.ExtendInterval
	}
	if overlay.ReapInterval != "" {
		c.ReapInterval = overlay.ReapInterval
	}
}

func (c *Config) loadDefaults() {
	if c.ID == "" {
		if host, err := os.Hostname(); err == nil {
			c.ID = host
		} else {
			c.ID = "worker"
		}
	}
	if c.Concurrency == 0 {
		c.Concurrency = 4
	}
	if c.PollWait == "" {
		c.PollWait = "2s"
	}
	if c.HeartbeatInterval == "" {
		c.HeartbeatInterval = "10s"
	}
	if c.HeartbeatTTL == "" {
		c.HeartbeatTTL = "30s"
	}
	if c.ExtendInterval == "" {
		c.ExtendInterval = "20s"
	}
	if c.ReapInterval == "" {
		c.ReapInterval = "15s"
	}
}

func (c *Config) loadEnv(env *Env) {
	if v := getenv(env.ID); v != "" {
		c.ID = v
	}
	if v := getenv(env.Concurrency); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Concurrency = n
		}
	}
	if v := getenv(env.PollWait); v != "" {
		c.PollWait = v
	}
	if v := getenv(env.HeartbeatInterval); v != "" {
		c.HeartbeatInterval = v
	}
	if v := getenv(env.ReapInterval); v != "" {
		c.ReapInterval = v
	}
}

func (c *Config) validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be positive")
	}

	durations := []struct{ name, value string }{
		{"poll_wait", c.PollWait},
		{"heartbeat_interval", c.HeartbeatInterval},
		{"heartbeat_ttl", c.HeartbeatTTL},
		{"extend_interval", c.ExtendInterval},
		{"reap_interval", c.ReapInterval},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
		if v <= 0 {
			return fmt.Errorf("%s must be positive", d.name)
		}
	}

	if parse(c.HeartbeatTTL) <= parse(c.HeartbeatInterval) {
		return fmt.Errorf("heartbeat_ttl must exceed heartbeat_interval")
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
