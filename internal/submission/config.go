package submission

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/JaimeStill/assay/pkg/formatting"
)

// Config bounds submissions and URL ingestion.
type Config struct {
	MaxTextSize  string `toml:"max_text_size"`
	MaxFetchSize string `toml:"max_fetch_size"`
	FetchTimeout string `toml:"fetch_timeout"`
	FanOut       int    `toml:"fan_out"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	MaxTextSize  string
	MaxFetchSize string
	FetchTimeout string
	FanOut       string
}

// MaxTextBytes returns MaxTextSize in bytes.
func (c *Config) MaxTextBytes() int64 {
	n, _ := formatting.ParseBytes(c.MaxTextSize)
	return n
}

// MaxFetchBytes returns MaxFetchSize in bytes.
func (c *Config) MaxFetchBytes() int64 {
	n, _ := formatting.ParseBytes(c.MaxFetchSize)
	return n
}

// FetchTimeoutDuration returns the page fetch timeout.
func (c *Config) FetchTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.FetchTimeout)
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
	if overlay.MaxTextSize != "" {
		c.MaxTextSize = overlay.MaxTextSize
	}
	if overlay.MaxFetchSize != "" {
		c.MaxFetchSize = overlay.MaxFetchSize
	}
	if overlay.FetchTimeout != "" {
		c.FetchTimeout = overlay.FetchTimeout
	}
	if overlay.FanOut != 0 {
		c.FanOut = overlay.FanOut
	}
}

func (c *Config) loadDefaults() {
	if c.MaxTextSize == "" {
		c.MaxTextSize = "1MB"
	}
	if c.MaxFetchSize == "" {
		c.MaxFetchSize = "5MB"
	}
	if c.FetchTimeout == "" {
		c.FetchTimeout = "15s"
	}
	if c.FanOut == 0 {
		c.FanOut = 8
	}
}

func (c *Config) loadEnv(env *Env) {
	if v := getenv(env.MaxTextSize); v != "" {
		c.MaxTextSize = v
	}
	if v := getenv(env.MaxFetchSize); v != "" {
		c.MaxFetchSize = v
	}
	if v := getenv(env.FetchTimeout); v != "" {
		c.FetchTimeout = v
	}
	if v := getenv(env.FanOut); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.FanOut = n
		}
	}
}

func (c *Config) validate() error {
	if _, err := formatting.ParseBytes(c.MaxTextSize); err != nil {
		return fmt.Errorf("invalid max_text_size: %w", err)
	}
	if _, err := formatting.ParseBytes(c.MaxFetchSize); err != nil {
		return fmt.Errorf("invalid max_fetch_size: %w", err)
	}
	if _, err := time.ParseDuration(c.FetchTimeout); err != nil {
		return fmt.Errorf("invalid fetch_timeout: %w", err)
	}
	if c.FanOut < 1 {
		return fmt.Errorf("fan_out must be positive")
	}
	return nil
}

func getenv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
