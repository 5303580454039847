package warehouse

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds ClickHouse native-protocol connection parameters.
type Config struct {
	Addrs           []string `toml:"addrs"`
	Database        string   `toml:"database"`
	Username        string   `toml:"username"`
	Password        string   `toml:"password"`
	MaxOpenConns    int      `toml:"max_open_conns"`
	MaxIdleConns    int      `toml:"max_idle_conns"`
	ConnMaxLifetime string   `toml:"conn_max_lifetime"`
	DialTimeout     string   `toml:"dial_timeout"`
	Compress        bool     `toml:"compress"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Addrs           string
	Database        string
	Username        string
	Password        string
	MaxOpenConns    string
	MaxIdleConns    string
	ConnMaxLifetime string
	DialTimeout     string
	Compress        string
}

// ConnMaxLifetimeDuration returns ConnMaxLifetime as a time.Duration.
func (c *Config) ConnMaxLifetimeDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnMaxLifetime)
	return d
}

// DialTimeoutDuration returns DialTimeout as a time.Duration.
func (c *Config) DialTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.DialTimeout)
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

// Merge overwrites non-zero fields from overlay. Compress always applies.
func (c *Config) Merge(overlay *Config) {
	if len(overlay.Addrs) > 0 {
		c.Addrs = overlay.Addrs
	}
	if overlay.Database != "" {
		c.Database = overlay.Database
	}
	if overlay.Username != "" {
		c.Username = overlay.Username
	}
	if overlay.Password != "" {
		c.Password = overlay.Password
	}
	if overlay.MaxOpenConns != 0 {
		c.MaxOpenConns = overlay.MaxOpenConns
	}
	if overlay.MaxIdleConns != 0 {
		c.MaxIdleConns = overlay.MaxIdleConns
	}
	if overlay.ConnMaxLifetime != "" {
		c.ConnMaxLifetime = overlay.ConnMaxLifetime
	}
	if overlay.DialTimeout != "" {
		c.DialTimeout = overlay.DialTimeout
	}
	c.Compress = overlay.Compress
}

func (c *Config) loadDefaults() {
	if len(c.Addrs) == 0 {
		c.Addrs = []string{"localhost:9000"}
	}
	if c.Database == "" {
		c.Database = "assay"
	}
	if c.Username == "" {
		c.Username = "default"
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 10
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime == "" {
		c.ConnMaxLifetime = "1h"
	}
	if c.DialTimeout == "" {
		c.DialTimeout = "5s"
	}
}

func (c *Config) loadEnv(env *Env) {
	if v := getenv(env.Addrs); v != "" {
		var addrs []string
		for _, a := range strings.Split(v, ",") {
			if a = strings.TrimSpace(a); a != "" {
				addrs = append(addrs, a)
			}
		}
		c.Addrs = addrs
	}
	if v := getenv(env.Database); v != "" {
		c.Database = v
	}
	if v := getenv(env.Username); v != "" {
		c.Username = v
	}
	if v := getenv(env.Password); v != "" {
		c.Password = v
	}
	if v := getenv(env.MaxOpenConns); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxOpenConns = n
		}
	}
	if v := getenv(env.MaxIdleConns); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxIdleConns = n
		}
	}
	if v := getenv(env.ConnMaxLifetime); v != "" {
		c.ConnMaxLifetime = v
	}
	if v := getenv(env.DialTimeout); v != "" {
		c.DialTimeout = v
	}
	if v := getenv(env.Compress); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Compress = b
		}
	}
}

func (c *Config) validate() error {
	if len(c.Addrs) == 0 {
		return fmt.Errorf("addrs required")
	}
	if _, err := time.ParseDuration(c.ConnMaxLifetime); err != nil {
		return fmt.Errorf("invalid conn_max_lifetime: %w", err)
	}
	if _, err := time.ParseDuration(c.DialTimeout); err != nil {
		return fmt.Errorf("invalid dial_timeout: %w", err)
	}
	return nil
}

func getenv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
