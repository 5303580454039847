package llm

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds Ollama connection and generation parameters.
type Config struct {
	BaseURL       string  `toml:"base_url"`
	Model         string  `toml:"model"`
	Timeout       string  `toml:"timeout"`
	HealthTimeout string  `toml:"health_timeout"`
	MaxRetries    int     `toml:"max_retries"`
	RetryDelay    string  `toml:"retry_delay"`
	KeepAlive     string  `toml:"keep_alive"`
	NumCtx        int     `toml:"num_ctx"`
	Temperature   float64 `toml:"temperature"`
	TopP          float64 `toml:"top_p"`
	TopK          int     `toml:"top_k"`
	NumPredict    int     `toml:"num_predict"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	BaseURL     string
	Model       string
	Timeout     string
	MaxRetries  string
	RetryDelay  string
	KeepAlive   string
	NumCtx      string
	Temperature string
}

// TimeoutDuration returns the per-attempt timeout.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// HealthTimeoutDuration returns the timeout for health probes.
func (c *Config) HealthTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.HealthTimeout)
	return d
}

// RetryDelayDuration returns the pause before a retry.
func (c *Config) RetryDelayDuration() time.Duration {
	d, _ := time.ParseDuration(c.RetryDelay)
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
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.Model != "" {
		c.Model = overlay.Model
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
	if overlay.HealthTimeout != "" {
		c.HealthTimeout = overlay.HealthTimeout
	}
	if overlay.MaxRetries != 0 {
		c.MaxRetries = overlay.MaxRetries
	}
	if overlay.RetryDelay != "" {
		c.RetryDelay = overlay.RetryDelay
	}
	if overlay.KeepAlive != "" {
		c.KeepAlive = overlay.KeepAlive
	}
	if overlay.NumCtx != 0 {
		c.NumCtx = overlay.NumCtx
	}
	if overlay.Temperature != 0 {
		c.Temperature = overlay.Temperature
	}
	if overlay.TopP != 0 {
		c.TopP = overlay.TopP
	}
	if overlay.TopK != 0 {
		c.TopK = overlay.TopK
	}
	if overlay.NumPredict != 0 {
		c.NumPredict = overlay.NumPredict
	}
}

func (c *Config) loadDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:11434"
	}
	if c.Model == "" {
		c.Model = "llama3:8b"
	}
	if c.Timeout == "" {
		c.Timeout = "300s"
	}
	if c.HealthTimeout == "" {
		c.HealthTimeout = "5s"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 1
	}
	if c.RetryDelay == "" {
		c.RetryDelay = "2s"
	}
	if c.KeepAlive == "" {
		c.KeepAlive = "5m"
	}
	if c.NumCtx == 0 {
		c.NumCtx = 8192
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.TopP == 0 {
		c.TopP = 0.9
	}
	if c.TopK == 0 {
		c.TopK = 40
	}
	if c.NumPredict == 0 {
		c.NumPredict = 512
	}
}

func (c *Config) loadEnv(env *Env) {
	if v := getenv(env.BaseURL); v != "" {
		c.BaseURL = v
	}
	if v := getenv(env.Model); v != "" {
		c.Model = v
	}
	if v := getenv(env.Timeout); v != "" {
		c.Timeout = v
	}
	if v := getenv(env.MaxRetries); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxRetries = n
		}
	}
	if v := getenv(env.RetryDelay); v != "" {
		c.RetryDelay = v
	}
	if v := getenv(env.KeepAlive); v != "" {
		c.KeepAlive = v
	}
	if v := getenv(env.NumCtx); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.NumCtx = n
		}
	}
	if v := getenv(env.Temperature); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Temperature = f
		}
	}
}

func (c *Config) validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid base_url: %q", c.BaseURL)
	}
	if c.Model == "" {
		return fmt.Errorf("model required")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("invalid max_retries: %d", c.MaxRetries)
	}
	for name, v := range map[string]string{
		"timeout":        c.Timeout,
		"health_timeout": c.HealthTimeout,
		"retry_delay":    c.RetryDelay,
	} {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d <= 0 && name != "retry_delay" {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("invalid temperature: %v", c.Temperature)
	}
	if c.TopP <= 0 || c.TopP > 1 {
		return fmt.Errorf("invalid top_p: %v", c.TopP)
	}
	return nil
}

func getenv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
