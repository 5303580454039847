package tracing

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config selects and tunes the span exporter.
type Config struct {
	Enabled     bool              `toml:"enabled"`
	Exporter    string            `toml:"exporter"`
	Endpoint    string            `toml:"endpoint"`
	Insecure    bool              `toml:"insecure"`
	Headers     map[string]string `toml:"headers"`
	SampleRatio float64           `toml:"sample_ratio"`
	ServiceName string            `toml:"service_name"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Enabled     string
	Exporter    string
	Endpoint    string
	Insecure    string
	Headers     string
	SampleRatio string
	ServiceName string
}

const (
	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"
)

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites fields from overlay. Booleans always apply.
func (c *Config) Merge(overlay *Config) {
	c.Enabled = overlay.Enabled
	c.Insecure = overlay.Insecure
	if overlay.Exporter != "" {
		c.Exporter = overlay.Exporter
	}
	if overlay.Endpoint != "" {
		c.Endpoint = overlay.Endpoint
	}
	if len(overlay.Headers) > 0 {
		c.Headers = overlay.Headers
	}
	if overlay.SampleRatio != 0 {
		c.SampleRatio = overlay.SampleRatio
	}
	if overlay.ServiceName != "" {
		c.ServiceName = overlay.ServiceName
	}
}

func (c *Config) loadDefaults() {
	if c.Exporter == "" {
		c.Exporter = ExporterOTLP
	}
	if c.SampleRatio == 0 {
		c.SampleRatio = 0.1
	}
	if c.ServiceName == "" {
		c.ServiceName = "assay"
	}
}

func (c *Config) loadEnv(env *Env) {
	if v := getenv(env.Enabled); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Enabled = b
		}
	}
	if v := getenv(env.Exporter); v != "" {
		c.Exporter = strings.ToLower(v)
	}
	if v := getenv(env.Endpoint); v != "" {
		c.Endpoint = v
	}
	if v := getenv(env.Insecure); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Insecure = b
		}
	}
	if v := getenv(env.Headers); v != "" {
		c.Headers = parseHeaders(v)
	}
	if v := getenv(env.SampleRatio); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.SampleRatio = f
		}
	}
	if v := getenv(env.ServiceName); v != "" {
		c.ServiceName = v
	}
}

func (c *Config) validate() error {
	switch c.Exporter {
	case ExporterOTLP, ExporterStdout:
	default:
		return fmt.Errorf("unknown exporter %q", c.Exporter)
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("sample_ratio must be within [0,1]: %v", c.SampleRatio)
	}
	return nil
}

// parseHeaders reads "k1=v1,k2=v2", skipping malformed pairs.
func parseHeaders(raw string) map[string]string {
	headers := map[string]string{}
	for _, part := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			continue
		}
		headers[k] = v
	}
	return headers
}

func getenv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
