package config

import (
	"fmt"
	"os"
	"time"

	"github.com/JaimeStill/assay/internal/jobs"
	"github.com/JaimeStill/assay/internal/llm"
	"github.com/JaimeStill/assay/internal/sink"
	"github.com/JaimeStill/assay/internal/submission"
	"github.com/JaimeStill/assay/internal/worker"
	"github.com/JaimeStill/assay/pkg/broker"
	"github.com/JaimeStill/assay/pkg/database"
	"github.com/JaimeStill/assay/pkg/storage"
	"github.com/JaimeStill/assay/pkg/tracing"
	"github.com/JaimeStill/assay/pkg/warehouse"
	"github.com/pelletier/go-toml/v2"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvAssayEnv             = "ASSAY_ENV"
	EnvAssayShutdownTimeout = "ASSAY_SHUTDOWN_TIMEOUT"
	EnvAssayVersion         = "ASSAY_VERSION"
)

// Config is the root configuration shared by every assay process.
type Config struct {
	Server          ServerConfig      `toml:"server"`
	Database        database.Config   `toml:"database"`
	Storage         storage.Config    `toml:"storage"`
	API             APIConfig         `toml:"api"`
	Logging         LoggingConfig     `toml:"logging"`
	Queue           jobs.Config       `toml:"queue"`
	Worker          worker.Config     `toml:"worker"`
	LLM             llm.Config        `toml:"llm"`
	Sink            sink.Config       `toml:"sink"`
	Submission      submission.Config `toml:"submission"`
	Tracing         tracing.Config    `toml:"tracing"`
	Redis           broker.Config     `toml:"redis"`
	Warehouse       warehouse.Config  `toml:"warehouse"`
	ShutdownTimeout string            `toml:"shutdown_timeout"`
	Version         string            `toml:"version"`
}

// Env returns the ASSAY_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvAssayEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Logging.Merge(&overlay.Logging)
	c.Queue.Merge(&overlay.Queue)
	c.Worker.Merge(&overlay.Worker)
	c.LLM.Merge(&overlay.LLM)
	c.Sink.Merge(&overlay.Sink)
	c.Submission.Merge(&overlay.Submission)
	c.Tracing.Merge(&overlay.Tracing)
	c.Redis.Merge(&overlay.Redis)
	c.Warehouse.Merge(&overlay.Warehouse)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Logging.Finalize(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Queue.Finalize(queueEnv); err != nil {
		return fmt.Errorf("queue: %w", err)
	}
	if err := c.Worker.Finalize(workerEnv); err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	if err := c.LLM.Finalize(llmEnv); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := c.Sink.Finalize(sinkEnv); err != nil {
		return fmt.Errorf("sink: %w", err)
	}
	if err := c.Submission.Finalize(submissionEnv); err != nil {
		return fmt.Errorf("submission: %w", err)
	}
	if err := c.Tracing.Finalize(tracingEnv); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	if err := c.Redis.Finalize(redisEnv); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if err := c.Warehouse.Finalize(warehouseEnv); err != nil {
		return fmt.Errorf("warehouse: %w", err)
	}

	// A lease that lapses before the worker renews it hands the job to the
	// reaper while it is still being evaluated.
	if c.Worker.ExtendIntervalDuration() >= c.Queue.LeaseTimeoutDuration() {
		return fmt.Errorf(
			"worker.extend_interval (%s) must be shorter than queue.lease_timeout (%s)",
			c.Worker.ExtendInterval, c.Queue.LeaseTimeout,
		)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvAssayShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvAssayVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvAssayEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
