//nolint:tagliatelle // snake_case config keys.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oeg-upm/telegram-dataset-builder/internal/feed"
)

// Config represents the complete application configuration.
type Config struct {
	Monitor MonitorConfig `yaml:"monitor"`
	Output  OutputConfig  `yaml:"output"`
	State   StateConfig   `yaml:"state"`
	Feed    feed.Config   `yaml:"feed"`
	Redis   RedisConfig   `yaml:"redis"`
	Lock    LockConfig    `yaml:"lock"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// MonitorConfig drives the ingestion and tracking engine.
type MonitorConfig struct {
	Channels       []string      `yaml:"channels"`         // Channel names or ids to monitor
	BatchSize      int           `yaml:"batch_size"`       // Max records per segment file
	TrackerWindow  time.Duration `yaml:"tracker_window"`   // How long items stay under observation
	TrackerTimer   time.Duration `yaml:"tracker_timer"`    // Polling cadence
	StalenessLimit time.Duration `yaml:"staleness_limit"`  // Max item age at ingestion to be tracked
	ForceColdStart bool          `yaml:"force_cold_start"` // Discard durable tracking state on boot
	LogLevel       string        `yaml:"log_level"`
}

// OutputConfig locates the dataset on disk.
type OutputConfig struct {
	Dir string `yaml:"dir"` // Root directory for batched segment files
}

// StateConfig selects where the runtime documents live.
type StateConfig struct {
	Backend string `yaml:"backend"` // "file" or "redis"
	Dir     string `yaml:"dir"`     // Runtime dir for the file backend (default <output>/runtime)
}

// RedisConfig holds Redis client configuration.
type RedisConfig struct {
	Address      string        `yaml:"address"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PoolSize     int           `yaml:"pool_size"`
}

// LockConfig holds the single-writer run lock configuration.
type LockConfig struct {
	Enabled       bool          `yaml:"enabled"`
	LockKey       string        `yaml:"lock_key"`
	LockTTL       time.Duration `yaml:"lock_ttl"`
	RenewInterval time.Duration `yaml:"renew_interval"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// MetricsConfig holds the observability listener settings.
type MetricsConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// State backends.
const (
	StateBackendFile  = "file"
	StateBackendRedis = "redis"
)

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration and sets defaults.
func (c *Config) Validate() error {
	if err := c.Monitor.Validate(); err != nil {
		return fmt.Errorf("monitor: %w", err)
	}

	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output: %w", err)
	}

	if err := c.State.Validate(); err != nil {
		return fmt.Errorf("state: %w", err)
	}

	if err := c.Feed.Validate(); err != nil {
		return fmt.Errorf("feed: %w", err)
	}

	if c.State.Backend == StateBackendRedis || c.Lock.Enabled {
		if err := c.Redis.Validate(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}

	if c.Lock.Enabled {
		if err := c.Lock.Validate(); err != nil {
			return fmt.Errorf("lock: %w", err)
		}
	}

	if c.Metrics.Enabled {
		if err := c.Metrics.Validate(); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	return nil
}

// Validate validates monitor settings and sets defaults.
func (c *MonitorConfig) Validate() error {
	if len(c.Channels) == 0 {
		return fmt.Errorf("at least one channel must be configured")
	}

	if c.BatchSize == 0 {
		c.BatchSize = 1000
	}

	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}

	if c.TrackerWindow == 0 {
		c.TrackerWindow = 720 * time.Hour
	}

	if c.TrackerWindow < time.Minute {
		return fmt.Errorf("tracker_window must be at least a minute, got %v", c.TrackerWindow)
	}

	if c.TrackerTimer == 0 {
		c.TrackerTimer = 5 * time.Minute
	}

	if c.TrackerTimer < time.Second {
		return fmt.Errorf("tracker_timer must be at least a second, got %v", c.TrackerTimer)
	}

	if c.StalenessLimit == 0 {
		c.StalenessLimit = 10 * time.Hour
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	return nil
}

// Validate validates output settings.
func (c *OutputConfig) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("dir cannot be empty")
	}

	return nil
}

// Validate validates state settings and sets defaults.
func (c *StateConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = StateBackendFile
	}

	if c.Backend != StateBackendFile && c.Backend != StateBackendRedis {
		return fmt.Errorf("backend must be %q or %q, got %q", StateBackendFile, StateBackendRedis, c.Backend)
	}

	return nil
}

// Validate validates Redis settings and sets defaults.
func (c *RedisConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}

	if c.PoolSize == 0 {
		c.PoolSize = 10
	}

	return nil
}

// Validate validates lock settings and sets defaults.
func (c *LockConfig) Validate() error {
	if c.LockKey == "" {
		c.LockKey = "tdb:monitor:lock"
	}

	if c.LockTTL == 0 {
		c.LockTTL = 30 * time.Second
	}

	if c.RenewInterval == 0 {
		c.RenewInterval = 10 * time.Second
	}

	if c.RetryInterval == 0 {
		c.RetryInterval = 15 * time.Second
	}

	if c.RenewInterval >= c.LockTTL {
		return fmt.Errorf("renew_interval must be shorter than lock_ttl")
	}

	return nil
}

// Validate validates metrics settings and sets defaults.
func (c *MetricsConfig) Validate() error {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}

	if c.Port == 0 {
		c.Port = 9090
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 5 * time.Second
	}

	return nil
}

// RuntimeDir returns the directory holding the file-backend runtime documents.
func (c *Config) RuntimeDir() string {
	if c.State.Dir != "" {
		return c.State.Dir
	}

	return filepath.Join(c.Output.Dir, "runtime")
}
