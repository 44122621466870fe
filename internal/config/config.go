package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DatabaseURL string `yaml:"database_url"`
	NATSURL     string `yaml:"nats_url"`
	Env         string `yaml:"env"`
	LogLevel    string `yaml:"log_level"`

	Queue   QueueConfig   `yaml:"queue"`
	Metrics MetricsConfig `yaml:"metrics"`
	Retry   RetryConfig   `yaml:"retry"`
}

// QueueConfig controls the bus surface of the service
type QueueConfig struct {
	Namespace  string `yaml:"namespace"`   // Subject prefix and queue group (default: "queue")
	Workers    int    `yaml:"workers"`     // Event dispatcher worker count (default: 8)
	BufferSize int    `yaml:"buffer_size"` // Event dispatcher queue depth (default: 256)
}

type MetricsConfig struct {
	Addr            string        `yaml:"addr"`             // Listen address for /metrics and /healthz
	RefreshInterval time.Duration `yaml:"refresh_interval"` // Gauge refresh cadence (default: 30s)
}

type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	BackoffBase    time.Duration `yaml:"backoff_base"`
	RateLimitRetry time.Duration `yaml:"rate_limit_retry"`
}

// Default configuration values
func DefaultConfig() *Config {
	return &Config{
		NATSURL:  "nats://localhost:4222",
		LogLevel: "info",
		Queue: QueueConfig{
			Namespace:  "queue",
			Workers:    8,
			BufferSize: 256,
		},
		Metrics: MetricsConfig{
			Addr:            ":9091",
			RefreshInterval: 30 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:    5,
			BackoffBase:    1 * time.Second,
			RateLimitRetry: 30 * time.Second,
		},
	}
}

// Load reads configuration from a YAML file, then overlays environment
// variables. A missing file is not an error: everything can come from the
// environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	} else {
		// Expand environment variables in the format ${VAR}
		data = expandEnvVars(data)

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	return cfg, nil
}

// applyEnv overlays well-known environment variables on top of file values.
func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATSURL = v
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
}

// Validate checks the settings that commands touching the database need.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("database_url is required (set DATABASE_URL or the config file)")
	}
	return nil
}

// expandEnvVars replaces ${VAR} patterns with environment variable values
func expandEnvVars(data []byte) []byte {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := string(re.FindSubmatch(match)[1])
		return []byte(os.Getenv(varName))
	})
}
