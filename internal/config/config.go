// Package config loads and validates operator settings: cluster-facing
// ports, the daemon supervisor's timing and concurrency knobs, and
// logging, with environment-variable overrides and optional hot reload.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the operator's full runtime configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Daemons DaemonsConfig `yaml:"daemons"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig controls the operator's own HTTP endpoints.
type ServerConfig struct {
	MetricsPort string `yaml:"metrics_port"`
	HealthPort  string `yaml:"health_port"`
}

// DaemonsConfig holds the daemon supervisor's timing and concurrency
// settings. Only WorkerPoolSize is passed on to the supervisor (by
// cmd/opcore); the other fields are loaded and validated but are not
// applied to any handler: the daemon package uses its own
// DefaultPollingInterval, and a handler that declares no backoff or
// timeout of its own has none.
type DaemonsConfig struct {
	// PollingInterval is a timer interval / stop-for-deletion re-check
	// cadence; it is only logged at startup.
	PollingInterval time.Duration `yaml:"polling_interval"`
	// WorkerPoolSize bounds concurrent Blocking handler invocations.
	WorkerPoolSize int `yaml:"worker_pool_size"`
	// CancellationBackoff is a grace period before a daemon is
	// force-cancelled during termination; it is not applied to handlers.
	CancellationBackoff time.Duration `yaml:"cancellation_backoff"`
	// CancellationTimeout is a wall-clock budget after a forceful cancel
	// before a daemon is considered abandoned; it is not applied to
	// handlers.
	CancellationTimeout time.Duration `yaml:"cancellation_timeout"`
}

// LoggingConfig controls the operator's logger construction.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const (
	defaultMetricsPort     = "9090"
	defaultHealthPort      = "8081"
	defaultPollingInterval = 60 * time.Second
	defaultWorkerPoolSize  = 16
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
)

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			MetricsPort: defaultMetricsPort,
			HealthPort:  defaultHealthPort,
		},
		Daemons: DaemonsConfig{
			PollingInterval: defaultPollingInterval,
			WorkerPoolSize:  defaultWorkerPoolSize,
		},
		Logging: LoggingConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}

// Load reads, parses, overrides from the environment, and validates the
// configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate fills in any zero-value knob with its default and rejects
// settings that cannot be defaulted away.
func validate(cfg *Config) error {
	if cfg.Daemons.PollingInterval == 0 {
		cfg.Daemons.PollingInterval = defaultPollingInterval
	} else if cfg.Daemons.PollingInterval < 0 {
		return fmt.Errorf("daemons.polling_interval must not be negative")
	}

	if cfg.Daemons.WorkerPoolSize == 0 {
		cfg.Daemons.WorkerPoolSize = defaultWorkerPoolSize
	} else if cfg.Daemons.WorkerPoolSize < 0 {
		return fmt.Errorf("daemons.worker_pool_size must be greater than 0")
	}

	if cfg.Daemons.CancellationBackoff < 0 {
		return fmt.Errorf("daemons.cancellation_backoff must not be negative")
	}
	if cfg.Daemons.CancellationTimeout < 0 {
		return fmt.Errorf("daemons.cancellation_timeout must not be negative")
	}

	switch cfg.Logging.Level {
	case "", "debug", "info", "warn", "error":
		if cfg.Logging.Level == "" {
			cfg.Logging.Level = defaultLogLevel
		}
	default:
		return fmt.Errorf("unsupported log level %q", cfg.Logging.Level)
	}

	switch cfg.Logging.Format {
	case "", "json", "console":
		if cfg.Logging.Format == "" {
			cfg.Logging.Format = defaultLogFormat
		}
	default:
		return fmt.Errorf("unsupported log format %q", cfg.Logging.Format)
	}

	return nil
}

// loadFromEnv overlays environment variables onto cfg, for the knobs an
// operator deployment typically pins via a Deployment's env rather than
// a mounted config file.
func loadFromEnv(cfg *Config) error {
	if v := os.Getenv("METRICS_PORT"); v != "" {
		cfg.Server.MetricsPort = v
	}
	if v := os.Getenv("HEALTH_PORT"); v != "" {
		cfg.Server.HealthPort = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("DAEMON_POLLING_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid DAEMON_POLLING_INTERVAL: %w", err)
		}
		cfg.Daemons.PollingInterval = d
	}
	if v := os.Getenv("DAEMON_WORKER_POOL_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DAEMON_WORKER_POOL_SIZE: %w", err)
		}
		cfg.Daemons.WorkerPoolSize = n
	}
	return nil
}
