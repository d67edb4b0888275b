// Package config loads the YAML-based runtime configuration for the rpc
// engine, grounded on gateway.GatewayConfig's load/default/validate shape
// (internal/gateway/config.go).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// BusConfig is the complete on-disk configuration for an rpcbus-backed
// process: where the broker lives, and the bus-wide defaults rpcbus.Config
// seeds every request/responder with.
type BusConfig struct {
	Broker  BrokerConfig  `yaml:"broker"`
	Bus     BusDefaults   `yaml:"bus"`
	Logging LoggingConfig `yaml:"logging"`
}

// BrokerConfig addresses the ZeroMQ ROUTER this process connects its DEALER
// socket to, and the socket identity it connects with.
type BrokerConfig struct {
	Address  string `yaml:"address"`
	Identity string `yaml:"identity"`
}

// BusDefaults mirrors rpcbus.Config's fields, keeping the timeout as a
// parseable duration string behind a typed getter, the way GatewayConfig
// keeps durations as strings.
type BusDefaults struct {
	DefaultTimeout  string `yaml:"default_timeout"`
	DefaultPrefetch int    `yaml:"default_prefetch"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and validates configuration from a YAML file.
func Load(filepath string) (*BusConfig, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg BusConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Save writes configuration to a YAML file.
func Save(cfg *BusConfig, filepath string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filepath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Default returns a default configuration suitable for local development.
func Default() *BusConfig {
	return &BusConfig{
		Broker: BrokerConfig{
			Address:  "tcp://127.0.0.1:5555",
			Identity: "rpc-client",
		},
		Bus: BusDefaults{
			DefaultTimeout:  "30s",
			DefaultPrefetch: 16,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func (c *BusConfig) setDefaults() {
	if c.Broker.Address == "" {
		c.Broker.Address = "tcp://127.0.0.1:5555"
	}
	if c.Broker.Identity == "" {
		c.Broker.Identity = "rpc-client"
	}
	if c.Bus.DefaultTimeout == "" {
		c.Bus.DefaultTimeout = "30s"
	}
	if c.Bus.DefaultPrefetch == 0 {
		c.Bus.DefaultPrefetch = 16
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

func (c *BusConfig) validate() error {
	if _, err := time.ParseDuration(c.Bus.DefaultTimeout); err != nil {
		return fmt.Errorf("invalid bus default_timeout: %w", err)
	}
	if c.Bus.DefaultPrefetch <= 0 {
		return fmt.Errorf("bus default_prefetch must be greater than 0")
	}
	if c.Broker.Address == "" {
		return fmt.Errorf("broker address is required")
	}

	validLevels := []string{"debug", "info", "warn", "error", "fatal", "panic"}
	levelValid := false
	for _, level := range validLevels {
		if c.Logging.Level == level {
			levelValid = true
			break
		}
	}
	if !levelValid {
		return fmt.Errorf("invalid logging level: %s (must be one of: %v)", c.Logging.Level, validLevels)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("logging format must be 'json' or 'text'")
	}

	return nil
}

// DefaultTimeout returns the configured default timeout as a time.Duration.
func (c *BusConfig) DefaultTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Bus.DefaultTimeout)
	return d
}
