// Package config holds the kernel configuration, loaded from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/wnxd/hnx"
	"gopkg.in/yaml.v3"
)

// Config holds all kernel configuration.
type Config struct {
	ABI       ABIConfig                    `yaml:"abi"`
	Handles   HandlesConfig                `yaml:"handles"`
	Channel   ChannelConfig                `yaml:"channel"`
	VMO       VMOConfig                    `yaml:"vmo"`
	Services  []string                     `yaml:"services"`
	Libraries map[string]map[string]uint64 `yaml:"libraries"`
	Logging   LoggingConfig                `yaml:"logging"`
}

// ABIConfig pins the version the kernel reports to attaching clients.
type ABIConfig struct {
	Version string `yaml:"version"`
}

// HandlesConfig bounds every client's handle table.
type HandlesConfig struct {
	Max int `yaml:"max"`
}

// ChannelConfig bounds channel, endpoint and socket message queues.
type ChannelConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	MaxQueued      int `yaml:"max_queued"`
}

// VMOConfig bounds virtual memory objects.
type VMOConfig struct {
	MaxSize uint64 `yaml:"max_size"`
	// CheckHostMemory refuses VMOs larger than the memory the host has available.
	CheckHostMemory bool `yaml:"check_host_memory"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		ABI: ABIConfig{
			Version: hnx.KernelVersion.String(),
		},
		Handles: HandlesConfig{
			Max: 1024,
		},
		Channel: ChannelConfig{
			MaxMessageSize: 64 << 10,
			MaxQueued:      256,
		},
		VMO: VMOConfig{
			MaxSize: 1 << 30,
		},
		Services: []string{"init", "vfs", "procmgr", "loader"},
		Libraries: map[string]map[string]uint64{
			"libc.so": {
				"malloc": 0x7f00_0000_1000,
				"free":   0x7f00_0000_1040,
				"printf": 0x7f00_0000_2000,
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("HNX_ABI_VERSION"); v != "" {
		c.ABI.Version = v
	}
	if v := os.Getenv("HNX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration for values the kernel cannot run with.
func (c *Config) Validate() error {
	if _, err := c.KernelVersion(); err != nil {
		return err
	}
	if c.Handles.Max <= 0 {
		return fmt.Errorf("handles.max must be positive, got %d", c.Handles.Max)
	}
	if c.Channel.MaxMessageSize <= 0 || c.Channel.MaxQueued <= 0 {
		return fmt.Errorf("channel limits must be positive")
	}
	if c.VMO.MaxSize == 0 {
		return fmt.Errorf("vmo.max_size must be positive")
	}
	if _, err := c.Logging.ZapLevel(); err != nil {
		return err
	}
	return nil
}

// KernelVersion parses the configured ABI version.
func (c *Config) KernelVersion() (hnx.Version, error) {
	v, err := hnx.ParseVersion(c.ABI.Version)
	if err != nil {
		return hnx.Version{}, fmt.Errorf("abi.version: %w", err)
	}
	return v, nil
}
