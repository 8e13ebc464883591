package config

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// ZapLevel parses Level.
func (c *LoggingConfig) ZapLevel() (zapcore.Level, error) {
	if c.Level == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return lvl, fmt.Errorf("logging.level: %w", err)
	}
	return lvl, nil
}

// Build constructs the logger this configuration describes.
func (c *LoggingConfig) Build() (*zap.Logger, error) {
	lvl, err := c.ZapLevel()
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
