package config

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds application configuration
type Config struct {
	LogLevel     logrus.Level `yaml:"log_level"`
	MetricsAddr  string       `yaml:"metrics_addr"`
	OutputFormat string       `yaml:"output_format"`
}

// Supported values for Config.OutputFormat.
const (
	OutputText = "text"
	OutputJSON = "json"
)

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	return &Config{
		LogLevel:     logrus.InfoLevel,
		OutputFormat: OutputText,
	}
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.LogLevel)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
