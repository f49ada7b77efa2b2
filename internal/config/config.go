package config

import (
	"errors"
	"fmt"
	"strings"
)

// Config represents the ring tool configuration
type Config struct {
	HashRing HashRingConfig `mapstructure:"hash_ring"`
	Analyzer AnalyzerConfig `mapstructure:"analyzer"`
	Topology TopologyConfig `mapstructure:"topology"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// HashRingConfig represents consistent hashing configuration
type HashRingConfig struct {
	HashAlgorithm   string `mapstructure:"hash_algorithm"`
	DefaultReplicas int    `mapstructure:"default_replicas"`
	Machines        int    `mapstructure:"machines"`
	Seed            int64  `mapstructure:"seed"`
}

// AnalyzerConfig represents disruption check configuration
type AnalyzerConfig struct {
	KeyCount  int    `mapstructure:"key_count"`
	KeySeed   uint32 `mapstructure:"key_seed"`
	Workers   int    `mapstructure:"workers"`
	BatchSize int    `mapstructure:"batch_size"`
}

// TopologyConfig points at an optional node list
type TopologyConfig struct {
	File string `mapstructure:"file"`
}

// MetricsConfig represents Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch strings.ToLower(c.HashRing.HashAlgorithm) {
	case "md5", "xxhash":
	case "":
		c.HashRing.HashAlgorithm = "md5"
	default:
		return fmt.Errorf("hash_ring.hash_algorithm must be one of: md5, xxhash (got %q)", c.HashRing.HashAlgorithm)
	}
	if c.HashRing.DefaultReplicas <= 0 {
		return errors.New("hash_ring.default_replicas must be positive")
	}
	if c.Topology.File == "" && c.HashRing.Machines <= 0 {
		return errors.New("hash_ring.machines must be positive when no topology file is set")
	}
	if c.Analyzer.KeyCount <= 0 {
		return errors.New("analyzer.key_count must be positive")
	}
	if c.Analyzer.Workers < 0 {
		return errors.New("analyzer.workers must not be negative")
	}
	if c.Analyzer.BatchSize <= 0 {
		return errors.New("analyzer.batch_size must be positive")
	}
	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
		}
		if c.Metrics.Path == "" {
			c.Metrics.Path = "/metrics"
		}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	return nil
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	return &Config{
		HashRing: HashRingConfig{
			HashAlgorithm:   "md5",
			DefaultReplicas: 160,
			Machines:        100,
			Seed:            1,
		},
		Analyzer: AnalyzerConfig{
			KeyCount:  10000000,
			KeySeed:   0,
			Workers:   0,
			BatchSize: 4096,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
