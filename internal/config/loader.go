package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. CHASHRING_ANALYZER_KEY_COUNT
const EnvPrefix = "CHASHRING"

// Load loads configuration from file and environment variables.
// An empty configPath searches ./config.yaml and /etc/chashring/config.yaml
// and falls back to defaults when neither exists.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/chashring/")
	}

	// Environment variables take precedence over the file
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers DefaultConfig values with v so that every key is
// visible to AutomaticEnv
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	// Hash ring defaults
	v.SetDefault("hash_ring.hash_algorithm", d.HashRing.HashAlgorithm)
	v.SetDefault("hash_ring.default_replicas", d.HashRing.DefaultReplicas)
	v.SetDefault("hash_ring.machines", d.HashRing.Machines)
	v.SetDefault("hash_ring.seed", d.HashRing.Seed)

	// Analyzer defaults
	v.SetDefault("analyzer.key_count", d.Analyzer.KeyCount)
	v.SetDefault("analyzer.key_seed", d.Analyzer.KeySeed)
	v.SetDefault("analyzer.workers", d.Analyzer.Workers)
	v.SetDefault("analyzer.batch_size", d.Analyzer.BatchSize)

	// Topology defaults
	v.SetDefault("topology.file", d.Topology.File)

	// Metrics defaults
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.port", d.Metrics.Port)
	v.SetDefault("metrics.path", d.Metrics.Path)

	// Logging defaults
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// NodeSpec describes one physical node in a topology file
type NodeSpec struct {
	Desc     string `yaml:"desc"`
	Address  string `yaml:"address"`
	Replicas int    `yaml:"replicas"`
}

// Topology is the node list read from a topology file
type Topology struct {
	Nodes []NodeSpec `yaml:"nodes"`
}

// LoadTopology reads a YAML node list. Nodes without a replica count get
// defaultReplicas; nodes without a description are named after their address.
func LoadTopology(filePath string, defaultReplicas int) (*Topology, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read topology file: %w", err)
	}

	var topo Topology
	if err := yaml.Unmarshal(data, &topo); err != nil {
		return nil, fmt.Errorf("failed to parse topology file: %w", err)
	}

	seen := make(map[string]bool, len(topo.Nodes))
	for i := range topo.Nodes {
		n := &topo.Nodes[i]
		if n.Address == "" {
			return nil, fmt.Errorf("topology node %d: address is required", i)
		}
		if seen[n.Address] {
			return nil, fmt.Errorf("topology node %d: duplicate address %s", i, n.Address)
		}
		seen[n.Address] = true

		if n.Replicas < 0 {
			return nil, fmt.Errorf("topology node %s: replicas must not be negative", n.Address)
		}
		if n.Replicas == 0 {
			n.Replicas = defaultReplicas
		}
		if n.Desc == "" {
			n.Desc = n.Address
		}
	}

	if len(topo.Nodes) == 0 {
		return nil, fmt.Errorf("topology file %s lists no nodes", filePath)
	}

	return &topo, nil
}
