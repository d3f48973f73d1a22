package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration bundle.
type Config struct {
	Port          int      `yaml:"port"`
	Version       string   `yaml:"version"`
	LogLevel      string   `yaml:"log_level"`
	CORSAllowlist []string `yaml:"cors_allowlist"`
	StoryVariants []string `yaml:"story_variants"`

	Neo4j Neo4jConfig `yaml:"neo4j"`
	Redis RedisConfig `yaml:"redis"`
	Auth  AuthConfig  `yaml:"auth"`
}

// Neo4jConfig controls the graph store connection.
type Neo4jConfig struct {
	URI      string        `yaml:"uri"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Database string        `yaml:"database"`
	Timeout  time.Duration `yaml:"timeout"`
}

// RedisConfig controls the optional recents cache.
type RedisConfig struct {
	Enabled bool          `yaml:"enabled"`
	Addr    string        `yaml:"addr"`
	TTL     time.Duration `yaml:"ttl"`
}

// AuthConfig controls the optional bearer-token check.
type AuthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Secret  string `yaml:"secret"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Port:          8080,
		Version:       "1.0.0",
		LogLevel:      "info",
		StoryVariants: []string{"module", "container"},
		Neo4j: Neo4jConfig{
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
			Database: "neo4j",
			Timeout:  15 * time.Second,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			TTL:  30 * time.Second,
		},
	}
}

// Load reads the YAML config file when path is non-empty and applies
// environment overrides on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		cfg.Neo4j.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		cfg.Neo4j.Username = user
	}
	if password := os.Getenv("NEO4J_PASSWORD"); password != "" {
		cfg.Neo4j.Password = password
	}
	if addr := os.Getenv("REDIS_URI"); addr != "" {
		cfg.Redis.Addr = addr
	}

	if len(cfg.StoryVariants) == 0 {
		cfg.StoryVariants = []string{"module", "container"}
	}
	if cfg.Neo4j.Timeout <= 0 {
		cfg.Neo4j.Timeout = 15 * time.Second
	}
	return cfg, nil
}
