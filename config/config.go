package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for notesim.
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Refresh   RefreshConfig   `yaml:"refresh"`
	Cache     CacheConfig     `yaml:"cache"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	Provider      string `yaml:"provider"` // "openai", "mock"
	BaseURL       string `yaml:"base_url"`
	Model         string `yaml:"model"`
	APIKey        string `yaml:"api_key"`
	APIKeyEnv     string `yaml:"api_key_env"` // Environment variable consulted when api_key is empty
	Dimensions    int    `yaml:"dimensions"`
	MaxInputChars int    `yaml:"max_input_chars"`
	TimeoutSecs   int    `yaml:"timeout_secs"` // 0 keeps the transport default
}

// SearchConfig holds similarity search configuration.
type SearchConfig struct {
	Limit int `yaml:"limit"`
}

// RefreshConfig holds bulk refresh configuration.
type RefreshConfig struct {
	BatchSize        int      `yaml:"batch_size"`
	AutoOnStartup    bool     `yaml:"auto_on_startup"`
	IgnoreSubstrings []string `yaml:"ignore_substrings"`
	Includes         []string `yaml:"includes"`
	Excludes         []string `yaml:"excludes"`
}

// CacheConfig selects where the embedding cache lives.
type CacheConfig struct {
	Backend string `yaml:"backend"` // "file", "bolt"
	File    string `yaml:"file"`
}

// ServerConfig holds the query server configuration.
type ServerConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider:      "openai",
			BaseURL:       "https://api.openai.com/v1",
			Model:         "text-embedding-3-small",
			APIKeyEnv:     "OPENAI_API_KEY",
			Dimensions:    256,
			MaxInputChars: 1024,
		},
		Search: SearchConfig{
			Limit: 12,
		},
		Refresh: RefreshConfig{
			BatchSize:        32,
			AutoOnStartup:    false,
			IgnoreSubstrings: []string{"nova_letter"},
			Includes:         []string{"**/*.md"},
		},
		Cache: CacheConfig{
			Backend: "file",
			File:    "embeddings.json",
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    7345,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a vault directory (looks for notesim.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "notesim.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".notesim", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects values the components cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Embedding.Dimensions <= 0:
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	case c.Embedding.MaxInputChars <= 0:
		return fmt.Errorf("embedding.max_input_chars must be positive, got %d", c.Embedding.MaxInputChars)
	case c.Search.Limit <= 0:
		return fmt.Errorf("search.limit must be positive, got %d", c.Search.Limit)
	case c.Refresh.BatchSize <= 0:
		return fmt.Errorf("refresh.batch_size must be positive, got %d", c.Refresh.BatchSize)
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}

	switch c.Cache.Backend {
	case "file", "bolt":
	default:
		return fmt.Errorf("unknown cache backend: %s", c.Cache.Backend)
	}

	switch c.Embedding.Provider {
	case "openai", "mock":
	default:
		return fmt.Errorf("unsupported embedding provider: %s", c.Embedding.Provider)
	}

	return nil
}

// APIKey returns the configured credential, falling back to the environment.
func (c *Config) APIKey() string {
	if key := strings.TrimSpace(c.Embedding.APIKey); key != "" {
		return key
	}
	if c.Embedding.APIKeyEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(c.Embedding.APIKeyEnv))
}

// StateDir returns the directory holding notesim state inside the vault.
func StateDir(vault string) string {
	return filepath.Join(vault, ".notesim")
}

// CacheFilePath returns the JSON cache file location for the vault.
func (c *Config) CacheFilePath(vault string) string {
	if filepath.IsAbs(c.Cache.File) {
		return c.Cache.File
	}
	return filepath.Join(vault, c.Cache.File)
}

// CacheDBPath returns the bolt database used by the bolt cache backend.
func CacheDBPath(vault string) string {
	return filepath.Join(StateDir(vault), "cache.db")
}

// EnsureStateDir ensures the .notesim directory exists.
func EnsureStateDir(vault string) error {
	return os.MkdirAll(StateDir(vault), 0755)
}
