package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the perspective service.
type Config struct {
	Store       StoreConfig       `yaml:"store"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	LLM         LLMConfig         `yaml:"llm"`
	Perspective PerspectiveConfig `yaml:"perspective"`
	Labeler     LabelerConfig     `yaml:"labeler"`
	Profile     ProfileConfig     `yaml:"profile"`
	Journal     JournalConfig     `yaml:"journal"`
	Qdrant      QdrantConfig      `yaml:"qdrant"`
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// StoreConfig holds vector store file locations. Relative names resolve under DataDir.
type StoreConfig struct {
	DataDir      string `yaml:"data_dir"`
	IndexFile    string `yaml:"index_file"`
	MetadataFile string `yaml:"metadata_file"`
	KeywordDir   string `yaml:"keyword_dir"`
	LabelCache   string `yaml:"label_cache"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider     string `yaml:"provider"` // "openai", "deepseek", "jina", "ollama", "mock"
	Model        string `yaml:"model"`
	APIKeyEnv    string `yaml:"api_key_env"`
	BaseURL      string `yaml:"base_url"`
	Dimension    int    `yaml:"dimension"`
	BatchSize    int    `yaml:"batch_size"`
	TimeoutSecs  int    `yaml:"timeout_secs"`
	CacheSize    int    `yaml:"cache_size"` // 0 disables the query embedding cache
	CacheTTLSecs int    `yaml:"cache_ttl_secs"`
}

// LLMConfig holds chat model configuration.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // "openai", "deepseek", "local"
	Model       string  `yaml:"model"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

// PerspectiveConfig holds answer defaults.
type PerspectiveConfig struct {
	TopK            int    `yaml:"top_k"`
	MaxContextChars int    `yaml:"max_context_chars"`
	Persona         string `yaml:"persona"`
}

// LabelerConfig holds labeling configuration.
type LabelerConfig struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	BatchSize   int     `yaml:"batch_size"`
}

// ProfileConfig selects the profile state backend.
type ProfileConfig struct {
	Backend      string `yaml:"backend"` // "file" or "redis"
	RedisAddr    string `yaml:"redis_addr"`
	RedisTTLSecs int    `yaml:"redis_ttl_secs"`
}

// JournalConfig holds the answer journal configuration.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// QdrantConfig holds the optional remote mirror. An empty URL disables it.
type QdrantConfig struct {
	URL        string `yaml:"url"`
	Collection string `yaml:"collection"`
	APIKeyEnv  string `yaml:"api_key_env"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ValidationError reports an invalid configuration field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			DataDir:      "data",
			IndexFile:    "embeddings.index",
			MetadataFile: "embeddings_metadata.json",
			KeywordDir:   "embeddings.bleve",
			LabelCache:   "labels.db",
		},
		Embedding: EmbeddingConfig{
			Provider:     "openai",
			Model:        "text-embedding-3-small",
			APIKeyEnv:    "OPENAI_API_KEY",
			Dimension:    1536,
			BatchSize:    100,
			TimeoutSecs:  60,
			CacheSize:    0,
			CacheTTLSecs: 300,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			Temperature: 0.7,
			MaxTokens:   1000,
			TimeoutSecs: 60,
		},
		Perspective: PerspectiveConfig{
			TopK:            5,
			MaxContextChars: 2000,
		},
		Labeler: LabelerConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.3,
			BatchSize:   10,
		},
		Profile: ProfileConfig{
			Backend:      "file",
			RedisAddr:    "localhost:6379",
			RedisTTLSecs: 0,
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    "perspective.db",
		},
		Qdrant: QdrantConfig{
			Collection: "perspective",
			APIKeyEnv:  "QDRANT_API_KEY",
		},
		Server: ServerConfig{
			Addr:           ":8000",
			AllowedOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
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
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for perspective.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "perspective.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".perspective", "config.yaml")
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

// Validate checks values that would otherwise fail deep inside a command.
func (c *Config) Validate() error {
	if c.Embedding.Dimension <= 0 {
		return &ValidationError{Field: "embedding.dimension", Reason: "must be positive"}
	}
	if c.Embedding.Model == "" {
		return &ValidationError{Field: "embedding.model", Reason: "is required"}
	}
	if c.Perspective.TopK <= 0 {
		return &ValidationError{Field: "perspective.top_k", Reason: "must be positive"}
	}
	if c.Perspective.MaxContextChars <= 0 {
		return &ValidationError{Field: "perspective.max_context_chars", Reason: "must be positive"}
	}
	switch c.Profile.Backend {
	case "file", "redis":
	default:
		return &ValidationError{Field: "profile.backend", Reason: fmt.Sprintf("unknown backend %q", c.Profile.Backend)}
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return &ValidationError{Field: "logging.level", Reason: fmt.Sprintf("unknown level %q", c.Logging.Level)}
	}
	return nil
}

// DataPath resolves name against the data directory unless it is absolute.
func (c *Config) DataPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Store.DataDir, name)
}

// IndexPath returns the path to the vector index file.
func (c *Config) IndexPath() string {
	return c.DataPath(c.Store.IndexFile)
}

// MetadataPath returns the path to the metadata JSON file.
func (c *Config) MetadataPath() string {
	return c.DataPath(c.Store.MetadataFile)
}

// KeywordPath returns the path to the keyword index directory.
func (c *Config) KeywordPath() string {
	return c.DataPath(c.Store.KeywordDir)
}

// LabelCachePath returns the path to the label cache database.
func (c *Config) LabelCachePath() string {
	return c.DataPath(c.Store.LabelCache)
}

// JournalPath returns the path to the journal database.
func (c *Config) JournalPath() string {
	return c.DataPath(c.Journal.Path)
}

// EnsureDataDir ensures the data directory exists.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.Store.DataDir, 0755)
}
