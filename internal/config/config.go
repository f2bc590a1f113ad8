// Package config provides configuration loading and structs for the semdex
// server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jskelly/semdex/pkg/types"
)

// Store backend names.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config holds all configuration for the application.
type Config struct {
	Workspace string          `yaml:"workspace"`
	Debug     bool            `yaml:"debug"`
	Store     StoreConfig     `yaml:"store"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Indexing  IndexingConfig  `yaml:"indexing"`
	Watch     WatchConfig     `yaml:"watch"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Backend string       `yaml:"backend"`
	SQLite  SQLiteConfig `yaml:"sqlite"`
	Redis   RedisConfig  `yaml:"redis"`
}

// SQLiteConfig holds SQLite backend settings.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig holds Redis backend settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	CacheSize int    `yaml:"cache_size"`
	BatchSize int    `yaml:"batch_size"`
}

// IndexingConfig holds chunking and walk settings.
type IndexingConfig struct {
	ChunkLines   int      `yaml:"chunk_lines"`
	OverlapLines int      `yaml:"overlap_lines"`
	Extensions   []string `yaml:"extensions"`
	IgnoreDirs   []string `yaml:"ignore_dirs"`
	MaxFileSize  int64    `yaml:"max_file_size"`
	Workers      int      `yaml:"workers"`
}

// WatchConfig holds file watcher settings.
type WatchConfig struct {
	Enabled    bool `yaml:"enabled"`
	DebounceMs int  `yaml:"debounce_ms"`
}

// Default returns a configuration with every field at its default value for
// the given workspace.
func Default(workspace string) *Config {
	cfg := &Config{Workspace: workspace}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills unset fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = BackendSQLite
	}
	if cfg.Store.SQLite.Path == "" {
		cfg.Store.SQLite.Path = filepath.Join(".semdex", "index.db")
	}
	if cfg.Store.Redis.Addr == "" {
		cfg.Store.Redis.Addr = "localhost:6379"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "local"
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Watch.DebounceMs == 0 {
		cfg.Watch.DebounceMs = 400
	}
}

// Load reads and parses the config file at path, applies defaults, and
// validates the result. Relative storage paths are resolved against the
// config file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read config: %v", types.ErrConfig, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse config: %v", types.ErrConfig, err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Workspace = expandPath(cfg.Workspace, configDir)
	cfg.Store.SQLite.Path = expandPath(cfg.Store.SQLite.Path, configDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c.Workspace == "" {
		return fmt.Errorf("%w: workspace is required", types.ErrConfig)
	}

	switch c.Store.Backend {
	case BackendMemory, BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("%w: unknown store backend %q", types.ErrConfig, c.Store.Backend)
	}

	if c.Indexing.ChunkLines < 0 || c.Indexing.OverlapLines < 0 {
		return fmt.Errorf("%w: chunk sizes must not be negative", types.ErrConfig)
	}
	if c.Indexing.ChunkLines > 0 && c.Indexing.OverlapLines >= c.Indexing.ChunkLines {
		return fmt.Errorf("%w: overlap_lines must be smaller than chunk_lines", types.ErrConfig)
	}
	if c.Indexing.MaxFileSize < 0 {
		return fmt.Errorf("%w: max_file_size must not be negative", types.ErrConfig)
	}
	if c.Watch.DebounceMs < 0 {
		return fmt.Errorf("%w: debounce_ms must not be negative", types.ErrConfig)
	}
	return nil
}

// expandPath resolves ~ and makes relative paths absolute against baseDir.
func expandPath(path, baseDir string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
