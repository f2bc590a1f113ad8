package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jskelly/semdex/pkg/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "semdex.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
workspace: /src/project
store:
  backend: redis
  redis:
    addr: redis.internal:6380
    db: 2
embedding:
  provider: openai
  model: text-embedding-3-large
indexing:
  chunk_lines: 30
  overlap_lines: 5
  extensions: [".go", ".md"]
watch:
  enabled: true
  debounce_ms: 250
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/src/project", cfg.Workspace)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, "redis.internal:6380", cfg.Store.Redis.Addr)
	assert.Equal(t, 2, cfg.Store.Redis.DB)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-large", cfg.Embedding.Model)
	assert.Equal(t, 30, cfg.Indexing.ChunkLines)
	assert.Equal(t, 5, cfg.Indexing.OverlapLines)
	assert.Equal(t, []string{".go", ".md"}, cfg.Indexing.Extensions)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, 250, cfg.Watch.DebounceMs)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "workspace: /src/project\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "local", cfg.Embedding.Provider)
	assert.Equal(t, 10000, cfg.Embedding.CacheSize)
	assert.Equal(t, 400, cfg.Watch.DebounceMs)
	assert.False(t, cfg.Watch.Enabled)
}

func TestLoad_ResolvesRelativePaths(t *testing.T) {
	path := writeConfig(t, `
workspace: proj
store:
  sqlite:
    path: data/index.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	base := filepath.Dir(path)
	assert.Equal(t, filepath.Join(base, "proj"), cfg.Workspace)
	assert.Equal(t, filepath.Join(base, "data", "index.db"), cfg.Store.SQLite.Path)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, types.ErrConfig)
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeConfig(t, "workspace: [broken\n")
	_, err := Load(path)
	assert.ErrorIs(t, err, types.ErrConfig)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"missing workspace", func(c *Config) { c.Workspace = "" }, true},
		{"unknown backend", func(c *Config) { c.Store.Backend = "dynamo" }, true},
		{"memory backend", func(c *Config) { c.Store.Backend = BackendMemory }, false},
		{"negative chunk lines", func(c *Config) { c.Indexing.ChunkLines = -1 }, true},
		{"overlap not below size", func(c *Config) {
			c.Indexing.ChunkLines = 5
			c.Indexing.OverlapLines = 5
		}, true},
		{"negative debounce", func(c *Config) { c.Watch.DebounceMs = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default("/ws")
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, types.ErrConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
