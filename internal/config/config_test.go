package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultStorageRoot, cfg.Storage.Root)
	assert.Equal(t, DefaultTranscriptsPath, cfg.Storage.TranscriptsPath)
	assert.Equal(t, DefaultChunkTokens, cfg.Chunking.ChunkTokens)
	assert.Equal(t, DefaultOverlapTokens, cfg.Chunking.OverlapTokens)
	assert.Equal(t, DefaultTopK, cfg.Retrieval.TopK)
	assert.Equal(t, DefaultOverfetch, cfg.Retrieval.Overfetch)
	assert.Equal(t, DefaultEmbedderModel, cfg.Embedder.Model)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.JSON)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lanekb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: "127.0.0.1:4000"
storage:
  root: /var/lib/lanekb
chunking:
  chunk_tokens: 500
  overlap_tokens: 50
retrieval:
  top_k: 10
`), 0o640))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:4000", cfg.Server.Addr)
	assert.Equal(t, "/var/lib/lanekb", cfg.Storage.Root)
	assert.Equal(t, 500, cfg.Chunking.ChunkTokens)
	assert.Equal(t, 50, cfg.Chunking.OverlapTokens)
	assert.Equal(t, 10, cfg.Retrieval.TopK)
	assert.Equal(t, DefaultOverfetch, cfg.Retrieval.Overfetch, "unset keys keep defaults")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("LANEKB_RETRIEVAL_TOP_K", "12")
	t.Setenv("LANEKB_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Retrieval.TopK)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"empty storage root", func(c *Config) { c.Storage.Root = "  " }, ErrInvalidStorageRoot},
		{"zero chunk tokens", func(c *Config) { c.Chunking.ChunkTokens = 0 }, ErrInvalidChunking},
		{"oversized chunk tokens", func(c *Config) { c.Chunking.ChunkTokens = MaxChunkTokens + 1 }, ErrInvalidChunking},
		{"overlap at chunk size", func(c *Config) { c.Chunking.OverlapTokens = c.Chunking.ChunkTokens }, ErrInvalidChunking},
		{"negative overlap", func(c *Config) { c.Chunking.OverlapTokens = -1 }, ErrInvalidChunking},
		{"zero top_k", func(c *Config) { c.Retrieval.TopK = 0 }, ErrInvalidRetrieval},
		{"excessive top_k", func(c *Config) { c.Retrieval.TopK = MaxTopK + 1 }, ErrInvalidRetrieval},
		{"zero overfetch", func(c *Config) { c.Retrieval.Overfetch = 0 }, ErrInvalidRetrieval},
		{"empty embedder model", func(c *Config) { c.Embedder.Model = "" }, ErrInvalidEmbedderModel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}
