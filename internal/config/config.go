// Package config provides application configuration with multi-source
// priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables with the LANEKB_ prefix (runtime override)
//  2. Config file (explicit path or ./lanekb.yaml)
//  3. Default values
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidStorageRoot indicates the document store root is empty.
	ErrInvalidStorageRoot = errors.New("invalid storage root")

	// ErrInvalidChunking indicates chunk size/overlap are out of range.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidRetrieval indicates retrieval parameters are out of range.
	ErrInvalidRetrieval = errors.New("invalid retrieval configuration")

	// ErrInvalidEmbedderModel indicates the embedder model name is empty.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")
)

// Defaults.
const (
	DefaultStorageRoot     = "data/kb"
	DefaultTranscriptsPath = "data/transcripts.db"
	DefaultChunkTokens     = 700
	DefaultOverlapTokens   = 80
	DefaultTopK            = 6
	DefaultOverfetch       = 4
	DefaultEmbedderModel   = "text-embedding-004"

	// Validation bounds.
	MaxChunkTokens = 8192
	MaxTopK        = 50
	MaxOverfetch   = 20
)

// Config is the application configuration.
type Config struct {
	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`

	Storage struct {
		Root            string `mapstructure:"root"`
		TranscriptsPath string `mapstructure:"transcripts_path"`
	} `mapstructure:"storage"`

	Chunking struct {
		ChunkTokens   int `mapstructure:"chunk_tokens"`
		OverlapTokens int `mapstructure:"overlap_tokens"`
	} `mapstructure:"chunking"`

	Retrieval struct {
		TopK      int `mapstructure:"top_k"`
		Overfetch int `mapstructure:"overfetch"`
	} `mapstructure:"retrieval"`

	Embedder struct {
		Model string `mapstructure:"model"`
	} `mapstructure:"embedder"`

	Log struct {
		Level string `mapstructure:"level"`
		JSON  bool   `mapstructure:"json"`
	} `mapstructure:"log"`
}

// Load reads configuration from defaults, an optional YAML file, and
// LANEKB_-prefixed environment variables, then validates it.
// path may be empty to use ./lanekb.yaml when present.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", "")
	v.SetDefault("storage.root", DefaultStorageRoot)
	v.SetDefault("storage.transcripts_path", DefaultTranscriptsPath)
	v.SetDefault("chunking.chunk_tokens", DefaultChunkTokens)
	v.SetDefault("chunking.overlap_tokens", DefaultOverlapTokens)
	v.SetDefault("retrieval.top_k", DefaultTopK)
	v.SetDefault("retrieval.overfetch", DefaultOverfetch)
	v.SetDefault("embedder.model", DefaultEmbedderModel)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetEnvPrefix("LANEKB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("lanekb")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
			// No config file is fine; defaults and env apply.
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks all configuration values against their bounds.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Storage.Root) == "" {
		return fmt.Errorf("%w: storage.root must not be empty", ErrInvalidStorageRoot)
	}
	if c.Chunking.ChunkTokens <= 0 || c.Chunking.ChunkTokens > MaxChunkTokens {
		return fmt.Errorf("%w: chunk_tokens must be in (0, %d], got %d",
			ErrInvalidChunking, MaxChunkTokens, c.Chunking.ChunkTokens)
	}
	if c.Chunking.OverlapTokens < 0 || c.Chunking.OverlapTokens >= c.Chunking.ChunkTokens {
		return fmt.Errorf("%w: overlap_tokens must be in [0, chunk_tokens), got %d",
			ErrInvalidChunking, c.Chunking.OverlapTokens)
	}
	if c.Retrieval.TopK <= 0 || c.Retrieval.TopK > MaxTopK {
		return fmt.Errorf("%w: top_k must be in (0, %d], got %d",
			ErrInvalidRetrieval, MaxTopK, c.Retrieval.TopK)
	}
	if c.Retrieval.Overfetch <= 0 || c.Retrieval.Overfetch > MaxOverfetch {
		return fmt.Errorf("%w: overfetch must be in (0, %d], got %d",
			ErrInvalidRetrieval, MaxOverfetch, c.Retrieval.Overfetch)
	}
	if strings.TrimSpace(c.Embedder.Model) == "" {
		return fmt.Errorf("%w: embedder.model must not be empty", ErrInvalidEmbedderModel)
	}
	return nil
}
