package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	cerrors "github.com/Aman-CERP/codecorpus/internal/errors"
)

// EnvPrefix prefixes every codecorpus environment override.
const EnvPrefix = "CODECORPUS_"

// EnvOverrides are the CODECORPUS_* variables. Pointer fields stay nil
// when the variable is unset so an explicit zero still overrides.
type EnvOverrides struct {
	RootDir        string   `env:"ROOT_DIR"`
	Extensions     []string `env:"EXTENSIONS" envSeparator:","`
	Preset         string   `env:"PRESET"`
	Unit           string   `env:"UNIT"`
	ChunkSize      *int     `env:"CHUNK_SIZE"`
	Overlap        *int     `env:"OVERLAP"`
	Provider       string   `env:"EMBEDDINGS_PROVIDER"`
	Model          string   `env:"EMBEDDINGS_MODEL"`
	BatchSize      *int     `env:"EMBEDDINGS_BATCH_SIZE"`
	IndexKind      string   `env:"INDEX_KIND"`
	IndexPath      string   `env:"INDEX_PATH"`
	MetadataPath   string   `env:"METADATA_PATH"`
	MetadataFormat string   `env:"METADATA_FORMAT"`
	LogLevel       string   `env:"LOG_LEVEL"`
}

// ProviderEnv are the unprefixed variables the provider SDKs also honor.
type ProviderEnv struct {
	OllamaHost    string `env:"OLLAMA_HOST"`
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
}

// LoadDotEnv loads dir/.env into the process environment without
// overriding variables that are already set. A missing file is fine.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return cerrors.ConfigError(fmt.Sprintf("failed to load %s", path), err)
	}
	return nil
}

// ApplyEnv applies environment overrides. environ nil means os.Environ.
func (c *Config) ApplyEnv(environ map[string]string) error {
	var o EnvOverrides
	var p ProviderEnv
	opts := env.Options{Prefix: EnvPrefix, Environment: environ}
	if err := env.ParseWithOptions(&o, opts); err != nil {
		return cerrors.ConfigError("invalid CODECORPUS_* environment", err)
	}
	if err := env.ParseWithOptions(&p, env.Options{Environment: environ}); err != nil {
		return cerrors.ConfigError("invalid provider environment", err)
	}

	if o.Preset != "" {
		if err := c.ApplyPreset(o.Preset); err != nil {
			return err
		}
	}
	if o.RootDir != "" {
		c.Paths.RootDir = o.RootDir
	}
	if len(o.Extensions) > 0 {
		c.Paths.Extensions = o.Extensions
	}
	if o.Unit != "" {
		c.Chunking.Unit = o.Unit
	}
	if o.ChunkSize != nil {
		c.Chunking.ChunkSize = *o.ChunkSize
	}
	if o.Overlap != nil {
		c.Chunking.Overlap = *o.Overlap
	}
	if o.Provider != "" {
		c.Embeddings.Provider = o.Provider
	}
	if o.Model != "" {
		c.Embeddings.Model = o.Model
	}
	if o.BatchSize != nil {
		c.Embeddings.BatchSize = *o.BatchSize
	}
	if o.IndexKind != "" {
		c.Index.Kind = o.IndexKind
	}
	if o.IndexPath != "" {
		c.Output.IndexPath = o.IndexPath
	}
	if o.MetadataPath != "" {
		c.Output.MetadataPath = o.MetadataPath
	}
	if o.MetadataFormat != "" {
		c.Output.MetadataFormat = o.MetadataFormat
	}
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}

	if p.OllamaHost != "" && c.Embeddings.OllamaHost == "" {
		c.Embeddings.OllamaHost = p.OllamaHost
	}
	if p.OpenAIBaseURL != "" && c.Embeddings.OpenAIBaseURL == "" {
		c.Embeddings.OpenAIBaseURL = p.OpenAIBaseURL
	}
	if p.OpenAIAPIKey != "" {
		c.Embeddings.OpenAIAPIKey = p.OpenAIAPIKey
	}
	return nil
}
