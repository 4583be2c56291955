package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/codecorpus/internal/chunk"
	cerrors "github.com/Aman-CERP/codecorpus/internal/errors"
)

// ProjectConfigName is the per-tree config file looked up by Load.
const ProjectConfigName = ".codecorpus.yaml"

// Config is the complete codecorpus configuration. It is passed explicitly
// through the pipeline; nothing reads process-wide settings after Load.
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	Preset      string            `yaml:"preset,omitempty" json:"preset,omitempty"`
	Paths       PathsConfig       `yaml:"paths" json:"paths"`
	Chunking    ChunkingConfig    `yaml:"chunking" json:"chunking"`
	Embeddings  EmbeddingsConfig  `yaml:"embeddings" json:"embeddings"`
	Index       IndexConfig       `yaml:"index" json:"index"`
	Output      OutputConfig      `yaml:"output" json:"output"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
	Performance PerformanceConfig `yaml:"performance" json:"performance"`
}

// PathsConfig selects the source files.
type PathsConfig struct {
	RootDir          string   `yaml:"root_dir" json:"root_dir"`
	Extensions       []string `yaml:"extensions" json:"extensions"`
	Exclude          []string `yaml:"exclude" json:"exclude"`
	RespectGitignore bool     `yaml:"respect_gitignore" json:"respect_gitignore"`
	// MaxFileSize in bytes, 0 means unlimited.
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size"`
}

// ChunkingConfig is the chunk policy.
type ChunkingConfig struct {
	Unit            string `yaml:"unit" json:"unit"`
	ChunkSize       int    `yaml:"chunk_size" json:"chunk_size"`
	Overlap         int    `yaml:"overlap" json:"overlap"`
	AnnotateSymbols bool   `yaml:"annotate_symbols" json:"annotate_symbols"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is static, ollama, openai or auto (derived from Model).
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	// Timeout bounds one batch call, e.g. "2m". Empty disables it.
	Timeout    string `yaml:"timeout" json:"timeout"`
	MaxRetries int    `yaml:"max_retries" json:"max_retries"`
	CacheSize  int    `yaml:"cache_size" json:"cache_size"`

	OllamaHost    string `yaml:"ollama_host" json:"ollama_host"`
	OpenAIBaseURL string `yaml:"openai_base_url" json:"openai_base_url"`
	OpenAIAPIKey  string `yaml:"-" json:"-"`
}

// IndexConfig selects the nearest-neighbor structure.
type IndexConfig struct {
	Kind     string `yaml:"kind" json:"kind"`     // flat or hnsw
	Metric   string `yaml:"metric" json:"metric"` // l2 or cosine
	M        int    `yaml:"m" json:"m"`
	EfSearch int    `yaml:"ef_search" json:"ef_search"`
}

// OutputConfig names the two artifacts.
type OutputConfig struct {
	IndexPath    string `yaml:"index_path" json:"index_path"`
	MetadataPath string `yaml:"metadata_path" json:"metadata_path"`
	// MetadataFormat is json, jsonl or sqlite. Empty derives it from the extension.
	MetadataFormat    string `yaml:"metadata_format" json:"metadata_format"`
	IncludeEmbeddings bool   `yaml:"include_embeddings" json:"include_embeddings"`
}

// LoggingConfig configures the run log.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	File      string `yaml:"file" json:"file"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// PerformanceConfig tunes parallelism.
type PerformanceConfig struct {
	ChunkWorkers int `yaml:"chunk_workers" json:"chunk_workers"`
}

// DefaultExtensions are the C++ source extensions collected by default.
var DefaultExtensions = []string{".cpp", ".h", ".hpp", ".cc"}

var defaultExcludePatterns = []string{
	"**/.git/**",
	"**/build/**",
	"**/cmake-build-*/**",
}

// NewConfig returns defaults equal to the stockfish-lines preset.
func NewConfig() *Config {
	cfg := &Config{
		Version: 1,
		Paths: PathsConfig{
			RootDir:          ".",
			Extensions:       append([]string(nil), DefaultExtensions...),
			Exclude:          append([]string(nil), defaultExcludePatterns...),
			RespectGitignore: true,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "auto",
			Model:      "static",
			BatchSize:  32,
			Timeout:    "2m",
			MaxRetries: 3,
			CacheSize:  1024,
		},
		Index: IndexConfig{
			Kind:     "flat",
			Metric:   "l2",
			M:        16,
			EfSearch: 64,
		},
		Output: OutputConfig{
			IndexPath:         "corpus.index",
			MetadataPath:      "corpus_docs.json",
			IncludeEmbeddings: true,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
		Performance: PerformanceConfig{
			ChunkWorkers: runtime.NumCPU(),
		},
	}
	_ = cfg.ApplyPreset(DefaultPreset)
	return cfg
}

// Load builds the configuration for dir in order of increasing precedence:
//  1. Defaults
//  2. Preset named by the project config
//  3. Project config (.codecorpus.yaml in dir)
//  4. Environment (CODECORPUS_*, OLLAMA_HOST, OPENAI_*), after loading dir/.env
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ProjectConfigName), true)
}

// LoadFile is Load with an explicit config file. When optional is false a
// missing file is an error.
func LoadFile(path string, optional bool) (*Config, error) {
	cfg := NewConfig()

	if err := LoadDotEnv(filepath.Dir(path)); err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err == nil {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	} else if !optional {
		return nil, cerrors.New(cerrors.ErrCodeConfigNotFound,
			fmt.Sprintf("config file not found: %s", path), err)
	}

	if err := cfg.ApplyEnv(nil); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadYAML overlays the file on c. A preset named in the file is applied
// first so the file's explicit chunking values still win.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return cerrors.New(cerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("failed to read config file %s", path), err)
	}

	var head struct {
		Preset string `yaml:"preset"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return cerrors.New(cerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("failed to parse config file %s", path), err)
	}
	if head.Preset != "" {
		if err := c.ApplyPreset(head.Preset); err != nil {
			return err
		}
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return cerrors.New(cerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("failed to parse config file %s", path), err)
	}
	return nil
}

// ChunkPolicy converts the chunking section into a chunk.Policy.
func (c *Config) ChunkPolicy() (chunk.Policy, error) {
	unit, err := chunk.ParseUnit(c.Chunking.Unit)
	if err != nil {
		return chunk.Policy{}, err
	}
	return chunk.Policy{Unit: unit, Size: c.Chunking.ChunkSize, Overlap: c.Chunking.Overlap}, nil
}

// EmbedTimeout parses embeddings.timeout. Zero means no timeout.
func (c *Config) EmbedTimeout() time.Duration {
	if c.Embeddings.Timeout == "" || c.Embeddings.Timeout == "0" {
		return 0
	}
	d, err := time.ParseDuration(c.Embeddings.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// Validate checks everything that can be checked without touching the
// filesystem. All failures are configuration errors.
func (c *Config) Validate() error {
	policy, err := c.ChunkPolicy()
	if err != nil {
		return err
	}
	if err := policy.Validate(); err != nil {
		return err
	}

	if len(c.Paths.Extensions) == 0 {
		return cerrors.ConfigError("paths.extensions must list at least one extension", nil)
	}
	for _, ext := range c.Paths.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return cerrors.ConfigError(fmt.Sprintf("extension %q must start with a dot", ext), nil)
		}
	}

	switch strings.ToLower(c.Embeddings.Provider) {
	case "", "auto", "static", "ollama", "openai":
	default:
		return cerrors.New(cerrors.ErrCodeUnknownProvider,
			fmt.Sprintf("embeddings.provider must be 'auto', 'static', 'ollama' or 'openai', got %s", c.Embeddings.Provider), nil)
	}
	if c.Embeddings.Model == "" {
		return cerrors.ConfigError("embeddings.model must be set", nil)
	}
	if c.Embeddings.BatchSize <= 0 {
		return cerrors.ConfigError(fmt.Sprintf("embeddings.batch_size must be positive, got %d", c.Embeddings.BatchSize), nil)
	}
	if c.Embeddings.Timeout != "" && c.Embeddings.Timeout != "0" {
		if _, err := time.ParseDuration(c.Embeddings.Timeout); err != nil {
			return cerrors.ConfigError(fmt.Sprintf("embeddings.timeout %q is not a duration", c.Embeddings.Timeout), err)
		}
	}

	switch strings.ToLower(c.Index.Kind) {
	case "flat", "hnsw":
	default:
		return cerrors.New(cerrors.ErrCodeUnknownIndexKind,
			fmt.Sprintf("index.kind must be 'flat' or 'hnsw', got %s", c.Index.Kind), nil)
	}
	switch strings.ToLower(c.Index.Metric) {
	case "l2", "cosine":
	default:
		return cerrors.ConfigError(fmt.Sprintf("index.metric must be 'l2' or 'cosine', got %s", c.Index.Metric), nil)
	}

	if c.Output.IndexPath == "" || c.Output.MetadataPath == "" {
		return cerrors.New(cerrors.ErrCodeOutputPathInvalid, "output.index_path and output.metadata_path must be set", nil)
	}
	if filepath.Clean(c.Output.IndexPath) == filepath.Clean(c.Output.MetadataPath) {
		return cerrors.New(cerrors.ErrCodeOutputPathInvalid, "index and metadata outputs must be different files", nil)
	}
	switch strings.ToLower(c.Output.MetadataFormat) {
	case "", "json", "jsonl", "sqlite":
	default:
		return cerrors.New(cerrors.ErrCodeOutputPathInvalid,
			fmt.Sprintf("output.metadata_format must be 'json', 'jsonl' or 'sqlite', got %s", c.Output.MetadataFormat), nil)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return cerrors.ConfigError(fmt.Sprintf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level), nil)
	}

	return nil
}

// ValidateRoot checks that the root dir exists and is a directory.
func (c *Config) ValidateRoot() error {
	info, err := os.Stat(c.Paths.RootDir)
	if err != nil {
		return cerrors.New(cerrors.ErrCodeRootDir,
			fmt.Sprintf("root directory %s is not accessible", c.Paths.RootDir), err).
			WithDetail("root_dir", c.Paths.RootDir).
			WithSuggestion("pass an existing source directory")
	}
	if !info.IsDir() {
		return cerrors.New(cerrors.ErrCodeRootDir,
			fmt.Sprintf("root %s is not a directory", c.Paths.RootDir), nil).
			WithDetail("root_dir", c.Paths.RootDir)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
