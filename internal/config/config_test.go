package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/codecorpus/internal/chunk"
	cerrors "github.com/Aman-CERP/codecorpus/internal/errors"
)

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	// Given: no configuration file exists
	cfg := NewConfig()

	// Then: defaults match the stockfish-lines preset
	require.NotNil(t, cfg)
	assert.Equal(t, DefaultPreset, cfg.Preset)
	assert.Equal(t, "lines", cfg.Chunking.Unit)
	assert.Equal(t, 40, cfg.Chunking.ChunkSize)
	assert.Equal(t, 10, cfg.Chunking.Overlap)
	assert.Equal(t, []string{".cpp", ".h", ".hpp", ".cc"}, cfg.Paths.Extensions)
	assert.Equal(t, "flat", cfg.Index.Kind)
	assert.Equal(t, "l2", cfg.Index.Metric)
	assert.Equal(t, 32, cfg.Embeddings.BatchSize)
	assert.True(t, cfg.Output.IncludeEmbeddings)
	assert.Equal(t, 2*time.Minute, cfg.EmbedTimeout())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ProjectFileOverridesDefaults(t *testing.T) {
	// Given: a project config with a preset and an explicit overlap
	dir := t.TempDir()
	yaml := `
preset: chars-1000
chunking:
  overlap: 100
paths:
  root_dir: src
  extensions: [".cpp"]
output:
  include_embeddings: false
  metadata_path: docs.jsonl
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigName), []byte(yaml), 0o644))

	// When: loading
	cfg, err := Load(dir)
	require.NoError(t, err)

	// Then: preset applies first, explicit values win
	assert.Equal(t, "chars", cfg.Chunking.Unit)
	assert.Equal(t, 1000, cfg.Chunking.ChunkSize)
	assert.Equal(t, 100, cfg.Chunking.Overlap)
	assert.Equal(t, "src", cfg.Paths.RootDir)
	assert.Equal(t, []string{".cpp"}, cfg.Paths.Extensions)
	assert.False(t, cfg.Output.IncludeEmbeddings)
	assert.Equal(t, "docs.jsonl", cfg.Output.MetadataPath)
	assert.Equal(t, "corpus.index", cfg.Output.IndexPath)
}

func TestLoad_MissingProjectFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Chunking.ChunkSize)
}

func TestLoadFile_RequiredFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"), false)

	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeConfigNotFound, cerrors.GetCode(err))
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigName), []byte("chunking: [\n"), 0o644))

	_, err := Load(dir)

	require.Error(t, err)
	assert.Equal(t, cerrors.CategoryConfig, cerrors.GetCategory(err))
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	// Given: a file value and an env override, including an explicit zero
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigName), []byte("chunking:\n  chunk_size: 30\n"), 0o644))
	t.Setenv("CODECORPUS_CHUNK_SIZE", "12")
	t.Setenv("CODECORPUS_OVERLAP", "0")
	t.Setenv("CODECORPUS_EXTENSIONS", ".cpp,.cc")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Chunking.ChunkSize)
	assert.Equal(t, 0, cfg.Chunking.Overlap)
	assert.Equal(t, []string{".cpp", ".cc"}, cfg.Paths.Extensions)
}

func TestLoad_DotEnvFile(t *testing.T) {
	// Given: a .env next to the config naming the model
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CODECORPUS_EMBEDDINGS_MODEL=nomic-embed-text\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("CODECORPUS_EMBEDDINGS_MODEL") })

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "nomic-embed-text", cfg.Embeddings.Model)
}

func TestApplyEnv_ExplicitEnvironment(t *testing.T) {
	cfg := NewConfig()

	err := cfg.ApplyEnv(map[string]string{
		"CODECORPUS_PRESET":     "chars-small",
		"CODECORPUS_INDEX_KIND": "hnsw",
		"OLLAMA_HOST":           "http://gpu:11434",
		"OPENAI_API_KEY":        "sk-test",
	})
	require.NoError(t, err)

	assert.Equal(t, "chars", cfg.Chunking.Unit)
	assert.Equal(t, 512, cfg.Chunking.ChunkSize)
	assert.Equal(t, "hnsw", cfg.Index.Kind)
	assert.Equal(t, "http://gpu:11434", cfg.Embeddings.OllamaHost)
	assert.Equal(t, "sk-test", cfg.Embeddings.OpenAIAPIKey)
}

func TestApplyEnv_BadNumber(t *testing.T) {
	cfg := NewConfig()

	err := cfg.ApplyEnv(map[string]string{"CODECORPUS_CHUNK_SIZE": "forty"})

	require.Error(t, err)
	assert.Equal(t, cerrors.CategoryConfig, cerrors.GetCategory(err))
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		code   string
	}{
		{"overlap equals chunk size", func(c *Config) { c.Chunking.Overlap = c.Chunking.ChunkSize }, cerrors.ErrCodeChunkPolicy},
		{"zero chunk size", func(c *Config) { c.Chunking.ChunkSize = 0; c.Chunking.Overlap = 0 }, cerrors.ErrCodeChunkPolicy},
		{"unknown unit", func(c *Config) { c.Chunking.Unit = "tokens" }, cerrors.ErrCodeChunkPolicy},
		{"no extensions", func(c *Config) { c.Paths.Extensions = nil }, cerrors.ErrCodeConfigInvalid},
		{"extension without dot", func(c *Config) { c.Paths.Extensions = []string{"cpp"} }, cerrors.ErrCodeConfigInvalid},
		{"unknown provider", func(c *Config) { c.Embeddings.Provider = "mlx" }, cerrors.ErrCodeUnknownProvider},
		{"bad batch size", func(c *Config) { c.Embeddings.BatchSize = 0 }, cerrors.ErrCodeConfigInvalid},
		{"bad timeout", func(c *Config) { c.Embeddings.Timeout = "soon" }, cerrors.ErrCodeConfigInvalid},
		{"unknown index kind", func(c *Config) { c.Index.Kind = "ivf" }, cerrors.ErrCodeUnknownIndexKind},
		{"unknown metric", func(c *Config) { c.Index.Metric = "dot" }, cerrors.ErrCodeConfigInvalid},
		{"same outputs", func(c *Config) { c.Output.MetadataPath = c.Output.IndexPath }, cerrors.ErrCodeOutputPathInvalid},
		{"unknown metadata format", func(c *Config) { c.Output.MetadataFormat = "csv" }, cerrors.ErrCodeOutputPathInvalid},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, cerrors.ErrCodeConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.Equal(t, tt.code, cerrors.GetCode(err))
			assert.True(t, cerrors.IsFatal(err))
		})
	}
}

func TestValidateRoot(t *testing.T) {
	cfg := NewConfig()

	cfg.Paths.RootDir = t.TempDir()
	assert.NoError(t, cfg.ValidateRoot())

	cfg.Paths.RootDir = filepath.Join(t.TempDir(), "missing")
	assert.Equal(t, cerrors.ErrCodeRootDir, cerrors.GetCode(cfg.ValidateRoot()))

	file := filepath.Join(t.TempDir(), "a.cpp")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	cfg.Paths.RootDir = file
	assert.Equal(t, cerrors.ErrCodeRootDir, cerrors.GetCode(cfg.ValidateRoot()))
}

func TestChunkPolicy(t *testing.T) {
	cfg := NewConfig()

	policy, err := cfg.ChunkPolicy()

	require.NoError(t, err)
	assert.Equal(t, chunk.Policy{Unit: chunk.UnitLines, Size: 40, Overlap: 10}, policy)
}

func TestApplyPreset(t *testing.T) {
	cfg := NewConfig()

	require.NoError(t, cfg.ApplyPreset("lines-small"))
	assert.Equal(t, 20, cfg.Chunking.ChunkSize)
	assert.Equal(t, 5, cfg.Chunking.Overlap)

	err := cfg.ApplyPreset("huge")
	assert.Equal(t, cerrors.ErrCodeUnknownPreset, cerrors.GetCode(err))

	names := make([]string, 0)
	for _, p := range Presets() {
		names = append(names, p.Name)
		assert.NoError(t, chunk.Policy{Unit: chunk.Unit(p.Unit), Size: p.ChunkSize, Overlap: p.Overlap}.Validate())
	}
	assert.Equal(t, []string{"chars-1000", "chars-small", "lines-small", "stockfish-lines"}, names)
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	// Given: a customized config
	cfg := NewConfig()
	cfg.Chunking.ChunkSize = 64
	cfg.Embeddings.OpenAIAPIKey = "secret"
	path := filepath.Join(t.TempDir(), ProjectConfigName)

	// When: writing and loading it back
	require.NoError(t, cfg.WriteYAML(path))
	loaded, err := LoadFile(path, false)
	require.NoError(t, err)

	// Then: values survive and the key is never written
	assert.Equal(t, 64, loaded.Chunking.ChunkSize)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
}

func TestBackupFile_KeepsNewest(t *testing.T) {
	path := filepath.Join(t.TempDir(), ProjectConfigName)

	got, err := BackupFile(path)
	require.NoError(t, err)
	assert.Equal(t, "", got)

	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o644))
	for i := 0; i < MaxBackups+2; i++ {
		_, err := BackupFile(path)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	backups, err := ListBackups(path)
	require.NoError(t, err)
	assert.Len(t, backups, MaxBackups)
}
