package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/codecorpus/internal/chunk"
	"github.com/Aman-CERP/codecorpus/internal/config"
	"github.com/Aman-CERP/codecorpus/internal/embed"
	cerrors "github.com/Aman-CERP/codecorpus/internal/errors"
	"github.com/Aman-CERP/codecorpus/internal/store"
	"github.com/Aman-CERP/codecorpus/internal/ui"
)

// MockRenderer implements ui.Renderer for testing.
type MockRenderer struct {
	StartCalled       bool
	StopCalled        bool
	CompleteCalled    bool
	ProgressEvents    []ui.ProgressEvent
	ErrorEvents       []ui.ErrorEvent
	CompletionStats   ui.CompletionStats
	StartError        error
	ShouldFailOnStart bool
}

func (m *MockRenderer) Start(ctx context.Context) error {
	m.StartCalled = true
	if m.ShouldFailOnStart {
		return m.StartError
	}
	return nil
}

func (m *MockRenderer) UpdateProgress(event ui.ProgressEvent) {
	m.ProgressEvents = append(m.ProgressEvents, event)
}

func (m *MockRenderer) AddError(event ui.ErrorEvent) {
	m.ErrorEvents = append(m.ErrorEvents, event)
}

func (m *MockRenderer) Complete(stats ui.CompletionStats) {
	m.CompleteCalled = true
	m.CompletionStats = stats
}

func (m *MockRenderer) Stop() error {
	m.StopCalled = true
	return nil
}

// failingEmbedder fails every batch.
type failingEmbedder struct {
	*embed.StaticEmbedder
	err error
}

func (f *failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, f.err
}

// shortEmbedder drops the last vector of every batch.
type shortEmbedder struct {
	*embed.StaticEmbedder
}

func (s *shortEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := s.StaticEmbedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	return vectors[:len(vectors)-1], nil
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func testConfig(t *testing.T, root string) *config.Config {
	t.Helper()
	out := t.TempDir()
	cfg := config.NewConfig()
	cfg.Paths.RootDir = root
	cfg.Paths.RespectGitignore = false
	cfg.Chunking.Unit = "lines"
	cfg.Chunking.ChunkSize = 4
	cfg.Chunking.Overlap = 1
	cfg.Embeddings.BatchSize = 3
	cfg.Output.IndexPath = filepath.Join(out, "corpus.index")
	cfg.Output.MetadataPath = filepath.Join(out, "corpus_docs.json")
	cfg.Performance.ChunkWorkers = 4
	return cfg
}

func newTestRunner(t *testing.T, cfg *config.Config, embedder embed.Embedder) (*Runner, *MockRenderer) {
	t.Helper()
	renderer := &MockRenderer{}
	r, err := NewRunner(RunnerDependencies{
		Renderer: renderer,
		Config:   cfg,
		Embedder: embedder,
		Now:      func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	})
	require.NoError(t, err)
	return r, renderer
}

func numberedLines(n int) string {
	var sb strings.Builder
	for i := 1; i <= n; i++ {
		sb.WriteString("int v")
		sb.WriteString(strings.Repeat("x", i))
		sb.WriteString(" = 0;\n")
	}
	return sb.String()
}

func assertNoArtifacts(t *testing.T, cfg *config.Config) {
	t.Helper()
	for _, p := range []string{cfg.Output.IndexPath, cfg.Output.MetadataPath} {
		assert.NoFileExists(t, p)
		assert.NoFileExists(t, p+store.TempSuffix)
	}
}

func TestNewRunner_RequiresDependencies(t *testing.T) {
	cfg := config.NewConfig()
	e := embed.NewStaticEmbedder()

	_, err := NewRunner(RunnerDependencies{Config: cfg, Embedder: e})
	assert.Error(t, err)

	_, err = NewRunner(RunnerDependencies{Renderer: &MockRenderer{}, Embedder: e})
	assert.Error(t, err)

	_, err = NewRunner(RunnerDependencies{Renderer: &MockRenderer{}, Config: cfg})
	assert.Error(t, err)
}

func TestRunner_Run_AlignsMetadataWithIndex(t *testing.T) {
	// Given: two C++ files and a text file that must be ignored
	root := writeTree(t, map[string]string{
		"a.cpp":        numberedLines(10),
		"notes.txt":    numberedLines(50),
		"include/b.hh": numberedLines(3),
		"include/c.h":  numberedLines(3),
	})
	cfg := testConfig(t, root)
	r, renderer := newTestRunner(t, cfg, embed.NewStaticEmbedder())

	// When: running the pipeline
	result, err := r.Run(context.Background())
	require.NoError(t, err)

	// Then: 4 chunks from a.cpp and 1 from c.h, nothing from .txt or .hh
	assert.Equal(t, 2, result.Files)
	assert.Equal(t, 5, result.Chunks)
	assert.Equal(t, embed.StaticDimensions, result.Dimensions)
	assert.NotEmpty(t, result.RunID)

	manifest, idx, err := store.OpenIndex(cfg.Output.IndexPath)
	require.NoError(t, err)
	records, err := store.ReadMetadata(context.Background(), cfg.Output.MetadataPath, "")
	require.NoError(t, err)

	require.Len(t, records, idx.Size())
	assert.Equal(t, result.RunID, manifest.RunID)
	assert.Equal(t, "lines", manifest.Unit)
	assert.Equal(t, 4, manifest.ChunkSize)
	assert.Equal(t, 1, manifest.Overlap)

	wantPaths := []string{"a.cpp", "a.cpp", "a.cpp", "a.cpp", "include/c.h"}
	for i, rec := range records {
		assert.Equal(t, i, rec.ID)
		assert.Equal(t, wantPaths[i], rec.Path)
		assert.Len(t, rec.Embedding, embed.StaticDimensions)
		assert.NotContains(t, rec.Path, ".txt")

		stored, ok := idx.Vector(i)
		require.True(t, ok)
		assert.InDeltaSlice(t, rec.Embedding, stored, 1e-6)
	}
	assert.Equal(t, 1, records[0].StartOffset)
	assert.Equal(t, 4, records[1].StartOffset)
	assert.Equal(t, 10, records[3].StartOffset)
	assert.Equal(t, 10, records[3].EndOffset)

	assert.True(t, renderer.StartCalled)
	assert.True(t, renderer.CompleteCalled)
	assert.True(t, renderer.StopCalled)
	assert.Equal(t, 5, renderer.CompletionStats.Chunks)
	assert.Equal(t, "static", renderer.CompletionStats.Embedder.Backend)
}

func TestRunner_Run_PositionsFollowCollectorOrder(t *testing.T) {
	// Given: files whose lexical order differs from creation order
	root := writeTree(t, map[string]string{
		"z.cpp":     numberedLines(2),
		"a.cpp":     numberedLines(2),
		"m/x.hpp":   numberedLines(2),
		"b.cc":      numberedLines(2),
		"m/a/y.cpp": numberedLines(2),
	})
	cfg := testConfig(t, root)
	r, _ := newTestRunner(t, cfg, embed.NewStaticEmbedder())

	// When: running with parallel chunking
	_, err := r.Run(context.Background())
	require.NoError(t, err)

	// Then: one chunk per file, in lexical walk order
	records, err := store.ReadMetadata(context.Background(), cfg.Output.MetadataPath, "")
	require.NoError(t, err)
	var paths []string
	for _, rec := range records {
		paths = append(paths, rec.Path)
	}
	assert.Equal(t, []string{"a.cpp", "b.cc", "m/a/y.cpp", "m/x.hpp", "z.cpp"}, paths)
}

func TestRunner_Run_EmptyFileContributesNothing(t *testing.T) {
	// Given: a tree with only an empty source file
	root := writeTree(t, map[string]string{"empty.cpp": ""})
	cfg := testConfig(t, root)
	r, _ := newTestRunner(t, cfg, embed.NewStaticEmbedder())

	// When: running
	result, err := r.Run(context.Background())
	require.NoError(t, err)

	// Then: both artifacts exist and are empty
	assert.Equal(t, 0, result.Chunks)
	_, idx, err := store.OpenIndex(cfg.Output.IndexPath)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Size())
	records, err := store.ReadMetadata(context.Background(), cfg.Output.MetadataPath, "")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRunner_Run_InvalidPolicyFailsBeforeReading(t *testing.T) {
	// Given: overlap equal to chunk size
	root := writeTree(t, map[string]string{"a.cpp": numberedLines(5)})
	cfg := testConfig(t, root)
	cfg.Chunking.Overlap = cfg.Chunking.ChunkSize
	r, renderer := newTestRunner(t, cfg, embed.NewStaticEmbedder())

	// When: running
	_, err := r.Run(context.Background())

	// Then: a configuration error and nothing touched
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeChunkPolicy, cerrors.GetCode(err))
	assert.False(t, renderer.StartCalled)
	assertNoArtifacts(t, cfg)
}

func TestRunner_Run_MissingRoot(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "nope"))
	r, _ := newTestRunner(t, cfg, embed.NewStaticEmbedder())

	_, err := r.Run(context.Background())

	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeRootDir, cerrors.GetCode(err))
	assertNoArtifacts(t, cfg)
}

func TestRunner_Run_EmbedderFailureLeavesNoArtifacts(t *testing.T) {
	// Given: an embedder that always fails
	root := writeTree(t, map[string]string{"a.cpp": numberedLines(8)})
	cfg := testConfig(t, root)
	r, renderer := newTestRunner(t, cfg, &failingEmbedder{
		StaticEmbedder: embed.NewStaticEmbedder(),
		err:            errors.New("connection refused"),
	})

	// When: running
	_, err := r.Run(context.Background())

	// Then: an embedding error, no index and no metadata
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeEmbeddingFailed, cerrors.GetCode(err))
	assertNoArtifacts(t, cfg)
	assert.True(t, renderer.StopCalled)
	assert.False(t, renderer.CompleteCalled)
	require.NotEmpty(t, renderer.ErrorEvents)
	assert.False(t, renderer.ErrorEvents[len(renderer.ErrorEvents)-1].IsWarn)
}

func TestRunner_Run_ShortBatchIsFatal(t *testing.T) {
	root := writeTree(t, map[string]string{"a.cpp": numberedLines(8)})
	cfg := testConfig(t, root)
	r, _ := newTestRunner(t, cfg, &shortEmbedder{StaticEmbedder: embed.NewStaticEmbedder()})

	_, err := r.Run(context.Background())

	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeEmbeddingMismatch, cerrors.GetCode(err))
	assertNoArtifacts(t, cfg)
}

func TestRunner_Run_FailureKeepsPreviousArtifacts(t *testing.T) {
	// Given: a successful first run
	root := writeTree(t, map[string]string{"a.cpp": numberedLines(8)})
	cfg := testConfig(t, root)
	r, _ := newTestRunner(t, cfg, embed.NewStaticEmbedder())
	first, err := r.Run(context.Background())
	require.NoError(t, err)

	// When: a second run fails while embedding
	r2, _ := newTestRunner(t, cfg, &failingEmbedder{
		StaticEmbedder: embed.NewStaticEmbedder(),
		err:            errors.New("boom"),
	})
	_, err = r2.Run(context.Background())
	require.Error(t, err)

	// Then: the first run's pair is untouched
	manifest, err := store.OpenManifest(cfg.Output.IndexPath)
	require.NoError(t, err)
	assert.Equal(t, first.RunID, manifest.RunID)
	records, err := store.ReadMetadata(context.Background(), cfg.Output.MetadataPath, "")
	require.NoError(t, err)
	assert.Len(t, records, first.Chunks)
}

func TestRunner_Run_CancelledContext(t *testing.T) {
	root := writeTree(t, map[string]string{"a.cpp": numberedLines(8)})
	cfg := testConfig(t, root)
	r, _ := newTestRunner(t, cfg, embed.NewStaticEmbedder())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx)

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, cerrors.ErrCodeInternal, cerrors.GetCode(err))
	assertNoArtifacts(t, cfg)
}

func TestRunner_Run_Deterministic(t *testing.T) {
	// Given: the same tree indexed twice with chars chunking
	root := writeTree(t, map[string]string{
		"a.cpp": "int main() {\n  return 0;\n}\n",
		"b.h":   "#pragma once\nstruct Board;\n",
	})
	cfg := testConfig(t, root)
	cfg.Chunking.Unit = "chars"
	cfg.Chunking.ChunkSize = 10
	cfg.Chunking.Overlap = 3

	read := func() []store.Record {
		r, _ := newTestRunner(t, cfg, embed.NewStaticEmbedder())
		_, err := r.Run(context.Background())
		require.NoError(t, err)
		records, err := store.ReadMetadata(context.Background(), cfg.Output.MetadataPath, "")
		require.NoError(t, err)
		return records
	}

	// When: comparing both runs
	first, second := read(), read()

	// Then: identical records
	assert.Equal(t, first, second)
	for _, rec := range first {
		assert.Equal(t, string(chunk.UnitChars), rec.Unit)
		assert.LessOrEqual(t, rec.StartOffset, rec.EndOffset)
	}
}

func TestRunner_Run_WithoutEmbeddingsAndSQLite(t *testing.T) {
	// Given: sqlite metadata without stored embeddings
	root := writeTree(t, map[string]string{"a.cpp": numberedLines(6)})
	cfg := testConfig(t, root)
	cfg.Output.MetadataPath = filepath.Join(filepath.Dir(cfg.Output.IndexPath), "corpus.db")
	cfg.Output.IncludeEmbeddings = false
	cfg.Index.Kind = "hnsw"
	cfg.Index.Metric = "cosine"
	r, _ := newTestRunner(t, cfg, embed.NewStaticEmbedder())

	// When: running
	result, err := r.Run(context.Background())
	require.NoError(t, err)

	// Then: the sqlite records line up and carry no vectors
	assert.Equal(t, store.FormatSQLite, result.Commit.Format)
	records, err := store.ReadMetadata(context.Background(), cfg.Output.MetadataPath, "")
	require.NoError(t, err)
	require.Len(t, records, result.Chunks)
	for _, rec := range records {
		assert.Empty(t, rec.Embedding)
	}
	manifest, err := store.OpenManifest(cfg.Output.IndexPath)
	require.NoError(t, err)
	assert.Equal(t, store.KindHNSW, manifest.IndexKind)
	assert.Equal(t, "static", manifest.Provider)

	stored, err := store.ReadSQLiteManifest(context.Background(), cfg.Output.MetadataPath)
	require.NoError(t, err)
	assert.Equal(t, manifest.Provider, stored.Provider)
	assert.Equal(t, result.Chunks, stored.Count)
	assert.Equal(t, store.KindHNSW, stored.IndexKind)
}

func TestRunner_Run_AnnotatesSymbols(t *testing.T) {
	// Given: symbol annotation enabled
	root := writeTree(t, map[string]string{
		"pos.cpp": "namespace Stockfish {\n\nint evaluate(int x) {\n  return x;\n}\n\n}\n",
		"empty.h": "",
	})
	cfg := testConfig(t, root)
	cfg.Chunking.ChunkSize = 40
	cfg.Chunking.Overlap = 10
	cfg.Chunking.AnnotateSymbols = true
	r, renderer := newTestRunner(t, cfg, embed.NewStaticEmbedder())

	// When: running
	_, err := r.Run(context.Background())
	require.NoError(t, err)

	// Then: records carry symbols and annotation ran as its own stage
	records, err := store.ReadMetadata(context.Background(), cfg.Output.MetadataPath, "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Contains(t, records[0].Symbols, "evaluate")

	stages := stagesSeen(renderer)
	require.Contains(t, stages, ui.StageAnnotating)
	assert.Less(t, indexOf(stages, ui.StageChunking), indexOf(stages, ui.StageAnnotating))
	assert.Less(t, indexOf(stages, ui.StageAnnotating), indexOf(stages, ui.StageEmbedding))
	last := lastEvent(renderer, ui.StageAnnotating)
	assert.Equal(t, 1, last.Total)
	assert.Equal(t, 1, last.Current)
}

func TestRunner_Run_NoAnnotatingStageWhenDisabled(t *testing.T) {
	// Given: symbol annotation disabled
	root := writeTree(t, map[string]string{"a.cpp": numberedLines(4)})
	cfg := testConfig(t, root)
	cfg.Chunking.AnnotateSymbols = false
	r, renderer := newTestRunner(t, cfg, embed.NewStaticEmbedder())

	// When: running
	_, err := r.Run(context.Background())
	require.NoError(t, err)

	// Then: the annotating stage is never reported
	assert.NotContains(t, stagesSeen(renderer), ui.StageAnnotating)
}

// stagesSeen lists stages in the order they were first reported.
func stagesSeen(m *MockRenderer) []ui.Stage {
	var stages []ui.Stage
	for _, e := range m.ProgressEvents {
		if indexOf(stages, e.Stage) < 0 {
			stages = append(stages, e.Stage)
		}
	}
	return stages
}

func indexOf(stages []ui.Stage, s ui.Stage) int {
	for i, v := range stages {
		if v == s {
			return i
		}
	}
	return -1
}

func lastEvent(m *MockRenderer, s ui.Stage) ui.ProgressEvent {
	var last ui.ProgressEvent
	for _, e := range m.ProgressEvents {
		if e.Stage == s {
			last = e
		}
	}
	return last
}
