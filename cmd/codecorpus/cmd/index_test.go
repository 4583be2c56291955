package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/Aman-CERP/codecorpus/internal/errors"
	"github.com/Aman-CERP/codecorpus/internal/store"
	"github.com/Aman-CERP/codecorpus/internal/ui"
	"github.com/Aman-CERP/codecorpus/pkg/searcher"
)

const searchSource = `#include "search.h"

namespace Stockfish {

Value Search::Worker::search(Position& pos, Stack* ss, Value alpha, Value beta, Depth depth) {
  if (depth <= 0)
    return qsearch(pos, ss, alpha, beta);
  return alpha;
}

}
`

const ttSource = `#include "tt.h"

void TranspositionTable::resize(size_t mbSize, ThreadPool& threads) {
  aligned_large_pages_free(table);
  clusterCount = mbSize * 1024 * 1024 / sizeof(Cluster);
  clear(threads);
}
`

type corpusPaths struct {
	root     string
	index    string
	metadata string
}

func newSourceTree(t *testing.T) corpusPaths {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "search.cpp"), []byte(searchSource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "tt.cpp"), []byte(ttSource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("ignored\n"), 0o644))

	out := t.TempDir()
	return corpusPaths{
		root:     root,
		index:    filepath.Join(out, "stockfish.index"),
		metadata: filepath.Join(out, "stockfish_docs.json"),
	}
}

func indexTree(t *testing.T, p corpusPaths, extra ...string) string {
	t.Helper()
	args := append([]string{"index", p.root,
		"--index-out", p.index,
		"--metadata-out", p.metadata,
		"--chunk-size", "4", "--overlap", "1",
		"--plain"}, extra...)
	out, err := executeCmd(t, args...)
	require.NoError(t, err, out)
	return out
}

func TestIndexCmd_WritesAlignedArtifacts(t *testing.T) {
	// Given: a tree with two C++ files and a text file
	p := newSourceTree(t)

	// When: indexing with 4-line windows
	out := indexTree(t, p)

	// Then: the summary is printed and both artifacts line up
	assert.Contains(t, out, "Complete: 2 files")
	_, idx, err := store.OpenIndex(p.index)
	require.NoError(t, err)
	records, err := store.ReadMetadata(context.Background(), p.metadata, "")
	require.NoError(t, err)
	require.Len(t, records, idx.Size())
	for i, rec := range records {
		assert.Equal(t, i, rec.ID)
		assert.NotEqual(t, "notes.txt", rec.Path)
	}
	assert.Equal(t, "search.cpp", records[0].Path)
}

func TestIndexCmd_InvalidOverlap(t *testing.T) {
	p := newSourceTree(t)

	_, err := executeCmd(t, "index", p.root,
		"--index-out", p.index, "--metadata-out", p.metadata,
		"--chunk-size", "4", "--overlap", "4", "--plain")

	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeChunkPolicy, cerrors.GetCode(err))
	assert.NoFileExists(t, p.index)
	assert.NoFileExists(t, p.metadata)
}

func TestIndexCmd_UnknownPreset(t *testing.T) {
	p := newSourceTree(t)

	_, err := executeCmd(t, "index", p.root, "--preset", "huge", "--plain")

	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeUnknownPreset, cerrors.GetCode(err))
}

func TestIndexCmd_PresetAndSQLite(t *testing.T) {
	p := newSourceTree(t)
	p.metadata = filepath.Join(filepath.Dir(p.metadata), "stockfish.db")

	_, err := executeCmd(t, "index", p.root,
		"--index-out", p.index, "--metadata-out", p.metadata,
		"--preset", "chars-small", "--index-kind", "hnsw", "--no-embeddings", "--plain", "--quiet")
	require.NoError(t, err)

	manifest, err := store.OpenManifest(p.index)
	require.NoError(t, err)
	assert.Equal(t, "chars", manifest.Unit)
	assert.Equal(t, 512, manifest.ChunkSize)
	assert.Equal(t, store.KindHNSW, manifest.IndexKind)

	records, err := store.ReadMetadata(context.Background(), p.metadata, "")
	require.NoError(t, err)
	require.Len(t, records, manifest.Count)
	assert.Empty(t, records[0].Embedding)
}

func TestVerifyCmd_ConsistentCorpus(t *testing.T) {
	// Given: a freshly indexed tree
	p := newSourceTree(t)
	indexTree(t, p)

	// When: verifying deeply with JSON output
	out, err := executeCmd(t, "verify", "--index", p.index, "--metadata", p.metadata, "--deep", "--json")
	require.NoError(t, err, out)

	// Then: consistent with matching counts
	var info ui.StatusInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "consistent", info.Status)
	assert.Equal(t, info.Vectors, info.Records)
	assert.Equal(t, 2, info.Files)
}

func TestVerifyCmd_InconsistentCorpus(t *testing.T) {
	// Given: a corpus whose metadata lost its last record
	p := newSourceTree(t)
	indexTree(t, p)
	ctx := context.Background()
	records, err := store.ReadMetadata(ctx, p.metadata, "")
	require.NoError(t, err)
	require.NoError(t, store.WriteMetadata(ctx, p.metadata, "", store.Manifest{}, records[:len(records)-1]))

	// When: verifying
	out, err := executeCmd(t, "verify", "--index", p.index, "--metadata", p.metadata, "--no-color")

	// Then: the report shows the issue and the command fails
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeArtifactMismatch, cerrors.GetCode(err))
	assert.Contains(t, out, "inconsistent")
	assert.Contains(t, out, "count_mismatch")
}

func TestSearchCmd_JSON(t *testing.T) {
	// Given: an indexed tree
	p := newSourceTree(t)
	indexTree(t, p)

	// When: searching for the exact text of the search() chunk
	records, err := store.ReadMetadata(context.Background(), p.metadata, "")
	require.NoError(t, err)
	want := records[1]
	require.Contains(t, want.Text, "Search::Worker::search")
	out, err := executeCmd(t, "search", "--index", p.index, "--metadata", p.metadata,
		"-k", "2", "--json", want.Text)
	require.NoError(t, err, out)

	// Then: that chunk is the top hit and embeddings are not printed
	var results []searcher.Result
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, want.ID, results[0].Position)
	assert.Equal(t, want.Path, results[0].Record.Path)
	assert.Empty(t, results[0].Record.Embedding)
}

func TestSearchCmd_TextOutput(t *testing.T) {
	p := newSourceTree(t)
	indexTree(t, p)

	out, err := executeCmd(t, "search", "--index", p.index, "--metadata", p.metadata,
		"--scan", "-k", "1", "TranspositionTable resize clusterCount")

	require.NoError(t, err, out)
	assert.Contains(t, out, "1. ")
	assert.Contains(t, out, ".cpp:")
	assert.Contains(t, out, "   | ")
}

func TestSearchCmd_MissingCorpus(t *testing.T) {
	dir := t.TempDir()

	_, err := executeCmd(t, "search", "--index", filepath.Join(dir, "x.index"),
		"--metadata", filepath.Join(dir, "x.json"), "query")

	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeFileNotFound, cerrors.GetCode(err))
}

func TestIndexCmd_Profiles(t *testing.T) {
	p := newSourceTree(t)
	cpu := filepath.Join(t.TempDir(), "cpu.prof")
	heap := filepath.Join(t.TempDir(), "mem.prof")

	indexTree(t, p, "--cpuprofile", cpu, "--memprofile", heap)

	assert.FileExists(t, cpu)
	assert.FileExists(t, heap)
}
