package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/Aman-CERP/codecorpus/internal/errors"
)

func testRecords() []Record {
	return []Record{
		{ID: 0, ChunkID: "aa", Path: "src/position.cpp", Unit: "lines", StartOffset: 1, EndOffset: 40,
			Text: "namespace Stockfish {\n", Symbols: []string{"Stockfish"}, Embedding: []float32{0.5, -0.25}},
		{ID: 1, ChunkID: "bb", Path: "src/position.cpp", Unit: "lines", StartOffset: 31, EndOffset: 52,
			Text: "} // namespace \"Stockfish\"\n\ttab", Embedding: []float32{1, 0}},
		{ID: 2, ChunkID: "cc", Path: "src/ünïcode.h", Unit: "lines", StartOffset: 1, EndOffset: 1, Text: "// ♞\n"},
	}
}

func TestMetadata_RoundTrip(t *testing.T) {
	formats := map[MetadataFormat]string{
		FormatJSON:   "corpus_docs.json",
		FormatJSONL:  "corpus_docs.jsonl",
		FormatSQLite: "corpus_docs.db",
	}
	for format, name := range formats {
		t.Run(string(format), func(t *testing.T) {
			// Given: records written in a format
			path := filepath.Join(t.TempDir(), name)
			ctx := context.Background()
			require.NoError(t, WriteMetadata(ctx, path, "", testManifest(), testRecords()))

			// When: they are read back with the format implied by the path
			got, err := ReadMetadata(ctx, path, "")

			// Then: order and content are preserved
			require.NoError(t, err)
			assert.Equal(t, testRecords(), got)
		})
	}
}

func TestMetadata_EmptyCorpus(t *testing.T) {
	for _, name := range []string{"a.json", "a.jsonl", "a.sqlite"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			ctx := context.Background()
			require.NoError(t, WriteMetadata(ctx, path, "", testManifest(), nil))

			got, err := ReadMetadata(ctx, path, "")
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestMetadata_JSONIsAnArrayOfDocs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.json")
	require.NoError(t, WriteMetadata(context.Background(), path, FormatJSON, testManifest(), testRecords()[:1]))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":0,"chunk_id":"aa","path":"src/position.cpp","unit":"lines",
		"start_offset":1,"end_offset":40,"text":"namespace Stockfish {\n",
		"symbols":["Stockfish"],"embedding":[0.5,-0.25]}]`, string(data))
}

func TestMetadata_ExplicitFormatOverridesExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.tmp")
	ctx := context.Background()
	require.NoError(t, WriteMetadata(ctx, path, FormatSQLite, testManifest(), testRecords()))

	got, err := ReadMetadata(ctx, path, FormatSQLite)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	m, err := ReadSQLiteManifest(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "run-1", m.RunID)
}

func TestReadMetadata_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":0},{"id":`), 0o644))

	_, err := ReadMetadata(context.Background(), path, "")

	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeCorruptMetadata, cerrors.GetCode(err))
}

func TestReadSQLite_MissingPathCreatesNothing(t *testing.T) {
	// Given: an empty directory
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.db")
	ctx := context.Background()

	// When: reading the manifest and records of a database that does not exist
	_, manifestErr := ReadSQLiteManifest(ctx, path)
	_, recordsErr := ReadMetadata(ctx, path, FormatSQLite)

	// Then: both report a missing file and no database was created
	assert.Equal(t, cerrors.ErrCodeFileNotFound, cerrors.GetCode(manifestErr))
	assert.Equal(t, cerrors.ErrCodeFileNotFound, cerrors.GetCode(recordsErr))
	assert.NoFileExists(t, path)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReadSQLite_DoesNotModifyDatabase(t *testing.T) {
	// Given: a committed sqlite metadata file
	path := filepath.Join(t.TempDir(), "corpus.db")
	ctx := context.Background()
	require.NoError(t, WriteMetadata(ctx, path, FormatSQLite, testManifest(), testRecords()))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	// When: reading it back
	_, err = ReadSQLiteManifest(ctx, path)
	require.NoError(t, err)
	_, err = ReadMetadata(ctx, path, FormatSQLite)
	require.NoError(t, err)

	// Then: the file bytes are unchanged
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReadMetadata_Missing(t *testing.T) {
	_, err := ReadMetadata(context.Background(), filepath.Join(t.TempDir(), "x.jsonl"), "")
	assert.Equal(t, cerrors.ErrCodeFileNotFound, cerrors.GetCode(err))
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatFromPath("stockfish_docs.json"))
	assert.Equal(t, FormatJSONL, FormatFromPath("docs.JSONL"))
	assert.Equal(t, FormatSQLite, FormatFromPath("docs.db"))
	assert.Equal(t, FormatSQLite, FormatFromPath("docs.sqlite"))
	assert.Equal(t, FormatJSON, FormatFromPath("docs"))
}

func TestParseMetadataFormat(t *testing.T) {
	f, err := ParseMetadataFormat("auto")
	require.NoError(t, err)
	assert.Equal(t, MetadataFormat(""), f)

	_, err = ParseMetadataFormat("parquet")
	assert.Error(t, err)
}
