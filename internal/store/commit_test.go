package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/Aman-CERP/codecorpus/internal/errors"
)

func newCommitRequest(t *testing.T, dir string, n int) CommitRequest {
	t.Helper()
	idx := NewFlatIndex(2, MetricL2)
	records := make([]Record, n)
	vectors := make([][]float32, n)
	for i := range records {
		records[i] = Record{ID: i, ChunkID: "c", Path: "a.cpp", Unit: "lines", StartOffset: i + 1, EndOffset: i + 1, Text: "x"}
		vectors[i] = []float32{float32(i), 1}
	}
	if n > 0 {
		_, err := idx.Add(context.Background(), vectors)
		require.NoError(t, err)
	}
	return CommitRequest{
		IndexPath:    filepath.Join(dir, "corpus.index"),
		MetadataPath: filepath.Join(dir, "corpus_docs.json"),
		Manifest:     testManifest(),
		Index:        idx,
		Records:      records,
	}
}

// dirEntries lists file names in dir, sorted.
func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestCommit_WritesAlignedPair(t *testing.T) {
	// Given: three records and three vectors
	dir := t.TempDir()
	req := newCommitRequest(t, dir, 3)

	// When: committing
	res, err := Commit(context.Background(), req)

	// Then: both artifacts exist, nothing else is left behind
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, FormatJSON, res.Format)
	assert.Positive(t, res.IndexBytes)
	assert.ElementsMatch(t, []string{"corpus.index", "corpus_docs.json"}, dirEntries(t, dir))

	m, idx, err := OpenIndex(req.IndexPath)
	require.NoError(t, err)
	records, err := ReadMetadata(context.Background(), req.MetadataPath, "")
	require.NoError(t, err)
	assert.Equal(t, len(records), idx.Size())
	assert.Equal(t, 3, m.Count)
}

func TestCommit_EmptyCorpus(t *testing.T) {
	dir := t.TempDir()
	req := newCommitRequest(t, dir, 0)

	res, err := Commit(context.Background(), req)

	require.NoError(t, err)
	assert.Zero(t, res.Count)
	records, err := ReadMetadata(context.Background(), req.MetadataPath, "")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCommit_RejectsMisalignedInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CommitRequest)
		code   string
	}{
		{"fewer records", func(r *CommitRequest) { r.Records = r.Records[:2] }, cerrors.ErrCodeArtifactMismatch},
		{"wrong id", func(r *CommitRequest) { r.Records[1].ID = 7 }, cerrors.ErrCodeArtifactMismatch},
		{"same paths", func(r *CommitRequest) { r.MetadataPath = r.IndexPath }, cerrors.ErrCodeOutputPathInvalid},
		{"no index", func(r *CommitRequest) { r.Index = nil }, cerrors.ErrCodeArtifactMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			req := newCommitRequest(t, dir, 3)
			tt.mutate(&req)

			_, err := Commit(context.Background(), req)

			require.Error(t, err)
			assert.Equal(t, tt.code, cerrors.GetCode(err))
			assert.Empty(t, dirEntries(t, dir), "nothing written")
		})
	}
}

func TestCommit_LockedOutput(t *testing.T) {
	// Given: another process holds the output lock
	dir := t.TempDir()
	req := newCommitRequest(t, dir, 1)
	other := flock.New(req.IndexPath + LockSuffix)
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer func() { _ = other.Unlock() }()

	// When: committing
	_, err = Commit(context.Background(), req)

	// Then: the commit fails fast without artifacts
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeOutputLocked, cerrors.GetCode(err))
	_, statErr := os.Stat(req.IndexPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCommit_SecondRenameFailureRestoresPrevious(t *testing.T) {
	// Given: a committed pair of one record
	dir := t.TempDir()
	first := newCommitRequest(t, dir, 1)
	_, err := Commit(context.Background(), first)
	require.NoError(t, err)
	oldIndex, _ := os.ReadFile(first.IndexPath)
	oldMeta, _ := os.ReadFile(first.MetadataPath)

	// And: the metadata rename will fail
	orig := rename
	t.Cleanup(func() { rename = orig })
	rename = func(from, to string) error {
		if strings.HasSuffix(from, "corpus_docs.json"+TempSuffix) {
			return errors.New("disk full")
		}
		return orig(from, to)
	}

	// When: committing a new pair of three records
	_, err = Commit(context.Background(), newCommitRequest(t, dir, 3))

	// Then: the old pair is intact and no temp or backup remains
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodePersistFailed, cerrors.GetCode(err))

	gotIndex, _ := os.ReadFile(first.IndexPath)
	gotMeta, _ := os.ReadFile(first.MetadataPath)
	assert.Equal(t, oldIndex, gotIndex)
	assert.Equal(t, oldMeta, gotMeta)
	assert.ElementsMatch(t, []string{"corpus.index", "corpus_docs.json"}, dirEntries(t, dir))
}

func TestCommit_CancelledContextLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	req := newCommitRequest(t, dir, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Commit(ctx, req)

	require.Error(t, err)
	assert.Empty(t, dirEntries(t, dir))
}

func TestCommit_SQLiteMetadata(t *testing.T) {
	dir := t.TempDir()
	req := newCommitRequest(t, dir, 2)
	req.MetadataPath = filepath.Join(dir, "corpus.db")

	res, err := Commit(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, FormatSQLite, res.Format)
	assert.ElementsMatch(t, []string{"corpus.index", "corpus.db"}, dirEntries(t, dir))

	// Then: the sqlite manifest describes the committed index like the header does
	m, err := ReadSQLiteManifest(context.Background(), req.MetadataPath)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Count)
	assert.Equal(t, req.Index.Dimensions(), m.Dimensions)
	assert.Equal(t, KindFlat, m.IndexKind)
	assert.Equal(t, string(MetricL2), m.Metric)

	header, err := OpenManifest(req.IndexPath)
	require.NoError(t, err)
	assert.Equal(t, header.Count, m.Count)
	assert.Equal(t, header.Dimensions, m.Dimensions)
}

func TestCommit_JSONMetadataManifestIsUntouched(t *testing.T) {
	// Given: a request whose manifest leaves index fields unset
	dir := t.TempDir()
	req := newCommitRequest(t, dir, 3)

	// When: committing
	_, err := Commit(context.Background(), req)

	// Then: the caller's manifest is not mutated and the header is complete
	require.NoError(t, err)
	assert.Zero(t, req.Manifest.Count)
	header, err := OpenManifest(req.IndexPath)
	require.NoError(t, err)
	assert.Equal(t, 3, header.Count)
	assert.Equal(t, 2, header.Dimensions)
}
