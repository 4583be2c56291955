package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	cerrors "github.com/Aman-CERP/codecorpus/internal/errors"
)

// Artifact path suffixes used during a commit.
const (
	TempSuffix   = ".tmp"
	BackupSuffix = ".bak"
	LockSuffix   = ".lock"
)

// rename is swapped in tests to simulate a failed rename.
var rename = os.Rename

// CommitRequest is everything needed to persist one artifact pair.
type CommitRequest struct {
	IndexPath    string
	MetadataPath string
	// Format empty picks the codec from MetadataPath.
	Format   MetadataFormat
	Manifest Manifest
	Index    VectorIndex
	Records  []Record
}

// CommitResult describes a committed artifact pair.
type CommitResult struct {
	IndexPath     string
	MetadataPath  string
	Format        MetadataFormat
	Count         int
	IndexBytes    int64
	MetadataBytes int64
}

// Commit writes the index and metadata so that either both new artifacts are
// in place or neither is. Previous artifacts survive any failure.
func Commit(ctx context.Context, req CommitRequest) (*CommitResult, error) {
	if err := checkAlignment(req); err != nil {
		return nil, err
	}

	for _, dir := range []string{filepath.Dir(req.IndexPath), filepath.Dir(req.MetadataPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, cerrors.New(cerrors.ErrCodeFilePermission, "create output directory", err).
				WithDetail("dir", dir)
		}
	}

	lock := flock.New(req.IndexPath + LockSuffix)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, cerrors.PersistError("acquire output lock", err)
	}
	if !locked {
		return nil, cerrors.New(cerrors.ErrCodeOutputLocked, "another run is writing "+req.IndexPath, nil).
			WithSuggestion("Wait for the other codecorpus process to finish")
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(req.IndexPath + LockSuffix)
	}()

	// Both artifacts carry the same manifest.
	manifest := req.Manifest.WithIndex(req.Index)
	format := ResolveFormat(req.Format, req.MetadataPath)
	tmpIndex := req.IndexPath + TempSuffix
	tmpMeta := req.MetadataPath + TempSuffix
	committed := false
	defer func() {
		if !committed {
			removeQuietly(tmpIndex)
			removeQuietly(tmpMeta)
		}
	}()

	if err := writeFileSynced(tmpIndex, func(w io.Writer) error {
		return WriteIndex(w, manifest, req.Index)
	}); err != nil {
		return nil, err
	}
	if err := WriteMetadata(ctx, tmpMeta, format, manifest, req.Records); err != nil {
		return nil, err
	}

	if err := verifyTemps(ctx, tmpIndex, tmpMeta, format, len(req.Records)); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := swapIn(req.IndexPath, req.MetadataPath); err != nil {
		return nil, err
	}
	committed = true

	result := &CommitResult{
		IndexPath:    req.IndexPath,
		MetadataPath: req.MetadataPath,
		Format:       format,
		Count:        len(req.Records),
	}
	if fi, err := os.Stat(req.IndexPath); err == nil {
		result.IndexBytes = fi.Size()
	}
	if fi, err := os.Stat(req.MetadataPath); err == nil {
		result.MetadataBytes = fi.Size()
	}
	return result, nil
}

// checkAlignment enforces len(records) == index size and id == position.
func checkAlignment(req CommitRequest) error {
	if req.Index == nil {
		return cerrors.New(cerrors.ErrCodeArtifactMismatch, "no index to commit", nil)
	}
	if req.IndexPath == "" || req.MetadataPath == "" {
		return cerrors.New(cerrors.ErrCodeOutputPathInvalid, "index and metadata paths are required", nil)
	}
	if filepath.Clean(req.IndexPath) == filepath.Clean(req.MetadataPath) {
		return cerrors.New(cerrors.ErrCodeOutputPathInvalid, "index and metadata paths must differ", nil).
			WithDetail("path", req.IndexPath)
	}
	if n, size := len(req.Records), req.Index.Size(); n != size {
		return cerrors.New(cerrors.ErrCodeArtifactMismatch,
			fmt.Sprintf("%d metadata records for %d index vectors", n, size), nil)
	}
	for i := range req.Records {
		if req.Records[i].ID != i {
			return cerrors.New(cerrors.ErrCodeArtifactMismatch,
				fmt.Sprintf("record at position %d has id %d", i, req.Records[i].ID), nil)
		}
	}
	return nil
}

// verifyTemps re-reads both temp files and checks their counts.
func verifyTemps(ctx context.Context, tmpIndex, tmpMeta string, format MetadataFormat, want int) error {
	m, err := OpenManifest(tmpIndex)
	if err != nil {
		return cerrors.PersistError("re-read index", err)
	}
	if m.Count != want {
		return cerrors.New(cerrors.ErrCodeArtifactMismatch,
			fmt.Sprintf("written index holds %d vectors, expected %d", m.Count, want), nil)
	}

	records, err := ReadMetadata(ctx, tmpMeta, format)
	if err != nil {
		return cerrors.PersistError("re-read metadata", err)
	}
	if len(records) != want {
		return cerrors.New(cerrors.ErrCodeArtifactMismatch,
			fmt.Sprintf("written metadata holds %d records, expected %d", len(records), want), nil)
	}
	return nil
}

// swapIn moves existing artifacts aside, renames the temps into place and
// restores the old pair if the second rename fails.
func swapIn(indexPath, metaPath string) error {
	backups := map[string]bool{}
	for _, p := range []string{indexPath, metaPath} {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := rename(p, p+BackupSuffix); err != nil {
			restore(backups)
			return cerrors.PersistError("back up "+filepath.Base(p), err)
		}
		backups[p] = true
	}

	if err := rename(indexPath+TempSuffix, indexPath); err != nil {
		restore(backups)
		return cerrors.PersistError("install index", err)
	}
	if err := rename(metaPath+TempSuffix, metaPath); err != nil {
		removeQuietly(indexPath)
		restore(backups)
		slog.Warn("commit_rolled_back",
			slog.String("index", indexPath),
			slog.String("metadata", metaPath),
			slog.String("error", err.Error()))
		return cerrors.PersistError("install metadata", err).
			WithSuggestion("Previous artifacts were restored")
	}

	for p := range backups {
		removeQuietly(p + BackupSuffix)
	}
	return nil
}

func restore(backups map[string]bool) {
	for p := range backups {
		if err := os.Rename(p+BackupSuffix, p); err != nil {
			slog.Error("restore_backup_failed",
				slog.String("path", p),
				slog.String("error", err.Error()))
		}
	}
}

func removeQuietly(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("remove_failed", slog.String("path", path), slog.String("error", err.Error()))
	}
}
