package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/codecorpus/internal/chunk"
	"github.com/Aman-CERP/codecorpus/internal/scanner"
	"github.com/Aman-CERP/codecorpus/internal/store"
	"github.com/Aman-CERP/codecorpus/internal/ui"
)

// maxIssues caps the issues collected per check so a badly broken pair does
// not flood the report.
const maxIssues = 50

// InconsistencyType categorizes detected issues.
type InconsistencyType int

const (
	// InconsistencyCount means the metadata and index sizes differ.
	InconsistencyCount InconsistencyType = iota
	// InconsistencyIDSequence means a record id is not its position.
	InconsistencyIDSequence
	// InconsistencyDimensions means a stored embedding has the wrong width.
	InconsistencyDimensions
	// InconsistencyManifest means a record disagrees with the run manifest.
	InconsistencyManifest
	// InconsistencySourceMissing means a chunked source file is gone.
	InconsistencySourceMissing
	// InconsistencyChunkDrift means re-chunking the source gives different chunks.
	InconsistencyChunkDrift
	// InconsistencyRoundTrip means the stored chunks do not rebuild the file.
	InconsistencyRoundTrip
)

// String returns a human-readable description of the inconsistency type.
func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyCount:
		return "count_mismatch"
	case InconsistencyIDSequence:
		return "id_sequence"
	case InconsistencyDimensions:
		return "dimension_mismatch"
	case InconsistencyManifest:
		return "manifest_mismatch"
	case InconsistencySourceMissing:
		return "source_missing"
	case InconsistencyChunkDrift:
		return "chunk_drift"
	case InconsistencyRoundTrip:
		return "round_trip"
	default:
		return "unknown"
	}
}

// Inconsistency represents a detected issue in an artifact pair.
type Inconsistency struct {
	Type     InconsistencyType
	Position int
	Path     string
	Details  string
}

func (i Inconsistency) String() string {
	switch {
	case i.Path != "":
		return fmt.Sprintf("%s: %s: %s", i.Type, i.Path, i.Details)
	case i.Position >= 0:
		return fmt.Sprintf("%s: position %d: %s", i.Type, i.Position, i.Details)
	default:
		return fmt.Sprintf("%s: %s", i.Type, i.Details)
	}
}

// CheckOptions selects the artifact pair to check.
type CheckOptions struct {
	IndexPath    string
	MetadataPath string
	// Format empty picks the codec from MetadataPath.
	Format store.MetadataFormat

	// Deep re-chunks the sources and checks the round-trip law.
	Deep bool

	// RootDir overrides the source root recorded in the manifest.
	RootDir string
}

// CheckResult contains the outcome of a consistency check.
type CheckResult struct {
	Manifest store.Manifest

	// Vectors is the index size, Records the metadata length.
	Vectors int
	Records int
	Files   int

	IndexSize    int64
	MetadataSize int64

	// Inconsistencies contains all detected issues.
	Inconsistencies []Inconsistency

	// Duration is how long the check took.
	Duration time.Duration
}

// Consistent reports whether no issue was found.
func (r *CheckResult) Consistent() bool {
	return len(r.Inconsistencies) == 0
}

// StatusInfo converts the result for the status renderer.
func (r *CheckResult) StatusInfo(opts CheckOptions) ui.StatusInfo {
	info := ui.StatusInfo{
		IndexPath:    opts.IndexPath,
		MetadataPath: opts.MetadataPath,
		RunID:        r.Manifest.RunID,
		CreatedAt:    r.Manifest.CreatedAt,
		RootDir:      r.Manifest.RootDir,
		Model:        r.Manifest.Model,
		Dimensions:   r.Manifest.Dimensions,
		IndexKind:    r.Manifest.IndexKind,
		Metric:       r.Manifest.Metric,
		Unit:         r.Manifest.Unit,
		ChunkSize:    r.Manifest.ChunkSize,
		Overlap:      r.Manifest.Overlap,
		Vectors:      r.Vectors,
		Records:      r.Records,
		Files:        r.Files,
		IndexSize:    r.IndexSize,
		MetadataSize: r.MetadataSize,
		Status:       "consistent",
	}
	if !r.Consistent() {
		info.Status = "inconsistent"
		for _, inc := range r.Inconsistencies {
			info.Issues = append(info.Issues, inc.String())
		}
	}
	return info
}

// ConsistencyChecker validates that an artifact pair is positionally aligned
// and, in deep mode, that it still matches the sources.
type ConsistencyChecker struct {
	opts CheckOptions
}

// NewConsistencyChecker creates a new checker for an artifact pair.
func NewConsistencyChecker(opts CheckOptions) *ConsistencyChecker {
	return &ConsistencyChecker{opts: opts}
}

// Check loads both artifacts and reports every inconsistency found. An error
// is returned only when an artifact cannot be read at all.
func (c *ConsistencyChecker) Check(ctx context.Context) (*CheckResult, error) {
	start := time.Now()

	manifest, idx, err := store.OpenIndex(c.opts.IndexPath)
	if err != nil {
		return nil, err
	}
	records, err := store.ReadMetadata(ctx, c.opts.MetadataPath, c.opts.Format)
	if err != nil {
		return nil, err
	}

	result := &CheckResult{
		Manifest: manifest,
		Vectors:  idx.Size(),
		Records:  len(records),
	}
	if st, err := os.Stat(c.opts.IndexPath); err == nil {
		result.IndexSize = st.Size()
	}
	if st, err := os.Stat(c.opts.MetadataPath); err == nil {
		result.MetadataSize = st.Size()
	}

	add := func(inc Inconsistency) {
		if len(result.Inconsistencies) < maxIssues {
			result.Inconsistencies = append(result.Inconsistencies, inc)
		}
	}

	if len(records) != idx.Size() {
		add(Inconsistency{
			Type:     InconsistencyCount,
			Position: -1,
			Details:  fmt.Sprintf("metadata has %d records, index has %d vectors", len(records), idx.Size()),
		})
	}
	if manifest.Count != idx.Size() {
		add(Inconsistency{
			Type:     InconsistencyManifest,
			Position: -1,
			Details:  fmt.Sprintf("manifest count %d, index size %d", manifest.Count, idx.Size()),
		})
	}

	files := make(map[string]bool)
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		files[rec.Path] = true
		if rec.ID != i {
			add(Inconsistency{Type: InconsistencyIDSequence, Position: i,
				Details: fmt.Sprintf("record id %d", rec.ID)})
		}
		if rec.Unit != manifest.Unit {
			add(Inconsistency{Type: InconsistencyManifest, Position: i,
				Details: fmt.Sprintf("unit %q, manifest unit %q", rec.Unit, manifest.Unit)})
		}
		if len(rec.Embedding) > 0 && len(rec.Embedding) != idx.Dimensions() {
			add(Inconsistency{Type: InconsistencyDimensions, Position: i,
				Details: fmt.Sprintf("embedding width %d, index width %d", len(rec.Embedding), idx.Dimensions())})
		}
	}
	result.Files = len(files)

	if c.opts.Deep {
		root := c.opts.RootDir
		if root == "" {
			root = manifest.RootDir
		}
		if err := c.checkSources(ctx, root, manifest, records, add); err != nil {
			return nil, err
		}
	}

	result.Duration = time.Since(start)

	slog.Info("consistency_check_complete",
		slog.Int("vectors", result.Vectors),
		slog.Int("records", result.Records),
		slog.Bool("deep", c.opts.Deep),
		slog.Int("inconsistencies", len(result.Inconsistencies)),
		slog.Duration("duration", result.Duration))

	return result, nil
}

// checkSources re-chunks every file named in records with the manifest policy
// and compares the result with what was stored.
func (c *ConsistencyChecker) checkSources(ctx context.Context, root string, m store.Manifest,
	records []store.Record, add func(Inconsistency)) error {
	unit, err := chunk.ParseUnit(m.Unit)
	if err != nil {
		return err
	}
	chunker, err := chunk.NewChunker(chunk.Policy{Unit: unit, Size: m.ChunkSize, Overlap: m.Overlap})
	if err != nil {
		return err
	}

	// Records of one file are contiguous in emission order.
	var order []string
	byPath := make(map[string][]store.Record)
	for _, rec := range records {
		if _, seen := byPath[rec.Path]; !seen {
			order = append(order, rec.Path)
		}
		byPath[rec.Path] = append(byPath[rec.Path], rec)
	}

	for _, path := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		stored := byPath[path]

		content, err := scanner.ReadSource(filepath.Join(root, filepath.FromSlash(path)))
		if err != nil {
			add(Inconsistency{Type: InconsistencySourceMissing, Position: -1, Path: path, Details: err.Error()})
			continue
		}

		fresh := chunker.Chunk(path, content)
		if len(fresh) != len(stored) {
			add(Inconsistency{Type: InconsistencyChunkDrift, Position: -1, Path: path,
				Details: fmt.Sprintf("source yields %d chunks, %d stored", len(fresh), len(stored))})
		} else {
			for i := range fresh {
				if fresh[i].ID != stored[i].ChunkID ||
					fresh[i].StartOffset != stored[i].StartOffset ||
					fresh[i].EndOffset != stored[i].EndOffset {
					add(Inconsistency{Type: InconsistencyChunkDrift, Position: stored[i].ID, Path: path,
						Details: fmt.Sprintf("chunk %d-%d changed", stored[i].StartOffset, stored[i].EndOffset)})
					break
				}
			}
		}

		chunks := make([]*chunk.Chunk, len(stored))
		for i, rec := range stored {
			chunks[i] = &chunk.Chunk{Text: rec.Text, Unit: unit}
		}
		if chunk.Reconstruct(chunks, m.Overlap) != content {
			add(Inconsistency{Type: InconsistencyRoundTrip, Position: -1, Path: path,
				Details: "stored chunks do not rebuild the source"})
		}
	}
	return nil
}
