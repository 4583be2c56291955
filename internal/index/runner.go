// Package index runs the corpus pipeline and checks the artifacts it produces.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/codecorpus/internal/chunk"
	"github.com/Aman-CERP/codecorpus/internal/config"
	"github.com/Aman-CERP/codecorpus/internal/embed"
	cerrors "github.com/Aman-CERP/codecorpus/internal/errors"
	"github.com/Aman-CERP/codecorpus/internal/scanner"
	"github.com/Aman-CERP/codecorpus/internal/store"
	"github.com/Aman-CERP/codecorpus/internal/ui"
)

// RunnerResult contains the outcome of an indexing run.
type RunnerResult struct {
	// RunID identifies the run in both artifacts.
	RunID string

	// Files is the number of files that contributed chunks or were empty.
	Files int

	// Skipped is the number of files left out with a warning.
	Skipped int

	// Chunks is the number of chunks written. It equals the index size.
	Chunks int

	// Duration is the total run time.
	Duration time.Duration

	// Warnings is the count of non-fatal warnings.
	Warnings int

	// Dimensions is the embedding width.
	Dimensions int

	// Commit describes the written artifact pair.
	Commit *store.CommitResult
}

// RunnerDependencies contains the injected dependencies for Runner.
type RunnerDependencies struct {
	// Renderer for progress display (required).
	Renderer ui.Renderer

	// Config is the run configuration (required).
	Config *config.Config

	// Embedder turns chunk texts into vectors (required).
	Embedder embed.Embedder

	// Index receives the vectors. Built from Config.Index when nil.
	Index store.VectorIndex

	// Scanner collects the source files. Created when nil.
	Scanner *scanner.Scanner

	// Now is the clock used for the manifest timestamp.
	Now func() time.Time
}

// Runner executes one full corpus build with progress reporting.
type Runner struct {
	renderer ui.Renderer
	config   *config.Config
	embedder embed.Embedder
	index    store.VectorIndex
	scanner  *scanner.Scanner
	now      func() time.Time
}

// NewRunner creates a Runner with injected dependencies.
func NewRunner(deps RunnerDependencies) (*Runner, error) {
	if deps.Renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	sc := deps.Scanner
	if sc == nil {
		var err error
		sc, err = scanner.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create scanner: %w", err)
		}
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Runner{
		renderer: deps.Renderer,
		config:   deps.Config,
		embedder: deps.Embedder,
		index:    deps.Index,
		scanner:  sc,
		now:      now,
	}, nil
}

// stageTiming tracks duration for each stage.
type stageTiming struct {
	scan  time.Duration
	chunk time.Duration
	embed time.Duration
	index time.Duration
	write time.Duration
}

// fileChunks is the chunking result of one collected file.
type fileChunks struct {
	chunks  []*chunk.Chunk
	skipped *scanner.SkippedFile
	warning error
	// source is kept only until symbols are annotated.
	source string
}

// Run collects, chunks, embeds, indexes and persists the corpus. Any error
// other than a skipped file aborts the run before artifacts are touched.
func (r *Runner) Run(ctx context.Context) (*RunnerResult, error) {
	start := time.Now()
	cfg := r.config

	// Configuration problems surface before any file is read.
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.ValidateRoot(); err != nil {
		return nil, err
	}
	policy, err := cfg.ChunkPolicy()
	if err != nil {
		return nil, err
	}
	chunker, err := chunk.NewChunker(policy)
	if err != nil {
		return nil, err
	}
	format, err := store.ParseMetadataFormat(cfg.Output.MetadataFormat)
	if err != nil {
		return nil, err
	}
	idx := r.index
	if idx == nil {
		idx, err = store.NewIndex(store.IndexOptions{
			Kind:       cfg.Index.Kind,
			Metric:     cfg.Index.Metric,
			Dimensions: r.embedder.Dimensions(),
			M:          cfg.Index.M,
			EfSearch:   cfg.Index.EfSearch,
		})
		if err != nil {
			return nil, err
		}
	}

	runID := uuid.NewString()
	root := cfg.Paths.RootDir
	var timing stageTiming
	warnings := 0

	slog.Info("index_started",
		slog.String("run_id", runID),
		slog.String("path", root),
		slog.String("policy", policy.String()),
		slog.String("model", r.embedder.ModelName()),
		slog.String("index_kind", idx.Kind()))

	if err := r.renderer.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start renderer: %w", err)
	}

	// Stage 1: collect
	scanStart := time.Now()
	files, skipped, err := r.collect(ctx)
	if err != nil {
		return nil, r.abort(ctx, err)
	}
	timing.scan = time.Since(scanStart)
	warnings += len(skipped)

	// Stage 2: chunk
	chunkStart := time.Now()
	perFile, err := r.chunkFiles(ctx, chunker, files)
	if err != nil {
		return nil, r.abort(ctx, err)
	}
	if r.config.Chunking.AnnotateSymbols {
		if err := r.annotateFiles(ctx, files, perFile); err != nil {
			return nil, r.abort(ctx, err)
		}
	}

	var chunks []*chunk.Chunk
	indexed := 0
	for i, fc := range perFile {
		if fc.skipped != nil {
			r.warnSkipped(fc.skipped)
			warnings++
			continue
		}
		if fc.warning != nil {
			warnings++
			r.renderer.AddError(ui.ErrorEvent{File: files[i].Path, Err: fc.warning, IsWarn: true})
		}
		indexed++
		chunks = append(chunks, fc.chunks...)
	}
	for pos, c := range chunks {
		c.Position = pos
	}
	timing.chunk = time.Since(chunkStart)

	slog.Info("index_chunking_complete",
		slog.Int("chunks", len(chunks)),
		slog.Int("files", indexed))

	// Stage 3 and 4: embed in emission order and add each batch to the index
	if err := r.embedAndIndex(ctx, chunks, idx, &timing); err != nil {
		return nil, r.abort(ctx, err)
	}

	// Stage 5: persist both artifacts together
	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageWriting,
		Current: 0,
		Total:   2,
		Message: "Writing artifacts...",
	})
	writeStart := time.Now()

	manifest := store.Manifest{
		RunID:      runID,
		CreatedAt:  r.now().UTC(),
		Provider:   string(embed.BackendOf(r.embedder)),
		Model:      r.embedder.ModelName(),
		Unit:       string(policy.Unit),
		ChunkSize:  policy.Size,
		Overlap:    policy.Overlap,
		RootDir:    absOrSelf(root),
		Extensions: cfg.Paths.Extensions,
	}
	commit, err := store.Commit(ctx, store.CommitRequest{
		IndexPath:    cfg.Output.IndexPath,
		MetadataPath: cfg.Output.MetadataPath,
		Format:       format,
		Manifest:     manifest,
		Index:        idx,
		Records:      toRecords(chunks, cfg.Output.IncludeEmbeddings),
	})
	if err != nil {
		return nil, r.abort(ctx, err)
	}
	timing.write = time.Since(writeStart)

	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageWriting,
		Current: 2,
		Total:   2,
		Message: "Artifacts written",
	})

	slog.Info("artifacts_committed",
		slog.String("run_id", runID),
		slog.String("index_path", commit.IndexPath),
		slog.String("metadata_path", commit.MetadataPath),
		slog.String("format", string(commit.Format)),
		slog.Int("count", commit.Count),
		slog.Int64("index_bytes", commit.IndexBytes),
		slog.Int64("metadata_bytes", commit.MetadataBytes))

	duration := time.Since(start)
	backend := embed.BackendOf(r.embedder)

	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageComplete,
		Message: "Done",
	})
	r.renderer.Complete(ui.CompletionStats{
		Files:    indexed,
		Skipped:  len(files) + len(skipped) - indexed,
		Chunks:   len(chunks),
		Duration: duration,
		Warnings: warnings,
		Stages: ui.StageTimings{
			Scan:  timing.scan,
			Chunk: timing.chunk,
			Embed: timing.embed,
			Index: timing.index,
			Write: timing.write,
		},
		Embedder: ui.EmbedderInfo{
			Backend:    string(backend),
			Model:      r.embedder.ModelName(),
			Dimensions: idx.Dimensions(),
		},
		IndexPath:    commit.IndexPath,
		MetadataPath: commit.MetadataPath,
	})
	_ = r.renderer.Stop()

	chunksPerSec := 0.0
	if duration.Seconds() > 0 {
		chunksPerSec = float64(len(chunks)) / duration.Seconds()
	}

	slog.Info("index_complete",
		slog.String("run_id", runID),
		slog.Int("files", indexed),
		slog.Int("chunks", len(chunks)),
		slog.Int("warnings", warnings),
		slog.String("duration_total", duration.String()),
		slog.Int64("duration_total_ms", duration.Milliseconds()),
		slog.Int64("duration_scan_ms", timing.scan.Milliseconds()),
		slog.Int64("duration_chunk_ms", timing.chunk.Milliseconds()),
		slog.Int64("duration_embed_ms", timing.embed.Milliseconds()),
		slog.Int64("duration_index_ms", timing.index.Milliseconds()),
		slog.Int64("duration_write_ms", timing.write.Milliseconds()),
		slog.String("embedder_backend", string(backend)),
		slog.String("embedder_model", r.embedder.ModelName()),
		slog.Int("embedder_dimensions", idx.Dimensions()),
		slog.Float64("chunks_per_sec", chunksPerSec),
		slog.String("path", root))

	return &RunnerResult{
		RunID:      runID,
		Files:      indexed,
		Skipped:    len(files) + len(skipped) - indexed,
		Chunks:     len(chunks),
		Duration:   duration,
		Warnings:   warnings,
		Dimensions: idx.Dimensions(),
		Commit:     commit,
	}, nil
}

// collect walks the root and reports every skipped candidate as a warning.
func (r *Runner) collect(ctx context.Context) ([]*scanner.FileInfo, []*scanner.SkippedFile, error) {
	cfg := r.config
	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageScanning,
		Message: "Scanning files...",
	})
	slog.Info("index_scan_started", slog.String("path", cfg.Paths.RootDir))

	files, skipped, err := r.scanner.Collect(ctx, &scanner.ScanOptions{
		RootDir:          cfg.Paths.RootDir,
		Extensions:       cfg.Paths.Extensions,
		ExcludePatterns:  cfg.Paths.Exclude,
		RespectGitignore: cfg.Paths.RespectGitignore,
		MaxFileSize:      cfg.Paths.MaxFileSize,
	})
	if err != nil {
		return nil, nil, err
	}
	for _, s := range skipped {
		r.warnSkipped(s)
	}

	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageScanning,
		Current: len(files),
		Total:   len(files),
		Message: fmt.Sprintf("Found %d files", len(files)),
	})
	slog.Info("index_scan_complete",
		slog.Int("files", len(files)),
		slog.Int("skipped", len(skipped)))
	return files, skipped, nil
}

// chunkFiles reads and chunks files in parallel. Each result lands in the
// slot of its file so collector order survives the fan-out.
func (r *Runner) chunkFiles(ctx context.Context, chunker *chunk.Chunker, files []*scanner.FileInfo) ([]fileChunks, error) {
	results := make([]fileChunks, len(files))
	total := len(files)

	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageChunking,
		Current: 0,
		Total:   total,
		Message: "Chunking files...",
	})

	workers := r.config.Performance.ChunkWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	annotate := r.config.Chunking.AnnotateSymbols

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, err := scanner.ReadSource(f.AbsPath)
			if err != nil {
				results[i].skipped = &scanner.SkippedFile{Path: f.Path, Reason: scanner.SkipUnreadable, Err: err}
				return nil
			}
			chunks := chunker.Chunk(f.Path, content)
			results[i].chunks = chunks
			if annotate && len(chunks) > 0 {
				results[i].source = content
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageChunking,
		Current: total,
		Total:   total,
		Message: "Chunking complete",
	})
	return results, nil
}

// annotateFiles attaches C++ symbol names to the chunks of each file. A parse
// failure is a warning for that file; cancellation aborts the stage.
func (r *Runner) annotateFiles(ctx context.Context, files []*scanner.FileInfo, results []fileChunks) error {
	total := 0
	for i := range results {
		if results[i].source != "" {
			total++
		}
	}

	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageAnnotating,
		Current: 0,
		Total:   total,
		Message: "Extracting symbols...",
	})

	workers := r.config.Performance.ChunkWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range results {
		if results[i].source == "" {
			continue
		}
		g.Go(func() error {
			fc := &results[i]
			source := fc.source
			fc.source = ""
			symbols, err := chunk.ExtractSymbols(gctx, []byte(source))
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slog.Warn("symbol_extraction_failed",
					slog.String("path", files[i].Path),
					slog.String("error", err.Error()))
				fc.warning = err
				return nil
			}
			chunk.Annotate(fc.chunks, symbols)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageAnnotating,
		Current: total,
		Total:   total,
		Message: "Symbols attached",
	})
	return nil
}

// embedAndIndex embeds chunks batch by batch and appends each batch to idx.
// The position returned by the index must match the position of the batch's
// first chunk.
func (r *Runner) embedAndIndex(ctx context.Context, chunks []*chunk.Chunk, idx store.VectorIndex, timing *stageTiming) error {
	total := len(chunks)
	batchSize := r.config.Embeddings.BatchSize
	if batchSize <= 0 {
		batchSize = embed.DefaultBatchSize
	}
	timeout := r.config.EmbedTimeout()
	keepVectors := r.config.Output.IncludeEmbeddings

	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageEmbedding,
		Current: 0,
		Total:   total,
		Message: "Generating embeddings...",
	})

	dims := idx.Dimensions()
	for i := 0; i < total; i += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(i+batchSize, total)
		batch := chunks[i:end]
		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = c.Text
		}

		embedStart := time.Now()
		vectors, err := r.embedBatch(ctx, texts, timeout)
		if err != nil {
			return err
		}
		if err := embed.CheckBatch(texts, vectors, dims); err != nil {
			return err
		}
		dims = len(vectors[0])
		timing.embed += time.Since(embedStart)

		indexStart := time.Now()
		first, err := idx.Add(ctx, vectors)
		if err != nil {
			if _, ok := cerrors.As(err); !ok {
				err = cerrors.IndexError("failed to add vectors", err)
			}
			return err
		}
		if first != batch[0].Position {
			return cerrors.IndexError(
				fmt.Sprintf("index assigned position %d to chunk %d", first, batch[0].Position), nil)
		}
		timing.index += time.Since(indexStart)

		if keepVectors {
			for j, c := range batch {
				c.Embedding = vectors[j]
			}
		}

		slog.Debug("embed_batch",
			slog.Int("first", first),
			slog.Int("size", len(batch)),
			slog.Int("dimensions", dims),
			slog.Duration("elapsed", time.Since(embedStart)))

		r.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:       ui.StageEmbedding,
			Current:     end,
			Total:       total,
			CurrentFile: batch[len(batch)-1].FilePath,
			Message:     fmt.Sprintf("Embedded %d/%d chunks", end, total),
		})
	}

	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageIndexing,
		Current: idx.Size(),
		Total:   total,
		Message: fmt.Sprintf("Indexed %d vectors", idx.Size()),
	})
	return nil
}

func (r *Runner) embedBatch(ctx context.Context, texts []string, timeout time.Duration) ([][]float32, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	vectors, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		if _, ok := cerrors.As(err); !ok {
			err = cerrors.EmbeddingError("embedding batch failed", err).
				WithDetail("model", r.embedder.ModelName())
		}
		return nil, err
	}
	return vectors, nil
}

func (r *Runner) warnSkipped(s *scanner.SkippedFile) {
	attrs := []any{
		slog.String("path", s.Path),
		slog.String("reason", string(s.Reason)),
	}
	if s.Err != nil {
		attrs = append(attrs, slog.String("error", s.Err.Error()))
	}
	slog.Warn("file_skipped", attrs...)

	err := s.Err
	if err == nil {
		err = fmt.Errorf("skipped: %s", s.Reason)
	}
	r.renderer.AddError(ui.ErrorEvent{File: s.Path, Err: err, IsWarn: true})
}

// abort reports a fatal error and normalizes cancellation.
func (r *Runner) abort(ctx context.Context, err error) error {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		err = cerrors.New(cerrors.ErrCodeInternal, "indexing cancelled", err).
			WithSuggestion("no artifacts were written; run the command again")
	}
	r.renderer.AddError(ui.ErrorEvent{Err: err})
	_ = r.renderer.Stop()
	slog.Error("index_failed", cerrors.FormatForLog(err)...)
	return err
}

// toRecords converts chunks into metadata records. ID is the chunk position.
func toRecords(chunks []*chunk.Chunk, withEmbeddings bool) []store.Record {
	records := make([]store.Record, len(chunks))
	for i, c := range chunks {
		records[i] = store.Record{
			ID:          c.Position,
			ChunkID:     c.ID,
			Path:        c.FilePath,
			Unit:        string(c.Unit),
			StartOffset: c.StartOffset,
			EndOffset:   c.EndOffset,
			Text:        c.Text,
			Symbols:     c.Symbols,
		}
		if withEmbeddings {
			records[i].Embedding = c.Embedding
		}
	}
	return records
}

func absOrSelf(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
