package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/codecorpus/internal/config"
	"github.com/Aman-CERP/codecorpus/internal/profiling"
	"github.com/Aman-CERP/codecorpus/internal/ui"
	"github.com/Aman-CERP/codecorpus/pkg/indexer"
)

// indexFlags are the per-run overrides of the index command.
type indexFlags struct {
	preset         string
	indexOut       string
	metadataOut    string
	metadataFormat string
	unit           string
	chunkSize      int
	overlap        int
	model          string
	provider       string
	indexKind      string
	metric         string
	batchSize      int
	noEmbeddings   bool
	annotate       bool
	noColor        bool
	plain          bool
	quiet          bool
	profile        profiling.Options
}

func newIndexCmd(root *rootOptions) *cobra.Command {
	f := &indexFlags{}

	cmd := &cobra.Command{
		Use:   "index [root]",
		Short: "Build the corpus for a source tree",
		Long: `Index a C++ source tree into a vector index and aligned chunk metadata.

Files with the configured extensions (.cpp .h .hpp .cc by default) are
read in lexical order, cut into overlapping windows, embedded in batches
and added to the index. Both artifacts are written to temporary files and
renamed into place together, so a failed run leaves the previous corpus
untouched.

Settings come from <root>/.codecorpus.yaml, then CODECORPUS_* variables,
then the flags below.`,
		Example: `  # Index Stockfish with the default 40/10 line windows
  codecorpus index Stockfish/src

  # Character windows, HNSW index, embeddings from Ollama
  codecorpus index src --preset chars-1000 --index-kind hnsw --model ollama:nomic-embed-text

  # Metadata as SQLite without stored vectors
  codecorpus index src --metadata-out corpus.db --no-embeddings`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Ctrl+C cancels the context; no artifacts are written after that.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			cfg, err := root.loadConfig(dir)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				cfg.Paths.RootDir = dir
			}
			if err := f.apply(cmd, cfg); err != nil {
				return err
			}
			if err := root.useConfigLogging(cfg); err != nil {
				return err
			}

			renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
				ui.WithForcePlain(f.plain),
				ui.WithNoColor(f.noColor),
				ui.WithQuiet(f.quiet),
				ui.WithProjectDir(cfg.Paths.RootDir)))

			if f.profile.Enabled() {
				profiler := profiling.NewProfiler(f.profile)
				if err := profiler.Start(); err != nil {
					return err
				}
				defer func() { _ = profiler.Stop() }()
			}

			_, err = indexer.Build(ctx, cfg, indexer.WithRenderer(renderer))
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.preset, "preset", "", "Chunking preset (see 'codecorpus config presets')")
	flags.StringVar(&f.indexOut, "index-out", "", "Index artifact path")
	flags.StringVar(&f.metadataOut, "metadata-out", "", "Metadata artifact path (.json, .jsonl or .db)")
	flags.StringVar(&f.metadataFormat, "metadata-format", "", "Metadata format: json, jsonl or sqlite (default: from extension)")
	flags.StringVar(&f.unit, "unit", "", "Chunk unit: chars or lines")
	flags.IntVar(&f.chunkSize, "chunk-size", 0, "Units per chunk")
	flags.IntVar(&f.overlap, "overlap", 0, "Units shared by consecutive chunks")
	flags.StringVar(&f.model, "model", "", "Embedding model id, e.g. static, ollama:nomic-embed-text, openai:text-embedding-3-small")
	flags.StringVar(&f.provider, "provider", "", "Embedding provider: auto, static, ollama or openai")
	flags.StringVar(&f.indexKind, "index-kind", "", "Index kind: flat or hnsw")
	flags.StringVar(&f.metric, "metric", "", "Distance metric: l2 or cosine")
	flags.IntVar(&f.batchSize, "batch-size", 0, "Chunks per embedding request")
	flags.BoolVar(&f.noEmbeddings, "no-embeddings", false, "Do not store embeddings in the metadata")
	flags.BoolVar(&f.annotate, "annotate", false, "Attach C++ symbol names to chunks")
	flags.BoolVar(&f.noColor, "no-color", false, "Disable colors")
	flags.BoolVar(&f.plain, "plain", false, "Plain line output even on a terminal")
	flags.BoolVar(&f.quiet, "quiet", false, "Only print the summary line")
	flags.StringVar(&f.profile.CPUProfile, "cpuprofile", "", "Write a CPU profile of the run")
	flags.StringVar(&f.profile.MemProfile, "memprofile", "", "Write a heap profile after the run")
	flags.StringVar(&f.profile.Trace, "trace", "", "Write an execution trace of the run")

	return cmd
}

// apply overlays the flags that were set on cfg. The preset goes first so
// explicit --unit/--chunk-size/--overlap still win.
func (f *indexFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed

	if changed("preset") {
		if err := cfg.ApplyPreset(f.preset); err != nil {
			return err
		}
	}
	if changed("unit") {
		cfg.Chunking.Unit = f.unit
	}
	if changed("chunk-size") {
		cfg.Chunking.ChunkSize = f.chunkSize
	}
	if changed("overlap") {
		cfg.Chunking.Overlap = f.overlap
	}
	if changed("annotate") {
		cfg.Chunking.AnnotateSymbols = f.annotate
	}
	if changed("model") {
		cfg.Embeddings.Model = f.model
	}
	if changed("provider") {
		cfg.Embeddings.Provider = f.provider
	}
	if changed("batch-size") {
		cfg.Embeddings.BatchSize = f.batchSize
	}
	if changed("index-kind") {
		cfg.Index.Kind = f.indexKind
	}
	if changed("metric") {
		cfg.Index.Metric = f.metric
	}
	if changed("index-out") {
		cfg.Output.IndexPath = f.indexOut
	}
	if changed("metadata-out") {
		cfg.Output.MetadataPath = f.metadataOut
	}
	if changed("metadata-format") {
		cfg.Output.MetadataFormat = f.metadataFormat
	}
	if f.noEmbeddings {
		cfg.Output.IncludeEmbeddings = false
	}
	if cfg.Paths.RootDir == "" {
		return fmt.Errorf("no root directory given")
	}
	return nil
}
