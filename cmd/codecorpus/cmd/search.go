package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/codecorpus/internal/embed"
	"github.com/Aman-CERP/codecorpus/internal/store"
	"github.com/Aman-CERP/codecorpus/pkg/indexer"
	"github.com/Aman-CERP/codecorpus/pkg/searcher"
)

// corpusFlags locate a built corpus and its query model.
type corpusFlags struct {
	indexPath    string
	metadataPath string
	model        string
	provider     string
	scan         bool
}

func (f *corpusFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.scan, "scan", false, "Score stored embeddings instead of searching the index")
	cmd.Flags().StringVar(&f.indexPath, "index", "", "Index artifact (default: output.index_path)")
	cmd.Flags().StringVar(&f.metadataPath, "metadata", "", "Metadata artifact (default: output.metadata_path)")
	cmd.Flags().StringVar(&f.model, "model", "", "Query model (default: the model in the index manifest)")
	cmd.Flags().StringVar(&f.provider, "provider", "", "Embedding provider for the query model")
}

// open loads the corpus named by the flags, falling back to the config.
func (f *corpusFlags) open(ctx context.Context, root *rootOptions) (*searcher.Corpus, error) {
	cfg, err := root.loadConfig(".")
	if err != nil {
		return nil, err
	}
	indexPath, metadataPath := f.indexPath, f.metadataPath
	if indexPath == "" {
		indexPath = cfg.Output.IndexPath
	}
	if metadataPath == "" {
		metadataPath = cfg.Output.MetadataPath
	}
	p, err := embed.ParseProvider(f.provider)
	if err != nil {
		return nil, err
	}
	fallback, err := embed.ParseProvider(cfg.Embeddings.Provider)
	if err != nil {
		return nil, err
	}
	format, err := store.ParseMetadataFormat(cfg.Output.MetadataFormat)
	if err != nil {
		return nil, err
	}

	return searcher.Open(ctx, searcher.OpenOptions{
		IndexPath:       indexPath,
		MetadataPath:    metadataPath,
		Format:          format,
		Provider:        p,
		Model:           f.model,
		DefaultProvider: fallback,
		Embed:           indexer.EmbedOptions(cfg, cfg.Embeddings.CacheSize),
		Scan:            f.scan,
	})
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	var (
		limit      int
		jsonOutput bool
		maxLines   int
		corpusOpts corpusFlags
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find the chunks closest to a query",
		Long: `Embed the query with the corpus model, search the index and print the
matching chunks with their source location.

--scan scores every stored embedding by cosine similarity instead of using
the index. It needs a corpus built with embeddings in the metadata.`,
		Example: `  codecorpus search "how is the transposition table resized"
  codecorpus search -k 5 --json "null move pruning"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			corpus, err := corpusOpts.open(ctx, root)
			if err != nil {
				return err
			}
			defer func() { _ = corpus.Close() }()

			results, err := corpus.Search(ctx, strings.Join(args, " "), limit)
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeResultsJSON(cmd.OutOrStdout(), results)
			}
			writeResults(cmd.OutOrStdout(), results, maxLines)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "k", searcher.DefaultLimit, "Number of results")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	corpusOpts.register(cmd)
	cmd.Flags().IntVar(&maxLines, "max-lines", 12, "Lines of chunk text to print, 0 for all")

	return cmd
}

func writeResults(w io.Writer, results []searcher.Result, maxLines int) {
	if len(results) == 0 {
		_, _ = fmt.Fprintln(w, "No results.")
		return
	}
	for _, r := range results {
		rec := r.Record
		_, _ = fmt.Fprintf(w, "%d. %s:%d-%d (%s, score %.4f)\n",
			r.Rank, rec.Path, rec.StartOffset, rec.EndOffset, rec.Unit, r.Score)
		if len(rec.Symbols) > 0 {
			_, _ = fmt.Fprintf(w, "   symbols: %s\n", strings.Join(rec.Symbols, ", "))
		}

		lines := strings.Split(strings.TrimRight(rec.Text, "\n"), "\n")
		shown := lines
		if maxLines > 0 && len(lines) > maxLines {
			shown = lines[:maxLines]
		}
		for _, line := range shown {
			_, _ = fmt.Fprintf(w, "   | %s\n", line)
		}
		if len(shown) < len(lines) {
			_, _ = fmt.Fprintf(w, "   | ... %d more lines\n", len(lines)-len(shown))
		}
		_, _ = fmt.Fprintln(w)
	}
}

// writeResultsJSON prints results without the stored embeddings.
func writeResultsJSON(w io.Writer, results []searcher.Result) error {
	out := make([]searcher.Result, len(results))
	for i, r := range results {
		r.Record.Embedding = nil
		out[i] = r
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
