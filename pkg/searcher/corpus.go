package searcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Aman-CERP/codecorpus/internal/embed"
	cerrors "github.com/Aman-CERP/codecorpus/internal/errors"
	"github.com/Aman-CERP/codecorpus/internal/store"
)

// OpenOptions selects the artifact pair and the query embedder.
type OpenOptions struct {
	IndexPath    string
	MetadataPath string
	// Format empty picks the codec from MetadataPath.
	Format store.MetadataFormat

	// Provider and Model override the embedder named in the manifest.
	Provider embed.ProviderType
	Model    string
	// DefaultProvider is used when neither Provider nor the manifest names
	// one, as with artifacts written before the manifest recorded it.
	DefaultProvider embed.ProviderType

	// Embedder options. CacheSize 0 uses embed.DefaultEmbeddingCacheSize.
	Embed embed.Options

	// Scan uses ScanSearcher instead of the index.
	Scan bool

	// Embedder replaces the embedder built from the manifest.
	Embedder embed.Embedder
}

// Corpus is an opened artifact pair ready for queries.
type Corpus struct {
	Manifest store.Manifest

	searcher Searcher
	embedder embed.Embedder
	size     int
}

// Open loads both artifacts and builds the searcher. It fails with
// ErrCodeArtifactMismatch when the artifacts do not line up.
func Open(ctx context.Context, opts OpenOptions) (*Corpus, error) {
	manifest, idx, err := store.OpenIndex(opts.IndexPath)
	if err != nil {
		return nil, err
	}
	records, err := store.ReadMetadata(ctx, opts.MetadataPath, opts.Format)
	if err != nil {
		return nil, err
	}
	if len(records) != idx.Size() {
		return nil, cerrors.New(cerrors.ErrCodeArtifactMismatch,
			fmt.Sprintf("metadata has %d records, index has %d vectors", len(records), idx.Size()), nil).
			WithDetail("index", opts.IndexPath).
			WithDetail("metadata", opts.MetadataPath).
			WithSuggestion("Rebuild the corpus with 'codecorpus index'")
	}

	embedder := opts.Embedder
	if embedder == nil {
		model := opts.Model
		if model == "" {
			model = manifest.Model
		}
		eopts := opts.Embed
		if eopts.CacheSize == 0 {
			eopts.CacheSize = embed.DefaultEmbeddingCacheSize
		}
		if eopts.Dimensions == 0 {
			eopts.Dimensions = manifest.Dimensions
		}
		embedder, err = embed.NewEmbedder(ctx, queryProvider(opts, manifest), model, eopts)
		if err != nil {
			return nil, err
		}
	}

	var s Searcher
	if opts.Scan {
		s, err = NewScanSearcher(embedder, records)
	} else {
		s, err = NewVectorSearcher(
			WithSearchEmbedder(embedder),
			WithSearchIndex(idx),
			WithRecords(records),
		)
	}
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}

	slog.Debug("corpus_opened",
		slog.String("run_id", manifest.RunID),
		slog.String("model", embedder.ModelName()),
		slog.Int("count", idx.Size()),
		slog.Bool("scan", opts.Scan))

	return &Corpus{
		Manifest: manifest,
		searcher: s,
		embedder: embedder,
		size:     idx.Size(),
	}, nil
}

// queryProvider picks the provider for the query embedder: an explicit
// option, then the one recorded at index time when the model also comes from
// the manifest, then DefaultProvider.
func queryProvider(opts OpenOptions, manifest store.Manifest) embed.ProviderType {
	if opts.Provider != "" && opts.Provider != embed.ProviderAuto {
		return opts.Provider
	}
	if opts.Model == "" && manifest.Provider != "" {
		if p, err := embed.ParseProvider(manifest.Provider); err == nil && p != embed.ProviderAuto {
			return p
		}
	}
	if opts.DefaultProvider != "" {
		return opts.DefaultProvider
	}
	return embed.ProviderAuto
}

// Size is the number of chunks in the corpus.
func (c *Corpus) Size() int {
	return c.size
}

// Search returns at most limit chunks for query, best first.
func (c *Corpus) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	return c.searcher.Search(ctx, query, limit)
}

// Close releases the query embedder.
func (c *Corpus) Close() error {
	return c.embedder.Close()
}
