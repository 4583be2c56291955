package searcher

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/codecorpus/internal/embed"
	cerrors "github.com/Aman-CERP/codecorpus/internal/errors"
	"github.com/Aman-CERP/codecorpus/internal/store"
)

// VectorSearcher embeds the query and searches the vector index. Hits are
// joined with the metadata record at the same position.
type VectorSearcher struct {
	embedder embed.Embedder
	index    store.VectorIndex
	records  []store.Record
}

// VectorOption configures VectorSearcher.
type VectorOption func(*VectorSearcher)

// WithSearchEmbedder sets the embedder for query embedding.
func WithSearchEmbedder(e embed.Embedder) VectorOption {
	return func(s *VectorSearcher) {
		s.embedder = e
	}
}

// WithSearchIndex sets the vector index.
func WithSearchIndex(idx store.VectorIndex) VectorOption {
	return func(s *VectorSearcher) {
		s.index = idx
	}
}

// WithRecords sets the metadata records aligned with the index.
func WithRecords(records []store.Record) VectorOption {
	return func(s *VectorSearcher) {
		s.records = records
	}
}

// NewVectorSearcher creates a new vector searcher. The records must line up
// with the index one to one.
func NewVectorSearcher(opts ...VectorOption) (*VectorSearcher, error) {
	s := &VectorSearcher{}
	for _, opt := range opts {
		opt(s)
	}

	if s.embedder == nil {
		return nil, ErrNilEmbedder
	}
	if s.index == nil {
		return nil, ErrNilIndex
	}
	if len(s.records) != s.index.Size() {
		return nil, cerrors.New(cerrors.ErrCodeArtifactMismatch,
			fmt.Sprintf("metadata has %d records, index has %d vectors", len(s.records), s.index.Size()), nil).
			WithSuggestion("Rebuild the corpus with 'codecorpus index'")
	}
	return s, nil
}

// Search executes a nearest-neighbor search and returns ranked results.
func (s *VectorSearcher) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if s.index.Size() == 0 {
		return []Result{}, nil
	}

	embedding, err := embedQuery(ctx, s.embedder, query, s.index.Dimensions())
	if err != nil {
		return nil, err
	}

	hits, err := s.index.Search(ctx, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		if h.Position < 0 || h.Position >= len(s.records) {
			return nil, cerrors.New(cerrors.ErrCodeArtifactMismatch,
				fmt.Sprintf("index returned position %d outside metadata", h.Position), nil)
		}
		results = append(results, Result{
			Rank:     len(results) + 1,
			Position: h.Position,
			Distance: h.Distance,
			Score:    similarity(h.Distance, s.index.Metric()),
			Record:   s.records[h.Position],
		})
	}
	return results, nil
}

// embedQuery embeds query and checks it against the corpus width.
func embedQuery(ctx context.Context, e embed.Embedder, query string, dims int) ([]float32, error) {
	embedding, err := e.Embed(ctx, query)
	if err != nil {
		if _, ok := cerrors.As(err); ok {
			return nil, err
		}
		return nil, cerrors.EmbeddingError("embedding query failed", err)
	}
	if dims > 0 && len(embedding) != dims {
		return nil, cerrors.New(cerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("query embedding has %d dimensions, corpus has %d", len(embedding), dims), nil).
			WithDetail("model", e.ModelName()).
			WithSuggestion("Search with the model the corpus was built with")
	}
	return embedding, nil
}

// similarity turns a distance into a score where higher is better.
func similarity(distance float32, metric string) float64 {
	if metric == store.MetricCosine {
		return 1 - float64(distance)
	}
	return 1 / (1 + float64(distance))
}
