package searcher

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/Aman-CERP/codecorpus/internal/embed"
	"github.com/Aman-CERP/codecorpus/internal/store"
)

// ErrNoEmbeddings is returned when records carry no stored embeddings.
var ErrNoEmbeddings = errors.New("metadata has no stored embeddings")

// ScanSearcher scores every record by cosine similarity between the query
// embedding and the record's stored embedding.
type ScanSearcher struct {
	embedder embed.Embedder
	records  []store.Record
	dims     int
}

// NewScanSearcher creates a searcher over records. Every record must carry
// an embedding of the same width.
func NewScanSearcher(e embed.Embedder, records []store.Record) (*ScanSearcher, error) {
	if e == nil {
		return nil, ErrNilEmbedder
	}
	dims := 0
	for _, r := range records {
		if len(r.Embedding) == 0 {
			return nil, ErrNoEmbeddings
		}
		if dims == 0 {
			dims = len(r.Embedding)
		}
		if len(r.Embedding) != dims {
			return nil, errors.New("stored embeddings have mixed dimensions")
		}
	}
	return &ScanSearcher{embedder: e, records: records, dims: dims}, nil
}

// Search scores all records and returns the best limit.
func (s *ScanSearcher) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(s.records) == 0 {
		return []Result{}, nil
	}

	q, err := embedQuery(ctx, s.embedder, query, s.dims)
	if err != nil {
		return nil, err
	}

	scored := make([]Result, len(s.records))
	for i := range s.records {
		scored[i] = Result{Position: i, Score: cosineSimilarity(q, s.records[i].Embedding)}
	}
	// Ties keep index order.
	sort.SliceStable(scored, func(a, b int) bool { return scored[a].Score > scored[b].Score })

	if limit > len(scored) {
		limit = len(scored)
	}
	results := scored[:limit]
	for i := range results {
		results[i].Rank = i + 1
		results[i].Record = s.records[results[i].Position]
	}
	return results, nil
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
