package searcher

import (
	"context"
	"errors"

	"github.com/Aman-CERP/codecorpus/internal/store"
)

// DefaultLimit is the number of results returned when limit <= 0.
const DefaultLimit = 3

// ErrNilEmbedder is returned when a searcher is created without an embedder.
var ErrNilEmbedder = errors.New("embedder is required")

// ErrNilIndex is returned when a VectorSearcher is created without an index.
var ErrNilIndex = errors.New("vector index is required")

// Searcher performs search operations and returns ranked results.
//
// Implementations must be thread-safe for concurrent use.
type Searcher interface {
	// Search embeds query and returns at most limit results, best first.
	// Returns an empty slice (not nil) if the corpus is empty.
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// Result is one retrieved chunk.
type Result struct {
	// Rank is the 1-based position in the result list.
	Rank int `json:"rank"`

	// Position is the chunk's row in the index and the metadata.
	Position int `json:"position"`

	// Distance is the index distance (squared L2 or cosine distance).
	// Zero for scan results.
	Distance float32 `json:"distance"`

	// Score is a similarity in which higher is better.
	Score float64 `json:"score"`

	Record store.Record `json:"record"`
}
