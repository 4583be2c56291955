package embed

import (
	"context"
	"fmt"
	"math"
	"time"

	cerrors "github.com/Aman-CERP/codecorpus/internal/errors"
)

// Common embedding constants
const (
	// MinBatchSize is the minimum allowed batch size
	MinBatchSize = 1

	// MaxBatchSize is the maximum allowed batch size (prevents memory exhaustion)
	MaxBatchSize = 256

	// DefaultBatchSize is the default batch size for embedding requests
	DefaultBatchSize = 32

	// DefaultTimeout bounds one batch call.
	DefaultTimeout = 2 * time.Minute

	// DefaultMaxRetries is the default number of retry attempts
	DefaultMaxRetries = 3
)

// Provider defaults
const (
	DefaultOllamaHost  = "http://localhost:11434"
	DefaultOllamaModel = "nomic-embed-text"

	DefaultOpenAIModel = "text-embedding-3-small"
)

// Static embedder constants
const (
	// StaticDimensions is the embedding dimension for static embedder
	StaticDimensions = 256

	// StaticModelName identifies the hash embedder in artifacts.
	StaticModelName = "static"
)

// Embedder generates vector embeddings for text.
//
// EmbedBatch returns exactly one vector per input text, in input order.
type Embedder interface {
	// Embed generates embedding for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension, 0 if not known until the first call
	Dimensions() int

	// ModelName returns the model identifier
	ModelName() string

	// Close releases resources
	Close() error
}

// CheckBatch verifies a provider response against its request: one vector per
// text and every vector of the expected dimension. dims <= 0 takes the
// dimension of the first vector.
func CheckBatch(texts []string, vectors [][]float32, dims int) error {
	if len(vectors) != len(texts) {
		return cerrors.New(cerrors.ErrCodeEmbeddingMismatch,
			fmt.Sprintf("embedder returned %d vectors for %d texts", len(vectors), len(texts)), nil)
	}
	if len(vectors) == 0 {
		return nil
	}
	if dims <= 0 {
		dims = len(vectors[0])
	}
	if dims == 0 {
		return cerrors.New(cerrors.ErrCodeEmbeddingMismatch, "embedder returned empty vectors", nil)
	}
	for i, v := range vectors {
		if len(v) != dims {
			return cerrors.New(cerrors.ErrCodeEmbeddingMismatch,
				fmt.Sprintf("vector %d has %d dimensions, expected %d", i, len(v), dims), nil).
				WithDetail("index", fmt.Sprint(i))
		}
	}
	return nil
}

// normalizeVector normalizes a vector to unit length.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v // Return as-is if zero vector
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
