package store

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"

	cerrors "github.com/Aman-CERP/codecorpus/internal/errors"
)

// Index kinds.
const (
	KindFlat = "flat"
	KindHNSW = "hnsw"
)

// Distance metrics.
const (
	MetricL2     = "l2"
	MetricCosine = "cosine"
)

// Hit is one search result. Position is the slot in the index, which is also
// the record's position in the metadata artifact.
type Hit struct {
	Position int
	// Distance is squared L2 for l2 and 1-cos for cosine. Lower is closer.
	Distance float32
}

// VectorIndex stores fixed-width vectors at consecutive positions starting at 0.
type VectorIndex interface {
	// Add appends vectors and returns the position of the first one.
	Add(ctx context.Context, vectors [][]float32) (int, error)

	// Size returns the number of stored vectors.
	Size() int

	// Dimensions returns the vector width, 0 until the first Add on an
	// index created without a width.
	Dimensions() int

	// Search returns up to k hits ordered by ascending distance.
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)

	// Vector returns a copy of the stored vector at position.
	Vector(position int) ([]float32, bool)

	Save(w io.Writer) error
	Load(r io.Reader) error

	Kind() string
	Metric() string
}

// IndexOptions are the tunables passed to NewIndex.
type IndexOptions struct {
	Kind       string
	Metric     string
	Dimensions int

	// HNSW only
	M        int
	EfSearch int
}

// ParseKind validates an index kind. Empty means flat.
func ParseKind(s string) (string, error) {
	switch k := strings.ToLower(strings.TrimSpace(s)); k {
	case "", KindFlat:
		return KindFlat, nil
	case KindHNSW:
		return KindHNSW, nil
	default:
		return "", cerrors.New(cerrors.ErrCodeUnknownIndexKind, "unknown index kind: "+s, nil).
			WithSuggestion("Use flat or hnsw")
	}
}

// ParseMetric validates a metric. Empty means l2.
func ParseMetric(s string) (string, error) {
	switch m := strings.ToLower(strings.TrimSpace(s)); m {
	case "", MetricL2:
		return MetricL2, nil
	case MetricCosine, "cos":
		return MetricCosine, nil
	default:
		return "", cerrors.New(cerrors.ErrCodeConfigInvalid, "unknown distance metric: "+s, nil).
			WithSuggestion("Use l2 or cosine")
	}
}

// NewIndex creates an empty index.
func NewIndex(opts IndexOptions) (VectorIndex, error) {
	kind, err := ParseKind(opts.Kind)
	if err != nil {
		return nil, err
	}
	metric, err := ParseMetric(opts.Metric)
	if err != nil {
		return nil, err
	}
	if opts.Dimensions < 0 {
		return nil, cerrors.IndexError(fmt.Sprintf("negative dimensions: %d", opts.Dimensions), nil)
	}

	switch kind {
	case KindHNSW:
		return NewHNSWIndex(HNSWConfig{
			Dimensions: opts.Dimensions,
			Metric:     metric,
			M:          opts.M,
			EfSearch:   opts.EfSearch,
		}), nil
	default:
		return NewFlatIndex(opts.Dimensions, metric), nil
	}
}

// dimensionError reports a vector whose width differs from the index.
func dimensionError(expected, got, at int) error {
	return cerrors.New(cerrors.ErrCodeDimensionMismatch,
		fmt.Sprintf("dimension mismatch: expected %d, got %d", expected, got), nil).
		WithDetail("position", fmt.Sprint(at))
}

// checkVectors validates a batch against dims, learning dims from the first
// vector when it is 0. It returns the resulting width.
func checkVectors(dims int, vectors [][]float32, first int) (int, error) {
	for i, v := range vectors {
		if len(v) == 0 {
			return dims, cerrors.IndexError(fmt.Sprintf("empty vector at position %d", first+i), nil)
		}
		if dims == 0 {
			dims = len(v)
		}
		if len(v) != dims {
			return dims, dimensionError(dims, len(v), first+i)
		}
	}
	return dims, nil
}

// squaredL2 matches the distance reported by faiss IndexFlatL2.
func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// cosineDistance assumes both vectors are unit length.
func cosineDistance(a, b []float32) float32 {
	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}
	return 1 - dot
}

func distanceFunc(metric string) func(a, b []float32) float32 {
	if metric == MetricCosine {
		return cosineDistance
	}
	return squaredL2
}

// normalized returns a unit-length copy of v.
func normalized(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	var sumSquares float64
	for _, val := range out {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return out
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range out {
		out[i] *= inv
	}
	return out
}

// prepare copies v, normalizing it for the cosine metric.
func prepare(v []float32, metric string) []float32 {
	if metric == MetricCosine {
		return normalized(v)
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
