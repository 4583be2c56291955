package store

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"sort"
	"strconv"
	"sync"

	"github.com/coder/hnsw"

	cerrors "github.com/Aman-CERP/codecorpus/internal/errors"
)

// HNSWConfig tunes the approximate index.
type HNSWConfig struct {
	Dimensions int
	Metric     string
	M          int
	EfSearch   int
}

// HNSWIndex is an approximate index backed by coder/hnsw. Node keys are
// positions, so keys are dense and never reused.
type HNSWIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config HNSWConfig
	count  int
}

// NewHNSWIndex creates an empty HNSW index.
func NewHNSWIndex(cfg HNSWConfig) *HNSWIndex {
	if cfg.Metric == "" {
		cfg.Metric = MetricL2
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 64
	}
	return &HNSWIndex{graph: newGraph(cfg), config: cfg}
}

func newGraph(cfg HNSWConfig) *hnsw.Graph[uint64] {
	graph := hnsw.NewGraph[uint64]()
	switch cfg.Metric {
	case MetricCosine:
		graph.Distance = hnsw.CosineDistance
	default:
		graph.Distance = hnsw.EuclideanDistance
	}
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25
	return graph
}

// Add inserts vectors at the next positions.
func (h *HNSWIndex) Add(ctx context.Context, vectors [][]float32) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	first := h.count
	dims, err := checkVectors(h.config.Dimensions, vectors, first)
	if err != nil {
		return first, err
	}
	h.config.Dimensions = dims

	for i, v := range vectors {
		if err := ctx.Err(); err != nil {
			return first, err
		}
		h.graph.Add(hnsw.MakeNode(uint64(first+i), prepare(v, h.config.Metric)))
		h.count++
	}
	return first, nil
}

// Size returns the number of stored vectors.
func (h *HNSWIndex) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Dimensions returns the vector width.
func (h *HNSWIndex) Dimensions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.config.Dimensions
}

// Kind returns "hnsw".
func (h *HNSWIndex) Kind() string { return KindHNSW }

// Metric returns the distance metric.
func (h *HNSWIndex) Metric() string { return h.config.Metric }

// Vector returns a copy of the vector at position.
func (h *HNSWIndex) Vector(position int) ([]float32, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if position < 0 || position >= h.count {
		return nil, false
	}
	v, ok := h.graph.Lookup(uint64(position))
	if !ok {
		return nil, false
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out, true
}

// Search returns approximate nearest neighbors, distances recomputed so they
// are comparable with FlatIndex.
func (h *HNSWIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if k <= 0 || h.count == 0 {
		return []Hit{}, nil
	}
	if len(query) != h.config.Dimensions {
		return nil, dimensionError(h.config.Dimensions, len(query), -1)
	}
	if k > h.count {
		k = h.count
	}

	q := prepare(query, h.config.Metric)
	dist := distanceFunc(h.config.Metric)

	nodes := h.graph.Search(q, k)
	hits := make([]Hit, 0, len(nodes))
	for _, n := range nodes {
		hits = append(hits, Hit{Position: int(n.Key), Distance: dist(q, n.Value)})
	}
	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].Distance == hits[b].Distance {
			return hits[a].Position < hits[b].Position
		}
		return hits[a].Distance < hits[b].Distance
	})
	return hits, nil
}

// Save writes a small header followed by the exported graph.
func (h *HNSWIndex) Save(w io.Writer) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	hdr := flatHeader{Dims: uint32(h.config.Dimensions), Count: uint64(h.count)}
	if h.config.Metric == MetricCosine {
		hdr.Metric = 1
	}
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return cerrors.PersistError("write hnsw header", err)
	}
	if h.count == 0 {
		return nil
	}
	if err := h.graph.Export(w); err != nil {
		return cerrors.PersistError("export hnsw graph", err)
	}
	return nil
}

// Load replaces the index with a saved graph.
func (h *HNSWIndex) Load(r io.Reader) error {
	br := bufio.NewReader(r)

	var hdr flatHeader
	if err := binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return cerrors.New(cerrors.ErrCodeCorruptIndex, "read hnsw header", err)
	}

	cfg := h.config
	cfg.Dimensions = int(hdr.Dims)
	cfg.Metric = MetricL2
	if hdr.Metric == 1 {
		cfg.Metric = MetricCosine
	}
	graph := newGraph(cfg)
	if hdr.Count > 0 {
		// Import requires an io.ByteReader.
		if err := graph.Import(br); err != nil {
			return cerrors.New(cerrors.ErrCodeCorruptIndex, "import hnsw graph", err)
		}
		if graph.Len() != int(hdr.Count) {
			return cerrors.New(cerrors.ErrCodeCorruptIndex, "hnsw graph size does not match header", nil).
				WithDetail("header", strconv.Itoa(int(hdr.Count))).
				WithDetail("graph", strconv.Itoa(graph.Len()))
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.graph = graph
	h.config = cfg
	h.count = int(hdr.Count)
	return nil
}

var _ VectorIndex = (*HNSWIndex)(nil)
