package store

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"sync"

	cerrors "github.com/Aman-CERP/codecorpus/internal/errors"
)

// FlatIndex is an exact nearest-neighbor index over a contiguous float32 slab.
type FlatIndex struct {
	mu     sync.RWMutex
	dims   int
	metric string
	data   []float32
	count  int
}

// NewFlatIndex creates an empty flat index. dims 0 learns the width from the
// first Add.
func NewFlatIndex(dims int, metric string) *FlatIndex {
	if metric == "" {
		metric = MetricL2
	}
	return &FlatIndex{dims: dims, metric: metric}
}

// Add appends vectors in order.
func (f *FlatIndex) Add(ctx context.Context, vectors [][]float32) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	first := f.count
	dims, err := checkVectors(f.dims, vectors, first)
	if err != nil {
		return first, err
	}
	f.dims = dims

	for _, v := range vectors {
		f.data = append(f.data, prepare(v, f.metric)...)
	}
	f.count += len(vectors)
	return first, nil
}

// Size returns the number of stored vectors.
func (f *FlatIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.count
}

// Dimensions returns the vector width.
func (f *FlatIndex) Dimensions() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dims
}

// Kind returns "flat".
func (f *FlatIndex) Kind() string { return KindFlat }

// Metric returns the distance metric.
func (f *FlatIndex) Metric() string { return f.metric }

// Vector returns a copy of the vector at position.
func (f *FlatIndex) Vector(position int) ([]float32, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if position < 0 || position >= f.count {
		return nil, false
	}
	out := make([]float32, f.dims)
	copy(out, f.data[position*f.dims:(position+1)*f.dims])
	return out, true
}

// Search scans every vector. Ties keep position order.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if k <= 0 || f.count == 0 {
		return []Hit{}, nil
	}
	if len(query) != f.dims {
		return nil, dimensionError(f.dims, len(query), -1)
	}

	q := prepare(query, f.metric)
	dist := distanceFunc(f.metric)

	hits := make([]Hit, f.count)
	for i := 0; i < f.count; i++ {
		hits[i] = Hit{Position: i, Distance: dist(q, f.data[i*f.dims:(i+1)*f.dims])}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Distance < hits[b].Distance })

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// maxFlatValues rejects headers that would allocate more than 16 GiB.
const maxFlatValues = 1 << 32

// flatHeader precedes the little-endian vector slab.
type flatHeader struct {
	Dims   uint32
	Metric uint8
	Count  uint64
}

// Save writes the header and the raw vectors.
func (f *FlatIndex) Save(w io.Writer) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	bw := bufio.NewWriter(w)
	hdr := flatHeader{Dims: uint32(f.dims), Count: uint64(f.count)}
	if f.metric == MetricCosine {
		hdr.Metric = 1
	}
	if err := binary.Write(bw, binary.LittleEndian, hdr); err != nil {
		return cerrors.PersistError("write flat index header", err)
	}
	if len(f.data) > 0 {
		if err := binary.Write(bw, binary.LittleEndian, f.data); err != nil {
			return cerrors.PersistError("write flat index vectors", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return cerrors.PersistError("flush flat index", err)
	}
	return nil
}

// Load replaces the index contents with a saved index.
func (f *FlatIndex) Load(r io.Reader) error {
	var hdr flatHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return cerrors.New(cerrors.ErrCodeCorruptIndex, "read flat index header", err)
	}

	total := uint64(hdr.Dims) * hdr.Count
	if hdr.Count > 0 && hdr.Dims == 0 {
		return cerrors.New(cerrors.ErrCodeCorruptIndex,
			fmt.Sprintf("flat index has %d vectors of width 0", hdr.Count), nil)
	}
	if total > maxFlatValues {
		return cerrors.New(cerrors.ErrCodeCorruptIndex,
			fmt.Sprintf("flat index claims %d values", total), nil)
	}
	data := make([]float32, total)
	if total > 0 {
		if err := binary.Read(r, binary.LittleEndian, data); err != nil {
			return cerrors.New(cerrors.ErrCodeCorruptIndex, "read flat index vectors", err)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.dims = int(hdr.Dims)
	f.count = int(hdr.Count)
	f.data = data
	f.metric = MetricL2
	if hdr.Metric == 1 {
		f.metric = MetricCosine
	}
	return nil
}

var _ VectorIndex = (*FlatIndex)(nil)
