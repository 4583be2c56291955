package store

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	cerrors "github.com/Aman-CERP/codecorpus/internal/errors"
)

// Index artifact layout:
//
//	magic "CCIX" | version uint8 | header length uint32 LE | JSON Manifest | index payload
const (
	indexMagic   = "CCIX"
	indexVersion = 1

	maxManifestBytes = 1 << 20
)

// Manifest describes the run that produced an artifact pair.
type Manifest struct {
	RunID      string    `json:"run_id"`
	CreatedAt  time.Time `json:"created_at"`
	Provider   string    `json:"provider,omitempty"`
	Model      string    `json:"model"`
	Dimensions int       `json:"dimensions"`
	Count      int       `json:"count"`
	Unit       string    `json:"unit"`
	ChunkSize  int       `json:"chunk_size"`
	Overlap    int       `json:"overlap"`
	IndexKind  string    `json:"index_kind"`
	Metric     string    `json:"metric"`
	RootDir    string    `json:"root_dir"`
	Extensions []string  `json:"extensions,omitempty"`
}

// WithIndex returns m with Count, Dimensions, IndexKind and Metric taken
// from idx.
func (m Manifest) WithIndex(idx VectorIndex) Manifest {
	m.Count = idx.Size()
	m.Dimensions = idx.Dimensions()
	m.IndexKind = idx.Kind()
	m.Metric = idx.Metric()
	return m
}

// WriteIndex writes the artifact header and idx to w. Count, Dimensions,
// IndexKind and Metric are taken from idx.
func WriteIndex(w io.Writer, m Manifest, idx VectorIndex) error {
	m = m.WithIndex(idx)

	header, err := json.Marshal(m)
	if err != nil {
		return cerrors.PersistError("encode manifest", err)
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(indexMagic); err != nil {
		return cerrors.PersistError("write index magic", err)
	}
	if err := bw.WriteByte(indexVersion); err != nil {
		return cerrors.PersistError("write index version", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(header))); err != nil {
		return cerrors.PersistError("write manifest length", err)
	}
	if _, err := bw.Write(header); err != nil {
		return cerrors.PersistError("write manifest", err)
	}
	if err := idx.Save(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return cerrors.PersistError("flush index", err)
	}
	return nil
}

// ReadManifest reads only the artifact header.
func ReadManifest(r io.Reader) (Manifest, error) {
	var m Manifest

	magic := make([]byte, len(indexMagic)+1)
	if _, err := io.ReadFull(r, magic); err != nil {
		return m, cerrors.New(cerrors.ErrCodeCorruptIndex, "read index magic", err)
	}
	if string(magic[:len(indexMagic)]) != indexMagic {
		return m, cerrors.New(cerrors.ErrCodeCorruptIndex, "not a codecorpus index", nil).
			WithSuggestion("Rebuild with 'codecorpus index'")
	}
	if v := magic[len(indexMagic)]; v != indexVersion {
		return m, cerrors.New(cerrors.ErrCodeCorruptIndex, fmt.Sprintf("unsupported index version %d", v), nil)
	}

	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return m, cerrors.New(cerrors.ErrCodeCorruptIndex, "read manifest length", err)
	}
	if n > maxManifestBytes {
		return m, cerrors.New(cerrors.ErrCodeCorruptIndex, fmt.Sprintf("manifest of %d bytes", n), nil)
	}
	header := make([]byte, n)
	if _, err := io.ReadFull(r, header); err != nil {
		return m, cerrors.New(cerrors.ErrCodeCorruptIndex, "read manifest", err)
	}
	if err := json.Unmarshal(header, &m); err != nil {
		return m, cerrors.New(cerrors.ErrCodeCorruptIndex, "decode manifest", err)
	}
	return m, nil
}

// ReadIndex reads an artifact and returns its manifest and index.
func ReadIndex(r io.Reader) (Manifest, VectorIndex, error) {
	br := bufio.NewReader(r)
	m, err := ReadManifest(br)
	if err != nil {
		return m, nil, err
	}

	idx, err := NewIndex(IndexOptions{Kind: m.IndexKind, Metric: m.Metric, Dimensions: m.Dimensions})
	if err != nil {
		return m, nil, cerrors.New(cerrors.ErrCodeCorruptIndex, "manifest names an unusable index", err)
	}
	if err := idx.Load(br); err != nil {
		return m, nil, err
	}
	if idx.Size() != m.Count {
		return m, nil, cerrors.New(cerrors.ErrCodeCorruptIndex,
			fmt.Sprintf("manifest count %d, index holds %d", m.Count, idx.Size()), nil)
	}
	return m, idx, nil
}

// OpenIndex loads an index artifact from path.
func OpenIndex(path string) (Manifest, VectorIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, nil, cerrors.New(cerrors.ErrCodeFileNotFound, "index not found: "+path, err).
				WithSuggestion("Run 'codecorpus index' first")
		}
		return Manifest{}, nil, cerrors.IOError("open index", err)
	}
	defer func() { _ = f.Close() }()
	return ReadIndex(f)
}

// OpenManifest reads the header of the index at path.
func OpenManifest(path string) (Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, cerrors.New(cerrors.ErrCodeFileNotFound, "index not found: "+path, err)
		}
		return Manifest{}, cerrors.IOError("open index", err)
	}
	defer func() { _ = f.Close() }()
	return ReadManifest(bufio.NewReader(f))
}
