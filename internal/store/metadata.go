package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	cerrors "github.com/Aman-CERP/codecorpus/internal/errors"
)

// Record is one chunk in the metadata artifact. ID equals the chunk's
// position in the index.
type Record struct {
	ID          int       `json:"id"`
	ChunkID     string    `json:"chunk_id"`
	Path        string    `json:"path"`
	Unit        string    `json:"unit"`
	StartOffset int       `json:"start_offset"`
	EndOffset   int       `json:"end_offset"`
	Text        string    `json:"text"`
	Symbols     []string  `json:"symbols,omitempty"`
	Embedding   []float32 `json:"embedding,omitempty"`
}

// MetadataFormat selects the metadata codec.
type MetadataFormat string

// Metadata formats.
const (
	FormatJSON   MetadataFormat = "json"
	FormatJSONL  MetadataFormat = "jsonl"
	FormatSQLite MetadataFormat = "sqlite"
)

// ParseMetadataFormat validates a format name. Empty means "pick from path".
func ParseMetadataFormat(s string) (MetadataFormat, error) {
	switch f := MetadataFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatJSON, FormatJSONL, FormatSQLite:
		return f, nil
	case "auto":
		return "", nil
	default:
		return "", cerrors.New(cerrors.ErrCodeConfigInvalid, "unknown metadata format: "+s, nil).
			WithSuggestion("Use json, jsonl or sqlite")
	}
}

// FormatFromPath picks a codec from the file extension, json by default.
func FormatFromPath(path string) MetadataFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return FormatJSONL
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite
	default:
		return FormatJSON
	}
}

// ResolveFormat returns f, or the format implied by path when f is empty.
func ResolveFormat(f MetadataFormat, path string) MetadataFormat {
	if f == "" {
		return FormatFromPath(path)
	}
	return f
}

// WriteMetadata writes records to path in format. The file is created or
// truncated; callers wanting atomicity write to a temp path.
func WriteMetadata(ctx context.Context, path string, format MetadataFormat, m Manifest, records []Record) error {
	switch ResolveFormat(format, path) {
	case FormatSQLite:
		return writeSQLite(ctx, path, m, records)
	case FormatJSONL:
		return writeFileSynced(path, func(w io.Writer) error { return encodeJSONL(ctx, w, records) })
	default:
		return writeFileSynced(path, func(w io.Writer) error { return encodeJSONArray(ctx, w, records) })
	}
}

// ReadMetadata loads all records from path in insertion order.
func ReadMetadata(ctx context.Context, path string, format MetadataFormat) ([]Record, error) {
	format = ResolveFormat(format, path)
	if format == FormatSQLite {
		return readSQLite(ctx, path)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cerrors.New(cerrors.ErrCodeFileNotFound, "metadata not found: "+path, err).
				WithSuggestion("Run 'codecorpus index' first")
		}
		return nil, cerrors.IOError("open metadata", err)
	}
	defer func() { _ = f.Close() }()

	if format == FormatJSONL {
		return decodeJSONL(ctx, f)
	}
	return decodeJSONArray(ctx, f)
}

// writeFileSynced creates path, runs write, and fsyncs before closing.
func writeFileSynced(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return cerrors.PersistError("create "+filepath.Base(path), err)
	}
	bw := bufio.NewWriterSize(f, 1<<20)
	if err := write(bw); err != nil {
		_ = f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return cerrors.PersistError("flush "+filepath.Base(path), err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return cerrors.PersistError("sync "+filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return cerrors.PersistError("close "+filepath.Base(path), err)
	}
	return nil
}

// encodeJSONArray streams records as one JSON array, one record per line.
func encodeJSONArray(ctx context.Context, w io.Writer, records []Record) error {
	if _, err := io.WriteString(w, "["); err != nil {
		return cerrors.PersistError("write metadata", err)
	}
	for i := range records {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		sep := ",\n"
		if i == 0 {
			sep = "\n"
		}
		if _, err := io.WriteString(w, sep); err != nil {
			return cerrors.PersistError("write metadata", err)
		}
		b, err := json.Marshal(&records[i])
		if err != nil {
			return cerrors.PersistError(fmt.Sprintf("encode record %d", i), err)
		}
		if _, err := w.Write(b); err != nil {
			return cerrors.PersistError("write metadata", err)
		}
	}
	if _, err := io.WriteString(w, "\n]\n"); err != nil {
		return cerrors.PersistError("write metadata", err)
	}
	return nil
}

func encodeJSONL(ctx context.Context, w io.Writer, records []Record) error {
	enc := json.NewEncoder(w)
	for i := range records {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := enc.Encode(&records[i]); err != nil {
			return cerrors.PersistError(fmt.Sprintf("encode record %d", i), err)
		}
	}
	return nil
}

func decodeJSONArray(ctx context.Context, r io.Reader) ([]Record, error) {
	dec := json.NewDecoder(bufio.NewReader(r))
	tok, err := dec.Token()
	if err != nil {
		return nil, cerrors.New(cerrors.ErrCodeCorruptMetadata, "read metadata", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, cerrors.New(cerrors.ErrCodeCorruptMetadata, "metadata is not a JSON array", nil)
	}

	records := []Record{}
	for dec.More() {
		if len(records)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			return nil, cerrors.New(cerrors.ErrCodeCorruptMetadata,
				fmt.Sprintf("decode record %d", len(records)), err)
		}
		records = append(records, rec)
	}
	if _, err := dec.Token(); err != nil {
		return nil, cerrors.New(cerrors.ErrCodeCorruptMetadata, "metadata array is not terminated", err)
	}
	return records, nil
}

func decodeJSONL(ctx context.Context, r io.Reader) ([]Record, error) {
	dec := json.NewDecoder(bufio.NewReader(r))
	records := []Record{}
	for {
		if len(records)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		var rec Record
		err := dec.Decode(&rec)
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, cerrors.New(cerrors.ErrCodeCorruptMetadata,
				fmt.Sprintf("decode record %d", len(records)), err)
		}
		records = append(records, rec)
	}
}
