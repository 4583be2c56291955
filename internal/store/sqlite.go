package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	cerrors "github.com/Aman-CERP/codecorpus/internal/errors"
)

const sqliteSchema = `
CREATE TABLE schema_version (
	version INTEGER PRIMARY KEY
);

CREATE TABLE manifest (
	id   INTEGER PRIMARY KEY CHECK (id = 0),
	body TEXT NOT NULL
);

CREATE TABLE chunks (
	id           INTEGER PRIMARY KEY,
	chunk_id     TEXT NOT NULL,
	path         TEXT NOT NULL,
	unit         TEXT NOT NULL,
	start_offset INTEGER NOT NULL,
	end_offset   INTEGER NOT NULL,
	text         TEXT NOT NULL,
	symbols      TEXT,
	embedding    BLOB
);

CREATE INDEX idx_chunks_path ON chunks(path);

INSERT INTO schema_version (version) VALUES (1);
`

// writeSQLite creates a fresh database at path. A rollback journal is used so
// the result is a single file that can be renamed.
func writeSQLite(ctx context.Context, path string, m Manifest, records []Record) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return cerrors.PersistError("remove stale sqlite file", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return cerrors.PersistError("open sqlite metadata", err)
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = DELETE",
		"PRAGMA synchronous = FULL",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return cerrors.PersistError("set pragma", err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return cerrors.PersistError("create sqlite schema", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return cerrors.PersistError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	body, err := json.Marshal(m)
	if err != nil {
		return cerrors.PersistError("encode manifest", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO manifest (id, body) VALUES (0, ?)`, string(body)); err != nil {
		return cerrors.PersistError("insert manifest", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks
		(id, chunk_id, path, unit, start_offset, end_offset, text, symbols, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return cerrors.PersistError("prepare insert", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range records {
		rec := &records[i]
		var symbols any
		if len(rec.Symbols) > 0 {
			b, _ := json.Marshal(rec.Symbols)
			symbols = string(b)
		}
		var embedding any
		if len(rec.Embedding) > 0 {
			embedding = encodeFloats(rec.Embedding)
		}
		if _, err := stmt.ExecContext(ctx, rec.ID, rec.ChunkID, rec.Path, rec.Unit,
			rec.StartOffset, rec.EndOffset, rec.Text, symbols, embedding); err != nil {
			return cerrors.PersistError(fmt.Sprintf("insert record %d", rec.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return cerrors.PersistError("commit sqlite metadata", err)
	}
	if err := db.Close(); err != nil {
		return cerrors.PersistError("close sqlite metadata", err)
	}
	return nil
}

// openSQLiteReadOnly opens an existing database without creating it. The
// file: URI form is required for mode=ro to reach sqlite.
func openSQLiteReadOnly(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, cerrors.New(cerrors.ErrCodeFileNotFound, "metadata not found: "+path, err)
		}
		return nil, cerrors.IOError("stat metadata", err)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, cerrors.New(cerrors.ErrCodeCorruptMetadata, "open sqlite metadata", err)
	}
	return db, nil
}

func readSQLite(ctx context.Context, path string) ([]Record, error) {
	db, err := openSQLiteReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, `SELECT id, chunk_id, path, unit, start_offset, end_offset,
		text, symbols, embedding FROM chunks ORDER BY id`)
	if err != nil {
		return nil, cerrors.New(cerrors.ErrCodeCorruptMetadata, "query chunks", err)
	}
	defer func() { _ = rows.Close() }()

	records := []Record{}
	for rows.Next() {
		var rec Record
		var symbols sql.NullString
		var embedding []byte
		if err := rows.Scan(&rec.ID, &rec.ChunkID, &rec.Path, &rec.Unit,
			&rec.StartOffset, &rec.EndOffset, &rec.Text, &symbols, &embedding); err != nil {
			return nil, cerrors.New(cerrors.ErrCodeCorruptMetadata, "scan chunk", err)
		}
		if symbols.Valid {
			if err := json.Unmarshal([]byte(symbols.String), &rec.Symbols); err != nil {
				return nil, cerrors.New(cerrors.ErrCodeCorruptMetadata, "decode symbols", err)
			}
		}
		if len(embedding) > 0 {
			if rec.Embedding, err = decodeFloats(embedding); err != nil {
				return nil, err
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, cerrors.New(cerrors.ErrCodeCorruptMetadata, "read chunks", err)
	}
	return records, nil
}

// ReadSQLiteManifest returns the manifest stored alongside sqlite metadata.
func ReadSQLiteManifest(ctx context.Context, path string) (Manifest, error) {
	var m Manifest
	db, err := openSQLiteReadOnly(path)
	if err != nil {
		return m, err
	}
	defer func() { _ = db.Close() }()

	var body string
	if err := db.QueryRowContext(ctx, `SELECT body FROM manifest WHERE id = 0`).Scan(&body); err != nil {
		return m, cerrors.New(cerrors.ErrCodeCorruptMetadata, "read manifest", err)
	}
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return m, cerrors.New(cerrors.ErrCodeCorruptMetadata, "decode manifest", err)
	}
	return m, nil
}

func encodeFloats(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeFloats(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, cerrors.New(cerrors.ErrCodeCorruptMetadata,
			fmt.Sprintf("embedding blob of %d bytes", len(b)), nil)
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
