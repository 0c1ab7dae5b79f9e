package cache

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	bulkerr "github.com/matzehuels/bulkstat/pkg/errors"
)

const createEntriesTable = `
CREATE TABLE IF NOT EXISTS entries (
	key       TEXT PRIMARY KEY,
	payload   BLOB NOT NULL,
	stored_at INTEGER NOT NULL
)`

// SQLiteStore keeps every entry in one SQLite database file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, bulkerr.Wrap(bulkerr.ErrCodeStorage, err, "create database directory %s", dir)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, bulkerr.Wrap(bulkerr.ErrCodeStorage, err, "open database %s", path)
	}
	// One writer at a time; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(createEntriesTable); err != nil {
		db.Close()
		return nil, bulkerr.Wrap(bulkerr.ErrCodeStorage, err, "create entries schema")
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Name implements [Namer].
func (s *SQLiteStore) Name() string { return "sqlite" }

// Path returns the database file.
func (s *SQLiteStore) Path() string { return s.path }

// Get reads the row for key.
func (s *SQLiteStore) Get(ctx context.Context, key Key) (*Entry, error) {
	var payload []byte
	var storedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, stored_at FROM entries WHERE key = ?`, string(key)).Scan(&payload, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, bulkerr.Wrap(bulkerr.ErrCodeStorage, err, "sqlite: get %s", key)
	}
	return &Entry{Key: key, Payload: payload, StoredAt: time.Unix(0, storedAt)}, nil
}

// Put upserts the row for key in a single statement.
func (s *SQLiteStore) Put(ctx context.Context, key Key, payload []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if payload == nil {
		payload = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (key, payload, stored_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, stored_at = excluded.stored_at`,
		string(key), payload, time.Now().UnixNano())
	if err != nil {
		return bulkerr.Wrap(bulkerr.ErrCodeStorage, err, "sqlite: put %s", key)
	}
	return nil
}

// IsFresh reads only the timestamp column.
func (s *SQLiteStore) IsFresh(ctx context.Context, key Key, p Policy) (bool, error) {
	if p.ForceRefresh {
		return false, nil
	}
	var storedAt int64
	err := s.db.QueryRowContext(ctx, `SELECT stored_at FROM entries WHERE key = ?`, string(key)).Scan(&storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, bulkerr.Wrap(bulkerr.ErrCodeStorage, err, "sqlite: stat %s", key)
	}
	return p.Fresh(time.Unix(0, storedAt), time.Now()), nil
}

// Delete removes the row for key.
func (s *SQLiteStore) Delete(ctx context.Context, key Key) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, string(key)); err != nil {
		return bulkerr.Wrap(bulkerr.ErrCodeStorage, err, "sqlite: delete %s", key)
	}
	return nil
}

// Clear deletes all rows.
func (s *SQLiteStore) Clear(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries`)
	if err != nil {
		return 0, bulkerr.Wrap(bulkerr.ErrCodeStorage, err, "sqlite: clear")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var (
	_ Store   = (*SQLiteStore)(nil)
	_ Clearer = (*SQLiteStore)(nil)
)
