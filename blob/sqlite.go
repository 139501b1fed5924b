package blob

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a Store backed by a SQLite table.
type SQLiteStore struct {
	*sqlStore
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLiteStore opens the database file at path with the modernc.org/sqlite
// driver. Use ":memory:" for a private in-memory database.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases consistent and avoids
	// SQLITE_BUSY between writers.
	db.SetMaxOpenConns(1)
	store, err := NewSQLiteStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStore prepares the schema in db and returns a store using it.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	store, err := newSQLStore(ctx, db, sqlQueries{
		schema: `
			CREATE TABLE IF NOT EXISTS weave_blobs (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL,
				updated_at INTEGER NOT NULL DEFAULT (unixepoch())
			)`,
		get: `SELECT value FROM weave_blobs WHERE key = ?1`,
		put: `
			INSERT INTO weave_blobs (key, value, updated_at) VALUES (?1, ?2, unixepoch())
			ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		delete: `DELETE FROM weave_blobs WHERE key = ?1`,
		exists: `SELECT EXISTS (SELECT 1 FROM weave_blobs WHERE key = ?1)`,
		list:   `SELECT key FROM weave_blobs WHERE substr(key, 1, length(?1)) = ?1 ORDER BY key`,
	})
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{sqlStore: store}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
