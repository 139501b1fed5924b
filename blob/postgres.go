package blob

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"
)

// PostgresStore is a Store backed by a PostgreSQL table.
type PostgresStore struct {
	*sqlStore
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgresStore connects with the lib/pq driver and prepares the schema.
func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	store, err := NewPostgresStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStore prepares the schema in db and returns a store using it.
func NewPostgresStore(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	store, err := newSQLStore(ctx, db, sqlQueries{
		schema: `
			CREATE TABLE IF NOT EXISTS weave_blobs (
				key TEXT PRIMARY KEY,
				value JSONB NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
		get: `SELECT value FROM weave_blobs WHERE key = $1`,
		put: `
			INSERT INTO weave_blobs (key, value, updated_at) VALUES ($1, $2::jsonb, now())
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		delete: `DELETE FROM weave_blobs WHERE key = $1`,
		exists: `SELECT EXISTS (SELECT 1 FROM weave_blobs WHERE key = $1)`,
		list:   `SELECT key FROM weave_blobs WHERE left(key, length($1)) = $1 ORDER BY key COLLATE "C"`,
	})
	if err != nil {
		return nil, err
	}
	return &PostgresStore{sqlStore: store}, nil
}

// Close closes the underlying database.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
