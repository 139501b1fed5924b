package blob

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// sqlQueries holds the statements for one SQL dialect.
type sqlQueries struct {
	schema string
	get    string
	put    string
	delete string
	exists string
	list   string
}

// sqlStore implements Store on top of database/sql.
type sqlStore struct {
	db      *sql.DB
	queries sqlQueries
}

func newSQLStore(ctx context.Context, db *sql.DB, queries sqlQueries) (*sqlStore, error) {
	if _, err := db.ExecContext(ctx, queries.schema); err != nil {
		return nil, fmt.Errorf("failed to create blob schema: %w", err)
	}
	return &sqlStore{db: db, queries: queries}, nil
}

func (s *sqlStore) Get(ctx context.Context, key string, dst any) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	var data []byte
	err := s.db.QueryRowContext(ctx, s.queries.get, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(key)
	}
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", key, err)
	}
	return decode(key, data, dst)
}

func (s *sqlStore) Put(ctx context.Context, key string, value any) error {
	data, err := encode(key, value)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.queries.put, key, string(data)); err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

func (s *sqlStore) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.queries.delete, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *sqlStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx, s.queries.exists, key).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check %s: %w", key, err)
	}
	return exists, nil
}

func (s *sqlStore) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.queries.list, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to list blobs: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
