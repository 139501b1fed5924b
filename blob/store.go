// Package blob provides key/value storage for JSON documents such as
// checkpoint snapshots and final object state.
package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by Get when no value is stored under a key.
	ErrNotFound = errors.New("blob not found")

	// ErrInvalidKey is returned for empty keys and keys that could escape
	// their namespace.
	ErrInvalidKey = errors.New("invalid blob key")
)

// Store persists JSON-encodable values by key. Keys are slash-separated
// paths such as "checkpoints/exec_123".
type Store interface {
	// Get decodes the value stored under key into dst.
	Get(ctx context.Context, key string, dst any) error

	// Put stores value under key, replacing any existing value.
	Put(ctx context.Context, key string, value any) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether a value is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns the keys starting with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// ValidateKey checks that key is usable by every store implementation.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if strings.HasPrefix(key, "/") || strings.HasSuffix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

func encode(key string, value any) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return data, nil
}

func decode(key string, data []byte, dst any) error {
	if dst == nil {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func notFound(key string) error {
	return fmt.Errorf("%s: %w", key, ErrNotFound)
}
