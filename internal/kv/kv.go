// Package kv provides the key-value persistence layer behind the vector
// store. Three backends are available: Redis for shared deployments, SQLite
// for durable single-host use, and an in-memory store for tests and throwaway
// indexes. All three expose the same minimal surface of string keys, byte
// values, and append-only lists.
package kv

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Get when the key does not exist.
var ErrKeyNotFound = errors.New("key not found")

// Store is a minimal key-value interface with list support. Keys returned by
// Keys match a glob pattern with * and ? wildcards.
type Store interface {
	// Get returns the value stored at key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value at key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes keys. Missing keys are not an error; the count of
	// removed keys is returned.
	Delete(ctx context.Context, keys ...string) (int, error)

	// Exists reports whether key holds a value.
	Exists(ctx context.Context, key string) (bool, error)

	// Keys returns all keys matching the glob pattern, in unspecified order.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// ListPush appends values to the list stored at key, creating it if
	// needed.
	ListPush(ctx context.Context, key string, values ...string) error

	// ListRange returns list elements between start and stop inclusive.
	// Negative indices count from the end, -1 being the last element.
	ListRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// Close releases backend resources.
	Close() error
}
