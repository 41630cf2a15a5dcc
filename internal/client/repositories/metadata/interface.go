// Package metadata is the local key-value store. Each key holds one opaque
// value; callers own the encoding (the upload queue stores a JSON array, the
// session stores a sealed token blob).
package metadata

import (
	"context"
)

type Repository interface {
	// Get returns (nil, nil) when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set replaces the whole value stored under key.
	Set(ctx context.Context, key string, value []byte) error
	// Delete is a no-op for an absent key.
	Delete(ctx context.Context, key string) error
}
