// Package storage provides the key-value media the local state store persists
// its blobs to.
package storage

import (
	"context"
	"errors"
)

// ErrCorrupt is returned when a stored value exists but cannot be read back,
// for example when a sealed value fails authentication.
var ErrCorrupt = errors.New("stored value is corrupt")

// Backend is a simple key-value medium. Get returns nil, nil when the key is
// absent.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
