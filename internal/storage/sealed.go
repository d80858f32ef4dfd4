package storage

import (
	"context"
	"fmt"
)

// SealedBackend encrypts the values of selected keys before handing them to
// the wrapped backend. Other keys pass through unchanged.
type SealedBackend struct {
	inner Backend
	key   []byte
	keys  map[string]bool
}

// NewSealedBackend seals the listed keys with key (16, 24 or 32 bytes).
func NewSealedBackend(inner Backend, key []byte, sealedKeys ...string) *SealedBackend {
	keys := make(map[string]bool, len(sealedKeys))
	for _, k := range sealedKeys {
		keys[k] = true
	}
	return &SealedBackend{inner: inner, key: key, keys: keys}
}

// Get unseals the stored value. A value that fails to unseal is reported as
// ErrCorrupt so callers can treat it like any unreadable blob.
func (s *SealedBackend) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.inner.Get(ctx, key)
	if err != nil || raw == nil || !s.keys[key] {
		return raw, err
	}

	plain, err := Decrypt(string(raw), s.key)
	if err != nil {
		return nil, fmt.Errorf("%w: key %q: %v", ErrCorrupt, key, err)
	}
	return plain, nil
}

func (s *SealedBackend) Put(ctx context.Context, key string, value []byte) error {
	if !s.keys[key] {
		return s.inner.Put(ctx, key, value)
	}

	sealed, err := Encrypt(value, s.key)
	if err != nil {
		return fmt.Errorf("failed to seal key %q: %w", key, err)
	}
	return s.inner.Put(ctx, key, []byte(sealed))
}

func (s *SealedBackend) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

func (s *SealedBackend) Close() error {
	return s.inner.Close()
}
