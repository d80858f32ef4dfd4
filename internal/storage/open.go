package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Options selects and configures the medium returned by Open.
type Options struct {
	// Kind is one of "sqlite", "redis" or "memory".
	Kind   string
	DBPath string
	Redis  RedisConfig
	// Passphrase enables sealing of SealedKeys when non-empty.
	Passphrase string
	SealedKeys []string
}

// Open builds the configured backend.
func Open(opts Options) (Backend, error) {
	var (
		b   Backend
		err error
	)

	switch opts.Kind {
	case "", "sqlite":
		if opts.DBPath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(opts.DBPath), 0700); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		b, err = NewSQLiteBackend(opts.DBPath)
	case "redis":
		b, err = NewRedisBackend(opts.Redis)
	case "memory":
		b = NewMemoryBackend()
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Kind)
	}
	if err != nil {
		return nil, err
	}

	if opts.Passphrase != "" {
		b = NewSealedBackend(b, DeriveKey(opts.Passphrase), opts.SealedKeys...)
	}
	return b, nil
}
