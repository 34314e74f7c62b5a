// Package store persists small opaque blobs under string keys. It backs the
// runtime log history and the document snapshot slot.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xkilldash9x/domsentry/internal/config"
	"go.uber.org/zap"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("store: key not found")

// BlobStore is a string-keyed byte store. Put overwrites. Delete of an absent
// key is not an error.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Key joins a namespace and a name into a storage key, e.g. "domsentry/snapshot".
func Key(namespace, name string) string {
	namespace = strings.Trim(namespace, "/")
	if namespace == "" {
		return name
	}
	return namespace + "/" + name
}

// newPgxPool is a variable so tests can avoid dialing a real server.
var newPgxPool = func(ctx context.Context, url string) (DBPool, error) {
	return pgxpool.New(ctx, url)
}

// Open builds the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (BlobStore, error) {
	logger = logger.Named("store")
	switch strings.ToLower(cfg.Driver) {
	case "memory":
		return NewMemory(), nil
	case "sqlite":
		return OpenSQLite(ctx, cfg.Path, logger)
	case "pebble":
		return OpenPebble(cfg.Path, nil, logger)
	case "postgres":
		pool, err := newPgxPool(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres pool: %w", err)
		}
		s, err := NewPostgres(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}
