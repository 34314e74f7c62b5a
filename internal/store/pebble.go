package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"go.uber.org/zap"
)

// Pebble stores blobs in an embedded LSM directory.
type Pebble struct {
	db  *pebble.DB
	log *zap.Logger
}

// OpenPebble opens the database directory at path. A nil fs uses the OS
// filesystem; tests pass vfs.NewMem().
func OpenPebble(path string, fs vfs.FS, logger *zap.Logger) (*Pebble, error) {
	if path == "" {
		return nil, errors.New("pebble: empty path")
	}
	opts := &pebble.Options{}
	if fs != nil {
		opts.FS = fs
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("pebble: open %s: %w", path, err)
	}
	logger.Debug("Pebble store opened.", zap.String("path", path))
	return &Pebble{db: db, log: logger}, nil
}

func (p *Pebble) Get(ctx context.Context, key string) ([]byte, error) {
	value, closer, err := p.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("pebble: get %s: %w", key, err)
	}
	defer closer.Close()
	// The slice is only valid until closer.Close.
	return append([]byte(nil), value...), nil
}

func (p *Pebble) Put(ctx context.Context, key string, value []byte) error {
	if err := p.db.Set([]byte(key), value, pebble.Sync); err != nil {
		return fmt.Errorf("pebble: put %s: %w", key, err)
	}
	return nil
}

func (p *Pebble) Delete(ctx context.Context, key string) error {
	if err := p.db.Delete([]byte(key), pebble.Sync); err != nil {
		return fmt.Errorf("pebble: delete %s: %w", key, err)
	}
	return nil
}

func (p *Pebble) Close() error {
	return p.db.Close()
}
