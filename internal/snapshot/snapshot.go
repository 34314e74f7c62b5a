// Package snapshot keeps a single restorable copy of the whole document.
package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/dustin/go-humanize"
	jsoniter "github.com/json-iterator/go"
	"github.com/xkilldash9x/domsentry/api/schemas"
	"github.com/xkilldash9x/domsentry/internal/document"
	"github.com/xkilldash9x/domsentry/internal/notify"
	"github.com/xkilldash9x/domsentry/internal/store"
	"github.com/zeebo/xxh3"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrAbsent means the slot is empty.
	ErrAbsent = errors.New("no snapshot")
	// ErrCorrupt means the slot holds a payload that fails to decode or verify.
	ErrCorrupt = errors.New("snapshot is corrupt")
)

// Store manages the single snapshot slot. A new capture overwrites the previous
// one; there is no history.
type Store struct {
	host     document.Host
	blobs    store.BlobStore
	key      string
	notifier notify.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// New builds the slot under store.Key(namespace, "snapshot").
func New(host document.Host, blobs store.BlobStore, namespace string, notifier notify.Notifier, logger *zap.Logger) *Store {
	return &Store{
		host:     host,
		blobs:    blobs,
		key:      store.Key(namespace, "snapshot"),
		notifier: notifier,
		logger:   logger.Named("snapshot"),
		now:      time.Now,
	}
}

// Capture serializes the current document into the slot.
func (s *Store) Capture(ctx context.Context) bool {
	doc, err := s.host.Load(ctx)
	if err != nil {
		return s.fail("Failed to create snapshot", err)
	}
	markup, err := doc.Render()
	if err != nil {
		return s.fail("Failed to create snapshot", err)
	}

	snap := schemas.Snapshot{
		SnapshotInfo: schemas.SnapshotInfo{Timestamp: s.now(), Size: len(markup)},
		HTML:         markup,
		Checksum:     xxh3.HashString(markup),
	}
	payload, err := encode(snap)
	if err != nil {
		return s.fail("Failed to create snapshot", err)
	}
	if err := s.blobs.Put(ctx, s.key, payload); err != nil {
		return s.fail("Failed to create snapshot", err)
	}

	s.logger.Info("✓ Snapshot created",
		zap.Int("size", snap.Size),
		zap.Int("stored", len(payload)),
	)
	s.notifier.Success("Snapshot created", "Saved "+humanize.Bytes(uint64(snap.Size)))
	return true
}

// Restore replaces the document with the snapshot and consumes the slot. With
// an empty slot the document is left untouched.
func (s *Store) Restore(ctx context.Context) bool {
	snap, err := s.load(ctx)
	if errors.Is(err, ErrAbsent) {
		s.notifier.Info("No snapshot to restore", "Create a snapshot first")
		return false
	}
	if err != nil {
		return s.fail("Failed to restore snapshot", err)
	}

	doc, err := document.ParseString(snap.HTML, "")
	if err != nil {
		return s.fail("Failed to restore snapshot", err)
	}
	current, err := s.host.Load(ctx)
	if err == nil {
		doc.LocationHost = current.LocationHost
	}
	if err := s.host.Commit(ctx, doc); err != nil {
		return s.fail("Failed to restore snapshot", err)
	}
	// The document is already back; a slot that cannot be cleared is reported, not undone.
	if err := s.blobs.Delete(ctx, s.key); err != nil && !errors.Is(err, store.ErrNotFound) {
		return s.fail("Snapshot restored but the slot could not be cleared", err)
	}

	s.logger.Info("✓ Snapshot restored", zap.Time("captured", snap.Timestamp))
	s.notifier.Success("Snapshot restored", "Captured "+humanize.Time(snap.Timestamp))
	return true
}

// Exists reports whether the slot holds a readable snapshot.
func (s *Store) Exists(ctx context.Context) bool {
	_, ok := s.Info(ctx)
	return ok
}

// Info returns the slot metadata.
func (s *Store) Info(ctx context.Context) (schemas.SnapshotInfo, bool) {
	snap, err := s.load(ctx)
	if err != nil {
		if !errors.Is(err, ErrAbsent) {
			s.logger.Warn("Snapshot slot unreadable.", zap.Error(err))
		}
		return schemas.SnapshotInfo{}, false
	}
	return snap.SnapshotInfo, true
}

// Delete clears the slot.
func (s *Store) Delete(ctx context.Context) bool {
	if _, err := s.blobs.Get(ctx, s.key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.notifier.Info("No snapshot to delete", "")
			return false
		}
		return s.fail("Failed to delete snapshot", err)
	}
	if err := s.blobs.Delete(ctx, s.key); err != nil {
		return s.fail("Failed to delete snapshot", err)
	}
	s.logger.Info("Snapshot deleted")
	s.notifier.Success("Snapshot deleted", "")
	return true
}

func (s *Store) fail(title string, err error) bool {
	s.logger.Error(title, zap.Error(err))
	s.notifier.Error(title, err.Error())
	return false
}

func (s *Store) load(ctx context.Context) (*schemas.Snapshot, error) {
	payload, err := s.blobs.Get(ctx, s.key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrAbsent
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return decode(payload)
}

// -- Payload codec --

// encode writes the snapshot as brotli-compressed JSON.
func encode(snap schemas.Snapshot) ([]byte, error) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("failed to compress snapshot: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(payload []byte) (*schemas.Snapshot, error) {
	raw, err := io.ReadAll(brotli.NewReader(bytes.NewReader(payload)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	var snap schemas.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if xxh3.HashString(snap.HTML) != snap.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	return &snap, nil
}
