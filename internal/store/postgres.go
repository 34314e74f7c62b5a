package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

const (
	sqlCreateBlobs = `
        CREATE TABLE IF NOT EXISTS domsentry_blobs (
            key        TEXT PRIMARY KEY,
            value      BYTEA NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        );`
	sqlSelectBlob = `SELECT value FROM domsentry_blobs WHERE key = $1`
	sqlUpsertBlob = `
        INSERT INTO domsentry_blobs (key, value, updated_at)
        VALUES ($1, $2, now())
        ON CONFLICT (key) DO UPDATE SET
            value = EXCLUDED.value,
            updated_at = EXCLUDED.updated_at;`
	sqlDeleteBlob = `DELETE FROM domsentry_blobs WHERE key = $1`
)

// Postgres stores blobs in a shared PostgreSQL table, for teams that keep
// engine state on a server.
type Postgres struct {
	pool DBPool
	log  *zap.Logger
}

// NewPostgres verifies the connection and ensures the table exists.
func NewPostgres(ctx context.Context, pool DBPool, logger *zap.Logger) (*Postgres, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, sqlCreateBlobs); err != nil {
		return nil, fmt.Errorf("failed to create blobs table: %w", err)
	}
	return &Postgres{pool: pool, log: logger}, nil
}

func (s *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, sqlSelectBlob, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, nil
}

func (s *Postgres) Put(ctx context.Context, key string, value []byte) error {
	if _, err := s.pool.Exec(ctx, sqlUpsertBlob, key, value); err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, key string) error {
	tag, err := s.pool.Exec(ctx, sqlDeleteBlob, key)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		s.log.Debug("Delete of absent key.", zap.String("key", key))
	}
	return nil
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
