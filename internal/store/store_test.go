package store

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/domsentry/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

// exerciseBlobStore checks the contract every backend must honor.
func exerciseBlobStore(t *testing.T, s BlobStore) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "domsentry/missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "domsentry/snapshot", []byte("first")))
	got, err := s.Get(ctx, "domsentry/snapshot")
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), got)

	require.NoError(t, s.Put(ctx, "domsentry/snapshot", []byte("second")))
	got, err = s.Get(ctx, "domsentry/snapshot")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got, "put overwrites")

	got[0] = 'X'
	again, err := s.Get(ctx, "domsentry/snapshot")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), again, "returned slices are not aliased")

	require.NoError(t, s.Put(ctx, "domsentry/logbuffer", []byte("[]")))
	require.NoError(t, s.Delete(ctx, "domsentry/snapshot"))
	_, err = s.Get(ctx, "domsentry/snapshot")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Delete(ctx, "domsentry/snapshot"), "deleting an absent key is not an error")

	other, err := s.Get(ctx, "domsentry/logbuffer")
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), other, "keys are independent")
}

func TestKey(t *testing.T) {
	assert.Equal(t, "domsentry/snapshot", Key("domsentry", "snapshot"))
	assert.Equal(t, "team/domsentry/snapshot", Key("/team/domsentry/", "snapshot"))
	assert.Equal(t, "snapshot", Key("", "snapshot"))
}

func TestMemory(t *testing.T) {
	exerciseBlobStore(t, NewMemory())
}

func TestSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.db")

	s, err := OpenSQLite(ctx, path, zap.NewNop())
	require.NoError(t, err)
	exerciseBlobStore(t, s)

	require.NoError(t, s.Put(ctx, "k", []byte("persisted")))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(ctx, path, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), got)

	_, err = OpenSQLite(ctx, "", zap.NewNop())
	assert.Error(t, err)
}

func TestPebble(t *testing.T) {
	ctx := context.Background()
	fs := vfs.NewMem()

	p, err := OpenPebble("state", fs, zap.NewNop())
	require.NoError(t, err)
	exerciseBlobStore(t, p)

	require.NoError(t, p.Put(ctx, "k", []byte("persisted")))
	require.NoError(t, p.Close())

	reopened, err := OpenPebble("state", fs, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), got)
}

func TestNewPostgres(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = NewPostgres(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr, "Error from ping should be propagated")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should create the table", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlCreateBlobs)).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

		_, err = NewPostgres(context.Background(), mockPool, zap.NewNop())
		require.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresOperations(t *testing.T) {
	ctx := context.Background()

	newStore := func(t *testing.T) (*Postgres, pgxmock.PgxPoolIface, *observer.ObservedLogs) {
		t.Helper()
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		t.Cleanup(mockPool.Close)

		mockPool.ExpectPing()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlCreateBlobs)).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

		core, logs := observer.New(zapcore.DebugLevel)
		s, err := NewPostgres(ctx, mockPool, zap.New(core))
		require.NoError(t, err)
		return s, mockPool, logs
	}

	t.Run("Get returns the stored value", func(t *testing.T) {
		s, mockPool, _ := newStore(t)
		rows := pgxmock.NewRows([]string{"value"}).AddRow([]byte("payload"))
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectBlob)).WithArgs("domsentry/snapshot").WillReturnRows(rows)

		got, err := s.Get(ctx, "domsentry/snapshot")
		require.NoError(t, err)
		assert.Equal(t, []byte("payload"), got)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Get maps no rows to ErrNotFound", func(t *testing.T) {
		s, mockPool, _ := newStore(t)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectBlob)).WithArgs("domsentry/snapshot").WillReturnError(pgx.ErrNoRows)

		_, err := s.Get(ctx, "domsentry/snapshot")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Get wraps other failures", func(t *testing.T) {
		s, mockPool, _ := newStore(t)
		dbErr := errors.New("connection reset")
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectBlob)).WithArgs("k").WillReturnError(dbErr)

		_, err := s.Get(ctx, "k")
		assert.ErrorIs(t, err, dbErr)
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	t.Run("Put upserts", func(t *testing.T) {
		s, mockPool, _ := newStore(t)
		mockPool.ExpectExec(flexibleSQLMatcher(sqlUpsertBlob)).
			WithArgs("domsentry/logbuffer", []byte("[]")).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, s.Put(ctx, "domsentry/logbuffer", []byte("[]")))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Put propagates errors", func(t *testing.T) {
		s, mockPool, _ := newStore(t)
		dbErr := errors.New("disk full")
		mockPool.ExpectExec(flexibleSQLMatcher(sqlUpsertBlob)).WithArgs("k", []byte("v")).WillReturnError(dbErr)

		assert.ErrorIs(t, s.Put(ctx, "k", []byte("v")), dbErr)
	})

	t.Run("Delete of absent key is logged, not failed", func(t *testing.T) {
		s, mockPool, logs := newStore(t)
		mockPool.ExpectExec(flexibleSQLMatcher(sqlDeleteBlob)).WithArgs("k").WillReturnResult(pgxmock.NewResult("DELETE", 0))

		require.NoError(t, s.Delete(ctx, "k"))
		assert.Equal(t, 1, logs.FilterMessage("Delete of absent key.").Len())
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		s, err := Open(ctx, config.StorageConfig{Driver: "memory"}, zap.NewNop())
		require.NoError(t, err)
		assert.IsType(t, &Memory{}, s)
	})

	t.Run("sqlite", func(t *testing.T) {
		s, err := Open(ctx, config.StorageConfig{Driver: "SQLite", Path: filepath.Join(t.TempDir(), "s.db")}, zap.NewNop())
		require.NoError(t, err)
		defer s.Close()
		assert.IsType(t, &SQLite{}, s)
	})

	t.Run("postgres uses the pool factory", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		mockPool.ExpectPing()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlCreateBlobs)).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

		original := newPgxPool
		t.Cleanup(func() { newPgxPool = original })
		var gotURL string
		newPgxPool = func(ctx context.Context, url string) (DBPool, error) {
			gotURL = url
			return mockPool, nil
		}

		s, err := Open(ctx, config.StorageConfig{Driver: "postgres", PostgresURL: "postgres://db/domsentry"}, zap.NewNop())
		require.NoError(t, err)
		assert.IsType(t, &Postgres{}, s)
		assert.Equal(t, "postgres://db/domsentry", gotURL)
		require.NoError(t, s.Close())
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := Open(ctx, config.StorageConfig{Driver: "redis"}, zap.NewNop())
		assert.ErrorContains(t, err, "unsupported storage driver")
	})
}
