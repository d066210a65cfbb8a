package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/livetemplate/kayero/internal/config"
)

const notebook = "---\ntitle: Shared\n---\n\n# Hello\n"

func testStores(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "shared.db"), zap.NewNop())
	require.NoError(t, err)

	stores := map[string]Store{
		"memory":  NewMemory(),
		"sqlite":  sqlite,
		"cached":  NewCached(NewMemory(), time.Minute),
		"breaker": NewBreaker(NewMemory(), "memory", DefaultBreakerConfig(), nil),
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestStorePutGet(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			id, err := s.Put(ctx, []byte(notebook))
			require.NoError(t, err)
			_, err = uuid.Parse(id)
			assert.NoError(t, err, "ids are UUIDs")

			got, err := s.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, notebook, string(got))
		})
	}
}

func TestStoreDistinctIDs(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a, err := s.Put(ctx, []byte("a"))
			require.NoError(t, err)
			b, err := s.Put(ctx, []byte("a"))
			require.NoError(t, err)
			assert.NotEqual(t, a, b)
		})
	}
}

func TestStoreNotFound(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(context.Background(), "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestMemoryCopiesInput(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	input := []byte("original")
	id, err := s.Put(ctx, input)
	require.NoError(t, err)
	input[0] = 'X'

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "original", string(got))
}

func TestMemoryCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemory().Put(ctx, []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	ctx := context.Background()

	s, err := OpenSQLite(ctx, path, nil)
	require.NoError(t, err)
	id, err := s.Put(ctx, []byte(notebook))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path, nil)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, notebook, string(got))
}

func TestOpenPostgresRequiresDSN(t *testing.T) {
	_, err := OpenPostgres(context.Background(), "", nil)
	var storeErr *Error
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "postgres", storeErr.Driver)
	assert.Equal(t, "connect", storeErr.Operation)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.StoreConfig{Driver: "memory"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)
	s.Close()

	s, err = Open(ctx, config.StoreConfig{Driver: "memory", CacheTTL: "1m"}, nil)
	require.NoError(t, err)
	require.IsType(t, &Cached{}, s)
	assert.IsType(t, &Memory{}, s.(*Cached).inner)
	s.Close()

	s, err = Open(ctx, config.StoreConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "s.db")}, nil)
	require.NoError(t, err)
	require.IsType(t, &Breaker{}, s)
	assert.IsType(t, &SQLStore{}, s.(*Breaker).inner)
	s.Close()

	_, err = Open(ctx, config.StoreConfig{Driver: "mongo"}, nil)
	assert.Error(t, err)
}

// countingStore counts Get calls reaching the backend.
type countingStore struct {
	*Memory
	gets atomic.Int32
}

func (c *countingStore) Get(ctx context.Context, id string) ([]byte, error) {
	c.gets.Add(1)
	return c.Memory.Get(ctx, id)
}

func TestCachedServesRepeatReads(t *testing.T) {
	inner := &countingStore{Memory: NewMemory()}
	ctx := context.Background()

	id, err := inner.Memory.Put(ctx, []byte(notebook))
	require.NoError(t, err)

	c := NewCached(inner, time.Minute)
	defer c.Close()

	for i := 0; i < 3; i++ {
		got, err := c.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, notebook, string(got))
	}
	assert.Equal(t, int32(1), inner.gets.Load())

	// Put primes the cache
	id2, err := c.Put(ctx, []byte("other"))
	require.NoError(t, err)
	_, err = c.Get(ctx, id2)
	require.NoError(t, err)
	assert.Equal(t, int32(1), inner.gets.Load())
}

func TestCachedDoesNotCacheMisses(t *testing.T) {
	inner := &countingStore{Memory: NewMemory()}
	c := NewCached(inner, time.Minute)
	defer c.Close()

	for i := 0; i < 2; i++ {
		_, err := c.Get(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, int32(2), inner.gets.Load())
}

func TestErrorUnwrap(t *testing.T) {
	base := errors.New("connection refused")
	err := &Error{Driver: "postgres", Operation: "put", Err: base}
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "postgres")
	assert.Contains(t, err.Error(), "put")
}
