package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odinsson/tradeledger/internal/common"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "cache:test", []byte(`{"a":1}`)))

	got, err := s.Get(ctx, "cache:test")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), got)

	// Overwrite replaces.
	require.NoError(t, s.Set(ctx, "cache:test", []byte(`{"a":2}`)))
	got, err = s.Get(ctx, "cache:test")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":2}`), got)
}

func TestStoreGetMissing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Get(ctx, "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "k", []byte("v")))
	require.NoError(t, s.Delete(ctx, "k"))
	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, common.ErrNotFound)

	// Deleting an absent key is not an error.
	require.NoError(t, s.Delete(ctx, "k"))
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k", []byte("survives")))
	require.NoError(t, s.Close())

	s2, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, s2.Close()) }()

	got, err := s2.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("survives"), got)
}

func TestStoreValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Get(ctx, "  ")
	assert.ErrorIs(t, err, ErrEmptyString)
	assert.ErrorIs(t, s.Set(ctx, "", []byte("v")), ErrEmptyString)

	_, err = NewSQLiteStore("")
	assert.ErrorIs(t, err, ErrEmptyString)
}
