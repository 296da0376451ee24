package sqlite

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/fridgescan/internal/db"
	"github.com/vbonduro/fridgescan/internal/kvstore"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, d.Close()) })
	return d
}

func TestSQLiteStorePutAndGet(t *testing.T) {
	store := NewSQLiteStore(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "fridgeItems", []byte(`[{"name":"Milk","barcode":"1"}]`)))

	got, err := store.Get(ctx, "fridgeItems")
	require.NoError(t, err)
	assert.Equal(t, `[{"name":"Milk","barcode":"1"}]`, string(got))
}

func TestSQLiteStorePutOverwrites(t *testing.T) {
	store := NewSQLiteStore(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "shoppingItems", []byte(`[{"name":"Eggs"}]`)))
	require.NoError(t, store.Put(ctx, "shoppingItems", []byte(`[{"name":"Eggs"},{"name":"Milk"}]`)))

	got, err := store.Get(ctx, "shoppingItems")
	require.NoError(t, err)
	assert.Equal(t, `[{"name":"Eggs"},{"name":"Milk"}]`, string(got))
}

func TestSQLiteStoreKeysAreIndependent(t *testing.T) {
	store := NewSQLiteStore(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "fridgeItems", []byte(`[]`)))

	_, err := store.Get(ctx, "shoppingItems")
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestSQLiteStoreDelete(t *testing.T) {
	store := NewSQLiteStore(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", []byte("v")))
	require.NoError(t, store.Delete(ctx, "k"))

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestSQLiteStoreDelete_NotFound(t *testing.T) {
	store := NewSQLiteStore(openTestDB(t))

	err := store.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
}
