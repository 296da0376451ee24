package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/fridgescan/internal/domain"
	"github.com/vbonduro/fridgescan/internal/kvstore"
)

func TestShoppingStoreAdd_AppendsTrimmed(t *testing.T) {
	kv := kvstore.NewMemory()
	shopping := NewShoppingStore(kv)
	ctx := context.Background()

	entry, added, err := shopping.Add(ctx, "  Milk  ")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, "Milk", entry.Name)

	_, _, err = shopping.Add(ctx, "Eggs")
	require.NoError(t, err)

	assert.Equal(t, []domain.ShoppingEntry{{Name: "Milk"}, {Name: "Eggs"}}, shopping.List())

	raw, err := kv.Get(ctx, ShoppingKey)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"Milk"},{"name":"Eggs"}]`, string(raw))
}

func TestShoppingStoreAdd_IgnoresBlank(t *testing.T) {
	kv := kvstore.NewMemory()
	shopping := NewShoppingStore(kv)
	ctx := context.Background()

	for _, in := range []string{"", "   ", "\t\n"} {
		_, added, err := shopping.Add(ctx, in)
		require.NoError(t, err)
		assert.False(t, added)
	}

	assert.Empty(t, shopping.List())
	_, err := kv.Get(ctx, ShoppingKey)
	assert.ErrorIs(t, err, kvstore.ErrNotFound, "blank input must not persist anything")
}

func TestShoppingStoreAdd_PersistFailure(t *testing.T) {
	shopping := NewShoppingStore(failingKV{kvstore.NewMemory()})

	_, added, err := shopping.Add(context.Background(), "Milk")

	assert.Error(t, err)
	assert.False(t, added)
	assert.Empty(t, shopping.List())
}

func TestShoppingStoreLoad(t *testing.T) {
	kv := kvstore.NewMemory()
	ctx := context.Background()
	require.NoError(t, kv.Put(ctx, ShoppingKey, []byte(`[{"name":"Bread"}]`)))

	shopping := NewShoppingStore(kv)
	require.NoError(t, shopping.Load(ctx))

	assert.Equal(t, []domain.ShoppingEntry{{Name: "Bread"}}, shopping.List())
}

func TestShoppingStoreRender(t *testing.T) {
	shopping := NewShoppingStore(kvstore.NewMemory())
	ctx := context.Background()
	for _, name := range []string{"Milk", "Eggs", "Oat milk"} {
		_, _, err := shopping.Add(ctx, name)
		require.NoError(t, err)
	}

	owned := []domain.Item{
		{Name: "milk", Barcode: "1"},
		{Name: "Unknown product (42)", Barcode: "42"},
	}

	views := shopping.Render(owned)

	assert.Equal(t, []domain.ShoppingView{
		{Name: "Milk", Owned: true},
		{Name: "Eggs", Owned: false},
		// Equality, not substring.
		{Name: "Oat milk", Owned: false},
	}, views)
}

func TestShoppingStoreRender_NoItems(t *testing.T) {
	shopping := NewShoppingStore(kvstore.NewMemory())
	_, _, err := shopping.Add(context.Background(), "Milk")
	require.NoError(t, err)

	views := shopping.Render(nil)

	assert.Equal(t, []domain.ShoppingView{{Name: "Milk", Owned: false}}, views)
}

func TestShoppingAgainstItemStore(t *testing.T) {
	kv := kvstore.NewMemory()
	items := NewItemStore(kv)
	shopping := NewShoppingStore(kv)
	ctx := context.Background()

	require.NoError(t, items.Add(ctx, domain.Item{Name: "MILK", Barcode: "1"}))
	_, _, err := shopping.Add(ctx, "Milk")
	require.NoError(t, err)

	views := shopping.Render(items.List())
	require.Len(t, views, 1)
	assert.True(t, views[0].Owned)

	// The lists stay independent in storage.
	raw, err := kv.Get(ctx, ShoppingKey)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"Milk"}]`, string(raw))
}
