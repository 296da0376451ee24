package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vbonduro/fridgescan/internal/kvstore"
)

// Keys the two lists are persisted under.
const (
	ItemsKey    = "fridgeItems"
	ShoppingKey = "shoppingItems"
)

// loadList reads a JSON array stored under key. A missing key is an empty list.
func loadList[T any](ctx context.Context, kv kvstore.Store, key string) ([]T, error) {
	data, err := kv.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}

	list := []T{}
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	if list == nil {
		// A stored "null" decodes to a nil slice.
		list = []T{}
	}
	return list, nil
}

func saveList[T any](ctx context.Context, kv kvstore.Store, key string, list []T) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := kv.Put(ctx, key, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
