package store

import (
	"context"
	"strings"
	"sync"

	"github.com/vbonduro/fridgescan/internal/domain"
	"github.com/vbonduro/fridgescan/internal/kvstore"
)

// ItemStore holds the owned items, most recent first, mirrored to kv under
// ItemsKey after every change.
type ItemStore struct {
	kv kvstore.Store

	mu    sync.RWMutex
	items []domain.Item
}

func NewItemStore(kv kvstore.Store) *ItemStore {
	return &ItemStore{kv: kv, items: []domain.Item{}}
}

// Load replaces the in-memory list with the persisted one.
func (s *ItemStore) Load(ctx context.Context) error {
	items, err := loadList[domain.Item](ctx, s.kv, ItemsKey)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
	return nil
}

// Save persists the whole in-memory list.
func (s *ItemStore) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveList(ctx, s.kv, ItemsKey, s.items)
}

// Add prepends item and persists the collection. If persisting fails the
// insert is undone so memory and storage stay in step.
func (s *ItemStore) Add(ctx context.Context, item domain.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.items
	next := make([]domain.Item, 0, len(prev)+1)
	next = append(next, item)
	next = append(next, prev...)

	if err := saveList(ctx, s.kv, ItemsKey, next); err != nil {
		return err
	}
	s.items = next
	return nil
}

// List returns a copy of every item in stored order.
func (s *ItemStore) List() []domain.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Item(nil), s.items...)
}

// Search returns the items whose name contains query, ignoring case, in
// stored order. An empty query returns the full list.
func (s *ItemStore) Search(query string) []domain.Item {
	q := strings.ToLower(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]domain.Item, 0, len(s.items))
	for _, item := range s.items {
		if strings.Contains(strings.ToLower(item.Name), q) {
			results = append(results, item)
		}
	}
	return results
}

// HasName reports whether any item is named name, ignoring case.
func (s *ItemStore) HasName(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if domain.SameName(item.Name, name) {
			return true
		}
	}
	return false
}
