package store

import (
	"context"
	"strings"
	"sync"

	"github.com/vbonduro/fridgescan/internal/domain"
	"github.com/vbonduro/fridgescan/internal/kvstore"
)

// ShoppingStore holds the shopping list in insertion order, mirrored to kv
// under ShoppingKey.
type ShoppingStore struct {
	kv kvstore.Store

	mu      sync.RWMutex
	entries []domain.ShoppingEntry
}

func NewShoppingStore(kv kvstore.Store) *ShoppingStore {
	return &ShoppingStore{kv: kv, entries: []domain.ShoppingEntry{}}
}

func (s *ShoppingStore) Load(ctx context.Context) error {
	entries, err := loadList[domain.ShoppingEntry](ctx, s.kv, ShoppingKey)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
	return nil
}

func (s *ShoppingStore) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveList(ctx, s.kv, ShoppingKey, s.entries)
}

// Add appends the trimmed name and persists the list. Blank input is ignored:
// added is false and nothing is written.
func (s *ShoppingStore) Add(ctx context.Context, name string) (entry domain.ShoppingEntry, added bool, err error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ShoppingEntry{}, false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry = domain.ShoppingEntry{Name: name}
	next := make([]domain.ShoppingEntry, 0, len(s.entries)+1)
	next = append(next, s.entries...)
	next = append(next, entry)

	if err := saveList(ctx, s.kv, ShoppingKey, next); err != nil {
		return domain.ShoppingEntry{}, false, err
	}
	s.entries = next
	return entry, true, nil
}

func (s *ShoppingStore) List() []domain.ShoppingEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ShoppingEntry(nil), s.entries...)
}

// Render marks each entry Owned when some item carries the same name,
// ignoring case.
func (s *ShoppingStore) Render(items []domain.Item) []domain.ShoppingView {
	owned := make(map[string]struct{}, len(items))
	for _, item := range items {
		owned[strings.ToLower(item.Name)] = struct{}{}
	}

	entries := s.List()
	views := make([]domain.ShoppingView, 0, len(entries))
	for _, e := range entries {
		_, have := owned[strings.ToLower(e.Name)]
		views = append(views, domain.ShoppingView{Name: e.Name, Owned: have})
	}
	return views
}
