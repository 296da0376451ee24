package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vbonduro/fridgescan/internal/domain"
)

type Type string

const (
	TypeStatus          Type = "status"
	TypeItemAdded       Type = "item_added"
	TypeShoppingChanged Type = "shopping_changed"
	TypeCameraError     Type = "camera_error"
)

// Event is what front ends re-render from. Only the fields relevant to Type
// are set.
type Event struct {
	ID        string                `json:"id"`
	Type      Type                  `json:"type"`
	Time      time.Time             `json:"time"`
	Status    string                `json:"status,omitempty"`
	ErrorKind string                `json:"error_kind,omitempty"`
	Item      *domain.Item          `json:"item,omitempty"`
	Label     string                `json:"label,omitempty"`
	Shopping  []domain.ShoppingView `json:"shopping,omitempty"`
}

const subscriberBuffer = 32

// Bus fans events out to subscribers. A subscriber that falls behind loses
// events rather than blocking publishers.
type Bus struct {
	logger *slog.Logger

	mu     sync.RWMutex
	nextID int
	subs   map[int]chan Event
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{logger: logger, subs: make(map[int]chan Event)}
}

// Subscribe returns a channel of events and a cancel func that closes it.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish stamps ev with an id and time when missing and delivers it.
func (b *Bus) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("dropping event for slow subscriber", "subscriber", id, "type", ev.Type)
		}
	}
}

func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
