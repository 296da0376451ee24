package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vbonduro/fridgescan/internal/camera"
	"github.com/vbonduro/fridgescan/internal/domain"
	"github.com/vbonduro/fridgescan/internal/events"
	"github.com/vbonduro/fridgescan/internal/metrics"
	"github.com/vbonduro/fridgescan/internal/product"
)

var (
	ErrEmptyCode   = errors.New("empty code")
	ErrCodeTooLong = errors.New("code too long")
)

// maxCodeLen bounds codes accepted from clients; GS1 codes are 14 digits at
// most, QR payloads from browser decoders can be longer.
const maxCodeLen = 128

// itemRepository is the subset of store.ItemStore that PantryService requires.
type itemRepository interface {
	Add(ctx context.Context, item domain.Item) error
	List() []domain.Item
	Search(query string) []domain.Item
}

// shoppingRepository is the subset of store.ShoppingStore that PantryService requires.
type shoppingRepository interface {
	Add(ctx context.Context, name string) (domain.ShoppingEntry, bool, error)
	Render(items []domain.Item) []domain.ShoppingView
}

type publisher interface {
	Publish(ev events.Event)
}

type PantryService struct {
	items    itemRepository
	shopping shoppingRepository
	lookup   product.Lookup
	bus      publisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewPantryService(
	items itemRepository,
	shopping shoppingRepository,
	lookup product.Lookup,
	bus publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *PantryService {
	return &PantryService{
		items:    items,
		shopping: shopping,
		lookup:   lookup,
		bus:      bus,
		metrics:  m,
		logger:   logger,
	}
}

// HandleScan looks code up once and records exactly one item for it, named
// after the product, or a placeholder when the product is unknown or the
// lookup fails. Only a storage failure returns an error.
func (s *PantryService) HandleScan(ctx context.Context, code string) (domain.Item, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Item{}, ErrEmptyCode
	}
	if len(code) > maxCodeLen {
		return domain.Item{}, fmt.Errorf("%w: %d bytes, limit %d", ErrCodeTooLong, len(code), maxCodeLen)
	}

	s.logger.Info("product lookup started", "code", code)
	start := time.Now()
	res, err := s.lookup.Lookup(ctx, code)
	name, outcome := product.Normalize(code, res, err)
	s.metrics.ObserveLookup(outcome.String(), time.Since(start))
	if err != nil {
		s.logger.Warn("product lookup failed", "code", code, "error", err)
	} else {
		s.logger.Info("product lookup complete", "code", code, "outcome", outcome.String())
	}

	item := domain.Item{Name: name, Barcode: code}
	// The lookup may have been cut short by ctx; the placeholder is still
	// recorded.
	if err := s.items.Add(context.WithoutCancel(ctx), item); err != nil {
		return item, fmt.Errorf("failed to store item: %w", err)
	}
	s.metrics.Scans.Inc()

	s.bus.Publish(events.Event{Type: events.TypeItemAdded, Item: &item, Label: item.Label()})
	s.bus.Publish(events.Event{Type: events.TypeShoppingChanged, Shopping: s.ShoppingList()})
	return item, nil
}

// SearchItems filters owned items by name, most recent first.
func (s *PantryService) SearchItems(query string) []domain.Item {
	return s.items.Search(query)
}

func (s *PantryService) Items() []domain.Item {
	return s.items.List()
}

// ShoppingList renders the shopping list against the owned items.
func (s *PantryService) ShoppingList() []domain.ShoppingView {
	return s.shopping.Render(s.items.List())
}

// AddShopping appends name to the shopping list. Blank names are ignored and
// reported with added == false.
func (s *PantryService) AddShopping(ctx context.Context, name string) ([]domain.ShoppingView, bool, error) {
	entry, added, err := s.shopping.Add(ctx, name)
	if err != nil {
		return nil, false, fmt.Errorf("failed to add shopping entry: %w", err)
	}
	views := s.ShoppingList()
	if added {
		s.metrics.ShoppingAdds.Inc()
		s.logger.Info("shopping entry added", "name", entry.Name)
		s.bus.Publish(events.Event{Type: events.TypeShoppingChanged, Shopping: views})
	}
	return views, added, nil
}

// CameraOptions wires a camera.Controller to this service: every unique read
// becomes a scan, status lines and failures are published.
func (s *PantryService) CameraOptions(repeatWindow time.Duration) camera.Options {
	return camera.Options{
		RepeatWindow: repeatWindow,
		OnStatus: func(status string) {
			s.bus.Publish(events.Event{Type: events.TypeStatus, Status: status})
		},
		OnCode: func(ctx context.Context, code string) {
			if _, err := s.HandleScan(ctx, code); err != nil {
				s.logger.Error("failed to record scan", "code", code, "error", err)
			}
		},
		OnError: func(err *camera.Error) {
			s.metrics.CameraErrors.WithLabelValues(err.Kind.String()).Inc()
			s.bus.Publish(events.Event{
				Type:      events.TypeCameraError,
				Status:    err.Error(),
				ErrorKind: err.Kind.String(),
			})
		},
	}
}

// ReportCameraError records a failure raised by a browser-side camera, named
// by its DOM error name, and returns the message to show.
func (s *PantryService) ReportCameraError(name, detail string) *camera.Error {
	kind := camera.KindFromName(name)
	var cause error
	if detail != "" {
		cause = errors.New(detail)
	}
	camErr := &camera.Error{Kind: kind, Err: cause}
	s.logger.Warn("browser camera error", "name", name, "kind", kind.String(), "detail", detail)
	s.metrics.CameraErrors.WithLabelValues(kind.String()).Inc()
	s.bus.Publish(events.Event{Type: events.TypeCameraError, Status: camErr.Error(), ErrorKind: kind.String()})
	return camErr
}
