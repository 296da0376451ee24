package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/vbonduro/fridgescan/internal/camera"
	"github.com/vbonduro/fridgescan/internal/camera/linescan"
	"github.com/vbonduro/fridgescan/internal/config"
	"github.com/vbonduro/fridgescan/internal/db"
	"github.com/vbonduro/fridgescan/internal/events"
	"github.com/vbonduro/fridgescan/internal/kvstore"
	"github.com/vbonduro/fridgescan/internal/kvstore/local"
	"github.com/vbonduro/fridgescan/internal/kvstore/sqlite"
	"github.com/vbonduro/fridgescan/internal/metrics"
	"github.com/vbonduro/fridgescan/internal/product/openfoodfacts"
	"github.com/vbonduro/fridgescan/internal/service"
	"github.com/vbonduro/fridgescan/internal/store"
)

const (
	BackendSQLite = "sqlite"
	BackendLocal  = "local"
	BackendMemory = "memory"
)

// App is the wired object graph shared by the web server and the terminal UI.
type App struct {
	Service *service.PantryService
	// Scanner is nil when no scanner device pattern is configured.
	Scanner *camera.Controller
	Bus     *events.Bus
	Metrics *metrics.Metrics

	database *sql.DB
	logger   *slog.Logger
}

// New opens storage, restores both lists and wires the services. Test mode
// keeps everything in memory and attaches no scanner.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	backend := cfg.StorageBackend
	if cfg.TestMode {
		backend = BackendMemory
	}

	a := &App{logger: logger}
	kv, err := a.openStorage(backend, cfg)
	if err != nil {
		return nil, err
	}

	items := store.NewItemStore(kv)
	if err := items.Load(ctx); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to load items: %w", err)
	}
	shopping := store.NewShoppingStore(kv)
	if err := shopping.Load(ctx); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to load shopping list: %w", err)
	}
	logger.Info("lists restored", "backend", backend, "items", len(items.List()), "shopping", len(shopping.List()))

	a.Bus = events.NewBus(logger)
	a.Metrics = metrics.New()
	lookup := openfoodfacts.NewClient(cfg.LookupBaseURL)
	a.Service = service.NewPantryService(items, shopping, lookup, a.Bus, a.Metrics, logger)

	if cfg.ScannerDevices != "" && !cfg.TestMode {
		devices := linescan.New(cfg.ScannerDevices)
		a.Scanner = camera.NewController(devices, devices, logger, a.Service.CameraOptions(cfg.ScanRepeatWindow))
		logger.Info("scanner attached", "devices", cfg.ScannerDevices)
	}
	return a, nil
}

func (a *App) openStorage(backend string, cfg *config.Config) (kvstore.Store, error) {
	switch backend {
	case BackendSQLite:
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		a.database = database
		return sqlite.NewSQLiteStore(database), nil
	case BackendLocal:
		kv, err := local.NewLocalStore(cfg.DataPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize list directory: %w", err)
		}
		return kv, nil
	case BackendMemory:
		a.logger.Warn("using in-memory storage; lists are lost on exit")
		return kvstore.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// Close stops any scanning session and releases storage.
func (a *App) Close() error {
	if a.Scanner != nil {
		a.Scanner.Stop()
	}
	if a.database == nil {
		return nil
	}
	err := a.database.Close()
	a.database = nil
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
