package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/gamebank/internal/dependencies/clock"
	"github.com/mcoot/gamebank/internal/events"
	"github.com/mcoot/gamebank/internal/services/ledger"
	"github.com/mcoot/gamebank/internal/services/syncplan"
	"github.com/mcoot/gamebank/internal/storage"
	"github.com/mcoot/gamebank/internal/storage/memory"
	redisstorage "github.com/mcoot/gamebank/internal/storage/redis"
	"github.com/mcoot/gamebank/internal/storage/sqldb"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypeRedis    = "redis"
	StorageTypeSQLite   = "sqlite"
	StorageTypePostgres = "postgres"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock clock.Clock

	// Services
	Planner *syncplan.Planner
	Ledger  *ledger.Service
	Events  *events.Hub
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// SQLConfig holds database settings (required if StorageType is "sqlite" or "postgres")
	SQLConfig *sqldb.Config
	// LedgerConfig holds the ledger rules (optional)
	// If zero value, defaults to ledger.DefaultConfig()
	LedgerConfig ledger.Config
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	clk := clock.New()

	store, err := newStorage(ctx, cfg, clk, logger)
	if err != nil {
		return nil, err
	}

	ledgerCfg := cfg.LedgerConfig
	if ledgerCfg == (ledger.Config{}) {
		ledgerCfg = ledger.DefaultConfig()
	}

	return newWithDependencies(store, clk, ledgerCfg, logger), nil
}

func newStorage(ctx context.Context, cfg Config, clk clock.Clock, logger *slog.Logger) (storage.Storage, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(clk), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		return redisstorage.New(*cfg.RedisConfig, clk)
	case StorageTypeSQLite, StorageTypePostgres:
		if cfg.SQLConfig == nil {
			return nil, fmt.Errorf("SQLConfig required when StorageType is %s", storageType)
		}
		sqlCfg := *cfg.SQLConfig
		sqlCfg.Dialect = sqldb.Dialect(storageType)
		return sqldb.Open(ctx, sqlCfg, clk, logger)
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be memory, redis, sqlite or postgres", storageType)
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, ledgerCfg ledger.Config, logger *slog.Logger) *App {
	planner := syncplan.New(store, logger)
	service := ledger.New(store, planner, ledgerCfg, logger)
	hub := events.NewHub(logger)
	service.SetPublisher(hub)
	go hub.Run()

	return &App{
		Storage: store,
		Clock:   clk,
		Planner: planner,
		Ledger:  service,
		Events:  hub,
	}
}

// Close stops the event hub and releases the storage backend
func (a *App) Close() error {
	a.Events.Close()
	return a.Storage.Close()
}
