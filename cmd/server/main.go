package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mcoot/gamebank/internal/api"
	"github.com/mcoot/gamebank/internal/config"
	"github.com/mcoot/gamebank/internal/factory"
	"github.com/mcoot/gamebank/internal/services/ledger"
	redisstorage "github.com/mcoot/gamebank/internal/storage/redis"
	"github.com/mcoot/gamebank/internal/storage/sqldb"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)
	logger.Info("config loaded", slog.Any("config", cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	app, err := factory.New(ctx, factoryConfig(cfg, logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close storage", slog.String("error", err.Error()))
		}
	}()

	router := api.NewRouter(api.RouterConfig{
		Logger:             logger,
		Ledger:             app.Ledger,
		Events:             app.Events,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.Host
	serverConfig.Port = cfg.Port
	server := api.NewServer(router, serverConfig, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server started", slog.String("addr", server.Addr()))
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		// Disconnect event streams so shutdown does not wait on them
		app.Events.Close()
		return server.Shutdown(context.Background())
	})

	return g.Wait()
}

// factoryConfig maps server settings onto the application factory
func factoryConfig(cfg *config.Config, logger *slog.Logger) factory.Config {
	ledgerCfg := ledger.DefaultConfig()
	ledgerCfg.InitialBalance = cfg.InitialBalance
	ledgerCfg.MaxNameLength = cfg.MaxNameLength

	fc := factory.Config{
		Logger:       logger,
		StorageType:  cfg.StorageType,
		LedgerConfig: ledgerCfg,
	}

	switch cfg.StorageType {
	case config.StorageRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		fc.RedisConfig = &redisCfg
	case config.StorageSQLite, config.StoragePostgres:
		fc.SQLConfig = &sqldb.Config{
			Dialect: sqldb.Dialect(cfg.StorageType),
			DSN:     cfg.DatabaseURL,
		}
	}
	return fc
}
