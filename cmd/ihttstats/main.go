package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HerbHall/ihttstats/internal/backend"
	"github.com/HerbHall/ihttstats/internal/catalog"
	"github.com/HerbHall/ihttstats/internal/config"
	"github.com/HerbHall/ihttstats/internal/dashboard"
	"github.com/HerbHall/ihttstats/internal/export"
	"github.com/HerbHall/ihttstats/internal/identity"
	"github.com/HerbHall/ihttstats/internal/listing"
	"github.com/HerbHall/ihttstats/internal/metrics"
	"github.com/HerbHall/ihttstats/internal/plugin"
	"github.com/HerbHall/ihttstats/internal/reports"
	"github.com/HerbHall/ihttstats/internal/server"
	"github.com/HerbHall/ihttstats/internal/services"
	"github.com/HerbHall/ihttstats/internal/store"
	"github.com/HerbHall/ihttstats/internal/summary"
	"github.com/HerbHall/ihttstats/internal/version"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("ihttstats starting", zap.String("version", version.Short()))

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	// Shared dependencies
	cat := catalog.New()
	if _, err := cat.Resources(); err != nil {
		logger.Fatal("invalid resource catalog", zap.Error(err))
	}

	db, err := store.Open(context.Background(), store.Options{
		Path:        cfg.GetString("store.path"),
		BusyTimeout: cfg.GetDuration("store.busy_timeout"),
	})
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer db.Close()

	m := metrics.New()
	client, err := backend.New(backend.Options{
		BaseURL:  cfg.GetString("backend.base_url"),
		Timeout:  cfg.GetDuration("backend.timeout"),
		RetryMax: cfg.GetInt("backend.retry_max"),
		Logger:   logger.Named("backend"),
		Metrics:  m,
	})
	if err != nil {
		logger.Fatal("failed to create backend client", zap.Error(err))
	}

	history := services.NewSQLiteExportRepository(db.DB())
	exporter := export.NewService(history, m, logger.Named("export"))

	// Create plugin registry
	registry := plugin.NewRegistry(logger)

	// Register all plugins (compile-time composition)
	plugins := []plugin.Plugin{
		identity.NewModule(),
		listing.NewModule(cat, client, exporter, m),
		dashboard.NewModule(cat, client),
		reports.NewModule(cat, client, exporter, db, history),
		summary.NewModule(cat, client, exporter),
	}
	for _, p := range plugins {
		if err := registry.Register(p); err != nil {
			logger.Fatal("failed to register plugin", zap.Error(err))
		}
	}

	// Initialize all plugins
	if err := registry.InitAll(cfg); err != nil {
		logger.Fatal("failed to initialize plugins", zap.Error(err))
	}

	// Start plugins
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := registry.StartAll(ctx); err != nil {
		logger.Fatal("failed to start plugins", zap.Error(err))
	}

	sections := func(resource string) string {
		res, err := cat.Get(resource)
		if err != nil {
			return ""
		}
		return res.Section
	}
	viewContext := identity.NewMiddleware(
		cfg.GetString("identity.cookie_name"),
		cfg.GetString("identity.secret"),
		sections,
		logger.Named("identity"),
	)

	// Create and start HTTP server
	addr := cfg.GetString("server.host") + ":" + cfg.GetString("server.port")
	if addr == ":" {
		addr = "0.0.0.0:8080"
	}
	srv := server.New(addr, registry, m, logger, viewContext.Wrap)

	// Start server in background
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	logger.Info("ihttstats ready",
		zap.String("addr", addr),
		zap.String("backend", cfg.GetString("backend.base_url")),
	)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	registry.StopAll()

	logger.Info("ihttstats stopped")
}
