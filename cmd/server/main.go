package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"

	httpapi "rental-quote-backend/internal/api/http"
	"rental-quote-backend/internal/cache"
	"rental-quote-backend/internal/config"
	"rental-quote-backend/internal/distance"
	"rental-quote-backend/internal/domain"
	"rental-quote-backend/internal/jobs"
	"rental-quote-backend/internal/logger"
	"rental-quote-backend/internal/pricing"
	"rental-quote-backend/internal/repository"
	"rental-quote-backend/internal/repository/firestore"
	"rental-quote-backend/internal/repository/postgres"
	"rental-quote-backend/internal/scheduler"
	"rental-quote-backend/internal/service"
	"rental-quote-backend/internal/source/sheets"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Rental Quote Backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress(), "store", cfg.Store.Type)

	ctx := context.Background()

	// Initialize catalog store
	catalogRepo, runRepo, storeCloser, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open catalog store", "error", err)
		log.Fatalf("Failed to open catalog store: %v", err)
	}
	defer storeCloser.Close()

	// Initialize spreadsheet source
	src, err := sheets.New(ctx, cfg.Sheets.SpreadsheetID, cfg.Sheets.CredentialsFile, sheets.Tabs{
		Products:   cfg.Sheets.ProductsTab,
		Generators: cfg.Sheets.GeneratorsTab,
		Branches:   cfg.Sheets.BranchesTab,
		States:     cfg.Sheets.StatesTab,
		Config:     cfg.Sheets.ConfigTab,
		Seasonal:   cfg.Sheets.SeasonalTab,
	})
	if err != nil {
		logger.Error("Failed to initialize sheets source", "error", err)
		log.Fatalf("Failed to initialize sheets source: %v", err)
	}

	// Initialize cache
	kv := cache.NewMemoryStore()
	defer kv.Close()
	catalogCache, err := cache.NewCatalogCache(kv, cfg.CatalogTTL(), cfg.LocationTTL())
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}

	// Initialize Services
	var alerts service.AlertService
	if cfg.Alert.SendGridAPIKey != "" {
		alerts = service.NewSendGridAlertService(cfg.Alert.SendGridAPIKey, cfg.Alert.From, cfg.Alert.To)
		logger.Info("Sync alerts enabled", "to", cfg.Alert.To)
	}

	var resolver service.DistanceResolver
	if cfg.Distance.BaseURL != "" {
		resolver = service.NewCachedDistanceResolver(distance.NewHTTPResolver(cfg.Distance.BaseURL, cfg.DistanceTimeout()), catalogCache)
	} else {
		logger.Warn("No distance resolver configured; delivery costs will be unknown")
	}

	builder := service.NewCatalogBuilder(catalogRepo)
	syncSvc := service.NewSyncService(src, catalogRepo, runRepo, builder, catalogCache, alerts)
	reader := service.NewCatalogReader(catalogCache, builder)
	engine := pricing.NewEngine(cfg.QuoteValidity(), domain.EventTier(cfg.Quote.DefaultEventTier))
	quoteSvc := service.NewQuoteService(reader, resolver, engine)
	cacheSvc := service.NewCacheAdminService(catalogCache)

	// Initialize Scheduler
	jobRunner := jobs.NewJobRunner(&jobs.Services{Sync: syncSvc, Cache: cacheSvc}, cfg)
	cronScheduler := scheduler.NewScheduler(jobRunner)
	cronScheduler.Start()

	if cfg.Scheduler.SyncOnStart {
		go jobRunner.SyncCatalog()
	}

	// Set up HTTP server
	router := mux.NewRouter()
	httpapi.RegisterRoutes(router, httpapi.NewHandler(quoteSvc, syncSvc, cacheSvc, cronScheduler), cfg.Server.AdminToken)
	srv := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Get().Handler(), slog.LevelError),
	}

	go func() {
		logger.Info("HTTP server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	cronScheduler.Stop()
	logger.Info("Server stopped. Goodbye!")
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// openStore connects the configured catalog store backend.
func openStore(ctx context.Context, cfg *config.Config) (repository.CatalogRepository, repository.SyncRunRepository, io.Closer, error) {
	switch cfg.Store.Type {
	case "firestore":
		logger.Info("Connecting to Firestore...", "project_id", cfg.Firestore.ProjectID)
		store, err := firestore.NewStore(ctx, cfg.Firestore.ProjectID, cfg.Firestore.CredentialsFile)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("Firestore connection established")
		return store, store, store, nil

	default:
		logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database)
		db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}
		store := postgres.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("failed to create schema: %w", err)
		}
		logger.Info("Database connection established")
		return store, store, closerFunc(db.Close), nil
	}
}
