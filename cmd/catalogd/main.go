// Package main is the entry point for the catalogd server.
// It loads configuration, opens the configured store, sets up routing, and
// starts the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"catalogd/internal/cache"
	"catalogd/internal/catalog"
	"catalogd/internal/config"
	"catalogd/internal/database"
	"catalogd/internal/handlers"
	"catalogd/internal/middleware"
	"catalogd/internal/router"
	"catalogd/internal/storage"
	"catalogd/internal/store"
	"catalogd/internal/store/memstore"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"store", cfg.StoreDriver,
		"cache", cfg.CacheEnabled(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The engine takes interfaces; leave them nil unless the backing
	// service is configured.
	var (
		catalogStore catalog.CatalogStore
		audit        catalog.RecomputeLogger
		recomputeLog handlers.RecomputeLog
		treeCache    catalog.TreeCache
		snapshots    handlers.SnapshotStore
	)

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db := openPostgres(ctx, cfg)
		defer db.Close()

		logStore := store.NewRecomputeLogStore(db)
		catalogStore = store.NewCatalog(db)
		audit = logStore
		recomputeLog = logStore
	case config.DriverMemory:
		slog.Warn("using in-memory store, data is lost on restart")
		catalogStore = memstore.New()
	}

	// Connect to Valkey for the tree cache (optional).
	if cfg.CacheEnabled() {
		var valkeyClient *redis.Client
		valkeyClient, err = cache.ConnectValkey(ctx, cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword, cfg.ValkeyDB)
		if err != nil {
			slog.Error("failed to connect to valkey", "error", err)
			os.Exit(1)
		}
		defer valkeyClient.Close()
		treeCache = cache.NewTreeCache(valkeyClient, cfg.TreeCacheTTL)
	} else {
		slog.Warn("valkey not configured, tree cache disabled")
	}

	// Connect to S3-compatible object storage for snapshots (optional).
	if cfg.SnapshotsEnabled() {
		storageClient, err := storage.New(cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket)
		if err != nil {
			slog.Error("failed to initialize S3 storage", "error", err)
			os.Exit(1)
		}
		snapshots = storageClient
		slog.Info("s3 storage connected", "endpoint", cfg.S3Endpoint, "bucket", storageClient.Bucket())
	} else {
		slog.Warn("s3 storage not configured, snapshots disabled")
	}

	svc := catalog.New(catalogStore, treeCache, audit)

	// Seed development data (no-op if categories already exist).
	if cfg.IsDev() {
		if err := database.Seed(ctx, svc); err != nil {
			slog.Error("failed to seed catalog", "error", err)
			os.Exit(1)
		}
	}

	if cfg.RecomputeOnStart {
		if _, err := svc.Counts.RecomputeAll(ctx, "startup"); err != nil {
			// Counts self-heal on the next write or manual recompute.
			slog.Error("startup recompute failed", "error", err)
		}
	}

	maintenanceLimiter := middleware.NewRateLimiter(cfg.RateLimitMaintenance, time.Minute)
	defer maintenanceLimiter.Stop()

	r := router.New(handlers.NewAPI(svc, recomputeLog, snapshots), maintenanceLimiter)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received")

	// Give active requests up to 30 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}

// openPostgres connects to PostgreSQL and runs pending migrations, exiting
// the process on failure.
func openPostgres(ctx context.Context, cfg *config.Config) *sql.DB {
	db, err := database.Connect(ctx, cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		db.Close()
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	return db
}
