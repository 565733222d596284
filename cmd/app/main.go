package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classifieds/internal/app"
	"classifieds/internal/config"
	"classifieds/internal/db"
	"classifieds/internal/logger"
	"classifieds/internal/reconcile"
	"classifieds/internal/server"

	"github.com/redis/go-redis/v9"
)

// @title Classifieds Payments API
// @version 1.0
// @description Paid promotions, memberships and wallet top-ups with ledger reconciliation.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	logger.Init()
	logger.Info("Starting classifieds payments service")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	logger.Info("Connecting to database...")
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	logger.Info("Database connected")

	if err := db.RunMigrations(database, "migrations"); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Migrations completed")

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	a := app.New(cfg, database, rdb)
	if cfg.StripeSecretKey == "" {
		logger.Warn("STRIPE_SECRET_KEY not set, payment endpoints will answer 503")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go a.Email.Start(ctx)
	logger.Info("Email worker started")

	if cfg.SyncInterval > 0 {
		go runSync(ctx, a.Syncer, cfg.SyncInterval, cfg.SyncLimit)
	}

	srv := server.New(cfg, a.Handlers())

	serverErrChan := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on port %s", cfg.Port)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Infof("Received signal: %v", sig)
	case err := <-serverErrChan:
		logger.Errorf("Server error: %v", err)
	}

	logger.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error during server shutdown: %v", err)
	}

	logger.Info("Server stopped")
}

// runSync backfills the ledger on a fixed interval, looking back two
// intervals so a slow run does not leave a gap.
func runSync(ctx context.Context, syncer *reconcile.Syncer, interval time.Duration, limit int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("Scheduled sync enabled", "interval", interval.String(), "limit", limit)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			since := time.Now().Add(-2 * interval)
			res, err := syncer.SyncTransactions(ctx, limit, &since)
			if err != nil {
				if errors.Is(err, reconcile.ErrSyncInProgress) {
					logger.Debug("sync skipped, another run holds the lock")
					continue
				}
				logger.Error("scheduled sync failed", "error", err)
				continue
			}
			logger.Info("scheduled sync finished", "backfilled", res.Count, "skipped", res.Skipped)
		}
	}
}
