package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/smartpaperhq/evalmeter/internal/cache"
	"github.com/smartpaperhq/evalmeter/internal/errors"
	"github.com/smartpaperhq/evalmeter/internal/loader"
	"github.com/smartpaperhq/evalmeter/internal/monitoring"
	"github.com/smartpaperhq/evalmeter/internal/security"
	"github.com/smartpaperhq/evalmeter/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Configuration from environment with defaults
	dataDir := getEnvOrDefault("DATA_DIR", "./data")
	recordDir := getEnvOrDefault("EVAL_DATA_DIR", "./data/evaluations")
	remoteURL := os.Getenv("EVAL_REMOTE_URL")
	port := getEnvOrDefault("PORT", "8080")
	cacheTTL := getDurationOrDefault("CACHE_TTL", 10*time.Minute)
	rateLimit := getIntOrDefault("RATE_LIMIT_RPM", 120)
	snapshotRetentionDays := getIntOrDefault("SNAPSHOT_RETENTION_DAYS", 90)

	if err := os.MkdirAll(recordDir, 0o755); err != nil {
		slog.Error("Failed to create record directory", "dir", recordDir, "error", err)
		os.Exit(1)
	}

	db, err := store.NewDB(dataDir)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer errors.SafeClose(db, "database")

	repo := store.NewRepository(db)

	appMetrics := monitoring.NewMetrics()
	appLogger := monitoring.NewLogger()

	loaderOpts := []loader.Option{loader.WithMetrics(appMetrics)}
	if remoteURL != "" {
		loaderOpts = append(loaderOpts, loader.WithRemote(loader.NewRemoteSource(remoteURL)))
	}
	recordLoader := loader.NewLoader(recordDir, cacheTTL, appLogger, loaderOpts...)

	responseCache := cache.NewCache(cacheTTL)

	securityConfig := security.DefaultSecurityConfig()
	securityConfig.MaxRequestsPerMin = rateLimit

	server := NewServer(recordLoader, repo, responseCache, appMetrics, appLogger)
	router := buildRouter(server, securityConfig)

	// Old aggregate snapshots are pruned daily.
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for range ticker.C {
			pruned, err := repo.PruneSnapshots(snapshotRetentionDays)
			if err != nil {
				slog.Error("Failed to prune aggregate snapshots", "error", err)
				continue
			}
			if pruned > 0 {
				slog.Info("Pruned aggregate snapshots", "count", pruned, "retention_days", snapshotRetentionDays)
			}
		}
	}()

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		slog.Info("Starting server", "port", port, "record_dir", recordDir)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
		slog.Warn("Ignoring invalid integer setting", "key", key, "value", value)
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
		slog.Warn("Ignoring invalid duration setting", "key", key, "value", value)
	}
	return defaultValue
}
