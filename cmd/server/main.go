package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/feedcanon/backend/config"
	httpDelivery "github.com/feedcanon/backend/internal/delivery/http"
	"github.com/feedcanon/backend/internal/domain"
	"github.com/feedcanon/backend/internal/infrastructure/cache"
	"github.com/feedcanon/backend/internal/infrastructure/merchants"
	"github.com/feedcanon/backend/internal/infrastructure/metrics"
	"github.com/feedcanon/backend/internal/infrastructure/storage"
	"github.com/feedcanon/backend/internal/logger"
	"github.com/feedcanon/backend/internal/usecase"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	log.Info("starting feedcanon backend",
		zap.String("version", "1.0.0"),
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("cache_type", cfg.Cache.Type),
		zap.Duration("cache_ttl", cfg.Cache.TTL),
	)

	ctx := context.Background()

	directory, err := merchants.LoadFile(cfg.Merchants.File)
	if err != nil {
		return fmt.Errorf("load merchants: %w", err)
	}
	log.Info("merchant configuration loaded",
		zap.String("file", cfg.Merchants.File),
		zap.Int("merchants", len(directory.Names())),
	)

	// Initialize infrastructure dependencies
	offerCache, err := cache.Open(ctx, cfg.Cache.Type, cfg.Cache.RedisURL)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer offerCache.Close()

	var store domain.OfferRepository
	if cfg.Storage.DSN != "" {
		s, err := storage.Open(ctx, cfg.Storage.DSN, log)
		if err != nil {
			return fmt.Errorf("open offer store: %w", err)
		}
		defer s.Close()
		store = s
	} else {
		log.Warn("offer store not configured, persistence endpoints disabled")
	}

	// Initialize usecase layer
	service := usecase.NewNormalizationService(
		offerCache,
		directory,
		metrics.NewPrometheus(),
		log,
		usecase.NormalizationServiceConfig{
			CacheTTL: cfg.Cache.TTL,
			Workers:  cfg.Batch.Workers,
		},
	)
	if err := service.Validate(); err != nil {
		return fmt.Errorf("invalid merchant configuration: %w", err)
	}

	handler := httpDelivery.NewHandler(service, store, log)
	router := httpDelivery.SetupRouter(cfg, handler, log)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("received signal", zap.String("signal", sig.String()))
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}
