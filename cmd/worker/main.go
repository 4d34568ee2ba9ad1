package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/feedcanon/backend/config"
	"github.com/feedcanon/backend/internal/infrastructure/cache"
	"github.com/feedcanon/backend/internal/infrastructure/kafka"
	"github.com/feedcanon/backend/internal/infrastructure/merchants"
	"github.com/feedcanon/backend/internal/infrastructure/metrics"
	"github.com/feedcanon/backend/internal/logger"
	"github.com/feedcanon/backend/internal/usecase"
	"go.uber.org/zap"
)

func main() {
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("worker stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if len(cfg.Kafka.Brokers) == 0 {
		return errors.New("kafka brokers are not configured")
	}

	directory, err := merchants.LoadFile(cfg.Merchants.File)
	if err != nil {
		return fmt.Errorf("load merchants: %w", err)
	}

	offerCache, err := cache.Open(ctx, cfg.Cache.Type, cfg.Cache.RedisURL)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer offerCache.Close()

	service := usecase.NewNormalizationService(
		offerCache,
		directory,
		metrics.NewPrometheus(),
		log,
		usecase.NormalizationServiceConfig{CacheTTL: cfg.Cache.TTL},
	)
	if err := service.Validate(); err != nil {
		return fmt.Errorf("invalid merchant configuration: %w", err)
	}

	producerConfig := kafka.DefaultProducerConfig()
	producerConfig.Brokers = cfg.Kafka.Brokers
	producerConfig.Topic = cfg.Kafka.OutputTopic
	producer, err := kafka.NewProducer(producerConfig, log)
	if err != nil {
		return fmt.Errorf("create producer: %w", err)
	}
	defer producer.Close()

	consumerConfig := kafka.DefaultConsumerConfig()
	consumerConfig.Brokers = cfg.Kafka.Brokers
	consumerConfig.Topic = cfg.Kafka.InputTopic
	consumerConfig.GroupID = cfg.Kafka.GroupID
	consumer, err := kafka.NewConsumer(consumerConfig, log)
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	handler := kafka.NewRowHandler(service, producer, log)
	if err := consumer.Start(ctx, handler); err != nil {
		return err
	}

	log.Info("worker running",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("input_topic", cfg.Kafka.InputTopic),
		zap.String("output_topic", cfg.Kafka.OutputTopic),
	)
	<-ctx.Done()
	log.Info("shutting down worker")

	return consumer.Stop()
}
