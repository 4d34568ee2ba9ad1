// Package kafka streams feed rows in and normalized offers out.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/feedcanon/backend/internal/infrastructure/metrics"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageHandler is called for each row message received from Kafka
type MessageHandler func(ctx context.Context, msg *RowMessage) error

// messageReader is the part of *kafka.Reader the consumer uses
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer consumes row messages from Kafka
type Consumer struct {
	reader  messageReader
	logger  *zap.Logger
	config  ConsumerConfig
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	running bool
	mu      sync.Mutex
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(config ConsumerConfig, logger *zap.Logger) (*Consumer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        config.Brokers,
		Topic:          config.Topic,
		GroupID:        config.GroupID,
		MinBytes:       config.MinBytes,
		MaxBytes:       config.MaxBytes,
		MaxWait:        config.MaxWait,
		CommitInterval: config.CommitInterval,
		StartOffset:    config.StartOffset,
	})

	return newConsumer(reader, config, logger), nil
}

func newConsumer(reader messageReader, config ConsumerConfig, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{reader: reader, logger: logger, config: config}
}

// Start begins consuming messages in the background
func (c *Consumer) Start(ctx context.Context, handler MessageHandler) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.New("consumer is already running")
	}
	c.running = true
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go c.consumeLoop(ctx, handler)

	c.logger.Info("kafka consumer started",
		zap.String("topic", c.config.Topic),
		zap.String("group", c.config.GroupID),
	)
	return nil
}

// Stop cancels the loop, waits for the in-flight message and closes the reader
func (c *Consumer) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	cancel := c.cancel
	c.mu.Unlock()

	cancel()
	c.wg.Wait()

	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("failed to close reader: %w", err)
	}

	c.logger.Info("kafka consumer stopped")
	return nil
}

// consumeLoop fetches, handles and commits messages one at a time
func (c *Consumer) consumeLoop(ctx context.Context, handler MessageHandler) {
	defer c.wg.Done()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			c.logger.Error("failed to fetch message", zap.Error(err))
			continue
		}

		row, err := ParseRowMessage(msg.Value)
		if err != nil {
			// commit so a bad message does not block the partition
			c.logger.Warn("dropping unparseable message", zap.Int64("offset", msg.Offset), zap.Error(err))
			metrics.ObserveMessage(metrics.MessageDropped)
		} else if !c.handle(ctx, handler, row, msg.Offset) {
			// left uncommitted so the group redelivers it
			return
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("failed to commit message", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

// handle runs handler until it succeeds or the attempts run out. It reports
// false when ctx ends first, in which case the message must not be committed.
func (c *Consumer) handle(ctx context.Context, handler MessageHandler, row *RowMessage, offset int64) bool {
	attempts := max(c.config.HandlerAttempts, 1)
	for attempt := 1; ; attempt++ {
		err := handler(ctx, row)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		fields := []zap.Field{
			zap.Int64("offset", offset),
			zap.String("merchant", row.Merchant),
			zap.Int("attempt", attempt),
			zap.Error(err),
		}
		if attempt >= attempts {
			c.logger.Error("dropping message, result was not published", fields...)
			metrics.ObserveMessage(metrics.MessageDropped)
			return true
		}
		c.logger.Warn("handler failed, retrying", fields...)

		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.config.RetryBackoff * time.Duration(attempt)):
		}
	}
}
