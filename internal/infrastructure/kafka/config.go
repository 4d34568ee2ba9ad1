package kafka

import (
	"errors"
	"time"
)

// Offset constants
const (
	FirstOffset int64 = -2 // Start from the oldest message
	LastOffset  int64 = -1 // Start from the newest message
)

// ConsumerConfig configures the row consumer
type ConsumerConfig struct {
	// Brokers is a list of Kafka broker addresses
	Brokers []string

	// Topic carries raw feed rows
	Topic string

	// GroupID is the consumer group ID
	GroupID string

	MinBytes       int
	MaxBytes       int
	MaxWait        time.Duration
	CommitInterval time.Duration

	// StartOffset applies when the group has no committed offset
	StartOffset int64

	// HandlerAttempts bounds how often a failing message is retried before it
	// is committed and dropped
	HandlerAttempts int
	// RetryBackoff is multiplied by the attempt number between retries
	RetryBackoff time.Duration
}

// DefaultConsumerConfig returns a ConsumerConfig with sensible defaults
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers:        []string{"localhost:9092"},
		Topic:          "feed-rows",
		GroupID:        "feedcanon-worker",
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        3 * time.Second,
		CommitInterval: 0,
		StartOffset:    FirstOffset,

		HandlerAttempts: 5,
		RetryBackoff:    time.Second,
	}
}

// Validate checks the fields the reader cannot start without
func (c ConsumerConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("at least one broker is required")
	}
	if c.Topic == "" {
		return errors.New("topic is required")
	}
	if c.GroupID == "" {
		return errors.New("group ID is required")
	}
	return nil
}

// ProducerConfig configures the result producer
type ProducerConfig struct {
	Brokers []string

	// Topic receives normalized offers
	Topic string

	BatchSize    int
	BatchTimeout time.Duration

	// RequiredAcks: 0 = no acks, 1 = leader only, -1 = all replicas
	RequiredAcks int

	MaxAttempts  int
	WriteTimeout time.Duration

	// Compression is one of none, gzip, snappy, lz4, zstd
	Compression string
}

// DefaultProducerConfig returns a ProducerConfig with sensible defaults
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		Brokers:      []string{"localhost:9092"},
		Topic:        "normalized-offers",
		BatchSize:    100,
		BatchTimeout: 100 * time.Millisecond,
		RequiredAcks: 1,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		Compression:  "snappy",
	}
}

// Validate checks the fields the writer cannot start without
func (c ProducerConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("at least one broker is required")
	}
	if c.Topic == "" {
		return errors.New("topic is required")
	}
	return nil
}
