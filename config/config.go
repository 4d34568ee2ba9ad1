package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/feedcanon/backend/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Merchants MerchantsConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Storage   StorageConfig
	Kafka     KafkaConfig
	Log       LogConfig
	Batch     BatchConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// MerchantsConfig points at the per-merchant feed configuration
type MerchantsConfig struct {
	File string `mapstructure:"file"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute, 0 disables
}

// StorageConfig holds the offer store location. An empty DSN disables it.
type StorageConfig struct {
	DSN string `mapstructure:"dsn"`
}

// KafkaConfig holds streaming worker configuration
type KafkaConfig struct {
	Brokers     []string `mapstructure:"brokers"`
	InputTopic  string   `mapstructure:"input_topic"`
	OutputTopic string   `mapstructure:"output_topic"`
	GroupID     string   `mapstructure:"group_id"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// BatchConfig holds batch normalization configuration
type BatchConfig struct {
	Workers int `mapstructure:"workers"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/feedcanon/")

	// FEEDCANON_CACHE_REDIS_URL maps to cache.redis_url
	v.SetEnvPrefix("FEEDCANON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads a .env file from the working directory if present.
// Variables already set in the environment win.
func loadEnvFile() error {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error reading .env file: %w", err)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})

	v.SetDefault("merchants.file", "config/merchants.yaml")

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "720h") // 30 days

	v.SetDefault("ratelimit.per_ip", 600)

	v.SetDefault("storage.dsn", "")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.input_topic", "feed-rows")
	v.SetDefault("kafka.output_topic", "normalized-offers")
	v.SetDefault("kafka.group_id", "feedcanon-worker")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("batch.workers", 4)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	if _, err := logger.ParseLevel(config.Log.Level); err != nil {
		return err
	}

	if config.Batch.Workers < 1 {
		return fmt.Errorf("batch workers must be at least 1, got: %d", config.Batch.Workers)
	}

	if config.RateLimit.PerIP < 0 {
		return fmt.Errorf("rate limit must not be negative, got: %d", config.RateLimit.PerIP)
	}

	if len(config.Kafka.Brokers) > 0 {
		if config.Kafka.InputTopic == "" || config.Kafka.OutputTopic == "" {
			return fmt.Errorf("kafka input and output topics are required when brokers are set")
		}
		if config.Kafka.GroupID == "" {
			return fmt.Errorf("kafka group id is required when brokers are set")
		}
	}

	return nil
}
