package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/feedcanon/backend/internal/domain"
	"github.com/feedcanon/backend/internal/infrastructure/cache"
	"github.com/feedcanon/backend/internal/infrastructure/feedfile"
	"github.com/feedcanon/backend/internal/infrastructure/merchants"
	"github.com/feedcanon/backend/internal/infrastructure/storage"
	"github.com/feedcanon/backend/internal/logger"
	"github.com/feedcanon/backend/internal/usecase"
	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"
)

// options holds command-line flags, each also settable from the environment
type options struct {
	Config   string `long:"config" env:"FEEDCANON_MERCHANTS_FILE" default:"config/merchants.yaml" description:"Merchant configuration file"`
	Input    string `long:"input" short:"i" description:"Feed file or http(s) URL to normalize (.jsonl or .csv)" required:"true"`
	Merchant string `long:"merchant" short:"m" description:"Merchant the feed belongs to" required:"true"`
	Format   string `long:"format" description:"Feed format, detected from the file extension when empty" choice:"jsonl" choice:"csv"`
	DB       string `long:"db" env:"FEEDCANON_STORAGE_DSN" description:"SQLite database to store offers in (optional)"`
	Output   string `long:"output" short:"o" description:"Write normalized offers as JSON lines to this file, - for stdout"`
	Workers  int    `long:"workers" env:"FEEDCANON_BATCH_WORKERS" default:"4" description:"Rows normalized concurrently"`
	LogLevel string `long:"log-level" env:"FEEDCANON_LOG_LEVEL" default:"info" description:"Log level"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(2)
	}

	log, err := logger.New(opts.LogLevel, "console")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, log, os.Stdout); err != nil {
		log.Error("normalization failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, log *zap.Logger, stdout io.Writer) error {
	directory, err := merchants.LoadFile(opts.Config)
	if err != nil {
		return fmt.Errorf("load merchants: %w", err)
	}

	feed, err := readFeed(ctx, opts, log)
	if err != nil {
		return err
	}
	if feed.Invalid > 0 {
		log.Warn("skipped unreadable rows", zap.String("input", opts.Input), zap.Int("rows", feed.Invalid))
	}

	memoryCache := cache.NewMemoryCache()
	defer memoryCache.Close()

	service := usecase.NewNormalizationService(
		memoryCache,
		directory,
		nil,
		log,
		usecase.NormalizationServiceConfig{Workers: opts.Workers},
	)

	results, err := service.NormalizeBatch(ctx, opts.Merchant, feed.Rows)
	if err != nil {
		return err
	}

	if opts.Output != "" {
		if err := writeOffers(opts.Output, stdout, results); err != nil {
			return fmt.Errorf("write offers: %w", err)
		}
	}

	for _, r := range results {
		if r.Err != nil {
			log.Debug("row failed", zap.Int("index", r.Index), zap.Error(r.Err))
		}
	}

	var runID string
	if opts.DB != "" {
		store, err := storage.Open(ctx, opts.DB, log)
		if err != nil {
			return fmt.Errorf("open offer store: %w", err)
		}
		defer store.Close()

		run, err := usecase.PersistRun(ctx, store, opts.Merchant, "cli", results, feed.Invalid)
		if err != nil {
			return err
		}
		runID = run.ID
	}

	summary := usecase.Summarize(results)
	report := stdout
	if opts.Output == "-" {
		report = os.Stderr
	}
	fmt.Fprintf(report, "merchant=%s rows=%d derived=%d missing=%d failed=%d unreadable=%d",
		opts.Merchant, len(results), summary.Derived, summary.Missing, summary.Failed, feed.Invalid)
	if runID != "" {
		fmt.Fprintf(report, " run=%s", runID)
	}
	fmt.Fprintln(report)
	return nil
}

// readFeed loads the input from disk or downloads it
func readFeed(ctx context.Context, opts options, log *zap.Logger) (*feedfile.Result, error) {
	format := feedfile.Format(opts.Format)
	if feedfile.IsRemote(opts.Input) {
		return feedfile.NewFetcher(30, log).Fetch(ctx, opts.Input, format)
	}
	return feedfile.ReadFile(opts.Input, format)
}

// writeOffers writes one JSON object per successfully normalized row
func writeOffers(path string, stdout io.Writer, results []domain.RowResult) error {
	out := stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		if err := enc.Encode(r.Offer); err != nil {
			return err
		}
	}
	return nil
}
