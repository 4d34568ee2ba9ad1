package feedfile

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/feedcanon/backend/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxFetchAttempts = 3

// Fetcher downloads feed exports from merchant or affiliate network URLs
type Fetcher struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	userAgent   string
	logger      *zap.Logger
	backoff     func(attempt int) time.Duration
}

// NewFetcher creates a fetcher allowing perMinute downloads with a small burst
func NewFetcher(perMinute int, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if perMinute < 1 {
		perMinute = 1
	}

	return &Fetcher{
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		rateLimiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60), 3),
		userAgent:   "feedcanon/1.0",
		logger:      logger,
		backoff:     exponentialBackoff,
	}
}

// IsRemote reports whether input names an http(s) URL rather than a file
func IsRemote(input string) bool {
	return strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://")
}

// Fetch downloads and decodes the feed at rawURL. An empty format is detected
// from the URL path.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, format Format) (*Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid feed url: %w", err)
	}
	if format == "" {
		if format, err = DetectFormat(path.Base(u.Path)); err != nil {
			return nil, err
		}
	}

	var lastErr error
	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		if err := f.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		result, retry, err := f.fetchOnce(ctx, u.String(), format)
		if err == nil {
			f.logger.Info("feed downloaded",
				zap.String("host", u.Host),
				zap.Int("rows", len(result.Rows)),
				zap.Int("attempt", attempt),
			)
			return result, nil
		}
		if !retry {
			return nil, err
		}

		lastErr = err
		f.logger.Warn("feed download failed", zap.String("host", u.Host), zap.Int("attempt", attempt), zap.Error(err))
		if attempt < maxFetchAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.backoff(attempt)):
			}
		}
	}
	return nil, lastErr
}

// fetchOnce performs one download. retry reports whether the failure is
// transient.
func (f *Fetcher) fetchOnce(ctx context.Context, reqURL string, format Format) (*Result, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("%w: %v", domain.ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("%w: status %d", domain.ErrFeedUnavailable, resp.StatusCode)
		transient := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError
		return nil, transient, err
	}

	result, err := Read(resp.Body, format)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", domain.ErrFeedUnavailable, err)
	}
	return result, false, nil
}

// exponentialBackoff returns the delay before the next attempt
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
}
