package domain

import "errors"

var (
	// ErrConfiguration is returned when a merchant has no usable rule variant or
	// its configuration is incomplete. It is fatal for that merchant's batch.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidInput is returned when an offer identifier cannot be built from
	// an empty token or merchant name
	ErrInvalidInput = errors.New("invalid input")

	// ErrMalformedInput is returned when a rule expects a column or URL part
	// that the row does not carry
	ErrMalformedInput = errors.New("malformed input")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrOfferNotFound is returned when an offer is not present in the store
	ErrOfferNotFound = errors.New("offer not found")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")

	// ErrFeedUnavailable is returned when a remote feed cannot be downloaded
	ErrFeedUnavailable = errors.New("feed source unavailable")
)
