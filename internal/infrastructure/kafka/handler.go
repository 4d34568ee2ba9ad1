package kafka

import (
	"context"
	"errors"

	"github.com/feedcanon/backend/internal/domain"
	"github.com/feedcanon/backend/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

// RowNormalizer derives an offer for a single row
type RowNormalizer interface {
	NormalizeRow(ctx context.Context, merchant string, row domain.Row) (*domain.NormalizedOffer, error)
}

// ResultPublisher publishes normalization results
type ResultPublisher interface {
	Publish(ctx context.Context, msg *ResultMessage) error
}

// NewRowHandler normalizes each row and publishes the outcome. Row level
// failures are published as results; only a failed publish is returned.
func NewRowHandler(normalizer RowNormalizer, publisher ResultPublisher, logger *zap.Logger) MessageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(ctx context.Context, msg *RowMessage) error {
		offer, err := normalizer.NormalizeRow(ctx, msg.Merchant, msg.Row)
		status := metrics.MessageProcessed
		if err != nil {
			status = metrics.MessageFailed
			level := zap.DebugLevel
			if errors.Is(err, domain.ErrConfiguration) {
				level = zap.ErrorLevel
			}
			logger.Check(level, "row normalization failed").Write(
				zap.String("merchant", msg.Merchant),
				zap.Error(err),
			)
		}
		metrics.ObserveMessage(status)

		return publisher.Publish(ctx, NewResultMessage(msg.Merchant, offer, err))
	}
}
