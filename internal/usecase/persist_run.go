package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/feedcanon/backend/internal/domain"
)

// PersistRun records results under a new run. Only rows that produced an
// offer id are stored; every row counts toward the run totals. invalid adds
// rows rejected before normalization, such as unparseable feed lines.
func PersistRun(ctx context.Context, store domain.OfferRepository, merchant, source string, results []domain.RowResult, invalid int) (*domain.Run, error) {
	if store == nil {
		return nil, errors.New("offer store not configured")
	}

	run, err := store.StartRun(ctx, merchant, source)
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}

	offers := make([]*domain.NormalizedOffer, 0, len(results))
	for _, r := range results {
		if r.Err == nil && r.Offer.HasOfferID() {
			offers = append(offers, r.Offer)
		}
	}
	if err := store.SaveOffers(ctx, run.ID, offers); err != nil {
		return nil, fmt.Errorf("save offers: %w", err)
	}

	summary := Summarize(results)
	run.RowsTotal = len(results) + invalid
	run.RowsFailed = summary.Failed + invalid
	if err := store.FinishRun(ctx, run); err != nil {
		return nil, fmt.Errorf("finish run: %w", err)
	}
	return run, nil
}
