// Package storage persists normalized offers in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/feedcanon/backend/internal/domain"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// insertChunk bounds the rows per insert statement to stay under SQLite's
// bound parameter limit
const insertChunk = 500

var offerColumns = []string{"offer_id", "merchant", "materials", "fingerprint", "run_id", "updated_at"}

// Store is the SQLite-backed offer repository
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// offerRow mirrors the offers table
type offerRow struct {
	OfferID     string    `db:"offer_id"`
	Merchant    string    `db:"merchant"`
	Materials   string    `db:"materials"`
	Fingerprint string    `db:"fingerprint"`
	RunID       string    `db:"run_id"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Open connects to the SQLite database at dsn and migrates it
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	version, err := RunMigrations(db.DB)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Debug("offer store ready", zap.String("dsn", dsn), zap.Uint("schema_version", version))

	return &Store{db: db, logger: logger}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// StartRun records the start of a batch
func (s *Store) StartRun(ctx context.Context, merchant, source string) (*domain.Run, error) {
	run := &domain.Run{
		ID:        uuid.New().String(),
		Merchant:  merchant,
		Source:    source,
		StartedAt: time.Now().UTC(),
	}

	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto("runs")
	ib.Cols("id", "merchant", "source", "started_at")
	ib.Values(run.ID, run.Merchant, run.Source, run.StartedAt)

	query, args := ib.Build()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	return run, nil
}

// FinishRun stores the final counters of a batch
func (s *Store) FinishRun(ctx context.Context, run *domain.Run) error {
	finished := time.Now().UTC()

	ub := sqlbuilder.SQLite.NewUpdateBuilder()
	ub.Update("runs")
	ub.Set(
		ub.Assign("finished_at", finished),
		ub.Assign("rows_total", run.RowsTotal),
		ub.Assign("rows_failed", run.RowsFailed),
	)
	ub.Where(ub.Equal("id", run.ID))

	query, args := ub.Build()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", run.ID)
	}
	run.FinishedAt = &finished
	return nil
}

// GetRun loads a run by id
func (s *Store) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("id", "merchant", "source", "started_at", "finished_at", "rows_total", "rows_failed")
	sb.From("runs")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var run domain.Run
	if err := s.db.GetContext(ctx, &run, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s not found", id)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// SaveOffers upserts offers carrying an identifier. Offers without one are
// skipped since they cannot be keyed.
func (s *Store) SaveOffers(ctx context.Context, runID string, offers []*domain.NormalizedOffer) error {
	rows := make([]offerRow, 0, len(offers))
	now := time.Now().UTC()
	for _, o := range offers {
		if !o.HasOfferID() {
			continue
		}
		row, err := toOfferRow(o, runID, now)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for start := 0; start < len(rows); start += insertChunk {
		end := min(start+insertChunk, len(rows))

		ib := sqlbuilder.SQLite.NewInsertBuilder()
		ib.InsertInto("offers")
		ib.Cols(offerColumns...)
		for _, r := range rows[start:end] {
			ib.Values(r.OfferID, r.Merchant, r.Materials, r.Fingerprint, r.RunID, r.UpdatedAt)
		}
		ib.SQL("ON CONFLICT (offer_id) DO UPDATE SET " +
			"merchant = excluded.merchant, materials = excluded.materials, " +
			"fingerprint = excluded.fingerprint, run_id = excluded.run_id, updated_at = excluded.updated_at")

		query, args := ib.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to save offers: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit offers: %w", err)
	}
	s.logger.Debug("saved offers", zap.String("run_id", runID), zap.Int("count", len(rows)))
	return nil
}

// GetOffer loads an offer by identifier
func (s *Store) GetOffer(ctx context.Context, offerID string) (*domain.NormalizedOffer, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(offerColumns...)
	sb.From("offers")
	sb.Where(sb.Equal("offer_id", offerID))

	query, args := sb.Build()
	var row offerRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrOfferNotFound, offerID)
		}
		return nil, fmt.Errorf("failed to get offer: %w", err)
	}
	return row.toOffer()
}

// ListOffers returns up to limit offers of merchant ordered by identifier
func (s *Store) ListOffers(ctx context.Context, merchant string, limit int) ([]*domain.NormalizedOffer, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(offerColumns...)
	sb.From("offers")
	sb.Where(sb.Equal("merchant", merchant))
	sb.OrderBy("offer_id")
	sb.Limit(limit)

	query, args := sb.Build()
	var rows []offerRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}

	offers := make([]*domain.NormalizedOffer, 0, len(rows))
	for _, r := range rows {
		o, err := r.toOffer()
		if err != nil {
			return nil, err
		}
		offers = append(offers, o)
	}
	return offers, nil
}

func toOfferRow(o *domain.NormalizedOffer, runID string, now time.Time) (offerRow, error) {
	var materials string
	if len(o.Materials) > 0 {
		data, err := json.Marshal(o.Materials)
		if err != nil {
			return offerRow{}, fmt.Errorf("failed to encode materials of %s: %w", o.OfferID, err)
		}
		materials = string(data)
	}
	return offerRow{
		OfferID:     o.OfferID,
		Merchant:    o.Merchant,
		Materials:   materials,
		Fingerprint: o.Fingerprint,
		RunID:       runID,
		UpdatedAt:   now,
	}, nil
}

func (r offerRow) toOffer() (*domain.NormalizedOffer, error) {
	o := &domain.NormalizedOffer{
		Merchant:    r.Merchant,
		OfferID:     r.OfferID,
		Fingerprint: r.Fingerprint,
		Source:      "store",
		UpdatedAt:   r.UpdatedAt,
	}
	if r.Materials != "" {
		if err := json.Unmarshal([]byte(r.Materials), &o.Materials); err != nil {
			return nil, fmt.Errorf("failed to decode materials of %s: %w", r.OfferID, err)
		}
	}
	return o, nil
}
