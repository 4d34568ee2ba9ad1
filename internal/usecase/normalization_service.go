package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/feedcanon/backend/internal/domain"
	"github.com/feedcanon/backend/internal/infrastructure/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Engine labels used when recording row outcomes
const (
	engineIdentifier = "identifier"
	engineMaterial   = "material"
	engineCache      = "cache"
)

// Recorder receives normalization metrics
type Recorder interface {
	ObserveRow(merchant, engine, outcome string)
	ObserveDuration(merchant string, d time.Duration)
	ObserveBatch(merchant, status string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRow(string, string, string)     {}
func (nopRecorder) ObserveDuration(string, time.Duration) {}
func (nopRecorder) ObserveBatch(string, string)           {}

// NormalizationServiceConfig holds configuration for the normalization service
type NormalizationServiceConfig struct {
	CacheTTL time.Duration
	Workers  int
}

// NormalizationService derives offer identifiers and material attributes for
// feed rows, caching the results
type NormalizationService struct {
	cache     domain.CacheRepository
	merchants domain.MerchantDirectory
	rules     *IdentifierRules
	recorder  Recorder
	logger    *zap.Logger
	cacheTTL  time.Duration
	workers   int
}

// NewNormalizationService creates a new normalization service with dependencies.
// cache, recorder and logger may be nil.
func NewNormalizationService(
	cache domain.CacheRepository,
	merchants domain.MerchantDirectory,
	recorder Recorder,
	logger *zap.Logger,
	config NormalizationServiceConfig,
) *NormalizationService {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 720 * time.Hour // Default 30 days
	}
	workers := config.Workers
	if workers < 1 {
		workers = 1
	}

	var pid map[string]string
	if merchants != nil {
		pid = merchants.PIDColumns()
	}

	return &NormalizationService{
		cache:     cache,
		merchants: merchants,
		rules:     NewIdentifierRules(pid),
		recorder:  recorder,
		logger:    logger,
		cacheTTL:  cacheTTL,
		workers:   workers,
	}
}

// MerchantPlan holds the engines resolved for one merchant. Materials is nil
// when the merchant skips material extraction.
type MerchantPlan struct {
	Merchant   string
	Identifier *IdentifierEngine
	Materials  *MaterialEngine
	// Scope changes whenever the rules or the merchant configuration that
	// produced the plan change. Cached offers are keyed by it.
	Scope string
}

// rulesVersion is part of every cache key. Bump it when a rule change alters
// the offer derived from an unchanged row.
const rulesVersion = 2

// planScope digests what, besides the row, decides a merchant's offers
func planScope(cfg domain.MerchantConfig) string {
	return FingerprintN(fmt.Sprintf("v%d|pid=%s|skip=%t", rulesVersion, cfg.PID, cfg.SkipMaterials), 12)
}

// Plan resolves both engines for merchant. Configuration errors surface here,
// before any row is read.
func (s *NormalizationService) Plan(merchant string) (*MerchantPlan, error) {
	if merchant == "" {
		return nil, fmt.Errorf("%w: merchant is required", domain.ErrInvalidRequest)
	}

	identifier, err := s.rules.Engine(merchant)
	if err != nil {
		return nil, err
	}
	cfg := s.merchantConfig(merchant)
	plan := &MerchantPlan{Merchant: merchant, Identifier: identifier, Scope: planScope(cfg)}

	if cfg.SkipMaterials {
		return plan, nil
	}
	if plan.Materials, err = NewMaterialEngine(merchant); err != nil {
		return nil, err
	}
	return plan, nil
}

// Validate resolves a plan for every configured merchant and reports all
// failures together
func (s *NormalizationService) Validate() error {
	if s.merchants == nil {
		return nil
	}
	var errs []error
	for _, name := range s.merchants.Names() {
		if _, err := s.Plan(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NormalizeRow derives the offer for a single row.
// Flow: plan -> check cache -> run rules -> cache -> return
func (s *NormalizationService) NormalizeRow(ctx context.Context, merchant string, row domain.Row) (*domain.NormalizedOffer, error) {
	plan, err := s.Plan(merchant)
	if err != nil {
		return nil, err
	}
	return s.normalize(ctx, plan, row)
}

// NormalizeBatch normalizes rows across the configured workers. A
// configuration error fails the whole batch; row errors are reported per row
// and results keep the input order.
func (s *NormalizationService) NormalizeBatch(ctx context.Context, merchant string, rows []domain.Row) ([]domain.RowResult, error) {
	plan, err := s.Plan(merchant)
	if err != nil {
		s.recorder.ObserveBatch(merchant, "rejected")
		return nil, err
	}

	results := make([]domain.RowResult, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, row := range rows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			offer, err := s.normalize(gctx, plan, row)
			results[i] = domain.RowResult{Index: i, Offer: offer, Err: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.recorder.ObserveBatch(merchant, "cancelled")
		return nil, err
	}

	summary := Summarize(results)
	s.recorder.ObserveBatch(merchant, "ok")
	s.logger.Info("batch normalized",
		zap.String("merchant", merchant),
		zap.Int("rows", len(rows)),
		zap.Int("derived", summary.Derived),
		zap.Int("missing", summary.Missing),
		zap.Int("failed", summary.Failed),
	)
	return results, nil
}

// MerchantInfo describes how a merchant is handled
type MerchantInfo struct {
	Name           string `json:"name"`
	Configured     bool   `json:"configured"`
	IdentifierRule bool   `json:"identifierRule"`
	MaterialRule   bool   `json:"materialRule"`
	SkipMaterials  bool   `json:"skipMaterials"`
	Error          string `json:"error,omitempty"`
}

// Merchants lists every merchant known to the rules or the configuration
func (s *NormalizationService) Merchants() []MerchantInfo {
	names := make(map[string]struct{})
	for _, n := range s.rules.Registered() {
		names[n] = struct{}{}
	}
	for _, n := range MaterialMerchants() {
		names[n] = struct{}{}
	}
	if s.merchants != nil {
		for _, n := range s.merchants.Names() {
			names[n] = struct{}{}
		}
	}

	infos := make([]MerchantInfo, 0, len(names))
	for name := range names {
		info := MerchantInfo{
			Name:           name,
			IdentifierRule: s.rules.dispatcher.Registered(name),
			MaterialRule:   materialDispatcher.Registered(name),
			SkipMaterials:  s.merchantConfig(name).SkipMaterials,
		}
		if s.merchants != nil {
			_, info.Configured = s.merchants.Lookup(name)
		}
		if _, err := s.Plan(name); err != nil {
			info.Error = err.Error()
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// BatchSummary counts row outcomes of a batch
type BatchSummary struct {
	Derived int `json:"derived"`
	Missing int `json:"missing"`
	Failed  int `json:"failed"`
}

// Summarize counts the outcomes in results
func Summarize(results []domain.RowResult) BatchSummary {
	var sum BatchSummary
	for _, r := range results {
		switch {
		case r.Err != nil:
			sum.Failed++
		case r.Offer.HasOfferID():
			sum.Derived++
		default:
			sum.Missing++
		}
	}
	return sum
}

func (s *NormalizationService) merchantConfig(merchant string) domain.MerchantConfig {
	if s.merchants != nil {
		if cfg, ok := s.merchants.Lookup(merchant); ok {
			return cfg
		}
	}
	return domain.MerchantConfig{Name: merchant}
}

func (s *NormalizationService) normalize(ctx context.Context, plan *MerchantPlan, row domain.Row) (*domain.NormalizedOffer, error) {
	merchant := plan.Merchant
	start := time.Now()
	defer func() { s.recorder.ObserveDuration(merchant, time.Since(start)) }()

	canonical, err := json.Marshal(row)
	if err != nil {
		s.recorder.ObserveRow(merchant, engineIdentifier, metrics.OutcomeFailed)
		return nil, fmt.Errorf("%w: row cannot be encoded: %v", domain.ErrMalformedInput, err)
	}
	fingerprint := Fingerprint(string(canonical))
	cacheKey := generateCacheKey(plan, fingerprint)

	if cached, err := s.getFromCache(ctx, cacheKey); err == nil {
		cached.Source = "cache"
		s.recorder.ObserveRow(merchant, engineCache, metrics.OutcomeCached)
		return cached, nil
	}

	offer := &domain.NormalizedOffer{
		Merchant:    merchant,
		Fingerprint: fingerprint,
		Source:      "rules",
		UpdatedAt:   time.Now().UTC(),
	}

	offerID, ok, err := plan.Identifier.Derive(row)
	if err != nil {
		s.recorder.ObserveRow(merchant, engineIdentifier, metrics.OutcomeFailed)
		return nil, fmt.Errorf("%s identifier rule: %w", merchant, err)
	}
	s.recorder.ObserveRow(merchant, engineIdentifier, outcome(ok))
	offer.OfferID = offerID

	if plan.Materials != nil {
		attrs, found, err := plan.Materials.Extract(row)
		if err != nil {
			s.recorder.ObserveRow(merchant, engineMaterial, metrics.OutcomeFailed)
			return nil, fmt.Errorf("%s material rule: %w", merchant, err)
		}
		s.recorder.ObserveRow(merchant, engineMaterial, outcome(found))
		offer.Materials = attrs.Flatten()
	}

	if err := s.setInCache(ctx, cacheKey, offer); err != nil {
		s.logger.Warn("failed to cache offer", zap.String("merchant", merchant), zap.Error(err))
	}
	return offer, nil
}

func outcome(found bool) string {
	if found {
		return metrics.OutcomeDerived
	}
	return metrics.OutcomeMiss
}

// generateCacheKey keys an offer by merchant, plan scope and row content.
// Format: "offer:{merchant}:{scope}:{fingerprint}"
func generateCacheKey(plan *MerchantPlan, fingerprint string) string {
	return fmt.Sprintf("offer:%s:%s:%s", plan.Merchant, plan.Scope, fingerprint)
}

// getFromCache retrieves an offer from cache
func (s *NormalizationService) getFromCache(ctx context.Context, key string) (*domain.NormalizedOffer, error) {
	if s.cache == nil {
		return nil, domain.ErrCacheMiss
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var offer domain.NormalizedOffer
	if err := json.Unmarshal(data, &offer); err != nil {
		return nil, domain.ErrCacheMiss
	}
	return &offer, nil
}

// setInCache stores an offer in cache
func (s *NormalizationService) setInCache(ctx context.Context, key string, offer *domain.NormalizedOffer) error {
	if s.cache == nil {
		return nil
	}
	data, err := json.Marshal(offer)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, key, data, s.cacheTTL)
}
