package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/feedcanon/backend/internal/domain"
	"github.com/feedcanon/backend/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	normalizationService *usecase.NormalizationService
	store                domain.OfferRepository
	logger               *zap.Logger
}

// NewHandler creates a new HTTP handler. A nil service or store turns the
// endpoints that need them into 501 responses.
func NewHandler(normalizationService *usecase.NormalizationService, store domain.OfferRepository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		normalizationService: normalizationService,
		store:                store,
		logger:               logger,
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "feedcanon-backend",
		"version": "1.0.0",
	})
}

// ListMerchants reports every merchant known to the rule engines or the
// merchant configuration
func (h *Handler) ListMerchants(c *gin.Context) {
	if h.normalizationService == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "normalization service not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"merchants": h.normalizationService.Merchants()})
}

// rowResponse is one row of a normalize response
type rowResponse struct {
	Index int                     `json:"index"`
	Offer *domain.NormalizedOffer `json:"offer,omitempty"`
	Error string                  `json:"error,omitempty"`
}

// NormalizeOffers handles batch normalization requests
func (h *Handler) NormalizeOffers(c *gin.Context) {
	if h.normalizationService == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "normalization service not configured"})
		return
	}

	var req domain.NormalizeRequest
	if err := decodeJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	persist := c.Query("persist") == "true"
	if persist && h.store == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "offer store not configured"})
		return
	}

	ctx := c.Request.Context()
	results, err := h.normalizationService.NormalizeBatch(ctx, req.Merchant, req.Rows)
	if err != nil {
		h.handleServiceError(c, req.Merchant, err)
		return
	}

	summary := usecase.Summarize(results)
	response := gin.H{
		"merchant": req.Merchant,
		"summary":  summary,
		"results":  toRowResponses(results),
	}

	if persist {
		run, err := usecase.PersistRun(ctx, h.store, req.Merchant, "api", results, 0)
		if err != nil {
			h.logger.Error("failed to persist offers", zap.String("merchant", req.Merchant), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to persist offers"})
			return
		}
		response["runId"] = run.ID
	}

	c.JSON(http.StatusOK, response)
}

// GetOffer returns a stored offer by identifier
func (h *Handler) GetOffer(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "offer store not configured"})
		return
	}

	offer, err := h.store.GetOffer(c.Request.Context(), c.Param("offerId"))
	if err != nil {
		if errors.Is(err, domain.ErrOfferNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Offer not found"})
			return
		}
		h.logger.Error("failed to get offer", zap.String("offer_id", c.Param("offerId")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, offer)
}

// ListOffers returns stored offers of a merchant
func (h *Handler) ListOffers(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "offer store not configured"})
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
			return
		}
		limit = n
	}

	merchant := c.Param("merchant")
	offers, err := h.store.ListOffers(c.Request.Context(), merchant, limit)
	if err != nil {
		h.logger.Error("failed to list offers", zap.String("merchant", merchant), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"merchant": merchant, "offers": offers})
}

// handleServiceError maps service errors to HTTP responses
func (h *Handler) handleServiceError(c *gin.Context, merchant string, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrConfiguration):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "Merchant is not configured for normalization",
			"details": err.Error(),
		})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Request cancelled"})
	default:
		h.logger.Error("normalization failed", zap.String("merchant", merchant), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// decodeJSON decodes the body keeping numbers as written, then applies the
// binding rules
func decodeJSON(c *gin.Context, obj any) error {
	if c.Request.Body == nil {
		return errors.New("empty request body")
	}
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	if err := dec.Decode(obj); err != nil {
		return err
	}
	return binding.Validator.ValidateStruct(obj)
}

func toRowResponses(results []domain.RowResult) []rowResponse {
	out := make([]rowResponse, len(results))
	for i, r := range results {
		out[i] = rowResponse{Index: r.Index, Offer: r.Offer}
		if r.Err != nil {
			out[i].Error = r.Err.Error()
		}
	}
	return out
}
