package domain

import (
	"strings"
	"time"
)

// Attributes maps a material attribute key (material, upper, sole, ...) to the
// values extracted for it. Single-valued attributes hold one element.
type Attributes map[string][]string

// Set replaces the values of key with a single value
func (a Attributes) Set(key, value string) {
	a[key] = []string{value}
}

// Add appends a value to key
func (a Attributes) Add(key, value string) {
	a[key] = append(a[key], value)
}

// Flatten renders every attribute as a single comma-joined string
func (a Attributes) Flatten() map[string]string {
	if a == nil {
		return nil
	}
	out := make(map[string]string, len(a))
	for k, v := range a {
		out[k] = strings.Join(v, ",")
	}
	return out
}

// NormalizedOffer is the derived output for one feed row
type NormalizedOffer struct {
	Merchant    string            `json:"merchant"`
	OfferID     string            `json:"offerId,omitempty"`
	Materials   map[string]string `json:"materials,omitempty"`
	Fingerprint string            `json:"fingerprint"`
	Source      string            `json:"source,omitempty"` // "rules" or "cache"
	UpdatedAt   time.Time         `json:"updatedAt,omitempty"`
}

// HasOfferID reports whether an identifier could be derived for the row
func (o *NormalizedOffer) HasOfferID() bool {
	return o != nil && o.OfferID != ""
}

// RowResult pairs a row's position in its batch with its outcome
type RowResult struct {
	Index int              `json:"index"`
	Offer *NormalizedOffer `json:"offer,omitempty"`
	Err   error            `json:"-"`
}

// NormalizeRequest represents a batch normalization request
type NormalizeRequest struct {
	Merchant string `json:"merchant" binding:"required"`
	Rows     []Row  `json:"rows" binding:"required,min=1,max=5000"`
}

// MerchantConfig is the per-merchant feed configuration
type MerchantConfig struct {
	Name string `yaml:"name" json:"name" validate:"required"`
	// PID names the column holding the merchant's native product id. Used by
	// merchants without a bespoke identifier rule.
	PID           string `yaml:"pid" json:"pid,omitempty"`
	SkipMaterials bool   `yaml:"skip_materials" json:"skipMaterials"`
}

// Run describes one batch ingestion into the offer store
type Run struct {
	ID         string     `db:"id" json:"id"`
	Merchant   string     `db:"merchant" json:"merchant"`
	Source     string     `db:"source" json:"source"`
	StartedAt  time.Time  `db:"started_at" json:"startedAt"`
	FinishedAt *time.Time `db:"finished_at" json:"finishedAt,omitempty"`
	RowsTotal  int        `db:"rows_total" json:"rowsTotal"`
	RowsFailed int        `db:"rows_failed" json:"rowsFailed"`
}
