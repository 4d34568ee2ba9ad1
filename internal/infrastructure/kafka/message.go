package kafka

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/feedcanon/backend/internal/domain"
)

// RowMessage is one raw feed row published for normalization
type RowMessage struct {
	Merchant string     `json:"merchant"`
	Row      domain.Row `json:"row"`
}

// ParseRowMessage decodes a row message, keeping numbers as written
func ParseRowMessage(data []byte) (*RowMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var msg RowMessage
	if err := dec.Decode(&msg); err != nil {
		return nil, fmt.Errorf("failed to parse row message: %w", err)
	}
	if msg.Merchant == "" {
		return nil, errors.New("row message has no merchant")
	}
	if msg.Row == nil {
		return nil, errors.New("row message has no row")
	}
	return &msg, nil
}

// ResultMessage is the normalized outcome of one row message
type ResultMessage struct {
	Merchant    string            `json:"merchant"`
	OfferID     string            `json:"offerId,omitempty"`
	Materials   map[string]string `json:"materials,omitempty"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	Error       string            `json:"error,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// NewResultMessage builds the result for a row. A nil offer with err set
// reports the failure.
func NewResultMessage(merchant string, offer *domain.NormalizedOffer, err error) *ResultMessage {
	msg := &ResultMessage{Merchant: merchant, Timestamp: time.Now().UTC()}
	if err != nil {
		msg.Error = err.Error()
		return msg
	}
	if offer != nil {
		msg.OfferID = offer.OfferID
		msg.Materials = offer.Materials
		msg.Fingerprint = offer.Fingerprint
	}
	return msg
}

// Key partitions results by offer so updates of one offer stay ordered
func (m *ResultMessage) Key() string {
	if m.OfferID != "" {
		return m.OfferID
	}
	return m.Merchant
}

// ToJSON serializes the message
func (m *ResultMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
