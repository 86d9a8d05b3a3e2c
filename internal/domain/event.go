/**
 * @description
 * This file defines the inbound webhook event model for the Payrail payment
 * provider. Payrail posts a lifecycle event (payment, refund, or dispute)
 * to the reconciliation endpoint; the structs here mirror that payload.
 *
 * @notes
 * - Events are immutable once received and are never persisted by this
 *   service; idempotence is carried by the order's own fields.
 * - Monetary amounts are int64 minor units (cents) to avoid floating-point
 *   drift in financial data.
 */

package domain

import "encoding/json"

// WebhookEvent is the top-level payload Payrail delivers to the webhook
// endpoint and the subset of fields re-sent to the verify endpoint.
type WebhookEvent struct {
	ID          string          `json:"id"`
	Object      string          `json:"object"`
	Resource    EventResource   `json:"resource"`
	Diff        json.RawMessage `json:"diff,omitempty"`
	URLs        json.RawMessage `json:"urls,omitempty"`
	Created     string          `json:"created,omitempty"`
	LastUpdated string          `json:"lastUpdated,omitempty"`
	Status      string          `json:"status,omitempty"`
}

// EventResource is the payment/refund/dispute object embedded in an event.
type EventResource struct {
	ID                 string    `json:"id,omitempty"`
	Object             string    `json:"object"`
	Status             string    `json:"status"`
	Meta               EventMeta `json:"meta"`
	PayerID            string    `json:"payerId,omitempty"`
	SourceType         string    `json:"sourceType,omitempty"`
	SourceID           string    `json:"sourceId,omitempty"`
	Amount             int64     `json:"amount,omitempty"`
	SettlementAmount   int64     `json:"settlementAmount,omitempty"`
	SettlementCurrency string    `json:"settlementCurrency,omitempty"`
	FeeSplit           *FeeSplit `json:"feeSplit,omitempty"`
}

// EventMeta carries the opaque metadata bag attached at checkout time.
// Source marks events that originated from this integration; Quote is the
// cart reference, either a raw quote id or a masked public token.
type EventMeta struct {
	Source string `json:"source"`
	Quote  string `json:"quote"`
}

// FeeSplit describes how Payrail split fees with the payer on a completed
// payment. Exactly one of the two fields is expected to be non-zero.
type FeeSplit struct {
	PayerDiscount  int64 `json:"payerDiscount"`
	PayerTotalFees int64 `json:"payerTotalFees"`
}

// MetaSourceStorefront is the meta.source value stamped on events created by
// this integration's checkout flow. Events carrying any other source are
// acknowledged without processing.
const MetaSourceStorefront = "storefront"

// Resource object types as they appear on the wire.
const (
	ResourceObjectPayment = "payment"
	ResourceObjectRefund  = "refund"
	ResourceObjectDispute = "dispute"
)

// BelongsToIntegration reports whether the event was produced by this
// integration's checkout flow.
func (e *WebhookEvent) BelongsToIntegration() bool {
	return e.Resource.Meta.Source == MetaSourceStorefront
}

// VerificationPayload returns the allow-listed subset of event fields that
// is echoed back to Payrail's verify endpoint. Anything outside this set is
// dropped before the outbound call.
func (e *WebhookEvent) VerificationPayload() map[string]interface{} {
	return map[string]interface{}{
		"id":          e.ID,
		"object":      e.Object,
		"resource":    e.Resource,
		"diff":        e.Diff,
		"urls":        e.URLs,
		"created":     e.Created,
		"lastUpdated": e.LastUpdated,
		"status":      e.Status,
	}
}
