/**
 * @description
 * This file defines the core domain models for the reconciliation-service:
 * the order and quote records mutated by the engine, and the financial side
 * records (payment transaction, invoice, credit memo) it derives from
 * verified provider events.
 *
 * @notes
 * - Amounts are stored as `int64` minor units (cents). The provider reports
 *   settlement amounts the same way, so no conversion happens in this service.
 * - AdjustmentApplied on Order is the idempotency marker that keeps the
 *   fee-split adjustment from being folded into totals twice under webhook
 *   redelivery.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Order is the merchant's authoritative financial record for a purchase.
// It is created by the order-placement path; this service only mutates it
// after the originating event has been verified with the provider.
type Order struct {
	ID          uuid.UUID `json:"id"`
	EntityID    int64     `json:"entity_id"`    // store-assigned numeric id
	IncrementID string    `json:"increment_id"` // human-facing order reference
	QuoteID     string    `json:"quote_id"`

	Status OrderStatus `json:"status"`

	GrandTotal    int64 `json:"grand_total"`    // in cents
	TotalPaid     int64 `json:"total_paid"`     // in cents
	TotalDue      int64 `json:"total_due"`      // in cents
	TotalInvoiced int64 `json:"total_invoiced"` // in cents

	// Adjustment is the signed fee/discount delta computed from the payment's
	// fee-split data; zero until a capture event carries fee-split info.
	Adjustment        int64 `json:"adjustment"`
	AdjustmentApplied bool  `json:"adjustment_applied"`

	// PaymentTransactionID is the provider payment id, set at most once when
	// the capture transaction record is created.
	PaymentTransactionID *string `json:"payment_transaction_id,omitempty"`

	CustomerID *uuid.UUID `json:"customer_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Quote is the checkout-session record the cart reference resolves to. When
// a verified payment arrives before its order exists, the engine caches the
// payment metadata here so order placement can reconcile retroactively.
type Quote struct {
	ID               string `json:"id"`
	ReservedOrderRef string `json:"reserved_order_ref"`

	PaymentStatus  *string `json:"payment_status,omitempty"`
	PaymentID      *string `json:"payment_id,omitempty"`
	PaymentPayload []byte  `json:"payment_payload,omitempty"` // raw event resource JSON

	Adjustment int64     `json:"adjustment"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PaymentTransaction links a provider payment to an order. At most one
// capture transaction is created per order per completed payment.
type PaymentTransaction struct {
	ID                uuid.UUID `json:"id"`
	OrderID           uuid.UUID `json:"order_id"`
	ProviderPaymentID string    `json:"provider_payment_id"`
	PayerID           *string   `json:"payer_id,omitempty"`
	Amount            int64     `json:"amount"` // in cents
	Currency          string    `json:"currency"`
	CreatedAt         time.Time `json:"created_at"`
}

// Invoice is the financial document derived from an order's paid transition.
// The engine auto-creates at most one per order; existence is checked first.
type Invoice struct {
	ID         uuid.UUID `json:"id"`
	OrderID    uuid.UUID `json:"order_id"`
	GrandTotal int64     `json:"grand_total"` // in cents
	Adjustment int64     `json:"adjustment"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreditMemo is a compensating credit issued for a processed refund or a
// won dispute.
type CreditMemo struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"order_id"`
	Amount    int64     `json:"amount"` // in cents, always positive
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// OrderPlacedEvent is the message consumed from the order_events exchange
// when the storefront finishes placing an order. It triggers retroactive
// reconciliation for quotes that already received their payment webhook.
type OrderPlacedEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	QuoteID    string    `json:"quote_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ReconciliationEvent is published after each handled webhook so downstream
// consumers can observe what the engine did.
type ReconciliationEvent struct {
	EventID    string    `json:"event_id"`
	OrderRef   string    `json:"order_ref,omitempty"`
	Action     string    `json:"action"`
	NewStatus  string    `json:"new_status,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
