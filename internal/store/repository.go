/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract
 * for all data access the reconciliation engine needs from the order/quote
 * store. The interface keeps the engine decoupled from the PostgreSQL
 * implementation and makes the transition paths testable with stubs.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For entity id handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/orderflow/reconciliation-service/internal/domain"
)

var (
	// ErrQuoteNotFound is returned when no quote exists for the given id.
	ErrQuoteNotFound = errors.New("quote not found")
	// ErrMaskNotFound is returned when a masked cart reference has no mapping.
	// Callers treat this as "the reference is already the raw quote id".
	ErrMaskNotFound = errors.New("masked quote id not found")
	// ErrOrderNotFound is returned when no order matches a lookup strategy.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvoiceNotFound is returned when an order has no invoice yet.
	ErrInvoiceNotFound = errors.New("invoice not found")
	// ErrTransactionNotFound is returned when an order has no capture
	// transaction record yet.
	ErrTransactionNotFound = errors.New("payment transaction not found")
)

// Repository defines the set of methods for interacting with the order and
// quote store.
type Repository interface {
	// Quote methods
	FindQuoteIDByMaskedID(ctx context.Context, maskedID string) (string, error)
	FindQuoteByID(ctx context.Context, quoteID string) (*domain.Quote, error)
	// SaveQuotePaymentMetadata caches verified payment info on the quote so a
	// later order-placement can reconcile retroactively.
	SaveQuotePaymentMetadata(ctx context.Context, quoteID, paymentStatus, paymentID string, payload []byte) error
	SaveQuoteAdjustment(ctx context.Context, quoteID string, adjustment int64) error

	// Order lookup methods, one per resolver strategy.
	FindOrderByIncrementID(ctx context.Context, incrementID string) (*domain.Order, error)
	FindOrderByEntityID(ctx context.Context, entityID int64) (*domain.Order, error)
	FindOrderByQuoteID(ctx context.Context, quoteID string) (*domain.Order, error)
	QueryLatestOrderForQuote(ctx context.Context, quoteID string) (*domain.Order, error)
	FindOrderByID(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)

	// SaveOrder persists all engine-owned order fields (status, totals,
	// adjustment, markers) in one write.
	SaveOrder(ctx context.Context, order *domain.Order) error

	// Financial side records
	FindPaymentTransactionByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.PaymentTransaction, error)
	CreatePaymentTransaction(ctx context.Context, tx *domain.PaymentTransaction) error
	FindInvoiceByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.Invoice, error)
	CreateInvoice(ctx context.Context, invoice *domain.Invoice) error
	CreateCreditMemo(ctx context.Context, memo *domain.CreditMemo) error

	// Customer profile
	SaveCustomerPayerID(ctx context.Context, customerID uuid.UUID, payerID string) error
}
