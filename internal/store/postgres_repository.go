/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains the SQL queries for the quote/order tables the
 * engine reads, the engine-owned order fields it writes, and the financial
 * side records (payment transactions, invoices, credit memos) it creates.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orderflow/reconciliation-service/internal/domain"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const orderColumns = `
	id, entity_id, increment_id, quote_id, status,
	grand_total, total_paid, total_due, total_invoiced,
	adjustment, adjustment_applied, payment_transaction_id,
	customer_id, created_at, updated_at
`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var status string
	err := row.Scan(
		&o.ID, &o.EntityID, &o.IncrementID, &o.QuoteID, &status,
		&o.GrandTotal, &o.TotalPaid, &o.TotalDue, &o.TotalInvoiced,
		&o.Adjustment, &o.AdjustmentApplied, &o.PaymentTransactionID,
		&o.CustomerID, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	o.Status = domain.ParseOrderStatus(status)
	return &o, nil
}

// FindQuoteIDByMaskedID translates a public masked cart token into the raw
// quote id through the mask table.
func (r *PostgresRepository) FindQuoteIDByMaskedID(ctx context.Context, maskedID string) (string, error) {
	var quoteID string
	err := r.db.QueryRow(ctx,
		`SELECT quote_id FROM quote_id_masks WHERE masked_id = $1`, maskedID,
	).Scan(&quoteID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", ErrMaskNotFound
		}
		return "", err
	}
	return quoteID, nil
}

// FindQuoteByID retrieves a quote by its raw internal id.
func (r *PostgresRepository) FindQuoteByID(ctx context.Context, quoteID string) (*domain.Quote, error) {
	var q domain.Quote
	query := `
		SELECT id, COALESCE(reserved_order_ref, ''), payment_status, payment_id,
		       payment_payload, adjustment, updated_at
		FROM quotes
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, quoteID).Scan(
		&q.ID, &q.ReservedOrderRef, &q.PaymentStatus, &q.PaymentID,
		&q.PaymentPayload, &q.Adjustment, &q.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrQuoteNotFound
		}
		return nil, err
	}
	return &q, nil
}

// SaveQuotePaymentMetadata caches payment status/id/payload on the quote.
func (r *PostgresRepository) SaveQuotePaymentMetadata(ctx context.Context, quoteID, paymentStatus, paymentID string, payload []byte) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE quotes
		SET payment_status = $2, payment_id = $3, payment_payload = $4, updated_at = NOW()
		WHERE id = $1
	`, quoteID, paymentStatus, paymentID, payload)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrQuoteNotFound
	}
	return nil
}

// SaveQuoteAdjustment stores the computed fee-split adjustment on the quote
// so order placement can carry it onto the order.
func (r *PostgresRepository) SaveQuoteAdjustment(ctx context.Context, quoteID string, adjustment int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE quotes SET adjustment = $2, updated_at = NOW() WHERE id = $1
	`, quoteID, adjustment)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrQuoteNotFound
	}
	return nil
}

// FindOrderByIncrementID retrieves an order by its human-facing reference.
func (r *PostgresRepository) FindOrderByIncrementID(ctx context.Context, incrementID string) (*domain.Order, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE increment_id = $1`, incrementID)
	return scanOrder(row)
}

// FindOrderByEntityID retrieves an order by its store-assigned numeric id.
func (r *PostgresRepository) FindOrderByEntityID(ctx context.Context, entityID int64) (*domain.Order, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE entity_id = $1`, entityID)
	return scanOrder(row)
}

// FindOrderByQuoteID retrieves an order through the quote reverse index.
func (r *PostgresRepository) FindOrderByQuoteID(ctx context.Context, quoteID string) (*domain.Order, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE quote_id = $1`, quoteID)
	return scanOrder(row)
}

// QueryLatestOrderForQuote is the last-resort direct store query: newest
// order referencing the quote, regardless of index state.
func (r *PostgresRepository) QueryLatestOrderForQuote(ctx context.Context, quoteID string) (*domain.Order, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE quote_id = $1
		ORDER BY entity_id DESC
		LIMIT 1
	`, quoteID)
	return scanOrder(row)
}

// FindOrderByID retrieves an order by its UUID.
func (r *PostgresRepository) FindOrderByID(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	return scanOrder(row)
}

// SaveOrder persists the engine-owned order fields in a single write.
func (r *PostgresRepository) SaveOrder(ctx context.Context, order *domain.Order) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET status = $2,
		    grand_total = $3,
		    total_paid = $4,
		    total_due = $5,
		    total_invoiced = $6,
		    adjustment = $7,
		    adjustment_applied = $8,
		    payment_transaction_id = $9,
		    updated_at = NOW()
		WHERE id = $1
	`,
		order.ID, string(order.Status),
		order.GrandTotal, order.TotalPaid, order.TotalDue, order.TotalInvoiced,
		order.Adjustment, order.AdjustmentApplied, order.PaymentTransactionID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// FindPaymentTransactionByOrderID returns the capture transaction for an
// order, if one exists.
func (r *PostgresRepository) FindPaymentTransactionByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.PaymentTransaction, error) {
	var tx domain.PaymentTransaction
	err := r.db.QueryRow(ctx, `
		SELECT id, order_id, provider_payment_id, payer_id, amount, currency, created_at
		FROM payment_transactions
		WHERE order_id = $1
	`, orderID).Scan(
		&tx.ID, &tx.OrderID, &tx.ProviderPaymentID, &tx.PayerID,
		&tx.Amount, &tx.Currency, &tx.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &tx, nil
}

// CreatePaymentTransaction inserts the capture transaction linking the
// provider payment to the order. The unique index on order_id keeps
// redelivered events from creating a second record.
func (r *PostgresRepository) CreatePaymentTransaction(ctx context.Context, tx *domain.PaymentTransaction) error {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO payment_transactions (id, order_id, provider_payment_id, payer_id, amount, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (order_id) DO NOTHING
	`, tx.ID, tx.OrderID, tx.ProviderPaymentID, tx.PayerID, tx.Amount, tx.Currency, tx.CreatedAt)
	return err
}

// FindInvoiceByOrderID returns the auto-created invoice for an order, if any.
func (r *PostgresRepository) FindInvoiceByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := r.db.QueryRow(ctx, `
		SELECT id, order_id, grand_total, adjustment, created_at
		FROM invoices
		WHERE order_id = $1
		ORDER BY created_at ASC
		LIMIT 1
	`, orderID).Scan(&inv.ID, &inv.OrderID, &inv.GrandTotal, &inv.Adjustment, &inv.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// CreateInvoice inserts the invoice derived from the order's paid transition.
func (r *PostgresRepository) CreateInvoice(ctx context.Context, invoice *domain.Invoice) error {
	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO invoices (id, order_id, grand_total, adjustment, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, invoice.ID, invoice.OrderID, invoice.GrandTotal, invoice.Adjustment, invoice.CreatedAt)
	return err
}

// CreateCreditMemo inserts a compensating credit for a refund or won dispute.
func (r *PostgresRepository) CreateCreditMemo(ctx context.Context, memo *domain.CreditMemo) error {
	if memo.ID == uuid.Nil {
		memo.ID = uuid.New()
	}
	if memo.CreatedAt.IsZero() {
		memo.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO credit_memos (id, order_id, amount, comment, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, memo.ID, memo.OrderID, memo.Amount, memo.Comment, memo.CreatedAt)
	return err
}

// SaveCustomerPayerID stores the provider-side payer id on the customer
// profile for reuse at the next checkout.
func (r *PostgresRepository) SaveCustomerPayerID(ctx context.Context, customerID uuid.UUID, payerID string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO customer_payer_ids (customer_id, payer_id, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (customer_id) DO UPDATE SET payer_id = EXCLUDED.payer_id, updated_at = NOW()
	`, customerID, payerID)
	return err
}
