/**
 * @description
 * The quote/order resolver. An event carries an opaque cart reference that
 * may be a masked public token or the raw quote id; resolution translates
 * the mask, loads the quote, and then tries an ordered list of order lookup
 * strategies, first success wins. Because order creation is asynchronous
 * relative to webhook delivery, the whole lookup runs under a bounded retry
 * with fixed backoff before declaring the order not found.
 */

package app

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/orderflow/reconciliation-service/internal/domain"
	"github.com/orderflow/reconciliation-service/internal/store"
)

// orderLookup is one resolution strategy. Strategies return
// store.ErrOrderNotFound to pass control to the next one.
type orderLookup struct {
	name string
	find func(ctx context.Context) (*domain.Order, error)
}

// Resolver maps cart references to orders with bounded-retry semantics.
type Resolver struct {
	repo store.Repository

	// initialWait is slept before the first attempt; retryDelay separates the
	// attempts after it. The handler blocks for at most
	// initialWait + attempts*retryDelay.
	initialWait time.Duration
	retryDelay  time.Duration
	attempts    int
}

// NewResolver creates a resolver with the given bounded-retry settings.
func NewResolver(repo store.Repository, initialWait, retryDelay time.Duration, attempts int) *Resolver {
	return &Resolver{
		repo:        repo,
		initialWait: initialWait,
		retryDelay:  retryDelay,
		attempts:    attempts,
	}
}

// ResolveQuote translates a possibly-masked cart reference and loads the
// quote. A mask-table miss is not an error: the reference is then treated as
// the raw quote id.
func (r *Resolver) ResolveQuote(ctx context.Context, cartRef string) (*domain.Quote, error) {
	quoteID, err := r.repo.FindQuoteIDByMaskedID(ctx, cartRef)
	if err != nil {
		if !errors.Is(err, store.ErrMaskNotFound) {
			return nil, err
		}
		quoteID = cartRef
	}
	return r.repo.FindQuoteByID(ctx, quoteID)
}

// lookupStrategies builds the ordered strategy list for a quote. Each is
// attempted only if the previous yielded nothing.
func (r *Resolver) lookupStrategies(quote *domain.Quote) []orderLookup {
	strategies := make([]orderLookup, 0, 4)

	if ref := quote.ReservedOrderRef; ref != "" {
		strategies = append(strategies, orderLookup{
			name: "reserved_order_ref",
			find: func(ctx context.Context) (*domain.Order, error) {
				return r.repo.FindOrderByIncrementID(ctx, ref)
			},
		})
		if entityID, err := strconv.ParseInt(ref, 10, 64); err == nil {
			strategies = append(strategies, orderLookup{
				name: "numeric_entity_id",
				find: func(ctx context.Context) (*domain.Order, error) {
					return r.repo.FindOrderByEntityID(ctx, entityID)
				},
			})
		}
	}

	strategies = append(strategies,
		orderLookup{
			name: "quote_id_index",
			find: func(ctx context.Context) (*domain.Order, error) {
				return r.repo.FindOrderByQuoteID(ctx, quote.ID)
			},
		},
		orderLookup{
			name: "direct_query",
			find: func(ctx context.Context) (*domain.Order, error) {
				return r.repo.QueryLatestOrderForQuote(ctx, quote.ID)
			},
		},
	)
	return strategies
}

// LookupOrderOnce runs the strategy chain a single time, without retry.
func (r *Resolver) LookupOrderOnce(ctx context.Context, quote *domain.Quote) (*domain.Order, error) {
	for _, strategy := range r.lookupStrategies(quote) {
		order, err := strategy.find(ctx)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, store.ErrOrderNotFound) {
			return nil, err
		}
	}
	return nil, store.ErrOrderNotFound
}

// ResolveOrder runs the strategy chain under the bounded retry. It returns
// store.ErrOrderNotFound only after the initial wait and all retry attempts
// have been exhausted; the caller then degrades to the pending path rather
// than erroring.
func (r *Resolver) ResolveOrder(ctx context.Context, quote *domain.Quote) (*domain.Order, error) {
	if err := sleepCtx(ctx, r.initialWait); err != nil {
		return nil, err
	}

	order, err := r.LookupOrderOnce(ctx, quote)
	if err == nil || !errors.Is(err, store.ErrOrderNotFound) {
		return order, err
	}

	for attempt := 1; attempt <= r.attempts; attempt++ {
		if err := sleepCtx(ctx, r.retryDelay); err != nil {
			return nil, err
		}
		order, err = r.LookupOrderOnce(ctx, quote)
		if err == nil || !errors.Is(err, store.ErrOrderNotFound) {
			return order, err
		}
		log.Printf("level=debug component=resolver msg=\"order not found yet\" quote_id=%s attempt=%d", quote.ID, attempt)
	}
	return nil, store.ErrOrderNotFound
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
