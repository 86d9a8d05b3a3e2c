package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/orderflow/reconciliation-service/internal/domain"
	"github.com/orderflow/reconciliation-service/internal/store"
)

// OrderPlacedConsumer closes the webhook-before-order race from the other
// side: when the storefront finishes placing an order, it checks whether the
// quote already received its payment webhook and, if so, replays the cached
// payment through the same engine.
type OrderPlacedConsumer struct {
	service *Service
	repo    store.Repository
}

func NewOrderPlacedConsumer(service *Service, repo store.Repository) *OrderPlacedConsumer {
	return &OrderPlacedConsumer{service: service, repo: repo}
}

// HandleMessage is the queue binding target. Returning true acknowledges the
// delivery; false requeues it.
func (c *OrderPlacedConsumer) HandleMessage(body []byte) bool {
	var event domain.OrderPlacedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("order-placed-consumer: failed to unmarshal payload: %v", err)
		return true
	}

	if event.QuoteID == "" {
		log.Printf("order-placed-consumer: missing quote id in event %+v", event)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := c.processEvent(ctx, event); err != nil {
		log.Printf("order-placed-consumer: processing error for quote %s: %v", event.QuoteID, err)
		return false
	}

	return true
}

func (c *OrderPlacedConsumer) processEvent(ctx context.Context, event domain.OrderPlacedEvent) error {
	quote, err := c.repo.FindQuoteByID(ctx, event.QuoteID)
	if err != nil {
		if errors.Is(err, store.ErrQuoteNotFound) {
			log.Printf("order-placed-consumer: no quote found for %s; acknowledging", event.QuoteID)
			return nil
		}
		return fmt.Errorf("lookup quote: %w", err)
	}

	if quote.PaymentStatus == nil {
		// No webhook arrived before this order; nothing to replay.
		return nil
	}

	order, err := c.lookupOrder(ctx, event, quote)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			// Placement outran the order write itself; requeue and retry.
			return fmt.Errorf("order for quote %s not visible yet: %w", quote.ID, err)
		}
		return fmt.Errorf("lookup order: %w", err)
	}

	replay := c.rebuildCachedEvent(quote)
	amount := replay.Resource.Amount
	if amount == 0 {
		amount = replay.Resource.SettlementAmount
	}

	decision := Decide(replay.Resource.Object, order.Status, replay.Resource.Status, c.service.Threshold(), amount)
	outcome, err := c.service.apply(ctx, order, replay, decision)
	if err != nil {
		return fmt.Errorf("replay cached payment: %w", err)
	}

	log.Printf("level=info component=order_placed_consumer msg=\"cached payment replayed\" order=%s quote_id=%s outcome=%s",
		order.IncrementID, quote.ID, outcome.Kind)
	return nil
}

func (c *OrderPlacedConsumer) lookupOrder(ctx context.Context, event domain.OrderPlacedEvent, quote *domain.Quote) (*domain.Order, error) {
	order, err := c.repo.FindOrderByID(ctx, event.OrderID)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, store.ErrOrderNotFound) {
		return nil, err
	}
	return c.service.resolver.LookupOrderOnce(ctx, quote)
}

// rebuildCachedEvent reconstructs a webhook event from the payment metadata
// cached on the quote. When the raw payload did not survive, a minimal
// payment resource is synthesized from the cached status, id, and
// adjustment.
func (c *OrderPlacedConsumer) rebuildCachedEvent(quote *domain.Quote) *domain.WebhookEvent {
	var resource domain.EventResource
	if len(quote.PaymentPayload) > 0 {
		if err := json.Unmarshal(quote.PaymentPayload, &resource); err != nil {
			log.Printf("order-placed-consumer: cached payload for quote %s is unreadable: %v", quote.ID, err)
			resource = domain.EventResource{}
		}
	}

	if resource.Object == "" {
		resource.Object = domain.ResourceObjectPayment
	}
	if resource.Status == "" && quote.PaymentStatus != nil {
		resource.Status = *quote.PaymentStatus
	}
	if resource.ID == "" && quote.PaymentID != nil {
		resource.ID = *quote.PaymentID
	}
	if resource.FeeSplit == nil && quote.Adjustment != 0 {
		if quote.Adjustment < 0 {
			resource.FeeSplit = &domain.FeeSplit{PayerDiscount: -quote.Adjustment}
		} else {
			resource.FeeSplit = &domain.FeeSplit{PayerTotalFees: quote.Adjustment}
		}
	}
	resource.Meta = domain.EventMeta{Source: domain.MetaSourceStorefront, Quote: quote.ID}

	return &domain.WebhookEvent{ID: "replay:" + resource.ID, Resource: resource}
}
