/**
 * @description
 * The reconciliation orchestrator. It wires the verifier, the resolver, the
 * transition engine, and the side-effect sequence into a single entry point
 * per inbound event, and exposes the same engine to the internal quotes-sync
 * endpoint and the order-placed consumer.
 *
 * Side-effect ordering on the capture path: verify event, resolve order,
 * check the already-processed guard, mutate and persist the order status,
 * create the transaction record, create the invoice if absent, fold the
 * adjustment into aggregates exactly once, persist. Every step after the
 * guard is safe to retry; failures after the status persists are logged and
 * contained so redelivery finishes the remaining idempotent steps.
 *
 * @dependencies
 * - internal/domain, internal/store: Domain models and persistence contract.
 * - pkg/payrailclient: Provider verification and resource fetches.
 */

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
	"github.com/orderflow/reconciliation-service/pkg/payrailclient"
)

// ProviderClient is the slice of the Payrail client the service needs.
type ProviderClient interface {
	VerifyEvent(ctx context.Context, eventID string, payload interface{}) error
	FetchResource(ctx context.Context, sourceType, sourceID string) (*payrailclient.Resource, error)
}

// OutcomePublisher publishes reconciliation outcome events. A nil publisher
// disables publishing.
type OutcomePublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// OutcomeKind classifies what the engine did with an event.
type OutcomeKind string

const (
	// OutcomeNotApplicable covers events that do not belong to this
	// integration or reference an unhandled resource type.
	OutcomeNotApplicable OutcomeKind = "not_applicable"
	// OutcomeOrderUpdated covers status transitions (capture, close, cancel).
	OutcomeOrderUpdated OutcomeKind = "order_updated"
	// OutcomeCreditIssued covers refund/dispute compensating credits.
	OutcomeCreditIssued OutcomeKind = "credit_issued"
	// OutcomeNoAction covers recognized events that require nothing.
	OutcomeNoAction OutcomeKind = "no_action"
	// OutcomePendingOrder covers payments whose order does not exist yet;
	// metadata is cached on the quote for retroactive reconciliation.
	OutcomePendingOrder OutcomeKind = "pending_order"
)

// Outcome is the structured result the HTTP layer maps onto the response.
type Outcome struct {
	Kind      OutcomeKind
	Message   string
	OrderRef  string
	NewStatus domain.OrderStatus
}

// ErrQuoteUnknown is returned when the cart reference resolves to nothing at
// all; there is no quote to cache payment metadata on.
var ErrQuoteUnknown = errors.New("cart reference resolves to no quote")

const reconciliationExchange = "reconciliation_events"

// Service is the reconciliation orchestrator.
type Service struct {
	repo      store.Repository
	provider  ProviderClient
	resolver  *Resolver
	publisher OutcomePublisher
	threshold domain.EventStatus
}

// NewService creates the orchestrator. threshold is the configured
// "update order on" provider status, e.g. "paid".
func NewService(repo store.Repository, provider ProviderClient, resolver *Resolver, publisher OutcomePublisher, threshold string) *Service {
	parsed := domain.ParseEventStatus(threshold)
	if parsed == domain.EventStatusUnknown {
		log.Printf("level=warn component=reconciliation msg=\"unrecognized update-order-on status; defaulting to paid\" value=%q", threshold)
		parsed = domain.EventStatusPaid
	}
	return &Service{
		repo:      repo,
		provider:  provider,
		resolver:  resolver,
		publisher: publisher,
		threshold: parsed,
	}
}

// HandleEvent processes one verified-able webhook event end to end.
func (s *Service) HandleEvent(ctx context.Context, event *domain.WebhookEvent) (*Outcome, error) {
	if !event.BelongsToIntegration() {
		return &Outcome{Kind: OutcomeNotApplicable, Message: "event does not belong to this integration"}, nil
	}
	switch event.Resource.Object {
	case domain.ResourceObjectPayment, domain.ResourceObjectRefund, domain.ResourceObjectDispute:
	default:
		return &Outcome{Kind: OutcomeNotApplicable, Message: fmt.Sprintf("no action for resource type %s", event.Resource.Object)}, nil
	}

	// Verification happens before any lookup or mutation so a forged event
	// can never touch the store.
	if err := s.provider.VerifyEvent(ctx, event.ID, event.VerificationPayload()); err != nil {
		return nil, err
	}

	quote, err := s.resolver.ResolveQuote(ctx, event.Resource.Meta.Quote)
	if err != nil {
		if errors.Is(err, store.ErrQuoteNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrQuoteUnknown, event.Resource.Meta.Quote)
		}
		return nil, fmt.Errorf("resolve quote: %w", err)
	}

	order, err := s.resolver.ResolveOrder(ctx, quote)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			return s.recordPendingPayment(ctx, quote, event)
		}
		return nil, fmt.Errorf("resolve order: %w", err)
	}

	amount := event.Resource.Amount
	if amount == 0 {
		amount = event.Resource.SettlementAmount
	}
	decision := Decide(event.Resource.Object, order.Status, event.Resource.Status, s.threshold, amount)
	outcome, err := s.apply(ctx, order, event, decision)
	if err != nil {
		return nil, err
	}
	s.publishOutcome(ctx, event.ID, outcome)
	return outcome, nil
}

// HandleResourceSync serves the internal quotes-sync endpoint: fetch the
// authoritative resource from the provider, then drive the same engine. The
// order must already exist on this path; a miss is an error so the caller's
// retry machinery fires.
func (s *Service) HandleResourceSync(ctx context.Context, sourceType, sourceID, cartRef string) (*Outcome, error) {
	resource, err := s.provider.FetchResource(ctx, sourceType, sourceID)
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", sourceType, sourceID, err)
	}

	quote, err := s.resolver.ResolveQuote(ctx, cartRef)
	if err != nil {
		return nil, fmt.Errorf("resolve quote %s: %w", cartRef, err)
	}
	order, err := s.resolver.LookupOrderOnce(ctx, quote)
	if err != nil {
		return nil, fmt.Errorf("resolve order for quote %s: %w", quote.ID, err)
	}

	object := resource.Object
	if object == "" {
		// Resource fetches on some provider versions omit the object field;
		// fall back to the declared source type.
		switch sourceType {
		case "Payment":
			object = domain.ResourceObjectPayment
		case "Refund":
			object = domain.ResourceObjectRefund
		case "Dispute":
			object = domain.ResourceObjectDispute
		}
	}

	decision := Decide(object, order.Status, resource.Status, s.threshold, resource.Amount)
	outcome, err := s.apply(ctx, order, syncEventForResource(resource, cartRef, object), decision)
	if err != nil {
		return nil, err
	}
	s.publishOutcome(ctx, "sync:"+sourceID, outcome)
	return outcome, nil
}

// syncEventForResource adapts a fetched resource into the event shape the
// capture path consumes.
func syncEventForResource(resource *payrailclient.Resource, cartRef, object string) *domain.WebhookEvent {
	return &domain.WebhookEvent{
		ID: resource.ID,
		Resource: domain.EventResource{
			ID:                 resource.ID,
			Object:             object,
			Status:             resource.Status,
			Meta:               domain.EventMeta{Source: domain.MetaSourceStorefront, Quote: cartRef},
			PayerID:            resource.PayerID,
			Amount:             resource.Amount,
			SettlementAmount:   resource.SettlementAmount,
			SettlementCurrency: resource.SettlementCurrency,
		},
	}
}

// apply executes a decision's side effects against the order.
func (s *Service) apply(ctx context.Context, order *domain.Order, event *domain.WebhookEvent, decision Decision) (*Outcome, error) {
	switch decision.Action {
	case ActionNone:
		return &Outcome{Kind: OutcomeNoAction, Message: decision.Note, OrderRef: order.IncrementID, NewStatus: order.Status}, nil

	case ActionCapture:
		return s.applyCapture(ctx, order, event, decision)

	case ActionClose, ActionCancel:
		order.Status = decision.NextStatus
		if err := s.repo.SaveOrder(ctx, order); err != nil {
			return nil, fmt.Errorf("persist order %s status %s: %w", order.IncrementID, decision.NextStatus, err)
		}
		log.Printf("level=info component=reconciliation msg=\"order status changed\" order=%s status=%s", order.IncrementID, decision.NextStatus)
		return &Outcome{
			Kind:      OutcomeOrderUpdated,
			Message:   decision.Note,
			OrderRef:  order.IncrementID,
			NewStatus: decision.NextStatus,
		}, nil

	case ActionCredit:
		memo := &domain.CreditMemo{
			OrderID: order.ID,
			Amount:  decision.CreditAmount,
			Comment: decision.Note,
		}
		if err := s.repo.CreateCreditMemo(ctx, memo); err != nil {
			return nil, fmt.Errorf("create credit memo for order %s: %w", order.IncrementID, err)
		}
		log.Printf("level=info component=reconciliation msg=\"credit memo created\" order=%s amount=%d", order.IncrementID, decision.CreditAmount)
		return &Outcome{Kind: OutcomeCreditIssued, Message: decision.Note, OrderRef: order.IncrementID, NewStatus: order.Status}, nil

	default:
		return &Outcome{Kind: OutcomeNoAction, Message: decision.Note, OrderRef: order.IncrementID, NewStatus: order.Status}, nil
	}
}

// applyCapture runs the threshold-reached side-effect sequence. The status
// persist is the commit point: anything failing after it is logged and left
// for redelivery, which the idempotence guards make safe.
func (s *Service) applyCapture(ctx context.Context, order *domain.Order, event *domain.WebhookEvent, decision Decision) (*Outcome, error) {
	paymentID := event.Resource.ID
	adjustment := ComputeAdjustment(event.Resource.FeeSplit)

	order.Status = decision.NextStatus
	if order.PaymentTransactionID == nil && paymentID != "" {
		order.PaymentTransactionID = &paymentID
	}
	if err := s.repo.SaveOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("persist order %s status %s: %w", order.IncrementID, decision.NextStatus, err)
	}

	// Everything below is best-effort relative to the committed status
	// change: log and continue so the webhook still reports the transition,
	// and redelivery retries only the still-pending pieces.
	if err := s.createCaptureTransaction(ctx, order, event); err != nil {
		log.Printf("level=error component=reconciliation msg=\"transaction record failed\" order=%s err=%v", order.IncrementID, err)
	}
	if err := s.createInvoiceAndFold(ctx, order, adjustment); err != nil {
		log.Printf("level=error component=reconciliation msg=\"invoice/adjustment step failed\" order=%s err=%v", order.IncrementID, err)
	}
	s.savePayerID(ctx, order, event.Resource.PayerID)

	log.Printf("level=info component=reconciliation msg=\"order captured\" order=%s payment_id=%s adjustment=%d", order.IncrementID, paymentID, adjustment)
	return &Outcome{
		Kind:      OutcomeOrderUpdated,
		Message:   decision.Note,
		OrderRef:  order.IncrementID,
		NewStatus: decision.NextStatus,
	}, nil
}

// createCaptureTransaction records the provider payment against the order,
// at most once.
func (s *Service) createCaptureTransaction(ctx context.Context, order *domain.Order, event *domain.WebhookEvent) error {
	_, err := s.repo.FindPaymentTransactionByOrderID(ctx, order.ID)
	if err == nil {
		return nil // already recorded by an earlier delivery
	}
	if !errors.Is(err, store.ErrTransactionNotFound) {
		return err
	}

	amount := event.Resource.SettlementAmount
	if amount == 0 {
		amount = event.Resource.Amount
	}
	var payerID *string
	if event.Resource.PayerID != "" {
		p := event.Resource.PayerID
		payerID = &p
	}
	return s.repo.CreatePaymentTransaction(ctx, &domain.PaymentTransaction{
		OrderID:           order.ID,
		ProviderPaymentID: event.Resource.ID,
		PayerID:           payerID,
		Amount:            amount,
		Currency:          event.Resource.SettlementCurrency,
	})
}

// createInvoiceAndFold creates the invoice if absent and folds the
// adjustment into order/invoice aggregates exactly once, guarded by the
// order's AdjustmentApplied marker.
func (s *Service) createInvoiceAndFold(ctx context.Context, order *domain.Order, adjustment int64) error {
	if adjustment != 0 && !order.AdjustmentApplied {
		order.Adjustment = adjustment
		order.GrandTotal = FoldAdjustment(order.GrandTotal, adjustment)
		order.AdjustmentApplied = true
	}

	_, err := s.repo.FindInvoiceByOrderID(ctx, order.ID)
	switch {
	case err == nil:
		// Invoice already exists; aggregates were settled on its creation.
	case errors.Is(err, store.ErrInvoiceNotFound):
		invoice := &domain.Invoice{
			OrderID:    order.ID,
			GrandTotal: order.GrandTotal,
			Adjustment: order.Adjustment,
		}
		if err := s.repo.CreateInvoice(ctx, invoice); err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}
		order.TotalInvoiced = invoice.GrandTotal
		order.TotalPaid = invoice.GrandTotal
		order.TotalDue = FoldAdjustment(order.GrandTotal, -order.TotalPaid)
	default:
		return fmt.Errorf("lookup invoice: %w", err)
	}

	if err := s.repo.SaveOrder(ctx, order); err != nil {
		return fmt.Errorf("persist aggregates: %w", err)
	}
	return nil
}

// savePayerID stores the provider payer id against the customer profile,
// best-effort, for reuse at the next checkout.
func (s *Service) savePayerID(ctx context.Context, order *domain.Order, payerID string) {
	if payerID == "" || order.CustomerID == nil {
		return
	}
	if err := s.repo.SaveCustomerPayerID(ctx, *order.CustomerID, payerID); err != nil {
		log.Printf("level=warn component=reconciliation msg=\"payer id save failed\" order=%s err=%v", order.IncrementID, err)
	}
}

// recordPendingPayment handles the race where the webhook outran order
// creation: the payment metadata is cached on the quote, the adjustment is
// precomputed onto it, and the event is acknowledged so the provider stops
// retrying. Order placement reconciles retroactively.
func (s *Service) recordPendingPayment(ctx context.Context, quote *domain.Quote, event *domain.WebhookEvent) (*Outcome, error) {
	payload, err := json.Marshal(event.Resource)
	if err != nil {
		return nil, fmt.Errorf("marshal payment payload: %w", err)
	}
	if err := s.repo.SaveQuotePaymentMetadata(ctx, quote.ID, event.Resource.Status, event.Resource.ID, payload); err != nil {
		return nil, fmt.Errorf("cache payment on quote %s: %w", quote.ID, err)
	}
	if adjustment := ComputeAdjustment(event.Resource.FeeSplit); adjustment != 0 {
		if err := s.repo.SaveQuoteAdjustment(ctx, quote.ID, adjustment); err != nil {
			log.Printf("level=warn component=reconciliation msg=\"quote adjustment save failed\" quote_id=%s err=%v", quote.ID, err)
		}
	}

	log.Printf("level=info component=reconciliation msg=\"payment cached on quote pending order creation\" quote_id=%s payment_id=%s status=%s",
		quote.ID, event.Resource.ID, event.Resource.Status)
	outcome := &Outcome{
		Kind:    OutcomePendingOrder,
		Message: "payment recorded, awaiting order completion",
	}
	s.publishOutcome(ctx, event.ID, outcome)
	return outcome, nil
}

// publishOutcome emits the reconciliation event for downstream consumers.
// Publishing is best-effort and never fails the webhook.
func (s *Service) publishOutcome(ctx context.Context, eventID string, outcome *Outcome) {
	if s.publisher == nil || outcome == nil {
		return
	}
	routingKey := "reconciliation.order.acknowledged"
	if outcome.Kind == OutcomeOrderUpdated || outcome.Kind == OutcomeCreditIssued {
		routingKey = "reconciliation.order.updated"
	}
	message := domain.ReconciliationEvent{
		EventID:    eventID,
		OrderRef:   outcome.OrderRef,
		Action:     string(outcome.Kind),
		NewStatus:  string(outcome.NewStatus),
		OccurredAt: time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, reconciliationExchange, routingKey, message); err != nil {
		log.Printf("level=warn component=reconciliation msg=\"outcome publish failed\" event_id=%s err=%v", eventID, err)
	}
}

// Threshold exposes the configured capture status.
func (s *Service) Threshold() domain.EventStatus {
	return s.threshold
}
