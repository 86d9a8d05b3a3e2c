package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/orderflow/reconciliation-service/internal/domain"
	"github.com/orderflow/reconciliation-service/internal/store"
	"github.com/orderflow/reconciliation-service/pkg/payrailclient"
)

type serviceRepoStub struct {
	store.Repository

	quote *domain.Quote
	order *domain.Order

	transaction *domain.PaymentTransaction
	invoice     *domain.Invoice

	savedOrders        []domain.Order
	createdTransaction *domain.PaymentTransaction
	createdInvoice     *domain.Invoice
	createdMemo        *domain.CreditMemo

	cachedPaymentStatus string
	cachedPaymentID     string
	cachedPayload       []byte
	cachedAdjustment    int64

	savedPayerID string
}

func (s *serviceRepoStub) FindQuoteIDByMaskedID(ctx context.Context, maskedID string) (string, error) {
	return "", store.ErrMaskNotFound
}

func (s *serviceRepoStub) FindQuoteByID(ctx context.Context, quoteID string) (*domain.Quote, error) {
	if s.quote == nil || s.quote.ID != quoteID {
		return nil, store.ErrQuoteNotFound
	}
	return s.quote, nil
}

func (s *serviceRepoStub) SaveQuotePaymentMetadata(ctx context.Context, quoteID, paymentStatus, paymentID string, payload []byte) error {
	s.cachedPaymentStatus = paymentStatus
	s.cachedPaymentID = paymentID
	s.cachedPayload = payload
	return nil
}

func (s *serviceRepoStub) SaveQuoteAdjustment(ctx context.Context, quoteID string, adjustment int64) error {
	s.cachedAdjustment = adjustment
	return nil
}

func (s *serviceRepoStub) FindOrderByIncrementID(ctx context.Context, incrementID string) (*domain.Order, error) {
	if s.order == nil || s.order.IncrementID != incrementID {
		return nil, store.ErrOrderNotFound
	}
	return s.order, nil
}

func (s *serviceRepoStub) FindOrderByEntityID(ctx context.Context, entityID int64) (*domain.Order, error) {
	if s.order == nil || s.order.EntityID != entityID {
		return nil, store.ErrOrderNotFound
	}
	return s.order, nil
}

func (s *serviceRepoStub) FindOrderByQuoteID(ctx context.Context, quoteID string) (*domain.Order, error) {
	if s.order == nil || s.order.QuoteID != quoteID {
		return nil, store.ErrOrderNotFound
	}
	return s.order, nil
}

func (s *serviceRepoStub) QueryLatestOrderForQuote(ctx context.Context, quoteID string) (*domain.Order, error) {
	return s.FindOrderByQuoteID(ctx, quoteID)
}

func (s *serviceRepoStub) FindOrderByID(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, store.ErrOrderNotFound
	}
	return s.order, nil
}

func (s *serviceRepoStub) SaveOrder(ctx context.Context, order *domain.Order) error {
	s.savedOrders = append(s.savedOrders, *order)
	return nil
}

func (s *serviceRepoStub) FindPaymentTransactionByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.PaymentTransaction, error) {
	if s.transaction == nil {
		return nil, store.ErrTransactionNotFound
	}
	return s.transaction, nil
}

func (s *serviceRepoStub) CreatePaymentTransaction(ctx context.Context, tx *domain.PaymentTransaction) error {
	s.createdTransaction = tx
	s.transaction = tx
	return nil
}

func (s *serviceRepoStub) FindInvoiceByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.Invoice, error) {
	if s.invoice == nil {
		return nil, store.ErrInvoiceNotFound
	}
	return s.invoice, nil
}

func (s *serviceRepoStub) CreateInvoice(ctx context.Context, invoice *domain.Invoice) error {
	s.createdInvoice = invoice
	s.invoice = invoice
	return nil
}

func (s *serviceRepoStub) CreateCreditMemo(ctx context.Context, memo *domain.CreditMemo) error {
	s.createdMemo = memo
	return nil
}

func (s *serviceRepoStub) SaveCustomerPayerID(ctx context.Context, customerID uuid.UUID, payerID string) error {
	s.savedPayerID = payerID
	return nil
}

type providerStub struct {
	verifyErr    error
	verifyCalled bool
	resource     *payrailclient.Resource
}

func (p *providerStub) VerifyEvent(ctx context.Context, eventID string, payload interface{}) error {
	p.verifyCalled = true
	return p.verifyErr
}

func (p *providerStub) FetchResource(ctx context.Context, sourceType, sourceID string) (*payrailclient.Resource, error) {
	if p.resource == nil {
		return nil, errors.New("no resource configured")
	}
	return p.resource, nil
}

func newTestService(repo *serviceRepoStub, provider *providerStub) *Service {
	resolver := NewResolver(repo, 0, 0, 0)
	return NewService(repo, provider, resolver, nil, "paid")
}

func paidPaymentEvent(quoteID string, feeSplit *domain.FeeSplit) *domain.WebhookEvent {
	return &domain.WebhookEvent{
		ID:     "evt_1",
		Object: "event",
		Resource: domain.EventResource{
			ID:                 "pay_1",
			Object:             domain.ResourceObjectPayment,
			Status:             "paid",
			Meta:               domain.EventMeta{Source: domain.MetaSourceStorefront, Quote: quoteID},
			PayerID:            "payer_1",
			SettlementAmount:   10000,
			SettlementCurrency: "USD",
			FeeSplit:           feeSplit,
		},
	}
}

func TestHandleEvent_PaidPaymentCapturesOrder(t *testing.T) {
	customerID := uuid.New()
	repo := &serviceRepoStub{
		quote: &domain.Quote{ID: "q1", ReservedOrderRef: "100000042"},
		order: &domain.Order{
			ID:          uuid.New(),
			EntityID:    100000042,
			IncrementID: "100000042",
			QuoteID:     "q1",
			Status:      domain.OrderStatusPending,
			GrandTotal:  10000,
			CustomerID:  &customerID,
		},
	}
	provider := &providerStub{}
	svc := newTestService(repo, provider)

	outcome, err := svc.HandleEvent(context.Background(), paidPaymentEvent("q1", nil))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !provider.verifyCalled {
		t.Fatal("expected the event to be verified before processing")
	}
	if outcome.Kind != OutcomeOrderUpdated {
		t.Fatalf("expected order_updated outcome, got %s", outcome.Kind)
	}
	if outcome.NewStatus != domain.OrderStatusProcessing {
		t.Fatalf("expected processing status, got %s", outcome.NewStatus)
	}
	if repo.createdTransaction == nil || repo.createdTransaction.ProviderPaymentID != "pay_1" {
		t.Fatalf("expected capture transaction for pay_1, got %+v", repo.createdTransaction)
	}
	if repo.createdInvoice == nil || repo.createdInvoice.GrandTotal != 10000 {
		t.Fatalf("expected invoice over full grand total, got %+v", repo.createdInvoice)
	}
	if repo.order.TotalPaid != 10000 || repo.order.TotalDue != 0 {
		t.Fatalf("expected fully settled totals, got paid=%d due=%d", repo.order.TotalPaid, repo.order.TotalDue)
	}
	if repo.savedPayerID != "payer_1" {
		t.Fatalf("expected payer id captured on the customer, got %q", repo.savedPayerID)
	}
}

func TestHandleEvent_RedeliveryIsIdempotent(t *testing.T) {
	repo := &serviceRepoStub{
		quote: &domain.Quote{ID: "q1", ReservedOrderRef: "100000042"},
		order: &domain.Order{
			ID:          uuid.New(),
			EntityID:    100000042,
			IncrementID: "100000042",
			QuoteID:     "q1",
			Status:      domain.OrderStatusPending,
			GrandTotal:  10000,
		},
	}
	svc := newTestService(repo, &providerStub{})

	event := paidPaymentEvent("q1", &domain.FeeSplit{PayerDiscount: 500})
	if _, err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	firstInvoice := repo.createdInvoice
	firstGrandTotal := repo.order.GrandTotal

	outcome, err := svc.HandleEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}
	if outcome.Kind != OutcomeNoAction {
		t.Fatalf("expected no_action on redelivery, got %s", outcome.Kind)
	}
	if repo.createdInvoice != firstInvoice {
		t.Fatal("redelivery must not create a second invoice")
	}
	if repo.order.GrandTotal != firstGrandTotal {
		t.Fatalf("redelivery must not fold the adjustment twice: got %d, want %d", repo.order.GrandTotal, firstGrandTotal)
	}
}

func TestHandleEvent_DiscountReducesTotals(t *testing.T) {
	repo := &serviceRepoStub{
		quote: &domain.Quote{ID: "q1", ReservedOrderRef: "100000042"},
		order: &domain.Order{
			ID:          uuid.New(),
			EntityID:    100000042,
			IncrementID: "100000042",
			QuoteID:     "q1",
			Status:      domain.OrderStatusPending,
			GrandTotal:  10000,
		},
	}
	svc := newTestService(repo, &providerStub{})

	event := paidPaymentEvent("q1", &domain.FeeSplit{PayerDiscount: 500})
	if _, err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if repo.order.Adjustment != -500 {
		t.Fatalf("expected adjustment -500, got %d", repo.order.Adjustment)
	}
	if repo.order.GrandTotal != 9500 {
		t.Fatalf("expected grand total 9500 after discount, got %d", repo.order.GrandTotal)
	}
	if !repo.order.AdjustmentApplied {
		t.Fatal("expected the adjustment-applied marker to be set")
	}
	if repo.order.TotalPaid != 9500 || repo.order.TotalInvoiced != 9500 {
		t.Fatalf("expected settled totals 9500, got paid=%d invoiced=%d", repo.order.TotalPaid, repo.order.TotalInvoiced)
	}
}

func TestHandleEvent_OrderMissingCachesPaymentOnQuote(t *testing.T) {
	repo := &serviceRepoStub{
		quote: &domain.Quote{ID: "q1", ReservedOrderRef: "100000042"},
	}
	svc := newTestService(repo, &providerStub{})

	outcome, err := svc.HandleEvent(context.Background(), paidPaymentEvent("q1", &domain.FeeSplit{PayerTotalFees: 300}))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if outcome.Kind != OutcomePendingOrder {
		t.Fatalf("expected pending_order outcome, got %s", outcome.Kind)
	}
	if repo.cachedPaymentStatus != "paid" || repo.cachedPaymentID != "pay_1" {
		t.Fatalf("expected payment metadata cached on the quote, got status=%q id=%q", repo.cachedPaymentStatus, repo.cachedPaymentID)
	}
	if len(repo.cachedPayload) == 0 {
		t.Fatal("expected the raw resource payload cached on the quote")
	}
	if repo.cachedAdjustment != 300 {
		t.Fatalf("expected adjustment 300 cached on the quote, got %d", repo.cachedAdjustment)
	}
}

func TestHandleEvent_ForeignSourceIsAcknowledgedUnverified(t *testing.T) {
	provider := &providerStub{}
	svc := newTestService(&serviceRepoStub{}, provider)

	event := paidPaymentEvent("q1", nil)
	event.Resource.Meta.Source = "another-storefront"

	outcome, err := svc.HandleEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if outcome.Kind != OutcomeNotApplicable {
		t.Fatalf("expected not_applicable outcome, got %s", outcome.Kind)
	}
	if provider.verifyCalled {
		t.Fatal("foreign events must not trigger a verification round trip")
	}
}

func TestHandleEvent_VerificationFailureIsReturned(t *testing.T) {
	provider := &providerStub{verifyErr: payrailclient.ErrVerificationFailed}
	svc := newTestService(&serviceRepoStub{quote: &domain.Quote{ID: "q1"}}, provider)

	_, err := svc.HandleEvent(context.Background(), paidPaymentEvent("q1", nil))
	if !errors.Is(err, payrailclient.ErrVerificationFailed) {
		t.Fatalf("expected verification failure, got %v", err)
	}
}

func TestHandleEvent_FailedPaymentClosesOrder(t *testing.T) {
	repo := &serviceRepoStub{
		quote: &domain.Quote{ID: "q1", ReservedOrderRef: "100000042"},
		order: &domain.Order{
			ID:          uuid.New(),
			EntityID:    100000042,
			IncrementID: "100000042",
			QuoteID:     "q1",
			Status:      domain.OrderStatusPending,
			GrandTotal:  10000,
		},
	}
	svc := newTestService(repo, &providerStub{})

	event := paidPaymentEvent("q1", nil)
	event.Resource.Status = "failed"

	outcome, err := svc.HandleEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if outcome.NewStatus != domain.OrderStatusClosed {
		t.Fatalf("expected closed status, got %s", outcome.NewStatus)
	}
	if repo.createdInvoice != nil || repo.createdTransaction != nil {
		t.Fatal("failed payments must not create financial records")
	}
}

func TestHandleEvent_PaidRefundCreatesCreditMemo(t *testing.T) {
	repo := &serviceRepoStub{
		quote: &domain.Quote{ID: "q1", ReservedOrderRef: "100000042"},
		order: &domain.Order{
			ID:          uuid.New(),
			EntityID:    100000042,
			IncrementID: "100000042",
			QuoteID:     "q1",
			Status:      domain.OrderStatusProcessing,
			GrandTotal:  10000,
		},
	}
	svc := newTestService(repo, &providerStub{})

	event := paidPaymentEvent("q1", nil)
	event.Resource.Object = domain.ResourceObjectRefund
	event.Resource.Amount = 2500

	outcome, err := svc.HandleEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if outcome.Kind != OutcomeCreditIssued {
		t.Fatalf("expected credit_issued outcome, got %s", outcome.Kind)
	}
	if repo.createdMemo == nil || repo.createdMemo.Amount != 2500 {
		t.Fatalf("expected credit memo over 2500, got %+v", repo.createdMemo)
	}
}

func TestHandleEvent_UnknownQuoteIsReported(t *testing.T) {
	svc := newTestService(&serviceRepoStub{}, &providerStub{})

	_, err := svc.HandleEvent(context.Background(), paidPaymentEvent("missing", nil))
	if !errors.Is(err, ErrQuoteUnknown) {
		t.Fatalf("expected unknown-quote error, got %v", err)
	}
}

func TestHandleResourceSync_FetchesAndCaptures(t *testing.T) {
	repo := &serviceRepoStub{
		quote: &domain.Quote{ID: "q1", ReservedOrderRef: "100000042"},
		order: &domain.Order{
			ID:          uuid.New(),
			EntityID:    100000042,
			IncrementID: "100000042",
			QuoteID:     "q1",
			Status:      domain.OrderStatusPending,
			GrandTotal:  10000,
		},
	}
	provider := &providerStub{resource: &payrailclient.Resource{
		ID:               "pay_9",
		Object:           domain.ResourceObjectPayment,
		Status:           "paid",
		Amount:           10000,
		SettlementAmount: 10000,
	}}
	svc := newTestService(repo, provider)

	outcome, err := svc.HandleResourceSync(context.Background(), "Payment", "pay_9", "q1")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if outcome.Kind != OutcomeOrderUpdated {
		t.Fatalf("expected order_updated outcome, got %s", outcome.Kind)
	}
	if repo.createdTransaction == nil || repo.createdTransaction.ProviderPaymentID != "pay_9" {
		t.Fatalf("expected capture transaction for pay_9, got %+v", repo.createdTransaction)
	}
}
