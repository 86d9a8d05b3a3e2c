package app

import (
	"strings"
	"testing"

	"github.com/orderflow/reconciliation-service/internal/domain"
)

func TestDecide_PaymentTransitions(t *testing.T) {
	threshold := domain.EventStatusPaid

	cases := []struct {
		name       string
		current    domain.OrderStatus
		status     string
		wantAction Action
		wantNext   domain.OrderStatus
	}{
		{"paid advances pending order", domain.OrderStatusPending, "paid", ActionCapture, domain.OrderStatusProcessing},
		{"paid redelivery on processing order", domain.OrderStatusProcessing, "paid", ActionNone, ""},
		{"paid on completed order", domain.OrderStatusComplete, "paid", ActionNone, ""},
		{"created is acknowledged", domain.OrderStatusPending, "created", ActionNone, ""},
		{"processing is acknowledged", domain.OrderStatusPending, "processing", ActionNone, ""},
		{"posted below threshold does nothing", domain.OrderStatusPending, "posted", ActionNone, ""},
		{"failed closes pending order", domain.OrderStatusPending, "failed", ActionClose, domain.OrderStatusClosed},
		{"failed after terminal state does nothing", domain.OrderStatusCanceled, "failed", ActionNone, ""},
		{"canceled cancels pending order", domain.OrderStatusPending, "canceled", ActionCancel, domain.OrderStatusCanceled},
		{"canceled after close does nothing", domain.OrderStatusClosed, "canceled", ActionNone, ""},
		{"unrecognized status does nothing", domain.OrderStatusPending, "settled", ActionNone, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Decide(domain.ResourceObjectPayment, tc.current, tc.status, threshold, 0)
			if got.Action != tc.wantAction {
				t.Fatalf("action = %s, want %s", got.Action, tc.wantAction)
			}
			if tc.wantNext != "" && got.NextStatus != tc.wantNext {
				t.Fatalf("next status = %s, want %s", got.NextStatus, tc.wantNext)
			}
			if got.Note == "" {
				t.Fatal("every decision must carry a note")
			}
		})
	}
}

func TestDecide_UnrecognizedStatusSurfacesRawValue(t *testing.T) {
	got := Decide(domain.ResourceObjectPayment, domain.OrderStatusPending, "settled", domain.EventStatusPaid, 0)
	if got.Action != ActionNone {
		t.Fatalf("expected no action, got %s", got.Action)
	}
	if !strings.Contains(got.Note, "settled") {
		t.Fatalf("the note must carry the raw provider status, got %q", got.Note)
	}

	got = Decide(domain.ResourceObjectRefund, domain.OrderStatusProcessing, "reversed", domain.EventStatusPaid, 100)
	if !strings.Contains(got.Note, "reversed") {
		t.Fatalf("refund note must carry the raw provider status, got %q", got.Note)
	}

	got = Decide(domain.ResourceObjectDispute, domain.OrderStatusProcessing, "escalated", domain.EventStatusPaid, 100)
	if !strings.Contains(got.Note, "escalated") {
		t.Fatalf("dispute note must carry the raw provider status, got %q", got.Note)
	}
}

func TestDecide_ConfigurableThreshold(t *testing.T) {
	got := Decide(domain.ResourceObjectPayment, domain.OrderStatusPending, "posted", domain.EventStatusPosted, 0)
	if got.Action != ActionCapture {
		t.Fatalf("posted threshold must capture on posted events, got %s", got.Action)
	}

	got = Decide(domain.ResourceObjectPayment, domain.OrderStatusPending, "paid", domain.EventStatusPosted, 0)
	if got.Action != ActionNone {
		t.Fatalf("paid above a posted threshold decides nothing, got %s", got.Action)
	}
}

func TestDecide_RefundAndDispute(t *testing.T) {
	got := Decide(domain.ResourceObjectRefund, domain.OrderStatusProcessing, "paid", domain.EventStatusPaid, 2500)
	if got.Action != ActionCredit || got.CreditAmount != 2500 {
		t.Fatalf("paid refund must credit 2500, got %+v", got)
	}

	got = Decide(domain.ResourceObjectRefund, domain.OrderStatusProcessing, "posted", domain.EventStatusPaid, 2500)
	if got.Action != ActionNone {
		t.Fatalf("posted refund decides nothing, got %s", got.Action)
	}

	got = Decide(domain.ResourceObjectDispute, domain.OrderStatusProcessing, "won", domain.EventStatusPaid, 10000)
	if got.Action != ActionCredit || got.CreditAmount != 10000 {
		t.Fatalf("won dispute must credit 10000, got %+v", got)
	}

	got = Decide(domain.ResourceObjectDispute, domain.OrderStatusProcessing, "lost", domain.EventStatusPaid, 10000)
	if got.Action != ActionNone {
		t.Fatalf("lost dispute decides nothing, got %s", got.Action)
	}

	got = Decide(domain.ResourceObjectRefund, domain.OrderStatusProcessing, "paid", domain.EventStatusPaid, 0)
	if got.Action != ActionNone {
		t.Fatalf("zero-amount refund must not credit, got %s", got.Action)
	}
}
