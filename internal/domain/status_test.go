package domain

import "testing"

func TestOrderStatusRank(t *testing.T) {
	cases := []struct {
		status OrderStatus
		rank   int
	}{
		{OrderStatusPending, 0},
		{OrderStatusProcessing, 1},
		{OrderStatusComplete, 2},
		{OrderStatusClosed, 2},
		{OrderStatusCanceled, 2},
		{OrderStatus("holded"), 0}, // free-text status from another actor
	}
	for _, tc := range cases {
		if got := tc.status.Rank(); got != tc.rank {
			t.Errorf("Rank(%q) = %d, want %d", tc.status, got, tc.rank)
		}
	}

	if OrderStatusProcessing.Terminal() {
		t.Error("processing must not be terminal")
	}
	if !OrderStatusClosed.Terminal() {
		t.Error("closed must be terminal")
	}
}

func TestParseEventStatus(t *testing.T) {
	cases := map[string]EventStatus{
		"paid":      EventStatusPaid,
		"  Paid  ":  EventStatusPaid,
		"POSTED":    EventStatusPosted,
		"cancelled": EventStatusCanceled,
		"canceled":  EventStatusCanceled,
		"settled":   EventStatusUnknown,
		"":          EventStatusUnknown,
	}
	for raw, want := range cases {
		if got := ParseEventStatus(raw); got != want {
			t.Errorf("ParseEventStatus(%q) = %s, want %s", raw, got, want)
		}
	}

	if !EventStatusCreated.PreSettlement() || !EventStatusProcessing.PreSettlement() {
		t.Error("created and processing are pre-settlement")
	}
	if EventStatusPaid.PreSettlement() {
		t.Error("paid is not pre-settlement")
	}
}
