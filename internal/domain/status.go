/**
 * @description
 * Closed status enumerations for the reconciliation state machine.
 *
 * The order store keeps status as free text; this service treats it as the
 * closed set below and refuses to move an order backward. Provider event
 * statuses are likewise parsed into a closed set so unrecognized values are
 * logged and reported instead of silently falling through string comparisons.
 */

package domain

import "strings"

// OrderStatus is the order-side state machine:
// pending -> processing -> {complete, closed, canceled}.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusComplete   OrderStatus = "complete"
	OrderStatusClosed     OrderStatus = "closed"
	OrderStatusCanceled   OrderStatus = "canceled"
)

// Rank orders statuses along the forward-only axis. Terminal states share
// the highest rank; a transition is only legal toward an equal-or-higher
// rank, and equal-rank transitions are no-ops.
func (s OrderStatus) Rank() int {
	switch s {
	case OrderStatusPending:
		return 0
	case OrderStatusProcessing:
		return 1
	case OrderStatusComplete, OrderStatusClosed, OrderStatusCanceled:
		return 2
	default:
		// Unknown free-text statuses written by other actors are treated as
		// pending-equivalent so a paid event can still advance the order.
		return 0
	}
}

// Terminal reports whether no further transition is allowed out of s.
func (s OrderStatus) Terminal() bool {
	return s.Rank() >= 2
}

// ParseOrderStatus normalizes a stored status string into the closed set.
// Values outside the set are returned as-is so callers can log them.
func ParseOrderStatus(raw string) OrderStatus {
	return OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
}

// EventStatus is the provider-side lifecycle status carried on an event
// resource.
type EventStatus string

const (
	EventStatusCreated    EventStatus = "created"
	EventStatusProcessing EventStatus = "processing"
	EventStatusPosted     EventStatus = "posted"
	EventStatusPaid       EventStatus = "paid"
	EventStatusFailed     EventStatus = "failed"
	EventStatusCanceled   EventStatus = "canceled"
	EventStatusWon        EventStatus = "won"
	EventStatusLost       EventStatus = "lost"
	EventStatusUnknown    EventStatus = "unknown"
)

// ParseEventStatus maps a raw provider status string into the closed set.
// Anything unrecognized parses to EventStatusUnknown; the engine turns that
// into a structured "no action for status X" outcome rather than an error.
func ParseEventStatus(raw string) EventStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "created":
		return EventStatusCreated
	case "processing":
		return EventStatusProcessing
	case "posted":
		return EventStatusPosted
	case "paid":
		return EventStatusPaid
	case "failed":
		return EventStatusFailed
	case "canceled", "cancelled":
		return EventStatusCanceled
	case "won":
		return EventStatusWon
	case "lost":
		return EventStatusLost
	default:
		return EventStatusUnknown
	}
}

// PreSettlement reports whether the status describes a payment that has not
// settled yet. Such events are acknowledged without touching the order.
func (s EventStatus) PreSettlement() bool {
	return s == EventStatusCreated || s == EventStatusProcessing
}
