/**
 * @description
 * The state transition engine. Given the order's current status and a
 * verified provider event, Decide produces the action to take: advance the
 * order and fire capture side effects, close or cancel it, issue a
 * compensating credit, or do nothing. Decisions are pure; the orchestrator
 * applies them.
 *
 * @notes
 * - Transitions are forward-only. A redelivered or out-of-order event whose
 *   implied status does not outrank the current one decides to a no-op, which
 *   is what makes the engine safe under arbitrary redelivery.
 * - Capture fires only when the event status matches the configured
 *   "update order on" threshold (default "paid").
 */

package app

import (
	"fmt"

	"github.com/orderflow/reconciliation-service/internal/domain"
)

// Action names what the engine decided to do with an event.
type Action string

const (
	// ActionNone acknowledges the event without touching the order.
	ActionNone Action = "none"
	// ActionCapture advances the order to processing and fires the capture
	// side effects (transaction record, invoice, adjustment fold).
	ActionCapture Action = "capture"
	// ActionClose moves the order to closed after a failed payment.
	ActionClose Action = "close"
	// ActionCancel moves the order to canceled.
	ActionCancel Action = "cancel"
	// ActionCredit issues a compensating credit for a refund or won dispute.
	ActionCredit Action = "credit"
)

// Decision is the transition engine's verdict for one event.
type Decision struct {
	Action     Action
	NextStatus domain.OrderStatus // meaningful for capture/close/cancel
	// CreditAmount is the compensating credit to issue, in cents.
	CreditAmount int64
	// Note is the human-readable summary surfaced in the webhook response.
	Note string
}

func noAction(format string, args ...interface{}) Decision {
	return Decision{Action: ActionNone, Note: fmt.Sprintf(format, args...)}
}

// Decide implements the transition table. object is the event resource type
// (payment, refund, dispute); current is the order's status; rawStatus is
// the provider status as received, kept raw so unrecognized values surface
// verbatim in the outcome; threshold is the configured capture status;
// amount is the resource amount used for credits.
func Decide(object string, current domain.OrderStatus, rawStatus string, threshold domain.EventStatus, amount int64) Decision {
	status := domain.ParseEventStatus(rawStatus)
	switch object {
	case domain.ResourceObjectPayment:
		return decidePayment(current, status, threshold, rawStatus)
	case domain.ResourceObjectRefund:
		return decideRefund(status, amount, rawStatus)
	case domain.ResourceObjectDispute:
		return decideDispute(status, amount, rawStatus)
	default:
		return noAction("no action for resource type %s", object)
	}
}

func decidePayment(current domain.OrderStatus, status, threshold domain.EventStatus, rawStatus string) Decision {
	if status.PreSettlement() {
		return noAction("acknowledged pre-settlement status %s", status)
	}

	if status == threshold {
		// Redelivery or a stale event for an order that already advanced.
		if current.Rank() >= domain.OrderStatusProcessing.Rank() {
			return noAction("order already %s; no further action", current)
		}
		return Decision{
			Action:     ActionCapture,
			NextStatus: domain.OrderStatusProcessing,
			Note:       "event verified, order status changed",
		}
	}

	switch status {
	case domain.EventStatusFailed:
		if current.Terminal() {
			return noAction("order already %s; no further action", current)
		}
		return Decision{Action: ActionClose, NextStatus: domain.OrderStatusClosed, Note: "payment failed, order closed"}
	case domain.EventStatusCanceled:
		if current.Terminal() {
			return noAction("order already %s; no further action", current)
		}
		return Decision{Action: ActionCancel, NextStatus: domain.OrderStatusCanceled, Note: "payment canceled, order canceled"}
	default:
		return noAction("no action for status %s", rawStatus)
	}
}

func decideRefund(status domain.EventStatus, amount int64, rawStatus string) Decision {
	switch status {
	case domain.EventStatusPaid:
		if amount <= 0 {
			return noAction("refund paid with no amount; no credit issued")
		}
		return Decision{Action: ActionCredit, CreditAmount: amount, Note: "refund processed, credit memo created"}
	case domain.EventStatusPosted:
		return noAction("no action for posted refund")
	default:
		return noAction("no action for status %s", rawStatus)
	}
}

func decideDispute(status domain.EventStatus, amount int64, rawStatus string) Decision {
	switch status {
	case domain.EventStatusWon:
		if amount <= 0 {
			return noAction("dispute won with no amount; no credit issued")
		}
		return Decision{Action: ActionCredit, CreditAmount: amount, Note: "dispute won, credit memo created"}
	case domain.EventStatusLost:
		return noAction("no action for lost dispute")
	default:
		return noAction("no action for status %s", rawStatus)
	}
}
