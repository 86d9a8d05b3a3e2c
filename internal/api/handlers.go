/**
 * @description
 * HTTP handlers for the reconciliation-service. The webhook handler maps
 * every engine outcome onto the response contract Payrail's delivery
 * machinery expects: 2xx stops redelivery, 4xx marks a rejected event, and
 * 5xx (including the internal sync endpoint's failures) triggers a retry on
 * the provider side.
 *
 * @dependencies
 * - net/http, encoding/json: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain: The reconciliation engine.
 * - pkg/payrailclient: Verification failure sentinel.
 */
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/orderflow/reconciliation-service/internal/app"
	"github.com/orderflow/reconciliation-service/internal/domain"
	"github.com/orderflow/reconciliation-service/pkg/payrailclient"
)

// WebhookHandlers holds the engine and the duplicate-delivery guard.
type WebhookHandlers struct {
	service *app.Service
	dedup   app.DedupGuard
}

func NewWebhookHandlers(service *app.Service, dedup app.DedupGuard) *WebhookHandlers {
	return &WebhookHandlers{service: service, dedup: dedup}
}

// webhookSuccessResponse is the acknowledgment body on the 2xx paths.
type webhookSuccessResponse struct {
	SuccessMessage string            `json:"success_message"`
	Order          *orderStateChange `json:"order,omitempty"`
}

type orderStateChange struct {
	NewState  string `json:"newState"`
	NewStatus string `json:"newStatus"`
}

// HandleWebhook is the POST target Payrail delivers lifecycle events to.
func (h *WebhookHandlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	var event domain.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.writeError(w, http.StatusBadRequest, "request body is not a valid event payload")
		return
	}
	if event.ID == "" {
		h.writeError(w, http.StatusBadRequest, "event id is required")
		return
	}

	if h.dedup != nil && h.dedup.AlreadyDelivered(r.Context(), event.ID) {
		log.Printf("level=info component=webhook_handler msg=\"duplicate delivery suppressed\" event_id=%s", event.ID)
		h.writeJSON(w, http.StatusOK, webhookSuccessResponse{SuccessMessage: "duplicate delivery acknowledged"})
		return
	}

	outcome, err := h.service.HandleEvent(r.Context(), &event)
	if err != nil {
		switch {
		case errors.Is(err, payrailclient.ErrVerificationFailed):
			log.Printf("level=warn component=webhook_handler msg=\"event verification failed\" event_id=%s err=%v", event.ID, err)
			h.writeError(w, http.StatusBadRequest, "event could not be verified with the payment provider")
		case errors.Is(err, app.ErrQuoteUnknown):
			log.Printf("level=warn component=webhook_handler msg=\"cart reference unresolved\" event_id=%s err=%v", event.ID, err)
			h.writeError(w, http.StatusNotFound, "no cart matches the event's quote reference")
		default:
			log.Printf("level=error component=webhook_handler msg=\"event processing failed\" event_id=%s err=%v", event.ID, err)
			h.writeError(w, http.StatusInternalServerError, "event processing failed")
		}
		return
	}

	// Marked only after the engine succeeded: a failed delivery leaves no
	// mark, so the provider's retry is processed rather than suppressed.
	if h.dedup != nil {
		h.dedup.MarkDelivered(r.Context(), event.ID)
	}

	response := webhookSuccessResponse{SuccessMessage: outcome.Message}
	if outcome.Kind == app.OutcomeOrderUpdated {
		response.Order = &orderStateChange{
			NewState:  string(outcome.NewStatus),
			NewStatus: string(outcome.NewStatus),
		}
	}
	h.writeJSON(w, http.StatusOK, response)
}

// quoteSyncRequest is the body of the internal resource-sync call.
type quoteSyncRequest struct {
	SourceType string `json:"source_type"`
	SourceID   string `json:"source_id"`
}

// HandleQuoteSync serves POST /internal/quotes/{id}: fetch the named
// provider resource and reconcile it against the quote's order. Any failure
// answers 500 so the caller's retry machinery re-attempts later.
func (h *WebhookHandlers) HandleQuoteSync(w http.ResponseWriter, r *http.Request) {
	cartRef := chi.URLParam(r, "id")
	if cartRef == "" {
		h.writeError(w, http.StatusBadRequest, "quote id is required")
		return
	}

	var req quoteSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "request body is not valid JSON")
		return
	}
	if req.SourceType == "" || req.SourceID == "" {
		h.writeError(w, http.StatusBadRequest, "source_type and source_id are required")
		return
	}

	outcome, err := h.service.HandleResourceSync(r.Context(), req.SourceType, req.SourceID, cartRef)
	if err != nil {
		log.Printf("level=error component=webhook_handler msg=\"quote sync failed\" quote_id=%s source_id=%s err=%v", cartRef, req.SourceID, err)
		h.writeError(w, http.StatusInternalServerError, "resource sync failed")
		return
	}

	response := webhookSuccessResponse{SuccessMessage: outcome.Message}
	if outcome.Kind == app.OutcomeOrderUpdated {
		response.Order = &orderStateChange{
			NewState:  string(outcome.NewStatus),
			NewStatus: string(outcome.NewStatus),
		}
	}
	h.writeJSON(w, http.StatusOK, response)
}

// writeJSON is a helper for writing JSON responses.
func (h *WebhookHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("level=error component=webhook_handler msg=\"response encode failed\" err=%v", err)
	}
}

func (h *WebhookHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error_message": message})
}
