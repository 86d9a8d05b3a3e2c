/**
 * @description
 * This file sets up the HTTP router for the reconciliation-service. It
 * defines the public webhook endpoint, the internal resource-sync endpoint,
 * and the health check, and applies the standard middleware stack.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ReconciliationRoutes creates and returns the router for the service.
func ReconciliationRoutes(h *WebhookHandlers, internalAPIKey string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Provider-facing webhook. Authenticated by event verification, not by
	// request credentials.
	r.Post("/webhooks/payrail", h.HandleWebhook)

	// Internal server-to-server endpoints.
	r.Group(func(r chi.Router) {
		r.Use(InternalAuthMiddleware(internalAPIKey))
		r.Post("/internal/quotes/{id}", h.HandleQuoteSync)
	})

	return r
}
