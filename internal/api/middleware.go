/**
 * @description
 * Authorization middleware for the reconciliation-service's internal
 * endpoints. The webhook endpoint itself carries no auth: its security model
 * is the verify-before-trust round trip with the provider.
 */
package api

import "net/http"

// InternalAuthMiddleware validates the shared API key on server-to-server
// calls. An empty configured key disables the check, which is only
// acceptable in local development.
func InternalAuthMiddleware(requiredKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requiredKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get("X-Internal-API-Key")
			if provided == "" || provided != requiredKey {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
