/**
 * @description
 * This package provides a client for interacting with the Payrail payment
 * provider API. It encapsulates the client-credentials OAuth exchange, the
 * event verification round-trip, and resource fetches for payments, refunds,
 * and disputes.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package payrailclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Sandbox and production hosts, selected by configuration.
const (
	SandboxBaseURL    = "https://api.payrail.co/v3"
	ProductionBaseURL = "https://api.payrail.com/v3"
)

// ErrVerificationFailed marks an event the provider would not vouch for.
// Any transport failure, non-2xx status, or error-carrying response body is
// wrapped into this sentinel so callers can map it to a 400-class response.
var ErrVerificationFailed = errors.New("event verification failed")

// Client is a client for the Payrail API.
type Client struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	CustomerID   string
	HTTPClient   *http.Client
}

// NewClient creates a new Payrail API client. A non-empty baseURLOverride
// wins over the sandbox flag.
func NewClient(clientID, clientSecret, customerID string, useSandbox bool, baseURLOverride string) *Client {
	baseURL := ProductionBaseURL
	if useSandbox {
		baseURL = SandboxBaseURL
	}
	if baseURLOverride != "" {
		baseURL = baseURLOverride
	}
	return &Client{
		BaseURL:      baseURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		CustomerID:   customerID,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// tokenResponse is the body returned by the OAuth token endpoint.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	Error       string `json:"error,omitempty"`
}

// Resource is the payment/refund/dispute object fetched from the provider.
type Resource struct {
	ID                 string `json:"id"`
	Object             string `json:"object"`
	Status             string `json:"status"`
	Amount             int64  `json:"amount"`
	SettlementAmount   int64  `json:"settlementAmount"`
	SettlementCurrency string `json:"settlementCurrency"`
	PayerID            string `json:"payerId"`
	Error              string `json:"error,omitempty"`
}

// resourceEndpoints maps the sourceType values carried on events to the
// provider's collection endpoints.
var resourceEndpoints = map[string]string{
	"Payment": "payments",
	"Refund":  "refunds",
	"Dispute": "disputes",
}

// FetchAccessToken performs the client-credentials exchange. Tokens are not
// cached; each verification pays the extra round trip.
func (c *Client) FetchAccessToken(ctx context.Context) (string, error) {
	credentials := map[string]string{
		"grant_type":    "client_credentials",
		"scope":         "auth",
		"client_id":     c.ClientID,
		"client_secret": c.ClientSecret,
	}
	body, err := json.Marshal(credentials)
	if err != nil {
		return "", fmt.Errorf("failed to marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/oauth/token", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute token request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("level=warn component=payrail_client op=token status=%d msg=\"non-2xx response\"", resp.StatusCode)
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(bodyBytes, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.Error != "" {
		return "", fmt.Errorf("token endpoint error: %s", tokenResp.Error)
	}
	if tokenResp.AccessToken == "" {
		return "", errors.New("token endpoint returned empty access token")
	}
	return tokenResp.AccessToken, nil
}

// VerifyEvent asks the provider to vouch for an inbound event. The payload
// must already be restricted to the allow-listed event fields; this method
// does not filter it further.
func (c *Client) VerifyEvent(ctx context.Context, eventID string, payload interface{}) error {
	token, err := c.FetchAccessToken(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: marshal verify payload: %v", ErrVerificationFailed, err)
	}

	url := fmt.Sprintf("%s/events/%s/verify", c.BaseURL, eventID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("%w: create verify request: %v", ErrVerificationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("x-customer-id", c.CustomerID)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read verify response: %v", ErrVerificationFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("level=warn component=payrail_client op=verify event_id=%s status=%d msg=\"non-200 response\"", eventID, resp.StatusCode)
		return fmt.Errorf("%w: verify endpoint returned status %d", ErrVerificationFailed, resp.StatusCode)
	}

	var verifyResp struct {
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(bodyBytes, &verifyResp); err != nil {
		return fmt.Errorf("%w: decode verify response: %v", ErrVerificationFailed, err)
	}
	if verifyResp.Error != "" {
		log.Printf("level=warn component=payrail_client op=verify event_id=%s msg=\"provider rejected event\" err=%q", eventID, verifyResp.Error)
		return fmt.Errorf("%w: %s", ErrVerificationFailed, verifyResp.Error)
	}
	return nil
}

// FetchResource retrieves the authoritative payment/refund/dispute object
// from the provider. sourceType must be one of Payment, Refund, Dispute.
func (c *Client) FetchResource(ctx context.Context, sourceType, sourceID string) (*Resource, error) {
	endpoint, ok := resourceEndpoints[sourceType]
	if !ok {
		return nil, fmt.Errorf("unknown resource type: %s", sourceType)
	}

	token, err := c.FetchAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s/%s", c.BaseURL, endpoint, sourceID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("x-customer-id", c.CustomerID)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute resource request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read resource response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("level=warn component=payrail_client op=fetch_resource type=%s id=%s status=%d msg=\"non-2xx response\"", sourceType, sourceID, resp.StatusCode)
		return nil, fmt.Errorf("resource endpoint returned status %d", resp.StatusCode)
	}

	var resource Resource
	if err := json.Unmarshal(bodyBytes, &resource); err != nil {
		return nil, fmt.Errorf("failed to decode resource response: %w", err)
	}
	if resource.Error != "" {
		return nil, fmt.Errorf("provider error fetching %s %s: %s", sourceType, sourceID, resource.Error)
	}
	return &resource, nil
}
