// Package payment integrates the mobile money gateway: initiating the
// STK push for a hold and resolving asynchronous gateway callbacks
// into booking confirmations.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// checkoutTimeout bounds the outbound gateway call so a slow provider
// cannot stall the USSD response past the carrier's deadline.
const checkoutTimeout = 10 * time.Second

// CheckoutRequest is the mobile checkout payload sent to the gateway.
type CheckoutRequest struct {
	Username     string            `json:"username"`
	ProductName  string            `json:"productName"`
	PhoneNumber  string            `json:"phoneNumber"`
	CurrencyCode string            `json:"currencyCode"`
	Amount       float64           `json:"amount"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// CheckoutResponse is the gateway's synchronous acknowledgement.  The
// actual charge outcome arrives later on the callback webhook.
type CheckoutResponse struct {
	Status          string `json:"status"` // "PendingConfirmation" on success
	Description     string `json:"description"`
	TransactionID   string `json:"transactionId"`
	ProviderChannel string `json:"providerChannel"`
}

// Accepted reports whether the gateway queued the STK push.
func (r *CheckoutResponse) Accepted() bool { return r.Status == "PendingConfirmation" }

// Gateway abstracts the mobile money provider so the service and
// tests do not depend on the HTTP client.
type Gateway interface {
	MobileCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, []byte, error)
}

// HTTPGateway is the production Gateway backed by the Africa's Talking
// payments REST API.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPGateway builds a gateway client.  baseURL is the provider
// root, e.g. https://payments.africastalking.com for production or the
// sandbox host in test environments.
func NewHTTPGateway(baseURL, apiKey string) *HTTPGateway {
	return &HTTPGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: checkoutTimeout},
	}
}

// MobileCheckout POSTs the checkout request and returns the decoded
// response along with the raw body, which callers persist for audit.
func (g *HTTPGateway) MobileCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, []byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, nil, fmt.Errorf("encode checkout request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/mobile/checkout/request", bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("build checkout request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("apiKey", g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, nil, fmt.Errorf("checkout request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, fmt.Errorf("read checkout response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, raw, fmt.Errorf("checkout rejected: http %d", resp.StatusCode)
	}
	var out CheckoutResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, raw, fmt.Errorf("decode checkout response: %w", err)
	}
	return &out, raw, nil
}
