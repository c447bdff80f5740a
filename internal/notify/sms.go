package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ATSmsSender sends texts through the Africa's Talking bulk SMS API.
// It satisfies the queue consumer's Sender interface.
type ATSmsSender struct {
	baseURL  string
	apiKey   string
	username string
	client   *http.Client
}

// NewATSmsSender builds the production SMS sender. baseURL is the API
// root, e.g. https://api.africastalking.com.
func NewATSmsSender(baseURL, apiKey, username string) *ATSmsSender {
	return &ATSmsSender{
		baseURL:  baseURL,
		apiKey:   apiKey,
		username: username,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts one message to the messaging endpoint. The API reports
// per-recipient status in the response body; anything other than a 2xx
// is treated as a delivery failure.
func (s *ATSmsSender) Send(ctx context.Context, phone, message string) error {
	form := url.Values{}
	form.Set("username", s.username)
	form.Set("to", phone)
	form.Set("message", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/version1/messaging", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apiKey", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sms rejected: http %d", resp.StatusCode)
	}
	return nil
}
