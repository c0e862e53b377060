package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ErrGateway wraps any failure talking to the gateway.  The caller surfaces
// it as a generic retryable failure; a ticket whose session could not be
// opened stays PENDING and a fresh session can be opened against it.
var ErrGateway = errors.New("payment gateway request failed")

// ClientConfig carries the gateway connection settings.
type ClientConfig struct {
	BaseURL       string // gateway API base URL
	APIKey        string // bearer credential for API calls
	HMACKey       string // pre-shared key used to sign request bodies
	WebhookSecret string // pre-shared secret for webhook signatures
}

// Client is a thin HTTP wrapper over the gateway's checkout API.  Every
// request body is signed with HMAC-SHA256 so the gateway can authenticate
// the caller beyond the bearer key.
type Client struct {
	baseURL string
	apiKey  string
	hmacKey string
	hc      *http.Client
}

// NewClient builds a gateway client from the given config.
func NewClient(cfg ClientConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		hmacKey: cfg.HMACKey,
		hc:      &http.Client{Timeout: 10 * time.Second},
	}
}

// SessionParams describes the checkout session to open for a ticket.
// Amount is in minor currency units and already multiplied by the seat
// count.  Metadata travels to the gateway and comes back on the
// checkout-completed webhook; the processor relies on ticket_id being
// present there.
type SessionParams struct {
	TicketID    uint64
	UserID      uint64 // 0 for anonymous holders
	Description string
	AmountCents uint64
	Currency    string
	CustomerID  string // gateway customer; empty for anonymous holders
	SuccessURL  string
	CancelURL   string
}

// Session is the gateway's answer to CreateSession.  The caller persists
// the id on the ticket and redirects the holder to RedirectURL.
type Session struct {
	ID          string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

func (c *Client) post(ctx context.Context, path string, reqBody any, out any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("%w: marshal request: %v", ErrGateway, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrGateway, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Signed-Hash", hmacHex(body, []byte(c.hmacKey)))

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%w: unexpected status %d", ErrGateway, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrGateway, err)
	}
	return nil
}

// CreateSession opens a checkout session for a one-time ticket payment.
func (c *Client) CreateSession(ctx context.Context, p SessionParams) (*Session, error) {
	metadata := map[string]string{
		"ticket_id": strconv.FormatUint(p.TicketID, 10),
	}
	if p.UserID != 0 {
		metadata["user_id"] = strconv.FormatUint(p.UserID, 10)
	}
	reqBody := map[string]any{
		"mode":        "payment",
		"description": p.Description,
		"amount":      p.AmountCents,
		"currency":    p.Currency,
		"customer_id": p.CustomerID,
		"success_url": p.SuccessURL,
		"cancel_url":  p.CancelURL,
		"metadata":    metadata,
	}
	var s Session
	if err := c.post(ctx, "/v1/checkout/sessions", reqBody, &s); err != nil {
		return nil, err
	}
	if s.ID == "" || s.RedirectURL == "" {
		return nil, fmt.Errorf("%w: incomplete session in response", ErrGateway)
	}
	return &s, nil
}

// CreateCustomer registers a gateway customer for an authenticated user and
// returns the gateway's customer id.  Called once per user, on their first
// paid checkout.
func (c *Client) CreateCustomer(ctx context.Context, email string, userID uint64) (string, error) {
	reqBody := map[string]any{
		"email":    email,
		"metadata": map[string]string{"user_id": strconv.FormatUint(userID, 10)},
	}
	var out struct {
		CustomerID string `json:"customer_id"`
	}
	if err := c.post(ctx, "/v1/customers", reqBody, &out); err != nil {
		return "", err
	}
	if out.CustomerID == "" {
		return "", fmt.Errorf("%w: empty customer id in response", ErrGateway)
	}
	return out.CustomerID, nil
}
