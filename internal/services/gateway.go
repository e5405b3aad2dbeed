package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"guardian-api/internal/config"
	"guardian-api/pkg/logging"
)

// ErrGatewayUnavailable wraps every transport or gateway-side failure of the
// payment gateway. Finalize is not guaranteed idempotent from the client side,
// so callers do not retry it; the buyer re-attempts the purchase instead.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// Canonical gateway event types delivered on the asynchronous path.
const (
	EventSaleCompleted = "SALE_COMPLETED"
	EventSaleDenied    = "SALE_DENIED"
	EventSaleRefunded  = "SALE_REFUNDED"
	EventSaleReversed  = "SALE_REVERSED"
)

// GatewayEvent is one asynchronous notification from the payment gateway. It
// may arrive multiple times, out of order, or never.
type GatewayEvent struct {
	EventType        string          `json:"event_type"`
	GatewayReference string          `json:"gateway_reference"`
	Resource         json.RawMessage `json:"resource,omitempty"`
}

// PaymentRequest describes a payment to create at the gateway.
type PaymentRequest struct {
	ProductID   string
	ProductName string
	Description string
	Amount      float64
	Currency    string
	BuyerEmail  string
	ReturnURL   string
	CancelURL   string
}

// CreatedPayment is the gateway's answer to a create call: its own reference
// for the payment and the URL the buyer must approve it at.
type CreatedPayment struct {
	Reference   string
	ApprovalURL string
}

// PaymentGateway is the boundary contract with the external payment provider.
type PaymentGateway interface {
	CreatePayment(ctx context.Context, req PaymentRequest) (*CreatedPayment, error)
	Finalize(ctx context.Context, reference, approvalToken string) error
}

// PayPalGateway talks to the PayPal REST payments API.
type PayPalGateway struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewPayPalGateway builds a gateway client for the configured mode. All calls
// are bounded by cfg.GatewayTimeout.
func NewPayPalGateway(cfg *config.Config) *PayPalGateway {
	baseURL := "https://api.sandbox.paypal.com"
	if cfg.PayPalMode == "live" {
		baseURL = "https://api.paypal.com"
	}
	return &PayPalGateway{
		baseURL:      baseURL,
		clientID:     cfg.PayPalClientID,
		clientSecret: cfg.PayPalClientSecret,
		httpClient: &http.Client{
			Timeout: cfg.GatewayTimeout,
		},
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (g *PayPalGateway) token(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.accessToken != "" && time.Now().Before(g.tokenExpiry) {
		return g.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(g.clientID, g.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token request failed: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token request returned status %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("%w: failed to decode token response: %v", ErrGatewayUnavailable, err)
	}
	g.accessToken = tok.AccessToken
	// Refresh a minute early.
	g.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn-60) * time.Second)
	return g.accessToken, nil
}

type paypalPayment struct {
	ID    string `json:"id"`
	State string `json:"state"`
	Links []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

// CreatePayment creates a sale-intent payment and returns the gateway
// reference plus the buyer approval URL.
func (g *PayPalGateway) CreatePayment(ctx context.Context, req PaymentRequest) (*CreatedPayment, error) {
	token, err := g.token(ctx)
	if err != nil {
		return nil, err
	}

	amount := fmt.Sprintf("%.2f", req.Amount)
	metadata, _ := json.Marshal(map[string]string{
		"email":      req.BuyerEmail,
		"product_id": req.ProductID,
	})
	body := map[string]interface{}{
		"intent": "sale",
		"payer":  map[string]string{"payment_method": "paypal"},
		"redirect_urls": map[string]string{
			"return_url": req.ReturnURL,
			"cancel_url": req.CancelURL,
		},
		"transactions": []map[string]interface{}{{
			"item_list": map[string]interface{}{
				"items": []map[string]interface{}{{
					"name":     req.ProductName,
					"sku":      req.ProductID,
					"price":    amount,
					"currency": req.Currency,
					"quantity": 1,
				}},
			},
			"amount": map[string]string{
				"total":    amount,
				"currency": req.Currency,
			},
			"description": req.Description,
			"custom":      string(metadata),
		}},
	}

	var created paypalPayment
	if err := g.post(ctx, "/v1/payments/payment", token, body, &created); err != nil {
		return nil, err
	}

	out := &CreatedPayment{Reference: created.ID}
	for _, link := range created.Links {
		if link.Rel == "approval_url" {
			out.ApprovalURL = link.Href
			break
		}
	}
	if out.Reference == "" || out.ApprovalURL == "" {
		return nil, fmt.Errorf("%w: create response missing id or approval url", ErrGatewayUnavailable)
	}
	logging.Infof("Gateway payment created: %s", out.Reference)
	return out, nil
}

// Finalize executes an approved payment. The approval token is the payer id
// the gateway hands back on the return URL.
func (g *PayPalGateway) Finalize(ctx context.Context, reference, approvalToken string) error {
	token, err := g.token(ctx)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/v1/payments/payment/%s/execute", reference)
	body := map[string]string{"payer_id": approvalToken}
	var executed paypalPayment
	if err := g.post(ctx, path, token, body, &executed); err != nil {
		return err
	}
	if executed.State != "approved" {
		return fmt.Errorf("%w: payment %s in state %q after execute", ErrGatewayUnavailable, reference, executed.State)
	}
	return nil
}

func (g *PayPalGateway) post(ctx context.Context, path, token string, body, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s returned status %d: %s", ErrGatewayUnavailable, path, resp.StatusCode, string(raw))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
