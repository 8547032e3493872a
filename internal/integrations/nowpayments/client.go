/**
 * @description
 * HTTP Client for the NOWPayments API.
 * Creates invoices for shop orders and verifies IPN webhook signatures.
 * Docs: https://documenter.getpostman.com/view/7907941/S1a32n38
 *
 * @dependencies
 * - net/http
 * - encoding/json
 * - crypto/hmac, crypto/sha512: IPN signature verification
 * - backend/internal/config
 */

package nowpayments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultTimeout = 10 * time.Second
)

type Client struct {
	BaseURL    string
	APIKey     string
	IPNSecret  string
	HTTPClient *http.Client
}

func NewClient(baseURL, apiKey, ipnSecret string) *Client {
	return &Client{
		BaseURL:   baseURL,
		APIKey:    apiKey,
		IPNSecret: ipnSecret,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// Configured reports whether the gateway credentials are present
func (c *Client) Configured() bool {
	return c.APIKey != ""
}

// InvoiceRequest is the invoice creation payload
type InvoiceRequest struct {
	PriceAmount      float64 `json:"price_amount"`
	PriceCurrency    string  `json:"price_currency"`
	PayCurrency      string  `json:"pay_currency,omitempty"`
	IPNCallbackURL   string  `json:"ipn_callback_url,omitempty"`
	OrderID          string  `json:"order_id"`
	OrderDescription string  `json:"order_description,omitempty"`
	SuccessURL       string  `json:"success_url,omitempty"`
	CancelURL        string  `json:"cancel_url,omitempty"`
}

// InvoiceResponse is the gateway's invoice record
type InvoiceResponse struct {
	ID            string  `json:"id"`
	InvoiceURL    string  `json:"invoice_url"`
	PayAddress    string  `json:"pay_address"`
	PayAmount     float64 `json:"pay_amount,string"`
	PayCurrency   string  `json:"pay_currency"`
	PriceAmount   float64 `json:"price_amount,string"`
	PriceCurrency string  `json:"price_currency"`
}

// IPNPayload is the webhook callback body
type IPNPayload struct {
	PaymentID       json.Number `json:"payment_id"`
	PaymentStatus   string      `json:"payment_status"`
	OrderID         string      `json:"order_id"`
	ActuallyPaid    float64     `json:"actually_paid"`
	OutcomeAmount   float64     `json:"outcome_amount"`
	OutcomeCurrency string      `json:"outcome_currency"`
}

// CreateInvoice creates a hosted payment invoice
func (c *Client) CreateInvoice(ctx context.Context, req InvoiceRequest) (*InvoiceResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/invoice", c.BaseURL), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.APIKey)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errText, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("nowpayments api error: status %d: %s", resp.StatusCode, string(errText))
	}

	var invoice InvoiceResponse
	if err := json.NewDecoder(resp.Body).Decode(&invoice); err != nil {
		return nil, fmt.Errorf("decode invoice response: %w", err)
	}
	return &invoice, nil
}

// VerifyIPNSignature checks the x-nowpayments-sig header against the raw body.
// With no IPN secret configured, verification is skipped (matches gateway docs
// for sandbox setups).
func (c *Client) VerifyIPNSignature(rawBody []byte, signature string) bool {
	if c.IPNSecret == "" {
		return true
	}
	if signature == "" {
		return false
	}

	mac := hmac.New(sha512.New, []byte(c.IPNSecret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
