package nowpayments

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestVerifyIPNSignature(t *testing.T) {
	client := NewClient("https://example.invalid", "key", "ipn-secret")
	body := []byte(`{"payment_id":123,"payment_status":"finished","order_id":"abc"}`)

	mac := hmac.New(sha512.New, []byte("ipn-secret"))
	mac.Write(body)
	valid := hex.EncodeToString(mac.Sum(nil))

	if !client.VerifyIPNSignature(body, valid) {
		t.Fatal("expected a correctly signed payload to verify")
	}
	if client.VerifyIPNSignature(body, "deadbeef") {
		t.Fatal("expected a wrong signature to fail")
	}
	if client.VerifyIPNSignature(body, "") {
		t.Fatal("expected an empty signature to fail when a secret is set")
	}
	if client.VerifyIPNSignature([]byte(`{"payment_id":999}`), valid) {
		t.Fatal("expected a signature over different bytes to fail")
	}

	// Sandbox setups run without an IPN secret
	sandbox := NewClient("https://example.invalid", "key", "")
	if !sandbox.VerifyIPNSignature(body, "") {
		t.Fatal("expected verification to be skipped without a secret")
	}
}

func TestCreateInvoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/invoice" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("expected api key header, got %q", got)
		}

		var req InvoiceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.OrderID != "order-1" {
			t.Errorf("expected order id order-1, got %q", req.OrderID)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":             "inv-1",
			"invoice_url":    "https://pay.example/inv-1",
			"pay_address":    "addr",
			"pay_amount":     "0.015",
			"pay_currency":   "btc",
			"price_amount":   "100",
			"price_currency": "usd",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", "")
	invoice, err := client.CreateInvoice(context.Background(), InvoiceRequest{
		PriceAmount:   100,
		PriceCurrency: "usd",
		OrderID:       "order-1",
	})
	if err != nil {
		t.Fatalf("create invoice failed: %v", err)
	}

	if invoice.ID != "inv-1" {
		t.Fatalf("expected invoice id inv-1, got %q", invoice.ID)
	}
	if invoice.PayAmount != 0.015 {
		t.Fatalf("expected pay amount 0.015, got %v", invoice.PayAmount)
	}
}

func TestCreateInvoiceAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"invalid api key"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "bad-key", "")
	if _, err := client.CreateInvoice(context.Background(), InvoiceRequest{OrderID: "x"}); err == nil {
		t.Fatal("expected an error on a non-2xx response")
	}
}
