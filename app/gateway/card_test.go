package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func newCardTestClient(t *testing.T, handler http.Handler) *CardClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewCardClient(CardConfig{
		SecretKey:  "sk_test_123",
		SuccessURL: "https://www.example.com/booking/success",
		CancelURL:  "https://www.example.com/booking/cancelled",
		BaseURL:    server.URL,
	})
}

func TestCardAuthenticate(t *testing.T) {
	client := newCardTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/balance" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk_test_123" {
			t.Fatal("expected secret key as bearer token")
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"object": "balance"})
	}))

	token, err := client.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if token != "sk_test_123" {
		t.Fatalf("unexpected token: %s", token)
	}
}

func TestCardAuthenticateRejectedKey(t *testing.T) {
	client := newCardTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"invalid_request_error"}}`, http.StatusUnauthorized)
	}))

	_, err := client.Authenticate(context.Background())
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}

func TestCardSubmitCreatesCheckoutSession(t *testing.T) {
	client := newCardTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkout/sessions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("bad form body: %v", err)
		}
		if r.PostForm.Get("client_reference_id") != "bk-1" {
			t.Fatal("expected booking id as client reference")
		}
		if r.PostForm.Get("line_items[0][price_data][unit_amount]") != "300000" {
			t.Fatalf("expected amount in cents, got %s", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		}
		if r.PostForm.Get("line_items[0][price_data][currency]") != "usd" {
			t.Fatal("expected lowercase currency")
		}
		json.NewEncoder(w).Encode(map[string]string{
			"id":  "cs_test_1",
			"url": "https://checkout.example.com/cs_test_1",
		})
	}))

	result, err := client.Submit(context.Background(), "sk_test_123", &Order{
		MerchantReference: "bk-1",
		Amount:            decimal.RequireFromString("3000"),
		Currency:          "USD",
		Description:       "Tour booking bk-1",
		CustomerEmail:     "asha@example.com",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.TrackingID != "cs_test_1" {
		t.Fatalf("unexpected tracking id: %s", result.TrackingID)
	}
	if result.RedirectURL != "https://checkout.example.com/cs_test_1" {
		t.Fatalf("unexpected redirect url: %s", result.RedirectURL)
	}
}

func TestCardVerifyStatus(t *testing.T) {
	cases := []struct {
		name          string
		sessionStatus string
		paymentStatus string
		want          Status
	}{
		{"paid", "complete", "paid", StatusCompleted},
		{"zero amount", "complete", "no_payment_required", StatusCompleted},
		{"expired", "expired", "unpaid", StatusFailed},
		{"open", "open", "unpaid", StatusPending},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newCardTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/checkout/sessions/cs_test_1" {
					t.Fatalf("unexpected path: %s", r.URL.Path)
				}
				json.NewEncoder(w).Encode(map[string]interface{}{
					"status":         tc.sessionStatus,
					"payment_status": tc.paymentStatus,
					"amount_total":   300000,
				})
			}))

			status, err := client.VerifyStatus(context.Background(), "sk_test_123", "cs_test_1")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if status.Status != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, status.Status)
			}
			if !status.Amount.Equal(decimal.RequireFromString("3000")) {
				t.Fatalf("unexpected amount: %s", status.Amount.String())
			}
		})
	}
}
