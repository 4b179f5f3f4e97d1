package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/entity"
)

const cardLiveBaseURL = "https://api.stripe.com"

type CardConfig struct {
	SecretKey   string
	SuccessURL  string
	CancelURL   string
	BaseURL     string
	HTTPTimeout time.Duration
}

// CardClient drives a hosted card checkout. The customer is redirected to the
// processor's page; completion comes back through the redirect callback and is
// always re-verified server-to-server.
type CardClient struct {
	cfg    CardConfig
	client *http.Client
}

func NewCardClient(cfg CardConfig) *CardClient {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = cardLiveBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &CardClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *CardClient) Method() entity.PaymentMethod {
	return entity.PaymentMethodCard
}

func (c *CardClient) RequiresServerVerification() bool {
	return true
}

// Authenticate confirms the configured secret key against the account
// endpoint. The key itself is the bearer credential for subsequent calls.
func (c *CardClient) Authenticate(ctx context.Context) (string, error) {
	if strings.TrimSpace(c.cfg.SecretKey) == "" {
		return "", fmt.Errorf("%w: card secret key is not configured", ErrAuth)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v1/balance", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", wrapTransportErr(ErrAuth, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", fmt.Errorf("%w: secret key rejected with status=%d", ErrAuth, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: status=%d body=%s", ErrAuth, resp.StatusCode, string(body))
	}

	return c.cfg.SecretKey, nil
}

func (c *CardClient) Submit(ctx context.Context, token string, order *Order) (*SubmitResult, error) {
	values := url.Values{}
	values.Set("mode", "payment")
	values.Set("line_items[0][quantity]", "1")
	values.Set("line_items[0][price_data][currency]", strings.ToLower(order.Currency))
	values.Set("line_items[0][price_data][unit_amount]", order.Amount.Mul(decimal.NewFromInt(100)).Round(0).String())
	values.Set("line_items[0][price_data][product_data][name]", order.Description)
	values.Set("client_reference_id", order.MerchantReference)
	values.Set("customer_email", order.CustomerEmail)
	values.Set("success_url", c.cfg.SuccessURL)
	values.Set("cancel_url", c.cfg.CancelURL)
	values.Set("metadata[booking_id]", order.MerchantReference)

	body, err := c.postForm(ctx, token, "/v1/checkout/sessions", values)
	if err != nil {
		return nil, err
	}

	var payload struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	if strings.TrimSpace(payload.ID) == "" {
		return nil, fmt.Errorf("%w: no session id in response", ErrSubmission)
	}

	return &SubmitResult{
		TrackingID:  payload.ID,
		RedirectURL: payload.URL,
	}, nil
}

func (c *CardClient) VerifyStatus(ctx context.Context, token, trackingID string) (*StatusResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v1/checkout/sessions/"+url.PathEscape(trackingID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, wrapTransportErr(ErrSubmission, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: status=%d body=%s", ErrSubmission, resp.StatusCode, string(body))
	}

	var payload struct {
		Status        string `json:"status"`
		PaymentStatus string `json:"payment_status"`
		AmountTotal   int64  `json:"amount_total"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	result := &StatusResult{
		ProviderStatus: payload.PaymentStatus,
		Amount:         decimal.NewFromInt(payload.AmountTotal).Div(decimal.NewFromInt(100)),
		PaymentMethod:  string(entity.PaymentMethodCard),
		RawPayload:     string(body),
	}

	switch {
	case payload.PaymentStatus == "paid" || payload.PaymentStatus == "no_payment_required":
		result.Status = StatusCompleted
	case payload.Status == "expired":
		result.Status = StatusFailed
	default:
		result.Status = StatusPending
	}

	return result, nil
}

func (c *CardClient) postForm(ctx context.Context, token, path string, values url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, wrapTransportErr(ErrSubmission, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: path=%s status=%d body=%s", ErrSubmission, path, resp.StatusCode, string(body))
	}

	return body, nil
}
