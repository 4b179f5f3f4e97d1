package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/entity"
	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/factory"
)

const (
	pesapalSandboxBaseURL = "https://cybqa.pesapal.com/pesapalv3"
	pesapalLiveBaseURL    = "https://pay.pesapal.com/v3"
)

type PesapalConfig struct {
	ConsumerKey    string
	ConsumerSecret string
	Live           bool
	CallbackURL    string
	// IPNID skips the RegisterIPN round-trip when already provisioned.
	IPNID       string
	BaseURL     string
	HTTPTimeout time.Duration
}

type PesapalClient struct {
	cfg    PesapalConfig
	client *http.Client
	logger logrus.FieldLogger
}

func NewPesapalClient(cfg PesapalConfig) *PesapalClient {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		if cfg.Live {
			cfg.BaseURL = pesapalLiveBaseURL
		} else {
			cfg.BaseURL = pesapalSandboxBaseURL
		}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &PesapalClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: factory.NewModuleLogger("gateway-pesapal"),
	}
}

func (p *PesapalClient) Method() entity.PaymentMethod {
	return entity.PaymentMethodPesapal
}

// Pesapal IPN notifications carry only correlation ids and can be replayed by
// anyone who knows them; the reconciler must re-verify with the API.
func (p *PesapalClient) RequiresServerVerification() bool {
	return true
}

func (p *PesapalClient) Authenticate(ctx context.Context) (string, error) {
	if strings.TrimSpace(p.cfg.ConsumerKey) == "" || strings.TrimSpace(p.cfg.ConsumerSecret) == "" {
		return "", fmt.Errorf("%w: pesapal credentials are not configured", ErrAuth)
	}

	body, err := json.Marshal(map[string]string{
		"consumer_key":    p.cfg.ConsumerKey,
		"consumer_secret": p.cfg.ConsumerSecret,
	})
	if err != nil {
		return "", err
	}

	respBody, err := p.postJSON(ctx, "/api/Auth/RequestToken", "", body)
	if err != nil {
		return "", wrapTransportErr(ErrAuth, err)
	}

	var payload struct {
		Token string `json:"token"`
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}
	if payload.Error != nil && payload.Error.Code != "" {
		return "", fmt.Errorf("%w: %s: %s", ErrAuth, payload.Error.Code, payload.Error.Message)
	}
	if strings.TrimSpace(payload.Token) == "" {
		return "", fmt.Errorf("%w: empty token in response", ErrAuth)
	}

	return payload.Token, nil
}

func (p *PesapalClient) Submit(ctx context.Context, token string, order *Order) (*SubmitResult, error) {
	ipnID := p.ensureIPN(ctx, token)

	request := map[string]interface{}{
		"id":              order.MerchantReference,
		"currency":        order.Currency,
		"amount":          json.Number(order.Amount.String()),
		"description":     order.Description,
		"callback_url":    order.CallbackURL,
		"notification_id": ipnID,
		"billing_address": map[string]string{
			"email_address": order.CustomerEmail,
			"phone_number":  order.CustomerPhone,
			"first_name":    firstName(order.CustomerName),
			"last_name":     lastName(order.CustomerName),
		},
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	respBody, err := p.postJSON(ctx, "/api/Transactions/SubmitOrderRequest", token, body)
	if err != nil {
		return nil, wrapTransportErr(ErrSubmission, err)
	}

	var payload struct {
		OrderTrackingID string `json:"order_tracking_id"`
		RedirectURL     string `json:"redirect_url"`
		Status          string `json:"status"`
		Error           *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	if payload.Error != nil && payload.Error.Code != "" {
		return nil, fmt.Errorf("%w: %s: %s", ErrSubmission, payload.Error.Code, payload.Error.Message)
	}
	if strings.TrimSpace(payload.OrderTrackingID) == "" {
		return nil, fmt.Errorf("%w: no order tracking id in response", ErrSubmission)
	}

	return &SubmitResult{
		TrackingID:  payload.OrderTrackingID,
		RedirectURL: payload.RedirectURL,
	}, nil
}

func (p *PesapalClient) VerifyStatus(ctx context.Context, token, trackingID string) (*StatusResult, error) {
	endpoint := p.cfg.BaseURL + "/api/Transactions/GetTransactionStatus?orderTrackingId=" + url.QueryEscape(trackingID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, wrapTransportErr(ErrSubmission, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: status=%d body=%s", ErrSubmission, resp.StatusCode, string(respBody))
	}

	var payload struct {
		PaymentStatusDescription string      `json:"payment_status_description"`
		Amount                   json.Number `json:"amount"`
		PaymentMethod            string      `json:"payment_method"`
	}
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, err
	}

	amount := decimal.Zero
	if payload.Amount != "" {
		if parsed, err := decimal.NewFromString(payload.Amount.String()); err == nil {
			amount = parsed
		}
	}

	return &StatusResult{
		Status:         mapPesapalStatus(payload.PaymentStatusDescription),
		ProviderStatus: payload.PaymentStatusDescription,
		Amount:         amount,
		PaymentMethod:  payload.PaymentMethod,
		RawPayload:     string(respBody),
	}, nil
}

// ensureIPN registers the IPN callback URL unless one is pre-provisioned.
// Registration is an optional capability: a failure is logged and submission
// proceeds without it.
func (p *PesapalClient) ensureIPN(ctx context.Context, token string) string {
	if strings.TrimSpace(p.cfg.IPNID) != "" {
		return p.cfg.IPNID
	}
	if strings.TrimSpace(p.cfg.CallbackURL) == "" {
		return ""
	}

	body, err := json.Marshal(map[string]string{
		"url":                   p.cfg.CallbackURL,
		"ipn_notification_type": "POST",
	})
	if err != nil {
		return ""
	}

	respBody, err := p.postJSON(ctx, "/api/URLSetup/RegisterIPN", token, body)
	if err != nil {
		p.logger.WithError(err).Warn("IPN registration failed, submitting order without notification id")
		return ""
	}

	var payload struct {
		IPNID string `json:"ipn_id"`
	}
	if err := json.Unmarshal(respBody, &payload); err != nil {
		p.logger.WithError(err).Warn("IPN registration response could not be parsed")
		return ""
	}

	return payload.IPNID
}

func (p *PesapalClient) postJSON(ctx context.Context, path, token string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("pesapal request failed: path=%s status=%d body=%s", path, resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

func mapPesapalStatus(description string) Status {
	switch strings.ToUpper(strings.TrimSpace(description)) {
	case "COMPLETED":
		return StatusCompleted
	case "FAILED", "INVALID", "REVERSED":
		return StatusFailed
	default:
		return StatusPending
	}
}

func firstName(full string) string {
	parts := strings.Fields(strings.TrimSpace(full))
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

func lastName(full string) string {
	parts := strings.Fields(strings.TrimSpace(full))
	if len(parts) < 2 {
		return ""
	}
	return strings.Join(parts[1:], " ")
}
