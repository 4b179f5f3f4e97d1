package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/entity"
)

const (
	mpesaSandboxBaseURL = "https://sandbox.safaricom.co.ke"
	mpesaLiveBaseURL    = "https://api.safaricom.co.ke"

	mpesaTimestampLayout = "20060102150405"
)

type MpesaConfig struct {
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	Live           bool
	CallbackURL    string
	BaseURL        string
	HTTPTimeout    time.Duration
}

type MpesaClient struct {
	cfg    MpesaConfig
	client *http.Client
	now    func() time.Time
}

func NewMpesaClient(cfg MpesaConfig) *MpesaClient {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		if cfg.Live {
			cfg.BaseURL = mpesaLiveBaseURL
		} else {
			cfg.BaseURL = mpesaSandboxBaseURL
		}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &MpesaClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

func (m *MpesaClient) Method() entity.PaymentMethod {
	return entity.PaymentMethodMpesa
}

// The STK result callback is Safaricom's own server-to-server push with
// itemized receipt metadata; field extraction is allowed without a second
// verification round-trip.
func (m *MpesaClient) RequiresServerVerification() bool {
	return false
}

func (m *MpesaClient) Authenticate(ctx context.Context) (string, error) {
	if strings.TrimSpace(m.cfg.ConsumerKey) == "" || strings.TrimSpace(m.cfg.ConsumerSecret) == "" {
		return "", fmt.Errorf("%w: mpesa credentials are not configured", ErrAuth)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(m.cfg.ConsumerKey, m.cfg.ConsumerSecret)

	resp, err := m.client.Do(req)
	if err != nil {
		return "", wrapTransportErr(ErrAuth, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: status=%d body=%s", ErrAuth, resp.StatusCode, string(body))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return "", fmt.Errorf("%w: empty access token in response", ErrAuth)
	}

	return payload.AccessToken, nil
}

// Submit fires an STK push at the customer's phone. The booking id travels as
// the AccountReference so the result callback can be correlated back.
func (m *MpesaClient) Submit(ctx context.Context, token string, order *Order) (*SubmitResult, error) {
	timestamp := m.now().Format(mpesaTimestampLayout)

	request := map[string]interface{}{
		"BusinessShortCode": m.cfg.ShortCode,
		"Password":          stkPassword(m.cfg.ShortCode, m.cfg.Passkey, timestamp),
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            json.Number(order.Amount.Round(0).String()),
		"PartyA":            order.CustomerPhone,
		"PartyB":            m.cfg.ShortCode,
		"PhoneNumber":       order.CustomerPhone,
		"CallBackURL":       m.cfg.CallbackURL,
		"AccountReference":  order.MerchantReference,
		"TransactionDesc":   order.Description,
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	respBody, err := m.postJSON(ctx, "/mpesa/stkpush/v1/processrequest", token, body)
	if err != nil {
		return nil, err
	}

	var payload struct {
		CheckoutRequestID string `json:"CheckoutRequestID"`
		MerchantRequestID string `json:"MerchantRequestID"`
		ResponseCode      string `json:"ResponseCode"`
		ResponseDesc      string `json:"ResponseDescription"`
	}
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	if payload.ResponseCode != "0" {
		return nil, fmt.Errorf("%w: code=%s desc=%s", ErrDeclined, payload.ResponseCode, payload.ResponseDesc)
	}
	if strings.TrimSpace(payload.CheckoutRequestID) == "" {
		return nil, fmt.Errorf("%w: no checkout request id in response", ErrSubmission)
	}

	return &SubmitResult{
		TrackingID:        payload.CheckoutRequestID,
		ProviderRequestID: payload.CheckoutRequestID,
	}, nil
}

func (m *MpesaClient) VerifyStatus(ctx context.Context, token, trackingID string) (*StatusResult, error) {
	timestamp := m.now().Format(mpesaTimestampLayout)

	request := map[string]interface{}{
		"BusinessShortCode": m.cfg.ShortCode,
		"Password":          stkPassword(m.cfg.ShortCode, m.cfg.Passkey, timestamp),
		"Timestamp":         timestamp,
		"CheckoutRequestID": trackingID,
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	respBody, err := m.postJSON(ctx, "/mpesa/stkpushquery/v1/query", token, body)
	if err != nil {
		return nil, err
	}

	var payload struct {
		ResultCode string `json:"ResultCode"`
		ResultDesc string `json:"ResultDesc"`
	}
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, err
	}

	result := &StatusResult{
		ProviderStatus: payload.ResultCode,
		Amount:         decimal.Zero,
		PaymentMethod:  string(entity.PaymentMethodMpesa),
		RawPayload:     string(respBody),
	}

	switch payload.ResultCode {
	case "0":
		result.Status = StatusCompleted
	case "":
		result.Status = StatusPending
	default:
		result.Status = StatusFailed
	}

	return result, nil
}

func (m *MpesaClient) postJSON(ctx context.Context, path, token string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, wrapTransportErr(ErrSubmission, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: path=%s status=%d body=%s", ErrSubmission, path, resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

func stkPassword(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}
