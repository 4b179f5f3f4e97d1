package types

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func bindInitiateRequest(t *testing.T, body string) (*InitiateBookingRequest, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/bookings/initiate", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return NewInitiateBookingRequestFromContext(e.NewContext(req, rec))
}

func TestInitiateBookingRequestNormalizesFields(t *testing.T) {
	body := `{"tourId":7,"customerName":"  Asha Mwangi ","customerEmail":" ASHA@Example.COM ","customerPhone":" 254700111222 ","participants":2,"rateClass":" Resident ","paymentMethod":" MPESA ","declaredAmount":3000}`

	req, err := bindInitiateRequest(t, body)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if req.CustomerName != "Asha Mwangi" {
		t.Errorf("name not trimmed: %q", req.CustomerName)
	}
	if req.CustomerEmail != "asha@example.com" {
		t.Errorf("email not normalized: %q", req.CustomerEmail)
	}
	if req.RateClass != "resident" || req.PaymentMethod != "mpesa" {
		t.Errorf("class/method not lowercased: %q %q", req.RateClass, req.PaymentMethod)
	}
	if err := req.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}

func TestInitiateBookingRequestValidate(t *testing.T) {
	valid := func() *InitiateBookingRequest {
		return &InitiateBookingRequest{
			TourID:        7,
			CustomerName:  "Asha Mwangi",
			CustomerEmail: "asha@example.com",
			CustomerPhone: "254700111222",
			Participants:  2,
			RateClass:     "resident",
			PaymentMethod: "mpesa",
		}
	}

	cases := []struct {
		name   string
		mutate func(*InitiateBookingRequest)
		ok     bool
	}{
		{"valid", func(r *InitiateBookingRequest) {}, true},
		{"missing tour", func(r *InitiateBookingRequest) { r.TourID = 0 }, false},
		{"missing name", func(r *InitiateBookingRequest) { r.CustomerName = "" }, false},
		{"bad email", func(r *InitiateBookingRequest) { r.CustomerEmail = "not-an-email" }, false},
		{"zero participants", func(r *InitiateBookingRequest) { r.Participants = 0 }, false},
		{"negative participants", func(r *InitiateBookingRequest) { r.Participants = -3 }, false},
		{"unknown method", func(r *InitiateBookingRequest) { r.PaymentMethod = "cheque" }, false},
		{"valid travel date", func(r *InitiateBookingRequest) { r.TravelDate = "2026-11-02" }, true},
		{"bad travel date", func(r *InitiateBookingRequest) { r.TravelDate = "02/11/2026" }, false},
		{"bad declared amount", func(r *InitiateBookingRequest) { r.DeclaredAmount = json.Number("3,000") }, false},
		{"unknown rate class passes through", func(r *InitiateBookingRequest) { r.RateClass = "diplomat" }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid()
			tc.mutate(req)
			err := req.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}

func TestMpesaCallbackMetadataExtraction(t *testing.T) {
	body := `{"Body":{"stkCallback":{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_123","ResultCode":0,"ResultDesc":"ok","CallbackMetadata":{"Item":[{"Name":"Amount","Value":3000.0},{"Name":"MpesaReceiptNumber","Value":"QHX12ABC34"},{"Name":"TransactionDate","Value":20260315103000},{"Name":"PhoneNumber","Value":254700111222}]}}}}`

	var req MpesaCallbackRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if err := req.Validate(); err != nil {
		t.Fatalf("expected valid callback, got %v", err)
	}

	amount, ok := req.Amount()
	if !ok || amount.String() != "3000" {
		t.Fatalf("unexpected amount: %s ok=%v", amount.String(), ok)
	}
	if req.PhoneNumber() != "254700111222" {
		t.Fatalf("unexpected phone: %s", req.PhoneNumber())
	}
	if req.ReceiptNumber() != "QHX12ABC34" {
		t.Fatalf("unexpected receipt: %s", req.ReceiptNumber())
	}
}

func TestMpesaCallbackWithoutMetadata(t *testing.T) {
	body := `{"Body":{"stkCallback":{"MerchantRequestID":"m-2","CheckoutRequestID":"ws_CO_456","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`

	var req MpesaCallbackRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if err := req.Validate(); err != nil {
		t.Fatalf("expected valid callback, got %v", err)
	}

	if _, ok := req.Amount(); ok {
		t.Fatal("expected no amount on a failure callback")
	}
	if req.PhoneNumber() != "" {
		t.Fatal("expected no phone on a failure callback")
	}
}

func TestListBookingsRequestValidate(t *testing.T) {
	req := &ListBookingsRequest{Limit: 100}
	if err := req.Validate(); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}

	req.Limit = 0
	if err := req.Validate(); err == nil {
		t.Fatal("expected an error for zero limit")
	}

	req.Limit = 501
	if err := req.Validate(); err == nil {
		t.Fatal("expected an error for an oversized limit")
	}

	req.Limit = 100
	req.Offset = -1
	if err := req.Validate(); err == nil {
		t.Fatal("expected an error for a negative offset")
	}
}
