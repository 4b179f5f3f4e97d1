package types

import (
	"encoding/json"
	"errors"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/entity"
)

const travelDateLayout = "2006-01-02"

type InitiateBookingRequest struct {
	TourID          uint64      `json:"tourId"`
	CustomerName    string      `json:"customerName"`
	CustomerEmail   string      `json:"customerEmail"`
	CustomerPhone   string      `json:"customerPhone"`
	Participants    int32       `json:"participants"`
	TravelDate      string      `json:"travelDate"`
	SpecialRequests string      `json:"specialRequests"`
	RateClass       string      `json:"rateClass"`
	PaymentMethod   string      `json:"paymentMethod"`
	DeclaredAmount  json.Number `json:"declaredAmount"`
	UserRef         string      `json:"userRef"`
}

func NewInitiateBookingRequestFromContext(ctx echo.Context) (*InitiateBookingRequest, error) {
	var body InitiateBookingRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.CustomerName = strings.TrimSpace(body.CustomerName)
	body.CustomerEmail = strings.ToLower(strings.TrimSpace(body.CustomerEmail))
	body.CustomerPhone = strings.TrimSpace(body.CustomerPhone)
	body.TravelDate = strings.TrimSpace(body.TravelDate)
	body.SpecialRequests = strings.TrimSpace(body.SpecialRequests)
	body.RateClass = strings.ToLower(strings.TrimSpace(body.RateClass))
	body.PaymentMethod = strings.ToLower(strings.TrimSpace(body.PaymentMethod))
	body.UserRef = strings.TrimSpace(body.UserRef)

	return &body, nil
}

func (r *InitiateBookingRequest) Validate() error {
	if r.TourID == 0 {
		return errors.New("tourId is required")
	}
	if r.CustomerName == "" {
		return errors.New("customerName is required")
	}
	if r.CustomerEmail == "" {
		return errors.New("customerEmail is required")
	}
	if _, err := mail.ParseAddress(r.CustomerEmail); err != nil {
		return errors.New("customerEmail is invalid")
	}
	if r.CustomerPhone == "" {
		return errors.New("customerPhone is required")
	}
	if r.Participants < 1 {
		return errors.New("participants must be >= 1")
	}
	switch entity.PaymentMethod(r.PaymentMethod) {
	case entity.PaymentMethodPesapal, entity.PaymentMethodMpesa, entity.PaymentMethodCard, entity.PaymentMethodBankTransfer:
	default:
		return errors.New("paymentMethod must be pesapal, mpesa, card, or bank_transfer")
	}
	if r.TravelDate != "" {
		if _, err := time.Parse(travelDateLayout, r.TravelDate); err != nil {
			return errors.New("travelDate must be formatted YYYY-MM-DD")
		}
	}
	if r.DeclaredAmount != "" {
		if _, err := decimal.NewFromString(r.DeclaredAmount.String()); err != nil {
			return errors.New("declaredAmount is not a valid amount")
		}
	}
	return nil
}

// DeclaredAmountDecimal returns the advisory client-declared amount, if any.
// Validate has already checked it parses.
func (r *InitiateBookingRequest) DeclaredAmountDecimal() (decimal.Decimal, bool) {
	if r.DeclaredAmount == "" {
		return decimal.Zero, false
	}
	amount, err := decimal.NewFromString(r.DeclaredAmount.String())
	if err != nil {
		return decimal.Zero, false
	}
	return amount, true
}

func (r *InitiateBookingRequest) TravelDateTime() *time.Time {
	if r.TravelDate == "" {
		return nil
	}
	parsed, err := time.Parse(travelDateLayout, r.TravelDate)
	if err != nil {
		return nil
	}
	return &parsed
}

// PesapalCallbackRequest covers both the browser redirect and the IPN
// notification; Pesapal sends the same three identifiers on each.
type PesapalCallbackRequest struct {
	OrderTrackingID        string
	OrderMerchantReference string
	OrderNotificationType  string
}

func NewPesapalCallbackRequestFromContext(ctx echo.Context) *PesapalCallbackRequest {
	return &PesapalCallbackRequest{
		OrderTrackingID:        strings.TrimSpace(ctx.QueryParam("OrderTrackingId")),
		OrderMerchantReference: strings.TrimSpace(ctx.QueryParam("OrderMerchantReference")),
		OrderNotificationType:  strings.TrimSpace(ctx.QueryParam("OrderNotificationType")),
	}
}

func (r *PesapalCallbackRequest) Validate() error {
	if r.OrderTrackingID == "" {
		return errors.New("OrderTrackingId is required")
	}
	if r.OrderMerchantReference == "" {
		return errors.New("OrderMerchantReference is required")
	}
	return nil
}

// MpesaCallbackRequest is the Daraja STK push result envelope.
type MpesaCallbackRequest struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []MpesaMetadataItem `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

type MpesaMetadataItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value"`
}

func NewMpesaCallbackRequestFromContext(ctx echo.Context) (*MpesaCallbackRequest, error) {
	var body MpesaCallbackRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	return &body, nil
}

func (r *MpesaCallbackRequest) Validate() error {
	if strings.TrimSpace(r.Body.StkCallback.CheckoutRequestID) == "" {
		return errors.New("CheckoutRequestID is required")
	}
	return nil
}

func (r *MpesaCallbackRequest) metadataValue(name string) (interface{}, bool) {
	for _, item := range r.Body.StkCallback.CallbackMetadata.Item {
		if item.Name == name {
			return item.Value, true
		}
	}
	return nil, false
}

func (r *MpesaCallbackRequest) Amount() (decimal.Decimal, bool) {
	raw, ok := r.metadataValue("Amount")
	if !ok {
		return decimal.Zero, false
	}
	switch v := raw.(type) {
	case float64:
		return decimal.NewFromFloat(v), true
	case string:
		amount, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, false
		}
		return amount, true
	case json.Number:
		amount, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero, false
		}
		return amount, true
	default:
		return decimal.Zero, false
	}
}

func (r *MpesaCallbackRequest) PhoneNumber() string {
	raw, ok := r.metadataValue("PhoneNumber")
	if !ok {
		return ""
	}
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatInt(int64(v), 10)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func (r *MpesaCallbackRequest) ReceiptNumber() string {
	raw, ok := r.metadataValue("MpesaReceiptNumber")
	if !ok {
		return ""
	}
	if s, ok := raw.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

type CardCallbackRequest struct {
	BookingID string `json:"bookingId"`
	SessionID string `json:"sessionId"`
}

func NewCardCallbackRequestFromContext(ctx echo.Context) (*CardCallbackRequest, error) {
	var body CardCallbackRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.BookingID = strings.TrimSpace(body.BookingID)
	body.SessionID = strings.TrimSpace(body.SessionID)
	return &body, nil
}

func (r *CardCallbackRequest) Validate() error {
	if r.BookingID == "" {
		return errors.New("bookingId is required")
	}
	if r.SessionID == "" {
		return errors.New("sessionId is required")
	}
	return nil
}

type ListBookingsRequest struct {
	PaymentStatus string
	BookingStatus string
	PaymentMethod string
	TourID        uint64
	Limit         int32
	Offset        int32
}

func NewListBookingsRequestFromContext(ctx echo.Context) (*ListBookingsRequest, error) {
	req := &ListBookingsRequest{
		PaymentStatus: strings.ToLower(strings.TrimSpace(ctx.QueryParam("payment_status"))),
		BookingStatus: strings.ToLower(strings.TrimSpace(ctx.QueryParam("booking_status"))),
		PaymentMethod: strings.ToLower(strings.TrimSpace(ctx.QueryParam("payment_method"))),
		Limit:         100,
		Offset:        0,
	}

	if tourRaw := strings.TrimSpace(ctx.QueryParam("tour_id")); tourRaw != "" {
		tourID, err := strconv.ParseUint(tourRaw, 10, 64)
		if err != nil {
			return nil, err
		}
		req.TourID = tourID
	}
	if limitRaw := strings.TrimSpace(ctx.QueryParam("limit")); limitRaw != "" {
		limit, err := strconv.ParseInt(limitRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Limit = int32(limit)
	}
	if offsetRaw := strings.TrimSpace(ctx.QueryParam("offset")); offsetRaw != "" {
		offset, err := strconv.ParseInt(offsetRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Offset = int32(offset)
	}

	return req, nil
}

func (r *ListBookingsRequest) Validate() error {
	if r.Limit <= 0 || r.Limit > 500 {
		return errors.New("limit must be between 1 and 500")
	}
	if r.Offset < 0 {
		return errors.New("offset must be >= 0")
	}
	return nil
}
