package types

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type InitiateBookingResponse struct {
	Success           bool   `json:"success"`
	BookingID         string `json:"bookingId"`
	RedirectURL       string `json:"redirectUrl,omitempty"`
	ProviderRequestID string `json:"providerRequestId,omitempty"`
	Instructions      string `json:"instructions,omitempty"`
	Error             string `json:"error,omitempty"`
}

type Booking struct {
	ID                string `json:"id"`
	TourID            uint64 `json:"tourId"`
	UserRef           string `json:"userRef,omitempty"`
	CustomerName      string `json:"customerName"`
	CustomerEmail     string `json:"customerEmail"`
	CustomerPhone     string `json:"customerPhone"`
	Participants      int32  `json:"participants"`
	TravelDate        string `json:"travelDate,omitempty"`
	SpecialRequests   string `json:"specialRequests,omitempty"`
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
	RateClass         string `json:"rateClass"`
	PaymentMethod     string `json:"paymentMethod"`
	PaymentStatus     string `json:"paymentStatus"`
	BookingStatus     string `json:"bookingStatus"`
	GatewayTrackingID string `json:"gatewayTrackingId,omitempty"`
	CreatedAt         string `json:"createdAt"`
	UpdatedAt         string `json:"updatedAt"`
}

type BookingEnvelopeResponse struct {
	Booking *Booking `json:"booking"`
}

type ListBookingsResponse struct {
	Bookings []*Booking `json:"bookings"`
}

// MpesaAckResponse is the acknowledgment shape Daraja expects; anything else
// triggers delivery retries.
type MpesaAckResponse struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// PesapalIPNAckResponse echoes the notification identifiers back; Pesapal
// keeps re-sending the IPN until it sees this envelope with status 200.
type PesapalIPNAckResponse struct {
	OrderNotificationType  string `json:"orderNotificationType"`
	OrderTrackingID        string `json:"orderTrackingId"`
	OrderMerchantReference string `json:"orderMerchantReference"`
	Status                 int    `json:"status"`
}
