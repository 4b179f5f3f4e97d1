package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

type PaymentMethod string

const (
	PaymentMethodPesapal      PaymentMethod = "pesapal"
	PaymentMethodMpesa        PaymentMethod = "mpesa"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

// Booking is the durable record of one purchase intent. Its ID doubles as the
// merchant reference handed to payment gateways, which is the only correlation
// key available when asynchronous notifications come back.
type Booking struct {
	ID string

	TourID  uint64
	UserRef *string

	CustomerName  string
	CustomerEmail string
	CustomerPhone string

	Participants    int32
	TravelDate      *time.Time
	SpecialRequests *string

	Amount    decimal.Decimal
	Currency  string
	RateClass RateClass

	PaymentMethod PaymentMethod
	PaymentStatus PaymentStatus
	BookingStatus BookingStatus

	GatewayTrackingID *string
	MpesaCheckoutID   *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
