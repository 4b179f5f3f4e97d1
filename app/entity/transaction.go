package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentTransaction is the audit record of one gateway order attempt, keyed
// by the provider-assigned tracking id. The raw gateway payload is kept for
// forensic replay; these rows are best-effort and never a correctness
// dependency.
type PaymentTransaction struct {
	ID uint64

	BookingID         string
	Provider          string
	TrackingID        string
	MerchantReference string

	Amount   decimal.Decimal
	Currency string

	ProviderStatus string
	RawPayload     *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
