package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// RateClass is the pricing tier a customer qualifies for. It selects both the
// unit price and the settlement currency.
type RateClass string

const (
	RateClassCitizen     RateClass = "citizen"
	RateClassResident    RateClass = "resident"
	RateClassNonResident RateClass = "nonresident"
)

type Tour struct {
	ID     uint64
	Title  string
	Active bool

	PriceCitizen     decimal.Decimal
	PriceResident    decimal.Decimal
	PriceNonResident decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

// UnitPrice returns the price for the given rate class. Classes outside the
// three known tiers price at the non-resident tier; conservative fallback
// rather than a rejection.
func (t *Tour) UnitPrice(class RateClass) decimal.Decimal {
	switch class {
	case RateClassCitizen:
		return t.PriceCitizen
	case RateClassResident:
		return t.PriceResident
	default:
		return t.PriceNonResident
	}
}
