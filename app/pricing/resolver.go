package pricing

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/entity"
)

var ErrTourNotFound = errors.New("tour not found or inactive")

const (
	CurrencyLocal      = "KES"
	CurrencySettlement = "USD"
)

// amountTolerance bounds the drift allowed between a client-declared amount
// and the authoritative total. It is used only for that comparison; persisted
// amounts are always the authoritative ones.
var amountTolerance = decimal.NewFromFloat(0.01)

type tourRepository interface {
	FindActiveByID(ctx context.Context, id uint64) (*entity.Tour, error)
}

type Quote struct {
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
	Currency  string
	RateClass entity.RateClass
}

// Resolver computes the authoritative price of a booking from the tour record.
// Client-declared amounts are advisory only and never feed into a Quote.
type Resolver struct {
	tours tourRepository
}

func NewResolver(tours tourRepository) *Resolver {
	return &Resolver{tours: tours}
}

// Resolve prices participants of the given rate class on a tour. Unknown rate
// classes deliberately fall back to the non-resident (highest) tier instead of
// failing; InvalidRateClass rejections would let a malformed request book at
// an unintended price on retry.
func (r *Resolver) Resolve(ctx context.Context, tourID uint64, class entity.RateClass, participants int32) (*Quote, error) {
	tour, err := r.tours.FindActiveByID(ctx, tourID)
	if err != nil {
		return nil, err
	}
	if tour == nil {
		return nil, ErrTourNotFound
	}

	normalized := normalizeRateClass(class)
	unit := tour.UnitPrice(normalized)

	return &Quote{
		UnitPrice: unit,
		Total:     unit.Mul(decimal.NewFromInt32(participants)),
		Currency:  CurrencyFor(normalized),
		RateClass: normalized,
	}, nil
}

// CurrencyFor derives the settlement currency from the rate class. Citizens
// pay in the local currency; every other class pays the USD-equivalent rate.
// This holds regardless of which gateway carries the payment.
func CurrencyFor(class entity.RateClass) string {
	if class == entity.RateClassCitizen {
		return CurrencyLocal
	}
	return CurrencySettlement
}

// WithinTolerance reports whether a client-declared amount matches the
// authoritative total closely enough to proceed.
func WithinTolerance(declared, authoritative decimal.Decimal) bool {
	return declared.Sub(authoritative).Abs().LessThanOrEqual(amountTolerance)
}

func normalizeRateClass(class entity.RateClass) entity.RateClass {
	switch class {
	case entity.RateClassCitizen, entity.RateClassResident, entity.RateClassNonResident:
		return class
	default:
		return entity.RateClassNonResident
	}
}
