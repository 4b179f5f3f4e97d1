package mapper

import (
	"time"

	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/entity"
	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/types"
)

func BookingToResponse(item *entity.Booking) *types.Booking {
	if item == nil {
		return nil
	}

	return &types.Booking{
		ID:                item.ID,
		TourID:            item.TourID,
		UserRef:           derefString(item.UserRef),
		CustomerName:      item.CustomerName,
		CustomerEmail:     item.CustomerEmail,
		CustomerPhone:     item.CustomerPhone,
		Participants:      item.Participants,
		TravelDate:        formatDate(item.TravelDate),
		SpecialRequests:   derefString(item.SpecialRequests),
		Amount:            item.Amount.String(),
		Currency:          item.Currency,
		RateClass:         string(item.RateClass),
		PaymentMethod:     string(item.PaymentMethod),
		PaymentStatus:     string(item.PaymentStatus),
		BookingStatus:     string(item.BookingStatus),
		GatewayTrackingID: derefString(item.GatewayTrackingID),
		CreatedAt:         item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func BookingsToResponse(items []*entity.Booking) []*types.Booking {
	result := make([]*types.Booking, 0, len(items))
	for _, item := range items {
		result = append(result, BookingToResponse(item))
	}
	return result
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatDate(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.Format("2006-01-02")
}
