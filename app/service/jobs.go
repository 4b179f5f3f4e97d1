package service

import (
	"context"
	"strings"
	"time"

	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/entity"
	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/gateway"
)

// RunReconcileBatch re-verifies stale pending bookings directly with their
// gateway. This is the recovery path for submission timeouts: the provider may
// have accepted the order even though the initiation request never saw the
// response, and re-verification by tracking id resolves the true outcome
// without re-submitting.
func (s *BookingService) RunReconcileBatch(ctx context.Context) error {
	now := time.Now().UTC()
	before := now.Add(-s.paymentsCfg.ReconcileStaleAfter)
	items, err := s.bookingRepo.ListStalePending(ctx, before, s.batchSize())
	if err != nil {
		return err
	}

	// One token per provider covers the whole batch.
	tokens := make(map[entity.PaymentMethod]string)

	var firstErr error
	for _, booking := range items {
		if booking == nil || booking.GatewayTrackingID == nil || strings.TrimSpace(*booking.GatewayTrackingID) == "" {
			continue
		}
		if booking.PaymentMethod == entity.PaymentMethodBankTransfer {
			continue
		}

		client, err := s.gateways.Get(booking.PaymentMethod)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		token, ok := tokens[booking.PaymentMethod]
		if !ok {
			token, err = client.Authenticate(ctx)
			if err != nil {
				firstErr = keepFirstErr(firstErr, err)
				continue
			}
			tokens[booking.PaymentMethod] = token
		}

		trackingID := strings.TrimSpace(*booking.GatewayTrackingID)
		status, err := client.VerifyStatus(ctx, token, trackingID)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		if err := s.applyVerifiedStatus(ctx, booking, status.Status); err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		if status.Status == gateway.StatusCompleted || status.Status == gateway.StatusFailed {
			rawPayload := optionalString(status.RawPayload)
			s.recordTransaction(ctx, booking, string(booking.PaymentMethod), trackingID, status.ProviderStatus, rawPayload)
		}
	}

	return firstErr
}

// RunExpirePendingBatch cancels bookings that have sat pending past the
// configured timeout without any terminal outcome.
func (s *BookingService) RunExpirePendingBatch(ctx context.Context) error {
	now := time.Now().UTC()
	cutoff := now.Add(-s.paymentsCfg.PendingTimeout)
	items, err := s.bookingRepo.ListExpiredPending(ctx, cutoff, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, booking := range items {
		if booking == nil {
			continue
		}

		applied, err := s.bookingRepo.MarkCancelled(ctx, booking.ID, now)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		if applied {
			s.logger.WithField("booking_id", booking.ID).Info("expired pending booking cancelled")
		}
	}

	return firstErr
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
