package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/entity"
	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/gateway"
	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/types"
)

// ReconcilePesapalCallback handles both the browser redirect and the IPN for a
// Pesapal order. The notification body is never trusted: the status is always
// re-verified against the Pesapal API before any state change.
func (s *BookingService) ReconcilePesapalCallback(ctx context.Context, req *types.PesapalCallbackRequest) (*entity.Booking, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return s.reconcileVerified(ctx, entity.PaymentMethodPesapal, req.OrderMerchantReference, req.OrderTrackingID)
}

// ReconcileCardCallback completes a hosted card checkout after the customer
// returns from the processor's page. Like Pesapal, the session status is
// looked up server-to-server.
func (s *BookingService) ReconcileCardCallback(ctx context.Context, req *types.CardCallbackRequest) (*entity.Booking, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return s.reconcileVerified(ctx, entity.PaymentMethodCard, req.BookingID, req.SessionID)
}

func (s *BookingService) reconcileVerified(ctx context.Context, method entity.PaymentMethod, bookingID, trackingID string) (*entity.Booking, error) {
	booking, err := s.bookingRepo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if booking == nil {
		return nil, ErrCallbackUnmatched
	}
	if booking.PaymentMethod != method {
		return nil, fmt.Errorf("%w: booking %s was not made via %s", ErrCallbackUnmatched, bookingID, method)
	}
	// The callback names both ids; only the tracking id persisted at
	// initiation is acceptable. Verifying a caller-chosen transaction would
	// confirm this booking against someone else's payment.
	if booking.GatewayTrackingID == nil || *booking.GatewayTrackingID != trackingID {
		s.logger.WithFields(logrus.Fields{
			"booking_id":  bookingID,
			"tracking_id": trackingID,
		}).Warn("callback tracking id does not match booking")
		return nil, fmt.Errorf("%w: tracking id does not belong to booking %s", ErrCallbackUnmatched, bookingID)
	}

	client, err := s.gateways.Get(method)
	if err != nil {
		return nil, ErrMethodUnsupported
	}
	if !client.RequiresServerVerification() {
		return nil, fmt.Errorf("%w: %s callbacks are not verified through this path", ErrValidation, method)
	}

	token, err := client.Authenticate(ctx)
	if err != nil {
		return nil, classifyGatewayErr(err, ErrGatewayAuth)
	}
	status, err := client.VerifyStatus(ctx, token, trackingID)
	if err != nil {
		return nil, classifyGatewayErr(err, ErrGatewaySubmission)
	}
	if status.Status == gateway.StatusCompleted && status.Amount.IsPositive() && !status.Amount.Equal(booking.Amount) {
		s.logger.WithFields(logrus.Fields{
			"booking_id":      bookingID,
			"tracking_id":     trackingID,
			"verified_amount": status.Amount.String(),
			"booking_amount":  booking.Amount.String(),
		}).Warn("verified amount does not match booking amount")
		return nil, fmt.Errorf("%w: verified amount does not match booking %s", ErrCallbackUnmatched, bookingID)
	}

	if err := s.applyVerifiedStatus(ctx, booking, status.Status); err != nil {
		return nil, err
	}

	rawPayload := optionalString(status.RawPayload)
	s.recordTransaction(ctx, booking, string(method), trackingID, status.ProviderStatus, rawPayload)

	return s.GetBooking(ctx, bookingID)
}

// ReconcileMpesaCallback processes Safaricom's STK push result. The payload is
// Safaricom's own signed server push, so the result code and receipt fields
// are extracted directly. Correlation prefers the checkout request id stored
// at initiation; success callbacks without a match fall back to phone number
// plus amount, scoped to pending bookings.
func (s *BookingService) ReconcileMpesaCallback(ctx context.Context, req *types.MpesaCallbackRequest) (*entity.Booking, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	stk := req.Body.StkCallback
	booking, err := s.bookingRepo.FindByMpesaCheckoutID(ctx, stk.CheckoutRequestID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if booking == nil && stk.ResultCode == 0 {
		booking, err = s.correlateMpesaByPhone(ctx, req)
		if err != nil {
			return nil, err
		}
	}
	if booking == nil {
		return nil, ErrCallbackUnmatched
	}

	verdict := gateway.StatusFailed
	if stk.ResultCode == 0 {
		verdict = gateway.StatusCompleted
	}
	if err := s.applyVerifiedStatus(ctx, booking, verdict); err != nil {
		return nil, err
	}

	rawBody, _ := json.Marshal(req)
	raw := string(rawBody)
	s.recordTransaction(ctx, booking, string(entity.PaymentMethodMpesa), stk.CheckoutRequestID, fmt.Sprintf("result_code=%d", stk.ResultCode), &raw)

	return s.GetBooking(ctx, booking.ID)
}

func (s *BookingService) correlateMpesaByPhone(ctx context.Context, req *types.MpesaCallbackRequest) (*entity.Booking, error) {
	phone := req.PhoneNumber()
	amount, hasAmount := req.Amount()
	if phone == "" || !hasAmount {
		return nil, ErrCallbackUnmatched
	}

	candidates, err := s.bookingRepo.FindPendingByPhoneAmount(ctx, phone, amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if len(candidates) == 0 {
		return nil, ErrCallbackUnmatched
	}
	if len(candidates) > 1 {
		// Phone plus amount still matched more than one pending booking.
		// Last-pending-wins is the best available guarantee; flag it for
		// manual review.
		s.logger.WithFields(logrus.Fields{
			"phone":      phone,
			"amount":     amount.String(),
			"candidates": len(candidates),
			"chosen":     candidates[0].ID,
		}).Warn("ambiguous mpesa callback correlation, newest pending booking chosen")
	}

	return candidates[0], nil
}

// applyVerifiedStatus performs the terminal transition. The repository guards
// the update on the booking still being pending, so a duplicate notification
// for an already-settled booking is a logged no-op, never a second apply.
func (s *BookingService) applyVerifiedStatus(ctx context.Context, booking *entity.Booking, status gateway.Status) error {
	now := time.Now().UTC()

	switch status {
	case gateway.StatusCompleted:
		applied, err := s.bookingRepo.MarkPaidConfirmed(ctx, booking.ID, now)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		if !applied {
			s.logger.WithField("booking_id", booking.ID).Info("duplicate success notification ignored")
		}
	case gateway.StatusFailed:
		applied, err := s.bookingRepo.MarkFailed(ctx, booking.ID, now)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		if !applied {
			s.logger.WithField("booking_id", booking.ID).Info("duplicate failure notification ignored")
		}
	case gateway.StatusPending:
		// Not a terminal outcome; leave the booking open for a later
		// callback or the reconcile job.
	}

	return nil
}
