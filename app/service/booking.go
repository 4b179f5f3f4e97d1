package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/entity"
	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/factory"
	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/gateway"
	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/pricing"
	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/repository"
	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/types"
	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/config"
)

const defaultBatchSize = int32(100)

type bookingRepository interface {
	Create(ctx context.Context, booking *entity.Booking) error
	FindByID(ctx context.Context, id string) (*entity.Booking, error)
	FindByMpesaCheckoutID(ctx context.Context, checkoutID string) (*entity.Booking, error)
	FindPendingByPhoneAmount(ctx context.Context, phone string, amount decimal.Decimal) ([]*entity.Booking, error)
	SetGatewayTracking(ctx context.Context, id, trackingID string, now time.Time) error
	SetMpesaCheckout(ctx context.Context, id, checkoutID string, now time.Time) error
	MarkPaidConfirmed(ctx context.Context, id string, now time.Time) (bool, error)
	MarkFailed(ctx context.Context, id string, now time.Time) (bool, error)
	MarkCancelled(ctx context.Context, id string, now time.Time) (bool, error)
	ListStalePending(ctx context.Context, before time.Time, limit int32) ([]*entity.Booking, error)
	ListExpiredPending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Booking, error)
	List(ctx context.Context, filter repository.BookingFilter) ([]*entity.Booking, error)
}

type transactionRepository interface {
	UpsertByTrackingID(ctx context.Context, tx *entity.PaymentTransaction) error
	FindByTrackingID(ctx context.Context, trackingID string) (*entity.PaymentTransaction, error)
}

type priceResolver interface {
	Resolve(ctx context.Context, tourID uint64, class entity.RateClass, participants int32) (*pricing.Quote, error)
}

type InitiationResult struct {
	Booking           *entity.Booking
	RedirectURL       string
	ProviderRequestID string
	Instructions      string
}

// BookingService owns the booking lifecycle: it is the only writer of new
// bookings, and together with the reconcilers the only mutator of payment and
// booking status.
type BookingService struct {
	bookingRepo bookingRepository
	txRepo      transactionRepository
	resolver    priceResolver
	gateways    *gateway.Registry
	paymentsCfg config.PaymentsConfig
	logger      logrus.FieldLogger
}

func NewBookingService(
	bookingRepo bookingRepository,
	txRepo transactionRepository,
	resolver priceResolver,
	gateways *gateway.Registry,
	paymentsCfg config.PaymentsConfig,
) *BookingService {
	return &BookingService{
		bookingRepo: bookingRepo,
		txRepo:      txRepo,
		resolver:    resolver,
		gateways:    gateways,
		paymentsCfg: paymentsCfg,
		logger:      factory.NewModuleLogger("booking-service"),
	}
}

// InitiateBooking validates the request against authoritative pricing, creates
// the pending booking, and submits the charge to the chosen gateway. The
// pending row is written before any external call so a gateway failure leaves
// a traceable booking rather than a silently dropped request.
func (s *BookingService) InitiateBooking(ctx context.Context, req *types.InitiateBookingRequest) (*InitiationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	method := entity.PaymentMethod(req.PaymentMethod)

	quote, err := s.resolver.Resolve(ctx, req.TourID, entity.RateClass(req.RateClass), req.Participants)
	if err != nil {
		if errors.Is(err, pricing.ErrTourNotFound) {
			return nil, ErrTourNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	// The client-declared amount is advisory; hosted redirect flows must
	// declare it and it must agree with the authoritative total before any
	// row is written.
	declared, hasDeclared := req.DeclaredAmountDecimal()
	if method == entity.PaymentMethodCard || method == entity.PaymentMethodPesapal {
		if !hasDeclared {
			return nil, fmt.Errorf("%w: declaredAmount is required for %s payments", ErrValidation, method)
		}
	}
	if hasDeclared && !pricing.WithinTolerance(declared, quote.Total) {
		return nil, ErrAmountMismatch
	}

	now := time.Now().UTC()
	booking := &entity.Booking{
		ID:              uuid.NewString(),
		TourID:          req.TourID,
		UserRef:         optionalString(req.UserRef),
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		Participants:    req.Participants,
		TravelDate:      req.TravelDateTime(),
		SpecialRequests: optionalString(req.SpecialRequests),
		Amount:          quote.Total,
		Currency:        quote.Currency,
		RateClass:       quote.RateClass,
		PaymentMethod:   method,
		PaymentStatus:   entity.PaymentStatusPending,
		BookingStatus:   entity.BookingStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.bookingRepo.Create(ctx, booking); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if method == entity.PaymentMethodBankTransfer {
		return &InitiationResult{
			Booking:      booking,
			Instructions: s.paymentsCfg.BankTransferDetails,
		}, nil
	}

	client, err := s.gateways.Get(method)
	if err != nil {
		return nil, ErrMethodUnsupported
	}

	token, err := client.Authenticate(ctx)
	if err != nil {
		s.logger.WithError(err).WithField("booking_id", booking.ID).Error("gateway authentication failed")
		return nil, classifyGatewayErr(err, ErrGatewayAuth)
	}

	submitted, err := client.Submit(ctx, token, &gateway.Order{
		MerchantReference: booking.ID,
		Amount:            quote.Total,
		Currency:          quote.Currency,
		Description:       fmt.Sprintf("Tour booking %s", booking.ID),
		CustomerName:      booking.CustomerName,
		CustomerEmail:     booking.CustomerEmail,
		CustomerPhone:     booking.CustomerPhone,
		CallbackURL:       s.callbackURL(method),
	})
	if err != nil {
		// The booking stays pending; on a timeout the true outcome is
		// unknown and the reconcile job resolves it once a tracking id
		// becomes available.
		s.logger.WithError(err).WithField("booking_id", booking.ID).Error("gateway submission failed")
		return nil, classifyGatewayErr(err, ErrGatewaySubmission)
	}

	if err := s.bookingRepo.SetGatewayTracking(ctx, booking.ID, submitted.TrackingID, now); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	booking.GatewayTrackingID = &submitted.TrackingID

	if method == entity.PaymentMethodMpesa && submitted.ProviderRequestID != "" {
		if err := s.bookingRepo.SetMpesaCheckout(ctx, booking.ID, submitted.ProviderRequestID, now); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		booking.MpesaCheckoutID = &submitted.ProviderRequestID
	}

	// The money movement has already been requested; an audit insert failure
	// must not roll anything back.
	s.recordTransaction(ctx, booking, string(method), submitted.TrackingID, "submitted", nil)

	return &InitiationResult{
		Booking:           booking,
		RedirectURL:       submitted.RedirectURL,
		ProviderRequestID: submitted.ProviderRequestID,
	}, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*entity.Booking, error) {
	booking, err := s.bookingRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	return booking, nil
}

func (s *BookingService) ListBookings(ctx context.Context, req *types.ListBookingsRequest) ([]*entity.Booking, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	return s.bookingRepo.List(ctx, repository.BookingFilter{
		PaymentStatus: entity.PaymentStatus(req.PaymentStatus),
		BookingStatus: entity.BookingStatus(req.BookingStatus),
		PaymentMethod: entity.PaymentMethod(req.PaymentMethod),
		TourID:        req.TourID,
		Limit:         req.Limit,
		Offset:        req.Offset,
	})
}

// ConfirmBankTransfer is the manual confirmation path for offline payments.
// It applies the same guarded pending-only transition the reconcilers use.
func (s *BookingService) ConfirmBankTransfer(ctx context.Context, bookingID string) (*entity.Booking, error) {
	booking, err := s.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.PaymentMethod != entity.PaymentMethodBankTransfer {
		return nil, fmt.Errorf("%w: booking was not made by bank transfer", ErrInvalidStatus)
	}

	now := time.Now().UTC()
	applied, err := s.bookingRepo.MarkPaidConfirmed(ctx, bookingID, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !applied && booking.PaymentStatus != entity.PaymentStatusPaid {
		return nil, fmt.Errorf("%w: booking is %s, not pending", ErrInvalidStatus, booking.PaymentStatus)
	}

	return s.GetBooking(ctx, bookingID)
}

func (s *BookingService) recordTransaction(ctx context.Context, booking *entity.Booking, provider, trackingID, status string, rawPayload *string) {
	if trackingID == "" {
		return
	}
	now := time.Now().UTC()
	err := s.txRepo.UpsertByTrackingID(ctx, &entity.PaymentTransaction{
		BookingID:         booking.ID,
		Provider:          provider,
		TrackingID:        trackingID,
		MerchantReference: booking.ID,
		Amount:            booking.Amount,
		Currency:          booking.Currency,
		ProviderStatus:    status,
		RawPayload:        rawPayload,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"booking_id":  booking.ID,
			"tracking_id": trackingID,
		}).Warn("audit transaction write failed")
	}
}

func (s *BookingService) callbackURL(method entity.PaymentMethod) string {
	base := s.paymentsCfg.CallbackBaseURL
	if base == "" {
		return ""
	}
	return base + "/payments/" + string(method) + "/callback"
}

func (s *BookingService) batchSize() int32 {
	if s.paymentsCfg.JobBatchSize > 0 {
		return s.paymentsCfg.JobBatchSize
	}
	return defaultBatchSize
}

func classifyGatewayErr(err, fallback error) error {
	switch {
	case errors.Is(err, gateway.ErrTimeout):
		return fmt.Errorf("%w: %v", ErrGatewayTimeout, err)
	case errors.Is(err, gateway.ErrAuth):
		return fmt.Errorf("%w: %v", ErrGatewayAuth, err)
	case errors.Is(err, gateway.ErrDeclined), errors.Is(err, gateway.ErrSubmission):
		return fmt.Errorf("%w: %v", ErrGatewaySubmission, err)
	default:
		return fmt.Errorf("%w: %v", fallback, err)
	}
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
