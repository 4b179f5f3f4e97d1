package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/entity"
	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/gateway"
	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/pricing"
	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/repository"
	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/types"
	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/config"
)

type fakeBookingRepo struct {
	bookings map[string]*entity.Booking

	createErr      error
	setTrackingErr error
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: map[string]*entity.Booking{}}
}

func (r *fakeBookingRepo) Create(_ context.Context, booking *entity.Booking) error {
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.bookings[booking.ID]; ok {
		return repository.ErrBookingAlreadyExists
	}
	copyItem := *booking
	r.bookings[booking.ID] = &copyItem
	return nil
}

func (r *fakeBookingRepo) FindByID(_ context.Context, id string) (*entity.Booking, error) {
	item, ok := r.bookings[id]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

func (r *fakeBookingRepo) FindByMpesaCheckoutID(_ context.Context, checkoutID string) (*entity.Booking, error) {
	for _, item := range r.bookings {
		if item.MpesaCheckoutID != nil && *item.MpesaCheckoutID == checkoutID {
			copyItem := *item
			return &copyItem, nil
		}
	}
	return nil, nil
}

func (r *fakeBookingRepo) FindPendingByPhoneAmount(_ context.Context, phone string, amount decimal.Decimal) ([]*entity.Booking, error) {
	items := make([]*entity.Booking, 0)
	for _, item := range r.bookings {
		if item.CustomerPhone == phone &&
			item.PaymentMethod == entity.PaymentMethodMpesa &&
			item.PaymentStatus == entity.PaymentStatusPending &&
			item.Amount.Equal(amount) {
			copyItem := *item
			items = append(items, &copyItem)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

func (r *fakeBookingRepo) SetGatewayTracking(_ context.Context, id, trackingID string, now time.Time) error {
	if r.setTrackingErr != nil {
		return r.setTrackingErr
	}
	item, ok := r.bookings[id]
	if !ok {
		return repository.ErrBookingNotFound
	}
	item.GatewayTrackingID = &trackingID
	item.UpdatedAt = now
	return nil
}

func (r *fakeBookingRepo) SetMpesaCheckout(_ context.Context, id, checkoutID string, now time.Time) error {
	item, ok := r.bookings[id]
	if !ok {
		return repository.ErrBookingNotFound
	}
	item.MpesaCheckoutID = &checkoutID
	item.UpdatedAt = now
	return nil
}

func (r *fakeBookingRepo) MarkPaidConfirmed(_ context.Context, id string, now time.Time) (bool, error) {
	item, ok := r.bookings[id]
	if !ok || item.PaymentStatus != entity.PaymentStatusPending {
		return false, nil
	}
	item.PaymentStatus = entity.PaymentStatusPaid
	item.BookingStatus = entity.BookingStatusConfirmed
	item.UpdatedAt = now
	return true, nil
}

func (r *fakeBookingRepo) MarkFailed(_ context.Context, id string, now time.Time) (bool, error) {
	item, ok := r.bookings[id]
	if !ok || item.PaymentStatus != entity.PaymentStatusPending {
		return false, nil
	}
	item.PaymentStatus = entity.PaymentStatusFailed
	item.UpdatedAt = now
	return true, nil
}

func (r *fakeBookingRepo) MarkCancelled(_ context.Context, id string, now time.Time) (bool, error) {
	item, ok := r.bookings[id]
	if !ok || item.PaymentStatus != entity.PaymentStatusPending {
		return false, nil
	}
	item.PaymentStatus = entity.PaymentStatusCancelled
	item.BookingStatus = entity.BookingStatusCancelled
	item.UpdatedAt = now
	return true, nil
}

func (r *fakeBookingRepo) ListStalePending(_ context.Context, before time.Time, limit int32) ([]*entity.Booking, error) {
	items := make([]*entity.Booking, 0)
	for _, item := range r.bookings {
		if item.PaymentStatus == entity.PaymentStatusPending && item.GatewayTrackingID != nil && !item.UpdatedAt.After(before) {
			copyItem := *item
			items = append(items, &copyItem)
		}
	}
	return limitItems(items, limit), nil
}

func (r *fakeBookingRepo) ListExpiredPending(_ context.Context, cutoff time.Time, limit int32) ([]*entity.Booking, error) {
	items := make([]*entity.Booking, 0)
	for _, item := range r.bookings {
		if item.PaymentStatus == entity.PaymentStatusPending && !item.CreatedAt.After(cutoff) {
			copyItem := *item
			items = append(items, &copyItem)
		}
	}
	return limitItems(items, limit), nil
}

func (r *fakeBookingRepo) List(_ context.Context, filter repository.BookingFilter) ([]*entity.Booking, error) {
	items := make([]*entity.Booking, 0)
	for _, item := range r.bookings {
		if filter.PaymentStatus != "" && item.PaymentStatus != filter.PaymentStatus {
			continue
		}
		if filter.BookingStatus != "" && item.BookingStatus != filter.BookingStatus {
			continue
		}
		if filter.PaymentMethod != "" && item.PaymentMethod != filter.PaymentMethod {
			continue
		}
		if filter.TourID > 0 && item.TourID != filter.TourID {
			continue
		}
		copyItem := *item
		items = append(items, &copyItem)
	}
	return items, nil
}

func limitItems(items []*entity.Booking, limit int32) []*entity.Booking {
	if limit <= 0 || int(limit) >= len(items) {
		return items
	}
	return items[:limit]
}

type fakeTxRepo struct {
	upserts   []*entity.PaymentTransaction
	upsertErr error
}

func (r *fakeTxRepo) UpsertByTrackingID(_ context.Context, tx *entity.PaymentTransaction) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	copyItem := *tx
	r.upserts = append(r.upserts, &copyItem)
	return nil
}

func (r *fakeTxRepo) FindByTrackingID(_ context.Context, trackingID string) (*entity.PaymentTransaction, error) {
	for _, item := range r.upserts {
		if item.TrackingID == trackingID {
			copyItem := *item
			return &copyItem, nil
		}
	}
	return nil, nil
}

type fakeResolver struct {
	quote *pricing.Quote
	err   error
}

func (r *fakeResolver) Resolve(_ context.Context, _ uint64, class entity.RateClass, _ int32) (*pricing.Quote, error) {
	if r.err != nil {
		return nil, r.err
	}
	quote := *r.quote
	quote.RateClass = class
	return &quote, nil
}

type fakeGatewayClient struct {
	method         entity.PaymentMethod
	requiresVerify bool

	authErr     error
	authCalls   int
	submitRes   *gateway.SubmitResult
	submitErr   error
	submitCalls int
	verifyRes   *gateway.StatusResult
	verifyErr   error
	verifyCalls int
}

func (c *fakeGatewayClient) Method() entity.PaymentMethod { return c.method }

func (c *fakeGatewayClient) RequiresServerVerification() bool { return c.requiresVerify }

func (c *fakeGatewayClient) Authenticate(_ context.Context) (string, error) {
	c.authCalls++
	if c.authErr != nil {
		return "", c.authErr
	}
	return "token-1", nil
}

func (c *fakeGatewayClient) Submit(_ context.Context, _ string, _ *gateway.Order) (*gateway.SubmitResult, error) {
	c.submitCalls++
	if c.submitErr != nil {
		return nil, c.submitErr
	}
	return c.submitRes, nil
}

func (c *fakeGatewayClient) VerifyStatus(_ context.Context, _, _ string) (*gateway.StatusResult, error) {
	c.verifyCalls++
	if c.verifyErr != nil {
		return nil, c.verifyErr
	}
	return c.verifyRes, nil
}

func testQuote(total string) *pricing.Quote {
	totalDec := decimal.RequireFromString(total)
	return &pricing.Quote{
		UnitPrice: totalDec,
		Total:     totalDec,
		Currency:  pricing.CurrencySettlement,
		RateClass: entity.RateClassResident,
	}
}

func newTestService(bookingRepo *fakeBookingRepo, txRepo *fakeTxRepo, resolver *fakeResolver, clients ...gateway.Client) *BookingService {
	return NewBookingService(
		bookingRepo,
		txRepo,
		resolver,
		gateway.NewRegistry(clients...),
		config.PaymentsConfig{
			CallbackBaseURL:     "https://payments.example.com",
			BankTransferDetails: "Account 0011223344, Nairobi branch",
			PendingTimeout:      time.Hour,
			ReconcileStaleAfter: 15 * time.Minute,
			JobBatchSize:        100,
		},
	)
}

func validInitiateRequest(method string) *types.InitiateBookingRequest {
	return &types.InitiateBookingRequest{
		TourID:         7,
		CustomerName:   "Asha Mwangi",
		CustomerEmail:  "asha@example.com",
		CustomerPhone:  "254700111222",
		Participants:   2,
		RateClass:      "resident",
		PaymentMethod:  method,
		DeclaredAmount: json.Number("3000"),
	}
}

func TestInitiateBookingAmountMismatchCreatesNoBooking(t *testing.T) {
	bookingRepo := newFakeBookingRepo()
	client := &fakeGatewayClient{method: entity.PaymentMethodPesapal, requiresVerify: true}
	svc := newTestService(bookingRepo, &fakeTxRepo{}, &fakeResolver{quote: testQuote("3000")}, client)

	req := validInitiateRequest("pesapal")
	req.DeclaredAmount = json.Number("100")

	_, err := svc.InitiateBooking(context.Background(), req)
	if !errors.Is(err, ErrAmountMismatch) {
		t.Fatalf("expected ErrAmountMismatch, got %v", err)
	}
	if len(bookingRepo.bookings) != 0 {
		t.Fatalf("expected no booking rows, got %d", len(bookingRepo.bookings))
	}
	if client.submitCalls != 0 {
		t.Fatal("expected no gateway submission")
	}
}

func TestInitiateBookingDeclaredAmountWithinTolerance(t *testing.T) {
	bookingRepo := newFakeBookingRepo()
	client := &fakeGatewayClient{
		method:         entity.PaymentMethodPesapal,
		requiresVerify: true,
		submitRes:      &gateway.SubmitResult{TrackingID: "trk-1", RedirectURL: "https://pay.example.com/trk-1"},
	}
	svc := newTestService(bookingRepo, &fakeTxRepo{}, &fakeResolver{quote: testQuote("3000")}, client)

	req := validInitiateRequest("pesapal")
	req.DeclaredAmount = json.Number("3000.01")

	result, err := svc.InitiateBooking(context.Background(), req)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Booking.Amount.String() != "3000" {
		t.Fatalf("expected authoritative amount persisted, got %s", result.Booking.Amount.String())
	}
}

func TestInitiateBookingSuccessPersistsTrackingBeforeReturn(t *testing.T) {
	bookingRepo := newFakeBookingRepo()
	txRepo := &fakeTxRepo{}
	client := &fakeGatewayClient{
		method:         entity.PaymentMethodPesapal,
		requiresVerify: true,
		submitRes:      &gateway.SubmitResult{TrackingID: "trk-9", RedirectURL: "https://pay.example.com/trk-9"},
	}
	svc := newTestService(bookingRepo, txRepo, &fakeResolver{quote: testQuote("3000")}, client)

	result, err := svc.InitiateBooking(context.Background(), validInitiateRequest("pesapal"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	stored := bookingRepo.bookings[result.Booking.ID]
	if stored == nil {
		t.Fatal("expected booking row")
	}
	if stored.GatewayTrackingID == nil || *stored.GatewayTrackingID != "trk-9" {
		t.Fatal("expected tracking id persisted before success was returned")
	}
	if stored.PaymentStatus != entity.PaymentStatusPending || stored.BookingStatus != entity.BookingStatusPending {
		t.Fatalf("expected pending/pending, got %s/%s", stored.PaymentStatus, stored.BookingStatus)
	}
	if result.RedirectURL != "https://pay.example.com/trk-9" {
		t.Fatalf("unexpected redirect url: %s", result.RedirectURL)
	}
	if len(txRepo.upserts) != 1 || txRepo.upserts[0].TrackingID != "trk-9" {
		t.Fatal("expected one audit transaction row")
	}
	if txRepo.upserts[0].MerchantReference != result.Booking.ID {
		t.Fatal("expected booking id as merchant reference on the audit row")
	}
}

func TestInitiateBookingSubmissionTimeoutLeavesPendingWithoutTracking(t *testing.T) {
	bookingRepo := newFakeBookingRepo()
	client := &fakeGatewayClient{
		method:         entity.PaymentMethodPesapal,
		requiresVerify: true,
		submitErr:      gateway.ErrTimeout,
	}
	svc := newTestService(bookingRepo, &fakeTxRepo{}, &fakeResolver{quote: testQuote("3000")}, client)

	_, err := svc.InitiateBooking(context.Background(), validInitiateRequest("pesapal"))
	if !errors.Is(err, ErrGatewayTimeout) {
		t.Fatalf("expected ErrGatewayTimeout, got %v", err)
	}

	if len(bookingRepo.bookings) != 1 {
		t.Fatalf("expected pending booking row to survive, got %d rows", len(bookingRepo.bookings))
	}
	for _, stored := range bookingRepo.bookings {
		if stored.PaymentStatus != entity.PaymentStatusPending {
			t.Fatalf("expected booking still pending, got %s", stored.PaymentStatus)
		}
		if stored.GatewayTrackingID != nil {
			t.Fatal("expected no tracking id after timeout")
		}
	}
}

func TestInitiateBookingAuthFailureLeavesPendingBooking(t *testing.T) {
	bookingRepo := newFakeBookingRepo()
	client := &fakeGatewayClient{
		method:         entity.PaymentMethodPesapal,
		requiresVerify: true,
		authErr:        gateway.ErrAuth,
	}
	svc := newTestService(bookingRepo, &fakeTxRepo{}, &fakeResolver{quote: testQuote("3000")}, client)

	_, err := svc.InitiateBooking(context.Background(), validInitiateRequest("pesapal"))
	if !errors.Is(err, ErrGatewayAuth) {
		t.Fatalf("expected ErrGatewayAuth, got %v", err)
	}
	if client.submitCalls != 0 {
		t.Fatal("expected no submission after auth failure")
	}
	if len(bookingRepo.bookings) != 1 {
		t.Fatal("expected the pending booking to remain for retry")
	}
}

func TestInitiateBookingAuditFailureDoesNotFail(t *testing.T) {
	bookingRepo := newFakeBookingRepo()
	txRepo := &fakeTxRepo{upsertErr: errors.New("audit table unavailable")}
	client := &fakeGatewayClient{
		method:         entity.PaymentMethodPesapal,
		requiresVerify: true,
		submitRes:      &gateway.SubmitResult{TrackingID: "trk-2", RedirectURL: "https://pay.example.com/trk-2"},
	}
	svc := newTestService(bookingRepo, txRepo, &fakeResolver{quote: testQuote("3000")}, client)

	result, err := svc.InitiateBooking(context.Background(), validInitiateRequest("pesapal"))
	if err != nil {
		t.Fatalf("expected audit failure to be non-fatal, got %v", err)
	}
	if result.Booking.GatewayTrackingID == nil {
		t.Fatal("expected tracking id despite audit failure")
	}
}

func TestInitiateBookingBankTransferReturnsInstructions(t *testing.T) {
	bookingRepo := newFakeBookingRepo()
	svc := newTestService(bookingRepo, &fakeTxRepo{}, &fakeResolver{quote: testQuote("3000")})

	req := validInitiateRequest("bank_transfer")
	req.DeclaredAmount = ""

	result, err := svc.InitiateBooking(context.Background(), req)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Instructions == "" {
		t.Fatal("expected bank transfer instructions")
	}
	if result.RedirectURL != "" || result.ProviderRequestID != "" {
		t.Fatal("expected no gateway artifacts for bank transfer")
	}
}

func TestInitiateBookingMissingDeclaredAmountForHostedFlow(t *testing.T) {
	svc := newTestService(newFakeBookingRepo(), &fakeTxRepo{}, &fakeResolver{quote: testQuote("3000")},
		&fakeGatewayClient{method: entity.PaymentMethodCard, requiresVerify: true})

	req := validInitiateRequest("card")
	req.DeclaredAmount = ""

	_, err := svc.InitiateBooking(context.Background(), req)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestInitiateBookingTourNotFound(t *testing.T) {
	svc := newTestService(newFakeBookingRepo(), &fakeTxRepo{}, &fakeResolver{err: pricing.ErrTourNotFound},
		&fakeGatewayClient{method: entity.PaymentMethodPesapal, requiresVerify: true})

	_, err := svc.InitiateBooking(context.Background(), validInitiateRequest("pesapal"))
	if !errors.Is(err, ErrTourNotFound) {
		t.Fatalf("expected ErrTourNotFound, got %v", err)
	}
}

func TestConfirmBankTransfer(t *testing.T) {
	bookingRepo := newFakeBookingRepo()
	svc := newTestService(bookingRepo, &fakeTxRepo{}, &fakeResolver{quote: testQuote("3000")})

	req := validInitiateRequest("bank_transfer")
	req.DeclaredAmount = ""
	result, err := svc.InitiateBooking(context.Background(), req)
	if err != nil {
		t.Fatalf("initiation failed: %v", err)
	}

	confirmed, err := svc.ConfirmBankTransfer(context.Background(), result.Booking.ID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if confirmed.PaymentStatus != entity.PaymentStatusPaid || confirmed.BookingStatus != entity.BookingStatusConfirmed {
		t.Fatalf("expected paid/confirmed, got %s/%s", confirmed.PaymentStatus, confirmed.BookingStatus)
	}

	// A second confirmation of an already-paid booking is not an error.
	again, err := svc.ConfirmBankTransfer(context.Background(), result.Booking.ID)
	if err != nil {
		t.Fatalf("expected repeat confirmation to be a no-op, got %v", err)
	}
	if again.PaymentStatus != entity.PaymentStatusPaid {
		t.Fatalf("unexpected status: %s", again.PaymentStatus)
	}
}
