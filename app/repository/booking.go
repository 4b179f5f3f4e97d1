package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/entity"
)

var (
	ErrBookingNotFound      = errors.New("booking not found")
	ErrBookingAlreadyExists = errors.New("booking already exists")
)

type BookingFilter struct {
	PaymentStatus entity.PaymentStatus
	BookingStatus entity.BookingStatus
	PaymentMethod entity.PaymentMethod
	TourID        uint64
	Limit         int32
	Offset        int32
}

type BookingRepository struct {
	db DBTX
}

func NewBookingRepository(db DBTX) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `id, tour_id, user_ref, customer_name, customer_email, customer_phone,
		participants, travel_date, special_requests, amount, currency, rate_class,
		payment_method, payment_status, booking_status,
		gateway_tracking_id, mpesa_checkout_id, created_at, updated_at`

func (r *BookingRepository) Create(ctx context.Context, booking *entity.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		booking.ID,
		booking.TourID,
		nullableStringValue(booking.UserRef),
		booking.CustomerName,
		booking.CustomerEmail,
		booking.CustomerPhone,
		booking.Participants,
		nullableTimeValue(booking.TravelDate),
		nullableStringValue(booking.SpecialRequests),
		decimalValue(booking.Amount),
		booking.Currency,
		string(booking.RateClass),
		string(booking.PaymentMethod),
		string(booking.PaymentStatus),
		string(booking.BookingStatus),
		nullableStringValue(booking.GatewayTrackingID),
		nullableStringValue(booking.MpesaCheckoutID),
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrBookingAlreadyExists
		}
		return err
	}

	return nil
}

func (r *BookingRepository) FindByID(ctx context.Context, id string) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`

	booking := &entity.Booking{}
	if err := scanBooking(r.db.QueryRowContext(ctx, query, id), booking); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return booking, nil
}

func (r *BookingRepository) SetGatewayTracking(ctx context.Context, id, trackingID string, now time.Time) error {
	query := `UPDATE bookings SET gateway_tracking_id = ?, updated_at = ? WHERE id = ?`
	return r.execExpectingRow(ctx, query, trackingID, now, id)
}

func (r *BookingRepository) SetMpesaCheckout(ctx context.Context, id, checkoutID string, now time.Time) error {
	query := `UPDATE bookings SET mpesa_checkout_id = ?, updated_at = ? WHERE id = ?`
	return r.execExpectingRow(ctx, query, checkoutID, now, id)
}

// MarkPaidConfirmed transitions a booking to paid/confirmed. The transition is
// guarded on the current payment status still being pending, which makes a
// replayed gateway notification a no-op: the second call reports applied=false
// instead of overwriting state.
func (r *BookingRepository) MarkPaidConfirmed(ctx context.Context, id string, now time.Time) (bool, error) {
	query := `
		UPDATE bookings
		SET payment_status = ?, booking_status = ?, updated_at = ?
		WHERE id = ? AND payment_status = ?
	`
	return r.execConditional(ctx, query,
		string(entity.PaymentStatusPaid),
		string(entity.BookingStatusConfirmed),
		now,
		id,
		string(entity.PaymentStatusPending),
	)
}

// MarkFailed records a failed payment. The booking itself stays pending so a
// separate cancellation (or a retry) can still act on it.
func (r *BookingRepository) MarkFailed(ctx context.Context, id string, now time.Time) (bool, error) {
	query := `
		UPDATE bookings
		SET payment_status = ?, updated_at = ?
		WHERE id = ? AND payment_status = ?
	`
	return r.execConditional(ctx, query,
		string(entity.PaymentStatusFailed),
		now,
		id,
		string(entity.PaymentStatusPending),
	)
}

func (r *BookingRepository) MarkCancelled(ctx context.Context, id string, now time.Time) (bool, error) {
	query := `
		UPDATE bookings
		SET payment_status = ?, booking_status = ?, updated_at = ?
		WHERE id = ? AND payment_status = ?
	`
	return r.execConditional(ctx, query,
		string(entity.PaymentStatusCancelled),
		string(entity.BookingStatusCancelled),
		now,
		id,
		string(entity.PaymentStatusPending),
	)
}

func (r *BookingRepository) FindByMpesaCheckoutID(ctx context.Context, checkoutID string) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE mpesa_checkout_id = ? LIMIT 1`

	booking := &entity.Booking{}
	if err := scanBooking(r.db.QueryRowContext(ctx, query, checkoutID), booking); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return booking, nil
}

// FindPendingByPhoneAmount resolves mobile-money callbacks that only carry a
// phone number. Amount equality narrows phone reuse across bookings; newest
// first so the caller can apply last-pending-wins.
func (r *BookingRepository) FindPendingByPhoneAmount(ctx context.Context, phone string, amount decimal.Decimal) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE customer_phone = ?
		  AND payment_method = ?
		  AND payment_status = ?
		  AND amount = ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query,
		phone,
		string(entity.PaymentMethodMpesa),
		string(entity.PaymentStatusPending),
		decimalValue(amount),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBookings(rows)
}

// ListStalePending returns pending gateway-backed bookings that have a
// tracking id but no terminal outcome yet; the reconcile job re-verifies these
// directly with the provider.
func (r *BookingRepository) ListStalePending(ctx context.Context, before time.Time, limit int32) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE payment_status = ?
		  AND gateway_tracking_id IS NOT NULL
		  AND updated_at <= ?
		ORDER BY updated_at ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, string(entity.PaymentStatusPending), before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBookings(rows)
}

func (r *BookingRepository) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE payment_status = ?
		  AND created_at <= ?
		ORDER BY created_at ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, string(entity.PaymentStatusPending), cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBookings(rows)
}

func (r *BookingRepository) List(ctx context.Context, filter BookingFilter) ([]*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings`

	conditions := make([]string, 0, 4)
	args := make([]interface{}, 0, 6)

	if filter.PaymentStatus != "" {
		conditions = append(conditions, "payment_status = ?")
		args = append(args, string(filter.PaymentStatus))
	}
	if filter.BookingStatus != "" {
		conditions = append(conditions, "booking_status = ?")
		args = append(args, string(filter.BookingStatus))
	}
	if filter.PaymentMethod != "" {
		conditions = append(conditions, "payment_method = ?")
		args = append(args, string(filter.PaymentMethod))
	}
	if filter.TourID > 0 {
		conditions = append(conditions, "tour_id = ?")
		args = append(args, filter.TourID)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBookings(rows)
}

func (r *BookingRepository) execExpectingRow(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (r *BookingRepository) execConditional(ctx context.Context, query string, args ...interface{}) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(scan rowScanner, booking *entity.Booking) error {
	var userRef sql.NullString
	var travelDate sql.NullTime
	var specialRequests sql.NullString
	var amountRaw string
	var rateClass string
	var paymentMethod string
	var paymentStatus string
	var bookingStatus string
	var trackingID sql.NullString
	var checkoutID sql.NullString

	err := scan.Scan(
		&booking.ID,
		&booking.TourID,
		&userRef,
		&booking.CustomerName,
		&booking.CustomerEmail,
		&booking.CustomerPhone,
		&booking.Participants,
		&travelDate,
		&specialRequests,
		&amountRaw,
		&booking.Currency,
		&rateClass,
		&paymentMethod,
		&paymentStatus,
		&bookingStatus,
		&trackingID,
		&checkoutID,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return err
	}

	amount, err := decimalFromColumn(amountRaw)
	if err != nil {
		return err
	}
	booking.Amount = amount
	booking.UserRef = stringPtrFromNull(userRef)
	booking.TravelDate = timePtrFromNull(travelDate)
	booking.SpecialRequests = stringPtrFromNull(specialRequests)
	booking.RateClass = entity.RateClass(rateClass)
	booking.PaymentMethod = entity.PaymentMethod(paymentMethod)
	booking.PaymentStatus = entity.PaymentStatus(paymentStatus)
	booking.BookingStatus = entity.BookingStatus(bookingStatus)
	booking.GatewayTrackingID = stringPtrFromNull(trackingID)
	booking.MpesaCheckoutID = stringPtrFromNull(checkoutID)

	return nil
}

func collectBookings(rows *sql.Rows) ([]*entity.Booking, error) {
	bookings := make([]*entity.Booking, 0)
	for rows.Next() {
		item := &entity.Booking{}
		if err := scanBooking(rows, item); err != nil {
			return nil, err
		}
		bookings = append(bookings, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}
