package repository

import (
	"context"
	"database/sql"

	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/entity"
)

type TransactionRepository struct {
	db DBTX
}

func NewTransactionRepository(db DBTX) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// UpsertByTrackingID inserts one audit row per gateway order attempt. Replayed
// notifications hit the tracking-id unique key and refresh the status and raw
// payload in place instead of producing duplicate rows.
func (r *TransactionRepository) UpsertByTrackingID(ctx context.Context, tx *entity.PaymentTransaction) error {
	query := `
		INSERT INTO payment_transactions (
			booking_id, provider, tracking_id, merchant_reference,
			amount, currency, provider_status, raw_payload, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			provider_status = VALUES(provider_status),
			raw_payload = VALUES(raw_payload),
			updated_at = VALUES(updated_at)
	`

	_, err := r.db.ExecContext(ctx, query,
		tx.BookingID,
		tx.Provider,
		tx.TrackingID,
		tx.MerchantReference,
		decimalValue(tx.Amount),
		tx.Currency,
		tx.ProviderStatus,
		nullableStringValue(tx.RawPayload),
		tx.CreatedAt,
		tx.UpdatedAt,
	)
	return err
}

func (r *TransactionRepository) FindByTrackingID(ctx context.Context, trackingID string) (*entity.PaymentTransaction, error) {
	query := `
		SELECT id, booking_id, provider, tracking_id, merchant_reference,
			amount, currency, provider_status, raw_payload, created_at, updated_at
		FROM payment_transactions
		WHERE tracking_id = ?
		LIMIT 1
	`

	tx := &entity.PaymentTransaction{}
	var amountRaw string
	var rawPayload sql.NullString

	err := r.db.QueryRowContext(ctx, query, trackingID).Scan(
		&tx.ID,
		&tx.BookingID,
		&tx.Provider,
		&tx.TrackingID,
		&tx.MerchantReference,
		&amountRaw,
		&tx.Currency,
		&tx.ProviderStatus,
		&rawPayload,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	amount, err := decimalFromColumn(amountRaw)
	if err != nil {
		return nil, err
	}
	tx.Amount = amount
	tx.RawPayload = stringPtrFromNull(rawPayload)

	return tx, nil
}
