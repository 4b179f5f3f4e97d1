package repository

import (
	"context"
	"database/sql"

	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/entity"
)

// Tour pricing is managed by the admin dashboard; this subsystem only ever
// reads it.
type TourRepository struct {
	db DBTX
}

func NewTourRepository(db DBTX) *TourRepository {
	return &TourRepository{db: db}
}

func (r *TourRepository) FindActiveByID(ctx context.Context, id uint64) (*entity.Tour, error) {
	query := `
		SELECT id, title, active, price_citizen, price_resident, price_non_resident, created_at, updated_at
		FROM tours
		WHERE id = ? AND active = 1
	`

	tour := &entity.Tour{}
	var citizenRaw, residentRaw, nonResidentRaw string

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&tour.ID,
		&tour.Title,
		&tour.Active,
		&citizenRaw,
		&residentRaw,
		&nonResidentRaw,
		&tour.CreatedAt,
		&tour.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if tour.PriceCitizen, err = decimalFromColumn(citizenRaw); err != nil {
		return nil, err
	}
	if tour.PriceResident, err = decimalFromColumn(residentRaw); err != nil {
		return nil, err
	}
	if tour.PriceNonResident, err = decimalFromColumn(nonResidentRaw); err != nil {
		return nil, err
	}

	return tour, nil
}
