package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"onrent-backend/internal/domain"
	"onrent-backend/internal/repository"
)

type trackingRepository struct {
	db DBTX
}

func NewTrackingRepository(db DBTX) repository.TrackingRepository {
	return &trackingRepository{db: db}
}

func (r *trackingRepository) Append(ctx context.Context, e *domain.TrackingEntry) (bool, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	query := `INSERT INTO trackings (rental_id, status, created_at) VALUES ($1, $2, $3)
	          ON CONFLICT (rental_id, status) DO NOTHING
	          RETURNING id`
	err := r.db.QueryRowContext(ctx, query, e.RentalID, e.Status, e.CreatedAt).Scan(&e.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *trackingRepository) Latest(ctx context.Context, rentalID int32) (*domain.TrackingEntry, error) {
	e := &domain.TrackingEntry{}
	query := `SELECT id, rental_id, status, created_at FROM trackings WHERE rental_id = $1 ORDER BY id DESC LIMIT 1`
	err := r.db.QueryRowContext(ctx, query, rentalID).Scan(&e.ID, &e.RentalID, &e.Status, &e.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

func (r *trackingRepository) ListByRental(ctx context.Context, rentalID int32) ([]domain.TrackingEntry, error) {
	query := `SELECT id, rental_id, status, created_at FROM trackings WHERE rental_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, rentalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.TrackingEntry
	for rows.Next() {
		var e domain.TrackingEntry
		if err := rows.Scan(&e.ID, &e.RentalID, &e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
