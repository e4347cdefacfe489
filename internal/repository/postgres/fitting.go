package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"onrent-backend/internal/domain"
	"onrent-backend/internal/logger"
	"onrent-backend/internal/repository"
)

type fittingRepository struct {
	db DBTX
}

func NewFittingRepository(db DBTX) repository.FittingRepository {
	return &fittingRepository{db: db}
}

const fittingSelect = `SELECT f.id, f.slot_id, f.owner_id, f.customer_id, f.status, f.note, f.created_at, f.updated_at,
	       s.id, s.owner_id, s.date_time, s.duration, s.is_booked, s.is_auto_confirm, s.created_at,
	       ARRAY(SELECT fp.product_id FROM fitting_products fp WHERE fp.fitting_id = f.id ORDER BY fp.product_id)
	FROM fitting_schedules f
	JOIN fitting_slots s ON s.id = f.slot_id`

func scanFitting(row rowScanner) (*domain.FittingSchedule, error) {
	f := &domain.FittingSchedule{Slot: &domain.FittingSlot{}}
	var productIDs pq.Int64Array
	err := row.Scan(&f.ID, &f.SlotID, &f.OwnerID, &f.CustomerID, &f.Status, &f.Note, &f.CreatedAt, &f.UpdatedAt,
		&f.Slot.ID, &f.Slot.OwnerID, &f.Slot.DateTime, &f.Slot.Duration, &f.Slot.IsBooked, &f.Slot.IsAutoConfirm, &f.Slot.CreatedAt,
		&productIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range productIDs {
		f.ProductIDs = append(f.ProductIDs, int32(id))
	}
	return f, nil
}

func (r *fittingRepository) Create(ctx context.Context, f *domain.FittingSchedule) error {
	logger.EnterMethod("fittingRepository.Create", "slotID", f.SlotID, "customerID", f.CustomerID)

	now := time.Now()
	query := `INSERT INTO fitting_schedules (slot_id, owner_id, customer_id, status, note, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	logger.DatabaseCall("INSERT", "fitting_schedules", "slotID", f.SlotID)
	err := r.db.QueryRowContext(ctx, query, f.SlotID, f.OwnerID, f.CustomerID, f.Status, f.Note, now, now).Scan(&f.ID)
	if err != nil {
		logger.ExitMethodWithError("fittingRepository.Create", err, "slotID", f.SlotID)
		return err
	}
	f.CreatedAt, f.UpdatedAt = now, now

	for _, pid := range f.ProductIDs {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO fitting_products (fitting_id, product_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, f.ID, pid)
		if err != nil {
			logger.ExitMethodWithError("fittingRepository.Create", err, "fittingID", f.ID, "productID", pid)
			return err
		}
	}

	logger.ExitMethod("fittingRepository.Create", "fittingID", f.ID)
	return nil
}

func (r *fittingRepository) GetByID(ctx context.Context, id int32) (*domain.FittingSchedule, error) {
	f, err := scanFitting(r.db.QueryRowContext(ctx, fittingSelect+` WHERE f.id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return f, nil
}

func (r *fittingRepository) GetForUpdate(ctx context.Context, id int32) (*domain.FittingSchedule, error) {
	f, err := scanFitting(r.db.QueryRowContext(ctx, fittingSelect+` WHERE f.id = $1 FOR UPDATE OF f`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return f, nil
}

func (r *fittingRepository) UpdateStatus(ctx context.Context, id int32, from, to domain.FittingStatus) (bool, error) {
	query := `UPDATE fitting_schedules SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("UPDATE", n, err, "fittingID", id, "to", to)
	return n == 1, err
}

func (r *fittingRepository) ListByCustomer(ctx context.Context, customerID int32, status domain.FittingStatus) ([]domain.FittingSchedule, error) {
	return r.list(ctx, "f.customer_id", customerID, status)
}

func (r *fittingRepository) ListByOwner(ctx context.Context, ownerID int32, status domain.FittingStatus) ([]domain.FittingSchedule, error) {
	return r.list(ctx, "f.owner_id", ownerID, status)
}

func (r *fittingRepository) list(ctx context.Context, column string, id int32, status domain.FittingStatus) ([]domain.FittingSchedule, error) {
	query := fmt.Sprintf(`%s WHERE %s = $1`, fittingSelect, column)
	args := []any{id}
	if status != "" {
		query += ` AND f.status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY s.date_time, f.id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fittings []domain.FittingSchedule
	for rows.Next() {
		f, err := scanFitting(rows)
		if err != nil {
			return nil, err
		}
		fittings = append(fittings, *f)
	}
	return fittings, rows.Err()
}
