package postgres

import (
	"context"
	"time"

	"onrent-backend/internal/domain"
	"onrent-backend/internal/logger"
	"onrent-backend/internal/repository"
)

type slotRepository struct {
	db DBTX
}

func NewSlotRepository(db DBTX) repository.SlotRepository {
	return &slotRepository{db: db}
}

// InsertSkipDuplicates relies on the (owner_id, date_time) unique constraint;
// rows that already exist, booked or not, are never touched.
func (r *slotRepository) InsertSkipDuplicates(ctx context.Context, slots []domain.FittingSlot) (int64, error) {
	if len(slots) == 0 {
		return 0, nil
	}
	logger.EnterMethod("slotRepository.InsertSkipDuplicates", "count", len(slots))

	query := `INSERT INTO fitting_slots (owner_id, date_time, duration, is_booked, is_auto_confirm, created_at)
	          VALUES ($1, $2, $3, FALSE, $4, $5)
	          ON CONFLICT (owner_id, date_time) DO NOTHING`
	now := time.Now()
	var created int64
	for _, s := range slots {
		res, err := r.db.ExecContext(ctx, query, s.OwnerID, s.DateTime.UTC(), s.Duration, s.IsAutoConfirm, now)
		if err != nil {
			logger.ExitMethodWithError("slotRepository.InsertSkipDuplicates", err, "ownerID", s.OwnerID)
			return created, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return created, err
		}
		created += n
	}

	logger.ExitMethod("slotRepository.InsertSkipDuplicates", "created", created)
	return created, nil
}

func (r *slotRepository) GetByID(ctx context.Context, id int32) (*domain.FittingSlot, error) {
	s := &domain.FittingSlot{}
	query := `SELECT id, owner_id, date_time, duration, is_booked, is_auto_confirm, created_at FROM fitting_slots WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.OwnerID, &s.DateTime, &s.Duration, &s.IsBooked, &s.IsAutoConfirm, &s.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

func (r *slotRepository) MarkBooked(ctx context.Context, id int32) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE fitting_slots SET is_booked = TRUE WHERE id = $1 AND is_booked = FALSE`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *slotRepository) Release(ctx context.Context, id int32) error {
	_, err := r.db.ExecContext(ctx, `UPDATE fitting_slots SET is_booked = FALSE WHERE id = $1`, id)
	return err
}

func (r *slotRepository) ListByOwner(ctx context.Context, ownerID int32, window domain.TimeWindow, onlyOpen bool) ([]domain.FittingSlot, error) {
	query := `SELECT id, owner_id, date_time, duration, is_booked, is_auto_confirm, created_at
	          FROM fitting_slots WHERE owner_id = $1 AND date_time >= $2 AND date_time <= $3`
	if onlyOpen {
		query += ` AND is_booked = FALSE`
	}
	query += ` ORDER BY date_time`

	rows, err := r.db.QueryContext(ctx, query, ownerID, window.Start, window.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []domain.FittingSlot
	for rows.Next() {
		var s domain.FittingSlot
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.DateTime, &s.Duration, &s.IsBooked, &s.IsAutoConfirm, &s.CreatedAt); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}
