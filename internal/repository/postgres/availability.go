package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"onrent-backend/internal/domain"
	"onrent-backend/internal/logger"
	"onrent-backend/internal/repository"
	"onrent-backend/internal/timeutil"
)

type availabilityRepository struct {
	db DBTX
}

func NewAvailabilityRepository(db DBTX) repository.AvailabilityRepository {
	return &availabilityRepository{db: db}
}

// GetWeekly reads the template and converts stored UTC times back to display hours.
func (r *availabilityRepository) GetWeekly(ctx context.Context, ownerID int32) ([]domain.WeeklyAvailability, error) {
	query := `SELECT weekday, enabled, start_time, end_time FROM weekly_availability WHERE owner_id = $1 ORDER BY weekday`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.WeeklyAvailability
	for rows.Next() {
		var (
			w          domain.WeeklyAvailability
			start, end time.Time
		)
		if err := rows.Scan(&w.Weekday, &w.Enabled, &start, &end); err != nil {
			return nil, err
		}
		w.OwnerID = ownerID
		w.StartHour = timeutil.ToDisplayHourOn(start, w.Enabled)
		w.EndHour = timeutil.ToDisplayHourOn(end, w.Enabled)
		entries = append(entries, w)
	}
	return entries, rows.Err()
}

// ReplaceWeekly swaps the owner's whole template; weekdays missing from
// entries read back as disabled.
func (r *availabilityRepository) ReplaceWeekly(ctx context.Context, ownerID int32, entries []domain.WeeklyAvailability) error {
	logger.EnterMethod("availabilityRepository.ReplaceWeekly", "ownerID", ownerID, "entries", len(entries))

	if _, err := r.db.ExecContext(ctx, `DELETE FROM weekly_availability WHERE owner_id = $1`, ownerID); err != nil {
		logger.ExitMethodWithError("availabilityRepository.ReplaceWeekly", err, "ownerID", ownerID)
		return err
	}

	query := `INSERT INTO weekly_availability (owner_id, weekday, enabled, start_time, end_time, updated_at)
	          VALUES ($1, $2, $3, $4, $5, NOW())`
	for _, w := range entries {
		_, err := r.db.ExecContext(ctx, query, ownerID, w.Weekday, w.Enabled,
			timeutil.ToStorageHour(w.StartHour), timeutil.ToStorageHour(w.EndHour))
		if err != nil {
			logger.ExitMethodWithError("availabilityRepository.ReplaceWeekly", err, "weekday", w.Weekday)
			return err
		}
	}

	logger.ExitMethod("availabilityRepository.ReplaceWeekly", "ownerID", ownerID)
	return nil
}

func (r *availabilityRepository) ListOwnersWithTemplate(ctx context.Context) ([]int32, error) {
	query := `SELECT DISTINCT owner_id FROM weekly_availability WHERE enabled = TRUE ORDER BY owner_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var owners []int32
	for rows.Next() {
		var id int32
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		owners = append(owners, id)
	}
	return owners, rows.Err()
}

// GetSettings returns defaults when the owner never saved settings.
func (r *availabilityRepository) GetSettings(ctx context.Context, ownerID int32) (*domain.OwnerSettings, error) {
	s := &domain.OwnerSettings{OwnerID: ownerID}
	query := `SELECT is_auto_confirm FROM owner_settings WHERE owner_id = $1`
	err := r.db.QueryRowContext(ctx, query, ownerID).Scan(&s.IsAutoConfirm)
	if errors.Is(err, sql.ErrNoRows) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *availabilityRepository) SaveSettings(ctx context.Context, s *domain.OwnerSettings) error {
	query := `INSERT INTO owner_settings (owner_id, is_auto_confirm) VALUES ($1, $2)
	          ON CONFLICT (owner_id) DO UPDATE SET is_auto_confirm = EXCLUDED.is_auto_confirm`
	_, err := r.db.ExecContext(ctx, query, s.OwnerID, s.IsAutoConfirm)
	return err
}

func (r *availabilityRepository) CreateBlock(ctx context.Context, b *domain.ScheduleBlock) error {
	b.CreatedAt = time.Now()
	query := `INSERT INTO schedule_blocks (owner_id, start_time, end_time, reason, created_at)
	          VALUES ($1, $2, $3, $4, $5) RETURNING id`
	return r.db.QueryRowContext(ctx, query, b.OwnerID, b.StartTime, b.EndTime, b.Reason, b.CreatedAt).Scan(&b.ID)
}

func (r *availabilityRepository) ListBlocks(ctx context.Context, ownerID int32, window *domain.TimeWindow) ([]domain.ScheduleBlock, error) {
	query := `SELECT id, owner_id, start_time, end_time, reason, created_at FROM schedule_blocks WHERE owner_id = $1`
	args := []any{ownerID}
	if window != nil {
		query += ` AND start_time <= $3 AND end_time >= $2`
		args = append(args, window.Start, window.End)
	}
	query += ` ORDER BY start_time`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []domain.ScheduleBlock
	for rows.Next() {
		var b domain.ScheduleBlock
		if err := rows.Scan(&b.ID, &b.OwnerID, &b.StartTime, &b.EndTime, &b.Reason, &b.CreatedAt); err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

func (r *availabilityRepository) DeleteBlock(ctx context.Context, ownerID, blockID int32) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedule_blocks WHERE id = $1 AND owner_id = $2`, blockID, ownerID)
	if err != nil {
		return err
	}
	return requireRow(res)
}
