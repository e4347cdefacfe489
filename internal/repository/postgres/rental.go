package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"onrent-backend/internal/domain"
	"onrent-backend/internal/logger"
	"onrent-backend/internal/repository"
)

type rentalRepository struct {
	db DBTX
}

func NewRentalRepository(db DBTX) repository.RentalRepository {
	return &rentalRepository{db: db}
}

const rentalSelect = `SELECT r.id, r.code, r.owner_id, r.customer_id, r.start_date, r.end_date, r.status, r.created_at, r.updated_at,
	       COALESCE((SELECT t.status FROM trackings t WHERE t.rental_id = r.id ORDER BY t.id DESC LIMIT 1), ''),
	       ARRAY(SELECT ri.variant_id FROM rental_items ri WHERE ri.rental_id = r.id ORDER BY ri.id)
	FROM rentals r`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRental(row rowScanner) (*domain.Rental, error) {
	rt := &domain.Rental{}
	var variantIDs pq.Int64Array
	err := row.Scan(&rt.ID, &rt.Code, &rt.OwnerID, &rt.CustomerID, &rt.StartDate, &rt.EndDate, &rt.Status,
		&rt.CreatedAt, &rt.UpdatedAt, &rt.Tracking, &variantIDs)
	if err != nil {
		return nil, err
	}
	rt.Items = make([]domain.RentalItem, len(variantIDs))
	for i, id := range variantIDs {
		rt.Items[i] = domain.RentalItem{RentalID: rt.ID, VariantID: int32(id)}
	}
	return rt, nil
}

func (r *rentalRepository) Create(ctx context.Context, rt *domain.Rental) error {
	logger.EnterMethod("rentalRepository.Create", "code", rt.Code, "ownerID", rt.OwnerID, "customerID", rt.CustomerID)

	now := time.Now()
	query := `INSERT INTO rentals (code, owner_id, customer_id, start_date, end_date, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	logger.DatabaseCall("INSERT", "rentals", "code", rt.Code)
	err := r.db.QueryRowContext(ctx, query, rt.Code, rt.OwnerID, rt.CustomerID, rt.StartDate, rt.EndDate, rt.Status, now, now).Scan(&rt.ID)
	if err != nil {
		logger.ExitMethodWithError("rentalRepository.Create", err, "code", rt.Code)
		return err
	}
	rt.CreatedAt, rt.UpdatedAt = now, now

	itemQuery := `INSERT INTO rental_items (rental_id, variant_id) VALUES ($1, $2) RETURNING id`
	for i := range rt.Items {
		rt.Items[i].RentalID = rt.ID
		if err := r.db.QueryRowContext(ctx, itemQuery, rt.ID, rt.Items[i].VariantID).Scan(&rt.Items[i].ID); err != nil {
			logger.ExitMethodWithError("rentalRepository.Create", err, "rentalID", rt.ID, "variantID", rt.Items[i].VariantID)
			return err
		}
	}

	logger.ExitMethod("rentalRepository.Create", "rentalID", rt.ID, "items", len(rt.Items))
	return nil
}

func (r *rentalRepository) GetByID(ctx context.Context, id int32) (*domain.Rental, error) {
	rt, err := scanRental(r.db.QueryRowContext(ctx, rentalSelect+` WHERE r.id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return rt, nil
}

func (r *rentalRepository) GetForUpdate(ctx context.Context, id int32) (*domain.Rental, error) {
	rt, err := scanRental(r.db.QueryRowContext(ctx, rentalSelect+` WHERE r.id = $1 FOR UPDATE OF r`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return rt, nil
}

func (r *rentalRepository) FindOverlapping(ctx context.Context, variantIDs []int32, window domain.TimeWindow, excludeRentalID *int32) ([]domain.RentalConflict, error) {
	query := `SELECT ri.variant_id, r.id, r.code
	          FROM rental_items ri JOIN rentals r ON r.id = ri.rental_id
	          WHERE ri.variant_id = ANY($1)
	            AND r.status <> 'DONE'
	            AND r.start_date <= $3 AND r.end_date >= $2
	            AND ($4::int IS NULL OR r.id <> $4)
	          ORDER BY ri.variant_id, r.id`

	var exclude sql.NullInt32
	if excludeRentalID != nil {
		exclude = sql.NullInt32{Int32: *excludeRentalID, Valid: true}
	}

	logger.DatabaseCall("SELECT", "rental_items overlap", "variants", len(variantIDs))
	rows, err := r.db.QueryContext(ctx, query, int32Array(variantIDs), window.Start, window.End, exclude)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conflicts []domain.RentalConflict
	for rows.Next() {
		var c domain.RentalConflict
		if err := rows.Scan(&c.VariantID, &c.RentalID, &c.RentalCode); err != nil {
			return nil, err
		}
		conflicts = append(conflicts, c)
	}
	return conflicts, rows.Err()
}

func (r *rentalRepository) UpdateStatus(ctx context.Context, id int32, status domain.BillingStatus) error {
	query := `UPDATE rentals SET status = $1, updated_at = $2 WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *rentalRepository) UpdateWindow(ctx context.Context, id int32, window domain.TimeWindow) error {
	query := `UPDATE rentals SET start_date = $1, end_date = $2, updated_at = $3 WHERE id = $4`
	res, err := r.db.ExecContext(ctx, query, window.Start, window.End, time.Now(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *rentalRepository) ListByCustomer(ctx context.Context, customerID int32, status domain.BillingStatus) ([]domain.Rental, error) {
	return r.list(ctx, "customer_id", customerID, status)
}

func (r *rentalRepository) ListByOwner(ctx context.Context, ownerID int32, status domain.BillingStatus) ([]domain.Rental, error) {
	return r.list(ctx, "owner_id", ownerID, status)
}

func (r *rentalRepository) list(ctx context.Context, column string, userID int32, status domain.BillingStatus) ([]domain.Rental, error) {
	query := rentalSelect + ` WHERE r.` + column + ` = $1`
	args := []any{userID}
	if status != "" {
		query += ` AND r.status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY r.created_at DESC, r.id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rentals []domain.Rental
	for rows.Next() {
		rt, err := scanRental(rows)
		if err != nil {
			return nil, err
		}
		rentals = append(rentals, *rt)
	}
	return rentals, rows.Err()
}

func (r *rentalRepository) ListOverdueCandidates(ctx context.Context, now time.Time, filter repository.OverdueFilter) ([]int32, error) {
	query := `SELECT r.id FROM rentals r
	          WHERE r.end_date < $1 AND r.status <> 'DONE'
	            AND (SELECT t.status FROM trackings t WHERE t.rental_id = r.id ORDER BY t.id DESC LIMIT 1) = 'ONGOING'`
	args := []any{now}
	if filter.CustomerID != 0 {
		args = append(args, filter.CustomerID)
		query += fmt.Sprintf(" AND r.customer_id = $%d", len(args))
	}
	if filter.OwnerID != 0 {
		args = append(args, filter.OwnerID)
		query += fmt.Sprintf(" AND r.owner_id = $%d", len(args))
	}
	query += ` ORDER BY r.id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int32
	for rows.Next() {
		var id int32
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *rentalRepository) CreateReturn(ctx context.Context, ret *domain.Return) error {
	query := `INSERT INTO returns (rental_id, confirmed_by, created_at) VALUES ($1, $2, $3) RETURNING id`
	ret.CreatedAt = time.Now()
	return r.db.QueryRowContext(ctx, query, ret.RentalID, ret.ConfirmedBy, ret.CreatedAt).Scan(&ret.ID)
}

func (r *rentalRepository) GetReturn(ctx context.Context, rentalID int32) (*domain.Return, error) {
	ret := &domain.Return{}
	query := `SELECT id, rental_id, confirmed_by, created_at FROM returns WHERE rental_id = $1`
	err := r.db.QueryRowContext(ctx, query, rentalID).Scan(&ret.ID, &ret.RentalID, &ret.ConfirmedBy, &ret.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return ret, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
