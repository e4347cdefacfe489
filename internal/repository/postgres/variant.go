package postgres

import (
	"context"

	"onrent-backend/internal/domain"
	"onrent-backend/internal/logger"
	"onrent-backend/internal/repository"
)

type variantRepository struct {
	db DBTX
}

func NewVariantRepository(db DBTX) repository.VariantRepository {
	return &variantRepository{db: db}
}

const variantColumns = `v.id, v.product_id, p.owner_id, v.sku, v.is_available, v.is_rented`

func (r *variantRepository) GetByID(ctx context.Context, id int32) (*domain.Variant, error) {
	query := `SELECT ` + variantColumns + `
	          FROM variants v JOIN products p ON p.id = v.product_id
	          WHERE v.id = $1`
	v := &domain.Variant{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&v.ID, &v.ProductID, &v.OwnerID, &v.SKU, &v.IsAvailable, &v.IsRented)
	if err != nil {
		return nil, notFound(err)
	}
	return v, nil
}

func (r *variantRepository) LockByIDs(ctx context.Context, ids []int32) ([]domain.Variant, error) {
	logger.EnterMethod("variantRepository.LockByIDs", "variantIDs", ids)

	// Ordered locking keeps two multi-item reservations from deadlocking.
	query := `SELECT ` + variantColumns + `
	          FROM variants v JOIN products p ON p.id = v.product_id
	          WHERE v.id = ANY($1)
	          ORDER BY v.id
	          FOR UPDATE OF v`
	logger.DatabaseCall("SELECT FOR UPDATE", "variants", "count", len(ids))

	rows, err := r.db.QueryContext(ctx, query, int32Array(ids))
	if err != nil {
		logger.ExitMethodWithError("variantRepository.LockByIDs", err)
		return nil, err
	}
	defer rows.Close()

	var variants []domain.Variant
	for rows.Next() {
		var v domain.Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.OwnerID, &v.SKU, &v.IsAvailable, &v.IsRented); err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	logger.ExitMethod("variantRepository.LockByIDs", "locked", len(variants))
	return variants, nil
}

func (r *variantRepository) MarkReserved(ctx context.Context, ids []int32) (int64, error) {
	query := `UPDATE variants SET is_available = FALSE, is_rented = TRUE, updated_at = NOW()
	          WHERE id = ANY($1) AND is_available = TRUE AND is_rented = FALSE`
	res, err := r.db.ExecContext(ctx, query, int32Array(ids))
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err, "table", "variants")
		return 0, err
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("UPDATE", n, err, "table", "variants")
	return n, err
}

func (r *variantRepository) Release(ctx context.Context, ids []int32) error {
	query := `UPDATE variants SET is_available = TRUE, is_rented = FALSE, updated_at = NOW() WHERE id = ANY($1)`
	_, err := r.db.ExecContext(ctx, query, int32Array(ids))
	return err
}

func (r *variantRepository) ProductOwners(ctx context.Context, productIDs []int32) (map[int32]int32, error) {
	query := `SELECT id, owner_id FROM products WHERE id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, int32Array(productIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	owners := make(map[int32]int32, len(productIDs))
	for rows.Next() {
		var id, ownerID int32
		if err := rows.Scan(&id, &ownerID); err != nil {
			return nil, err
		}
		owners[id] = ownerID
	}
	return owners, rows.Err()
}
