package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"onrent-backend/internal/domain"
	"onrent-backend/internal/logger"
	"onrent-backend/internal/metrics"
	"onrent-backend/internal/repository"
)

// DefaultTxTimeout bounds every unit of work.
const DefaultTxTimeout = 12 * time.Second

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgreSQL error codes that mean "lost a lock race or ran out of time".
var retryableCodes = map[pq.ErrorCode]bool{
	"55P03": true, // lock_not_available
	"57014": true, // query_canceled
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
}

type Store struct {
	db        *sql.DB
	txTimeout time.Duration
	repos     *repository.Repos
}

func NewStore(db *sql.DB, txTimeout time.Duration) *Store {
	if txTimeout <= 0 {
		txTimeout = DefaultTxTimeout
	}
	return &Store{
		db:        db,
		txTimeout: txTimeout,
		repos:     newRepos(db),
	}
}

func newRepos(q DBTX) *repository.Repos {
	return &repository.Repos{
		Variants:      NewVariantRepository(q),
		Rentals:       NewRentalRepository(q),
		Tracking:      NewTrackingRepository(q),
		Availability:  NewAvailabilityRepository(q),
		Slots:         NewSlotRepository(q),
		Fittings:      NewFittingRepository(q),
		Users:         NewUserRepository(q),
		Notifications: NewNotificationRepository(q),
	}
}

func (s *Store) Repos() *repository.Repos {
	return s.repos
}

// WithinTx runs fn inside a read-committed transaction bounded by the store
// timeout. Guards rely on row locks and conditional updates, not isolation level.
func (s *Store) WithinTx(ctx context.Context, op string, fn func(ctx context.Context, repos *repository.Repos) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.TxDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return mapTxError(ctx, op, err)
	}
	defer tx.Rollback()

	if err := fn(ctx, newRepos(tx)); err != nil {
		logger.Debug("Transaction rolled back", "op", op, "error", err)
		return mapTxError(ctx, op, err)
	}
	if err := tx.Commit(); err != nil {
		return mapTxError(ctx, op, err)
	}
	return nil
}

func mapTxError(ctx context.Context, op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && retryableCodes[pqErr.Code] {
		return &domain.TimeoutError{Op: op, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &domain.TimeoutError{Op: op, Err: err}
	}
	if isDomainError(err) || errors.Is(err, repository.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isDomainError(err error) bool {
	var (
		ve *domain.ValidationError
		nf *domain.NotFoundError
		ce *domain.ConflictError
		na *domain.NotAvailableError
		co *domain.CrossOwnerError
		se *domain.StateTransitionError
		te *domain.TimeoutError
		ae *domain.AuthorizationError
	)
	return errors.As(err, &ve) || errors.As(err, &nf) || errors.As(err, &ce) || errors.As(err, &na) ||
		errors.As(err, &co) || errors.As(err, &se) || errors.As(err, &te) || errors.As(err, &ae)
}

// notFound turns sql.ErrNoRows into repository.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	return err
}

func int32Array(ids []int32) any {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return pq.Array(out)
}
