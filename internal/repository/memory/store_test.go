package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onrent-backend/internal/domain"
	"onrent-backend/internal/repository"
	"onrent-backend/internal/repository/memory"
)

func TestStore_RollbackDiscardsWrites(t *testing.T) {
	store := memory.NewStore(time.Second)
	v := store.AddVariant(domain.Variant{ProductID: 1, OwnerID: 5, SKU: "A", IsAvailable: true})
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.WithinTx(ctx, "test", func(ctx context.Context, repos *repository.Repos) error {
		n, err := repos.Variants.MarkReserved(ctx, []int32{v.ID})
		require.NoError(t, err)
		require.Equal(t, int64(1), n)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.Repos().Variants.GetByID(ctx, v.ID)
	require.NoError(t, err)
	assert.True(t, got.Reservable())
}

func TestStore_CommitPublishesWrites(t *testing.T) {
	store := memory.NewStore(time.Second)
	v := store.AddVariant(domain.Variant{ProductID: 1, OwnerID: 5, SKU: "A", IsAvailable: true})
	ctx := context.Background()

	err := store.WithinTx(ctx, "test", func(ctx context.Context, repos *repository.Repos) error {
		_, err := repos.Variants.MarkReserved(ctx, []int32{v.ID})
		return err
	})
	require.NoError(t, err)

	got, err := store.Repos().Variants.GetByID(ctx, v.ID)
	require.NoError(t, err)
	assert.False(t, got.Reservable())
}

func TestStore_WaitingTxTimesOut(t *testing.T) {
	store := memory.NewStore(50 * time.Millisecond)
	ctx := context.Background()

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = store.WithinTx(ctx, "holder", func(ctx context.Context, repos *repository.Repos) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	err := store.WithinTx(ctx, "waiter", func(ctx context.Context, repos *repository.Repos) error {
		return nil
	})
	close(release)

	var te *domain.TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "waiter", te.Op)
}

func TestTrackingRepository_AppendIsIdempotentPerStatus(t *testing.T) {
	store := memory.NewStore(time.Second)
	ctx := context.Background()
	repos := store.Repos()

	rental := &domain.Rental{Code: "RNT-1", OwnerID: 1, CustomerID: 2, Status: domain.BillingStatusUnpaid}
	require.NoError(t, repos.Rentals.Create(ctx, rental))

	ok, err := repos.Tracking.Append(ctx, &domain.TrackingEntry{RentalID: rental.ID, Status: domain.TrackingStatusOngoing})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repos.Tracking.Append(ctx, &domain.TrackingEntry{RentalID: rental.ID, Status: domain.TrackingStatusOngoing})
	require.NoError(t, err)
	assert.False(t, ok)

	entries, err := repos.Tracking.ListByRental(ctx, rental.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSlotRepository_InsertSkipDuplicates(t *testing.T) {
	store := memory.NewStore(time.Second)
	ctx := context.Background()
	slots := store.Repos().Slots
	at := time.Date(2026, 6, 1, 2, 0, 0, 0, time.UTC)

	n, err := slots.InsertSkipDuplicates(ctx, []domain.FittingSlot{{OwnerID: 1, DateTime: at, Duration: 60}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = slots.InsertSkipDuplicates(ctx, []domain.FittingSlot{
		{OwnerID: 1, DateTime: at, Duration: 60},
		{OwnerID: 1, DateTime: at.Add(time.Hour), Duration: 60},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
