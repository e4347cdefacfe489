package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onrent-backend/internal/domain"
)

type fittingEnv struct {
	*fixture
	svc          *fittingService
	availability *availabilityService
	cache        *mapCache
}

// newFittingEnv generates the three Monday-morning slots of June 1 for the
// fixture owner.
func newFittingEnv(t *testing.T, autoConfirm bool, notifier Notifier) (*fittingEnv, []domain.FittingSlot) {
	t.Helper()
	f := newFixture(t)
	cache := newMapCache()
	availability := newAvailabilitySvc(f, cache)
	svc := NewFittingService(f.store, cache, notifier).(*fittingService)
	svc.now = availability.now
	ctx := context.Background()

	_, err := availability.SetWeeklyTemplate(ctx, f.owner.ID, mondayMorning(f.owner.ID))
	require.NoError(t, err)
	_, err = availability.SetAutoConfirm(ctx, f.owner.ID, autoConfirm)
	require.NoError(t, err)
	_, err = availability.GenerateSlots(ctx, f.owner.ID, june(1), june(1))
	require.NoError(t, err)
	slots, err := availability.ListOpenSlots(ctx, f.owner.ID, june(1), june(1))
	require.NoError(t, err)
	require.Len(t, slots, 3)

	for _, pid := range []int32{1, 3, 5} {
		f.store.AddProduct(pid, f.owner.ID)
	}
	f.store.AddProduct(7, f.owner2.ID)

	return &fittingEnv{fixture: f, svc: svc, availability: availability, cache: cache}, slots
}

func (e *fittingEnv) slotBooked(t *testing.T, slotID int32) bool {
	t.Helper()
	slot, err := e.store.Repos().Slots.GetByID(context.Background(), slotID)
	require.NoError(t, err)
	return slot.IsBooked
}

func TestFittingService_Book_Pending(t *testing.T) {
	notifier := &MockNotifier{}
	env, slots := newFittingEnv(t, false, notifier)
	notifier.On("Notify", env.owner.ID, domain.EventFittingBooked).Once()
	ctx := context.Background()

	fitting, err := env.svc.Book(ctx, env.customer.ID, slots[0].ID, []int32{5, 3, 5}, "size M")
	require.NoError(t, err)
	assert.Equal(t, domain.FittingStatusPending, fitting.Status)
	assert.Equal(t, env.owner.ID, fitting.OwnerID)
	assert.Equal(t, []int32{3, 5}, fitting.ProductIDs)
	assert.Equal(t, "size M", fitting.Note)
	assert.True(t, env.slotBooked(t, slots[0].ID))
	notifier.AssertExpectations(t)

	open, err := env.availability.ListOpenSlots(ctx, env.owner.ID, june(1), june(1))
	require.NoError(t, err)
	assert.Len(t, open, 2, "booking invalidates the cached listing")
}

func TestFittingService_Book_ChecksProducts(t *testing.T) {
	env, slots := newFittingEnv(t, false, nil)
	ctx := context.Background()

	_, err := env.svc.Book(ctx, env.customer.ID, slots[0].ID, []int32{3, 404}, "")
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "product", nf.Entity)
	assert.Equal(t, int32(404), nf.ID)

	_, err = env.svc.Book(ctx, env.customer.ID, slots[0].ID, []int32{7}, "")
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)

	assert.False(t, env.slotBooked(t, slots[0].ID), "a rejected booking must not hold the slot")
	_, err = env.svc.Book(ctx, env.customer.ID, slots[0].ID, []int32{3}, "")
	assert.NoError(t, err)
}

func TestFittingService_Book_AutoConfirm(t *testing.T) {
	notifier := &MockNotifier{}
	env, slots := newFittingEnv(t, true, notifier)
	notifier.On("Notify", env.owner.ID, domain.EventFittingBooked).Once()
	notifier.On("Notify", env.customer.ID, domain.EventFittingStatusChanged).Once()

	fitting, err := env.svc.Book(context.Background(), env.customer.ID, slots[1].ID, nil, "")
	require.NoError(t, err)
	assert.Equal(t, domain.FittingStatusConfirmed, fitting.Status)
	notifier.AssertExpectations(t)
}

func TestFittingService_Book_Rejections(t *testing.T) {
	env, slots := newFittingEnv(t, false, nil)
	ctx := context.Background()

	_, err := env.svc.Book(ctx, env.customer.ID, 9999, nil, "")
	var nf *domain.NotFoundError
	assert.ErrorAs(t, err, &nf)

	_, err = env.svc.Book(ctx, env.owner.ID, slots[0].ID, nil, "")
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = env.svc.Book(ctx, env.customer.ID, slots[0].ID, []int32{0}, "")
	assert.ErrorAs(t, err, &verr)

	_, err = env.svc.Book(ctx, env.customer.ID, slots[0].ID, nil, "")
	require.NoError(t, err)
	_, err = env.svc.Book(ctx, env.other.ID, slots[0].ID, nil, "")
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, slots[0].ID, conflict.SlotID)

	env.svc.now = fixedClock(june(2))
	_, err = env.svc.Book(ctx, env.customer.ID, slots[2].ID, nil, "")
	assert.ErrorAs(t, err, &verr, "past slot")
	assert.False(t, env.slotBooked(t, slots[2].ID))
}

func TestFittingService_Book_Concurrent(t *testing.T) {
	env, slots := newFittingEnv(t, false, nil)
	customers := []int32{env.customer.ID, env.other.ID}

	var (
		wg   sync.WaitGroup
		errs = make([]error, len(customers))
	)
	for i, customerID := range customers {
		i, customerID := i, customerID
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.svc.Book(context.Background(), customerID, slots[0].ID, nil, "")
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var conflict *domain.ConflictError
		assert.ErrorAs(t, err, &conflict)
	}
	assert.Equal(t, 1, succeeded)
}

func TestFittingService_Transition_Lifecycle(t *testing.T) {
	notifier := newMockNotifier()
	env, slots := newFittingEnv(t, false, notifier)
	ctx := context.Background()

	fitting, err := env.svc.Book(ctx, env.customer.ID, slots[0].ID, nil, "")
	require.NoError(t, err)

	_, err = env.svc.Transition(ctx, fitting.ID, env.customer.ID, domain.FittingStatusConfirmed)
	var authErr *domain.AuthorizationError
	require.ErrorAs(t, err, &authErr, "customers cannot confirm")

	confirmed, err := env.svc.Transition(ctx, fitting.ID, env.owner.ID, domain.FittingStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, domain.FittingStatusConfirmed, confirmed.Status)
	assert.True(t, env.slotBooked(t, slots[0].ID))

	completed, err := env.svc.Transition(ctx, fitting.ID, env.owner.ID, domain.FittingStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.FittingStatusCompleted, completed.Status)
	assert.True(t, env.slotBooked(t, slots[0].ID), "completed fitting keeps its slot")

	_, err = env.svc.Transition(ctx, fitting.ID, env.customer.ID, domain.FittingStatusCanceled)
	var transition *domain.StateTransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, string(domain.FittingStatusCompleted), transition.From)

	notifier.AssertCalled(t, "Notify", env.customer.ID, domain.EventFittingStatusChanged)
}

func TestFittingService_Transition_ReleasesSlot(t *testing.T) {
	tests := []struct {
		name  string
		to    domain.FittingStatus
		actor func(e *fittingEnv) int32
	}{
		{"customer cancels", domain.FittingStatusCanceled, func(e *fittingEnv) int32 { return e.customer.ID }},
		{"owner cancels", domain.FittingStatusCanceled, func(e *fittingEnv) int32 { return e.owner.ID }},
		{"owner rejects", domain.FittingStatusRejected, func(e *fittingEnv) int32 { return e.owner.ID }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, slots := newFittingEnv(t, false, nil)
			ctx := context.Background()

			fitting, err := env.svc.Book(ctx, env.customer.ID, slots[0].ID, nil, "")
			require.NoError(t, err)

			got, err := env.svc.Transition(ctx, fitting.ID, tt.actor(env), tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.to, got.Status)
			assert.False(t, env.slotBooked(t, slots[0].ID))

			rebooked, err := env.svc.Book(ctx, env.other.ID, slots[0].ID, nil, "")
			require.NoError(t, err)
			assert.Equal(t, slots[0].ID, rebooked.SlotID)
		})
	}
}

func TestFittingService_Transition_Invalid(t *testing.T) {
	env, slots := newFittingEnv(t, false, nil)
	ctx := context.Background()

	fitting, err := env.svc.Book(ctx, env.customer.ID, slots[0].ID, nil, "")
	require.NoError(t, err)

	_, err = env.svc.Transition(ctx, fitting.ID, env.owner.ID, "POSTPONED")
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = env.svc.Transition(ctx, fitting.ID, env.owner.ID, domain.FittingStatusCompleted)
	var transition *domain.StateTransitionError
	assert.ErrorAs(t, err, &transition, "PENDING cannot complete")

	_, err = env.svc.Transition(ctx, fitting.ID, env.other.ID, domain.FittingStatusCanceled)
	var authErr *domain.AuthorizationError
	assert.ErrorAs(t, err, &authErr)

	_, err = env.svc.Transition(ctx, 4242, env.owner.ID, domain.FittingStatusCanceled)
	var nf *domain.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

// Every slot is booked exactly when an active fitting holds it.
func TestFittingService_SlotConsistency(t *testing.T) {
	env, slots := newFittingEnv(t, false, nil)
	ctx := context.Background()

	a, err := env.svc.Book(ctx, env.customer.ID, slots[0].ID, nil, "")
	require.NoError(t, err)
	b, err := env.svc.Book(ctx, env.other.ID, slots[1].ID, nil, "")
	require.NoError(t, err)
	_, err = env.svc.Transition(ctx, a.ID, env.owner.ID, domain.FittingStatusConfirmed)
	require.NoError(t, err)
	_, err = env.svc.Transition(ctx, b.ID, env.owner.ID, domain.FittingStatusRejected)
	require.NoError(t, err)

	fittings, err := env.svc.ListFittings(ctx, env.owner.ID, domain.RoleOwner, "")
	require.NoError(t, err)
	require.Len(t, fittings, 2)
	holders := map[int32]bool{}
	for _, f := range fittings {
		if f.Status.HoldsSlot() {
			holders[f.SlotID] = true
		}
	}
	for _, slot := range slots {
		assert.Equal(t, holders[slot.ID], env.slotBooked(t, slot.ID), "slot %d", slot.ID)
	}
}

func TestFittingService_ListAndGet(t *testing.T) {
	env, slots := newFittingEnv(t, false, nil)
	ctx := context.Background()

	fitting, err := env.svc.Book(ctx, env.customer.ID, slots[2].ID, []int32{1}, "")
	require.NoError(t, err)
	_, err = env.svc.Book(ctx, env.customer.ID, slots[0].ID, nil, "")
	require.NoError(t, err)

	mine, err := env.svc.ListFittings(ctx, env.customer.ID, domain.RoleCustomer, "")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.True(t, mine[0].Slot.DateTime.Before(mine[1].Slot.DateTime), "ordered by slot time")

	pending, err := env.svc.ListFittings(ctx, env.owner.ID, domain.RoleOwner, domain.FittingStatusConfirmed)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = env.svc.ListFittings(ctx, env.owner.ID, domain.RoleOwner, "LATE")
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)

	got, err := env.svc.GetFitting(ctx, fitting.ID, env.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, []int32{1}, got.ProductIDs)
	require.NotNil(t, got.Slot)
	assert.True(t, got.Slot.DateTime.Equal(time.Date(2026, time.June, 1, 4, 0, 0, 0, time.UTC)))

	_, err = env.svc.GetFitting(ctx, fitting.ID, env.other.ID)
	var authErr *domain.AuthorizationError
	assert.ErrorAs(t, err, &authErr)
}
