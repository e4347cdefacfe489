package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"onrent-backend/internal/domain"
	"onrent-backend/internal/repository/memory"
	"onrent-backend/internal/timeutil"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, n domain.Notification) {
	m.Called(n.UserID, n.Event)
}

func newMockNotifier() *MockNotifier {
	n := &MockNotifier{}
	n.On("Notify", mock.Anything, mock.Anything).Maybe()
	return n
}

// mapCache is an in-process SlotCache with per-owner versions. onMiss, when
// set, runs after a miss has reported its version.
type mapCache struct {
	mu          sync.Mutex
	entries     map[string][]domain.FittingSlot
	versions    map[int32]int64
	hits        int
	invalidated []int32
	onMiss      func(ownerID int32)
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string][]domain.FittingSlot{}, versions: map[int32]int64{}}
}

func cacheKey(ownerID int32, version int64, start, end time.Time) string {
	return fmt.Sprintf("%d:%d:%d:%d", ownerID, version, start.Unix(), end.Unix())
}

func (c *mapCache) GetSlots(_ context.Context, ownerID int32, start, end time.Time) ([]domain.FittingSlot, int64, bool) {
	c.mu.Lock()
	ver := c.versions[ownerID]
	slots, ok := c.entries[cacheKey(ownerID, ver, start, end)]
	if ok {
		c.hits++
	}
	hook := c.onMiss
	c.mu.Unlock()

	if !ok && hook != nil {
		hook(ownerID)
	}
	return slots, ver, ok
}

func (c *mapCache) SetSlots(_ context.Context, ownerID int32, version int64, start, end time.Time, slots []domain.FittingSlot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(ownerID, version, start, end)] = slots
}

func (c *mapCache) InvalidateOwner(_ context.Context, ownerID int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[ownerID]++
	c.invalidated = append(c.invalidated, ownerID)
}

type fixture struct {
	store    *memory.Store
	owner    domain.User
	owner2   domain.User
	customer domain.User
	other    domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore(2 * time.Second)
	return &fixture{
		store:    store,
		owner:    store.AddUser(domain.User{ID: 9, Email: "owner@example.com", Name: "Owner", Role: domain.RoleOwner}),
		owner2:   store.AddUser(domain.User{ID: 10, Email: "owner2@example.com", Name: "Owner Two", Role: domain.RoleOwner}),
		customer: store.AddUser(domain.User{ID: 20, Email: "cust@example.com", Name: "Customer", Role: domain.RoleCustomer}),
		other:    store.AddUser(domain.User{ID: 21, Email: "other@example.com", Name: "Other", Role: domain.RoleCustomer}),
	}
}

func (f *fixture) variant(ownerID int32, sku string) domain.Variant {
	return f.store.AddVariant(domain.Variant{ProductID: 1, OwnerID: ownerID, SKU: sku, IsAvailable: true})
}

// june returns the given June 2026 day at WIB midnight.
func june(day int) time.Time {
	return time.Date(2026, time.June, day, 0, 0, 0, 0, timeutil.WIB)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
