// Package cache keeps open-slot listings in Redis. A nil *SlotCache, or one
// whose Redis is unreachable, behaves as a permanent miss.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"onrent-backend/internal/domain"
	"onrent-backend/internal/logger"
)

const (
	// slotVersionKeyFmt holds a per-owner counter; bumping it orphans every
	// cached listing of that owner, which then expire on their own.
	slotVersionKeyFmt = "slots:ver:%d"
	slotListKeyFmt    = "slots:%d:v%d:%d:%d"

	DefaultSlotTTL = 60 * time.Second
)

type SlotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// Connect dials Redis and pings it. On failure it returns a nil cache along
// with the error so callers can carry on without caching.
func Connect(ctx context.Context, addr, password string, db int, ttl time.Duration) (*SlotCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return New(client, ttl), nil
}

func New(client *redis.Client, ttl time.Duration) *SlotCache {
	if ttl <= 0 {
		ttl = DefaultSlotTTL
	}
	return &SlotCache{client: client, ttl: ttl}
}

func (c *SlotCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *SlotCache) version(ctx context.Context, ownerID int32) (int64, error) {
	v, err := c.client.Get(ctx, fmt.Sprintf(slotVersionKeyFmt, ownerID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return v, err
}

func listKey(ownerID int32, version int64, start, end time.Time) string {
	return fmt.Sprintf(slotListKeyFmt, ownerID, version, start.Unix(), end.Unix())
}

// GetSlots returns the cached listing together with the owner's version at
// read time. The version is -1 when it could not be read.
func (c *SlotCache) GetSlots(ctx context.Context, ownerID int32, start, end time.Time) ([]domain.FittingSlot, int64, bool) {
	if c == nil || c.client == nil {
		return nil, -1, false
	}
	ver, err := c.version(ctx, ownerID)
	if err != nil {
		return nil, -1, false
	}
	data, err := c.client.Get(ctx, listKey(ownerID, ver, start, end)).Bytes()
	if err != nil {
		return nil, ver, false
	}
	var slots []domain.FittingSlot
	if err := json.Unmarshal(data, &slots); err != nil {
		return nil, ver, false
	}
	return slots, ver, true
}

// SetSlots stores a listing under the version returned by the GetSlots miss
// that preceded the store read. An invalidation in between leaves the entry
// unreachable.
func (c *SlotCache) SetSlots(ctx context.Context, ownerID int32, version int64, start, end time.Time, slots []domain.FittingSlot) {
	if c == nil || c.client == nil || version < 0 {
		return
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, listKey(ownerID, version, start, end), data, c.ttl).Err(); err != nil {
		logger.Debug("Slot cache write failed", "ownerID", ownerID, "error", err)
	}
}

func (c *SlotCache) InvalidateOwner(ctx context.Context, ownerID int32) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Incr(ctx, fmt.Sprintf(slotVersionKeyFmt, ownerID)).Err(); err != nil {
		logger.Warn("Slot cache invalidation failed", "ownerID", ownerID, "error", err)
	}
}
