package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type Cache struct {
	Client *redis.Client
}

func New(addr, pass string, db int) *Cache {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr, Password: pass, DB: db,
	})
	return &Cache{Client: rdb}
}

const soldOutKeyPrefix = "event:soldout:"

// IsSoldOut reports whether a recent reservation for this event hit a
// capacity conflict. Advisory only; cache trouble reads as "not sold
// out" so the conditional update stays the sole gatekeeper.
func (c *Cache) IsSoldOut(ctx context.Context, eventID uuid.UUID) (bool, error) {
	_, err := c.Client.Get(ctx, soldOutKeyPrefix+eventID.String()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (c *Cache) MarkSoldOut(ctx context.Context, eventID uuid.UUID, ttl time.Duration) error {
	return c.Client.Set(ctx, soldOutKeyPrefix+eventID.String(), "1", ttl).Err()
}

// ClearSoldOut drops the hint after a cancellation frees capacity.
func (c *Cache) ClearSoldOut(ctx context.Context, eventID uuid.UUID) error {
	return c.Client.Del(ctx, soldOutKeyPrefix+eventID.String()).Err()
}

// AllowRequest: simple fixed window rate limit.
func (c *Cache) AllowRequest(ctx context.Context, ip string, limit int, window time.Duration) (bool, error) {
	key := "ratelimit:" + ip
	count, err := c.Client.Incr(ctx, key).Result()
	if err != nil {
		return true, nil // fail open
	}
	if count == 1 {
		_ = c.Client.Expire(ctx, key, window).Err()
	}
	return count <= int64(limit), nil
}
