package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jashub/parcelhub/models"
	"github.com/jashub/parcelhub/utils"
	"github.com/redis/go-redis/v9"
)

// ParcelCache caches parcel records by tracking number. Prices are never cached.
type ParcelCache interface {
	Get(ctx context.Context, trackingNumber string) (*models.Parcel, error)
	Set(ctx context.Context, parcel *models.Parcel) error
	Invalidate(ctx context.Context, trackingNumbers ...string) error
}

// RedisKey joins the configured prefix and a key suffix
func RedisKey(prefix, suffix string) string {
	return prefix + suffix
}

type redisParcelCache struct {
	rc     *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisParcelCache returns a Redis-backed cache. A nil client yields a cache that never hits.
func NewRedisParcelCache(rc *redis.Client, prefix string, ttl time.Duration) ParcelCache {
	if rc == nil {
		return NoopParcelCache{}
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &redisParcelCache{rc: rc, prefix: prefix, ttl: ttl}
}

func (c *redisParcelCache) key(trackingNumber string) string {
	return RedisKey(c.prefix, utils.ParcelCacheKey+utils.NormalizeTrackingNumber(trackingNumber))
}

// Get returns nil, nil on a miss
func (c *redisParcelCache) Get(ctx context.Context, trackingNumber string) (*models.Parcel, error) {
	bs, err := c.rc.Get(ctx, c.key(trackingNumber)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read parcel cache: %w", err)
	}

	var p models.Parcel
	if err := json.Unmarshal(bs, &p); err != nil {
		// corrupt entry, drop it and treat as a miss
		_ = c.rc.Del(ctx, c.key(trackingNumber)).Err()
		return nil, nil
	}
	return &p, nil
}

func (c *redisParcelCache) Set(ctx context.Context, parcel *models.Parcel) error {
	if parcel == nil {
		return nil
	}
	bs, err := json.Marshal(parcel)
	if err != nil {
		return fmt.Errorf("failed to encode parcel for cache: %w", err)
	}
	if err := c.rc.Set(ctx, c.key(parcel.TrackingNumber), bs, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write parcel cache: %w", err)
	}
	return nil
}

func (c *redisParcelCache) Invalidate(ctx context.Context, trackingNumbers ...string) error {
	if len(trackingNumbers) == 0 {
		return nil
	}
	keys := make([]string, 0, len(trackingNumbers))
	for _, tn := range trackingNumbers {
		keys = append(keys, c.key(tn))
	}
	if err := c.rc.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate parcel cache: %w", err)
	}
	return nil
}

// NoopParcelCache is used when caching is disabled
type NoopParcelCache struct{}

func (NoopParcelCache) Get(context.Context, string) (*models.Parcel, error) {
	return nil, nil
}

func (NoopParcelCache) Set(context.Context, *models.Parcel) error {
	return nil
}

func (NoopParcelCache) Invalidate(context.Context, ...string) error {
	return nil
}
