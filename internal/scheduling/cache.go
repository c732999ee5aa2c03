package scheduling

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clearslot/clearslot/pkg/logging"
)

// BusyCache keeps provider busy-interval responses in Redis for a short TTL.
// It is strictly cache-aside: any Redis failure falls through to the provider.
type BusyCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewBusyCache returns a cache, or nil when no Redis client is configured.
func NewBusyCache(client *redis.Client, ttl time.Duration, logger *logging.Logger) *BusyCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &BusyCache{client: client, ttl: ttl, logger: logger}
}

// Get returns cached intervals for the event type and window, if present.
func (c *BusyCache) Get(ctx context.Context, eventTypeID string, from, to time.Time) ([]BusyInterval, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, cacheKey(eventTypeID, from, to)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("busy cache read failed", "error", err)
		}
		return nil, false
	}
	var busy []BusyInterval
	if err := json.Unmarshal(raw, &busy); err != nil {
		c.logger.Debug("busy cache entry corrupt", "error", err)
		return nil, false
	}
	return busy, true
}

// Set stores intervals for the window. Failures are logged and ignored.
func (c *BusyCache) Set(ctx context.Context, eventTypeID string, from, to time.Time, busy []BusyInterval) {
	if c == nil {
		return
	}
	data, err := json.Marshal(busy)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(eventTypeID, from, to), data, c.ttl).Err(); err != nil {
		c.logger.Debug("busy cache write failed", "error", err)
	}
}

func cacheKey(eventTypeID string, from, to time.Time) string {
	return fmt.Sprintf("busy:%s:%d:%d", eventTypeID, from.Unix(), to.Unix())
}
