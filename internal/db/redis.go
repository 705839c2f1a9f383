package db

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// lastSeenTTL bounds the growth of per-visitor cadence records. The longest
// cadence is monthly, so anything older than this can never change a
// decision.
const lastSeenTTL = 90 * 24 * time.Hour

// RedisStore wraps a redis client and context for operations.
type RedisStore struct {
	Client *redis.Client
	Ctx    context.Context
}

// InitRedis initializes a Redis client and returns a RedisStore.
func InitRedis(addr string) (*RedisStore, error) {
	rs := &RedisStore{
		Client: redis.NewClient(&redis.Options{Addr: addr}),
		Ctx:    context.Background(),
	}

	if err := redisotel.InstrumentTracing(rs.Client); err != nil {
		return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
	}

	if err := rs.Client.Ping(rs.Ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	zap.L().Info("Connected to Redis", zap.String("addr", addr))
	return rs, nil
}

func lastSeenKey(visitorID, campaignID string) string {
	return fmt.Sprintf("lastseen:%s:%s", visitorID, campaignID)
}

// SetLastSeen records when a visitor last saw a campaign. Plain SET, so
// concurrent impressions resolve last-write-wins; a slightly stale cadence
// check shows a campaign one extra time at worst.
func (r *RedisStore) SetLastSeen(visitorID, campaignID string, t time.Time) error {
	return r.Client.Set(r.Ctx, lastSeenKey(visitorID, campaignID), t.Unix(), lastSeenTTL).Err()
}

// GetLastSeen returns when a visitor last saw a campaign. The second return
// value is false when there is no record, meaning "never seen".
func (r *RedisStore) GetLastSeen(visitorID, campaignID string) (time.Time, bool, error) {
	val, err := r.Client.Get(r.Ctx, lastSeenKey(visitorID, campaignID)).Int64()
	if err != nil {
		if err == redis.Nil {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return time.Unix(val, 0).UTC(), true, nil
}

// IncrementImpressions bumps the live impression counter for a campaign and
// returns the new value.
func (r *RedisStore) IncrementImpressions(campaignID string) (int64, error) {
	return r.Client.Incr(r.Ctx, fmt.Sprintf("camp:%s:impressions", campaignID)).Result()
}

// IncrementClicks bumps the live click counter for a campaign and returns
// the new value.
func (r *RedisStore) IncrementClicks(campaignID string) (int64, error) {
	return r.Client.Incr(r.Ctx, fmt.Sprintf("camp:%s:clicks", campaignID)).Result()
}

// GetLiveCounters returns the live impression and click counters for a
// campaign. Missing keys read as zero.
func (r *RedisStore) GetLiveCounters(campaignID string) (impressions, clicks int64, err error) {
	vals, err := r.Client.MGet(r.Ctx,
		fmt.Sprintf("camp:%s:impressions", campaignID),
		fmt.Sprintf("camp:%s:clicks", campaignID),
	).Result()
	if err != nil {
		return 0, 0, err
	}
	parse := func(v any) int64 {
		s, ok := v.(string)
		if !ok {
			return 0
		}
		var n int64
		_, _ = fmt.Sscan(s, &n)
		return n
	}
	return parse(vals[0]), parse(vals[1]), nil
}

// ResetLiveCounters clears the live counters for a campaign. Called on
// administrative analytics resets so the durable and live views agree.
func (r *RedisStore) ResetLiveCounters(campaignID string) error {
	return r.Client.Del(r.Ctx,
		fmt.Sprintf("camp:%s:impressions", campaignID),
		fmt.Sprintf("camp:%s:clicks", campaignID),
	).Err()
}

// Close shuts down the Redis client.
func (r *RedisStore) Close() {
	if r != nil && r.Client != nil {
		if err := r.Client.Close(); err != nil {
			zap.L().Error("redis close", zap.Error(err))
		}
	}
}
