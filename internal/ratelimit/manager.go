package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Manager provides Redis-backed rate limiting for checkout creation and a
// fast-path dedup cache for processed webhook event ids. The cache is an
// optimization only; the orders table unique constraint remains the
// authority on duplicates.
type Manager struct {
	redis *redis.Client
}

func NewManager(redisURL string) (*Manager, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Manager{redis: client}, nil
}

func (m *Manager) Close() error { return m.redis.Close() }

// CheckRate returns allowed=false if the per-minute bucket for clientKey is
// exhausted; it also returns seconds until the window resets.
func (m *Manager) CheckRate(ctx context.Context, clientKey string, perMinute int) (allowed bool, resetSec int, err error) {
	now := time.Now().UTC()
	window := now.Unix() / 60 // minute window
	rk := fmt.Sprintf("rl:checkout:%s:%d", clientKey, window)
	// Use INCR and set TTL if first time
	pipe := m.redis.TxPipeline()
	incr := pipe.Incr(ctx, rk)
	pipe.Expire(ctx, rk, time.Minute)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return false, 0, err
	}
	count := int(incr.Val())
	if count > perMinute {
		secPassed := int(now.Unix() % 60)
		return false, 60 - secPassed, nil
	}
	return true, 0, nil
}

// MarkEventSeen records a webhook event id and reports whether it had
// already been recorded. SETNX makes the check-and-set atomic under
// concurrent deliveries of the same event.
func (m *Manager) MarkEventSeen(ctx context.Context, eventID string, ttl time.Duration) (alreadySeen bool, err error) {
	k := fmt.Sprintf("wh:event:%s", eventID)
	set, err := m.redis.SetNX(ctx, k, 1, ttl).Result()
	if err != nil {
		return false, err
	}
	return !set, nil
}

// ForgetEvent drops an event id from the cache so a failed handling attempt
// can be retried by the event source.
func (m *Manager) ForgetEvent(ctx context.Context, eventID string) error {
	return m.redis.Del(ctx, fmt.Sprintf("wh:event:%s", eventID)).Err()
}
