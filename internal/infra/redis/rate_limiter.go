package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// RateLimiter counts hits per key in fixed windows aligned to the epoch.
// Every window has its own counter key.
type RateLimiter struct {
	client RedisClient
	now    func() time.Time
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

// Allow reports whether one more hit on key fits into limit for the current
// window. limit <= 0 means unlimited.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	if window <= 0 {
		window = time.Minute
	}
	bucket := r.windowKey(key, window)
	count, err := r.client.Incr(ctx, bucket)
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, bucket, window+time.Second); err != nil {
			return false, fmt.Errorf("rate limit expire %s: %w", key, err)
		}
	}
	return count <= int64(limit), nil
}

func (r *RateLimiter) windowKey(key string, window time.Duration) string {
	return key + ":" + strconv.FormatInt(r.now().UnixNano()/int64(window), 10)
}

// SubmitProofKey scopes proof submissions to one tenant.
func SubmitProofKey(tenantID string) string {
	return "rate_limit:submit_proof:" + tenantID
}
