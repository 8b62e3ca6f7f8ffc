package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

var ErrLockHeld = errors.New("lock held by another owner")

// Locker is a best-effort mutual exclusion between app instances.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

type RedisLocker struct {
	cli   RedisClient
	owner string
}

// NewLocker prefixes lock tokens with the host name so a held lock can be
// traced to its instance with GET.
func NewLocker(c RedisClient) *RedisLocker {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return &RedisLocker{cli: c, owner: host}
}

// TryLock makes a single attempt and returns ErrLockHeld when the key is taken.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("lock %s: ttl must be positive", key)
	}
	token := l.owner + "/" + uuid.NewString()
	ok, err := l.cli.SetNX(ctx, key, token, ttl)
	if err != nil {
		return "", fmt.Errorf("lock %s: %w", key, err)
	}
	if !ok {
		return "", ErrLockHeld
	}
	return token, nil
}

// Unlock releases key only if token still owns it. A lock that expired and
// was taken over by another instance is left alone.
func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	if token == "" {
		return nil
	}
	if _, err := l.cli.DelIfEquals(ctx, key, token); err != nil {
		return fmt.Errorf("unlock %s: %w", key, err)
	}
	return nil
}
