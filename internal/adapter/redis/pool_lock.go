package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/hearth/internal/domain"
)

const (
	defaultPoolLockTTL = 15 * time.Second
	poolLockMinBackoff = 10 * time.Millisecond
	poolLockMaxBackoff = 200 * time.Millisecond
)

var _ domain.PoolLock = (*PoolLock)(nil)

// PoolLock is a short-lived mutex around one engine mutation, shared by every
// replica serving the pool. Each Lock call gets its own token so a holder
// never releases a lock that expired and was taken by someone else.
type PoolLock struct {
	rdb *goredis.Client
	key string
	ttl time.Duration
}

func NewPoolLock(rdb *goredis.Client, pool string) *PoolLock {
	return &PoolLock{
		rdb: rdb,
		key: keyspace(pool).mutation(),
		ttl: defaultPoolLockTTL,
	}
}

func (l *PoolLock) Lock(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	backoff := poolLockMinBackoff

	for {
		ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire pool lock: %w", err)
		}
		if ok {
			return func() { l.unlock(token) }, nil
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("timed out waiting for pool lock: %w", ctx.Err())
		case <-timer.C:
		}
		backoff = min(backoff*2, poolLockMaxBackoff)
	}
}

func (l *PoolLock) unlock(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, l.rdb, []string{l.key}, token).Err(); err != nil {
		slog.Warn("Failed to release pool lock, it expires on its own", "key", l.key, "error", err)
	}
}
