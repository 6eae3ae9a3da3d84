package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const defaultWriterLockTTL = 30 * time.Second

var ErrWriterLockLost = errors.New("writer lock lost")

// WriterLock makes sure only one instance runs the scheduler of a pool, using
// SET NX with a TTL that the holder keeps renewing. Request-driven mutations
// are serialized separately by PoolLock.
type WriterLock struct {
	rdb        *goredis.Client
	instanceID string
	key        string
	ttl        time.Duration
}

// NewWriterLock creates a lock for pool. instanceID should be unique per
// process (e.g. hostname-PID).
func NewWriterLock(rdb *goredis.Client, pool, instanceID string) *WriterLock {
	return &WriterLock{
		rdb:        rdb,
		instanceID: instanceID,
		key:        keyspace(pool).writer(),
		ttl:        defaultWriterLockTTL,
	}
}

func (l *WriterLock) TTL() time.Duration {
	return l.ttl
}

// TryAcquire returns false when another instance holds the lock.
func (l *WriterLock) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, l.key, l.instanceID, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire writer lock: %w", err)
	}
	return ok, nil
}

var renewScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
  return 0
end
`)

// Renew extends the lease. It fails with ErrWriterLockLost when the lock
// expired or is held by someone else.
func (l *WriterLock) Renew(ctx context.Context) error {
	n, err := renewScript.Run(ctx, l.rdb, []string{l.key}, l.instanceID, l.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to renew writer lock: %w", err)
	}
	if n == 0 {
		return ErrWriterLockLost
	}
	return nil
}

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

// Release gives the lock up if this instance still holds it.
func (l *WriterLock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.rdb, []string{l.key}, l.instanceID).Err(); err != nil {
		return fmt.Errorf("failed to release writer lock: %w", err)
	}
	return nil
}
