package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

const releaseTimeout = 5 * time.Second

// Lock is a TTL lease held by one instance at a time.
type Lock interface {
	TryAcquire(ctx context.Context) (bool, error)
	Renew(ctx context.Context) error
	Release(ctx context.Context) error
	TTL() time.Duration
}

// WriterLease runs work only while this instance holds the lock, so a single
// instance drives decay for a pool. The lease is renewed every ttl/3.
type WriterLease struct {
	lock     Lock
	clock    clockwork.Clock
	interval time.Duration
}

func NewWriterLease(lock Lock, clock clockwork.Clock) *WriterLease {
	return &WriterLease{
		lock:     lock,
		clock:    clock,
		interval: max(lock.TTL()/3, time.Second),
	}
}

// Run blocks until ctx is cancelled. Whenever the lock is acquired, fn starts
// in its own goroutine with a context that is cancelled when the lease is lost.
// A lost lease is retried on the next interval.
func (l *WriterLease) Run(ctx context.Context, fn func(context.Context)) {
	ticker := l.clock.NewTicker(l.interval)
	defer ticker.Stop()

	var (
		cancel context.CancelFunc
		done   chan struct{}
	)
	stop := func() {
		if cancel == nil {
			return
		}
		cancel()
		<-done
		cancel, done = nil, nil
	}

	defer func() {
		held := cancel != nil
		stop()
		if !held {
			return
		}
		releaseCtx, cancelRelease := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancelRelease()
		if err := l.lock.Release(releaseCtx); err != nil {
			slog.WarnContext(ctx, "Failed to release writer lease", "error", err)
			return
		}
		slog.InfoContext(ctx, "Writer lease released")
	}()

	for {
		if cancel == nil {
			acquired, err := l.lock.TryAcquire(ctx)
			switch {
			case err != nil:
				slog.WarnContext(ctx, "Writer lease acquisition failed", "error", err)
			case acquired:
				slog.InfoContext(ctx, "Writer lease acquired", "ttl", l.lock.TTL())
				var leaseCtx context.Context
				leaseCtx, cancel = context.WithCancel(ctx)
				done = make(chan struct{})
				go func(done chan struct{}) {
					defer close(done)
					fn(leaseCtx)
				}(done)
			}
		} else if err := l.lock.Renew(ctx); err != nil && ctx.Err() == nil {
			slog.WarnContext(ctx, "Writer lease lost, pausing writer", "error", err)
			stop()
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}
	}
}
