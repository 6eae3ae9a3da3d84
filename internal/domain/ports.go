package domain

import (
	"context"
	"time"
)

// StateRepository persists the single IntensityState record. Save must be
// atomic: a concurrent Load sees either the old or the new record.
// Load returns ErrStateNotFound when nothing was stored yet.
type StateRepository interface {
	Load(ctx context.Context) (IntensityState, error)
	Save(ctx context.Context, state IntensityState) error
}

// CooldownStore persists contributorID -> lastContributionAt separately from
// the state record so entries survive ledger pruning.
type CooldownStore interface {
	LoadCooldowns(ctx context.Context) (map[string]time.Time, error)
	RecordCooldown(ctx context.Context, contributorID string, at time.Time) error
	DeleteCooldowns(ctx context.Context, contributorIDs []string) error
}

// PoolLock serializes mutations of one pool across engine instances that
// share a StateRepository. Lock blocks until the lock is held or ctx is done.
type PoolLock interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

// ModifierProvider supplies the decay-rate multiplier derived from an external signal.
// Values > 1 speed decay up, values < 1 slow it down. Must be >= 0.
type ModifierProvider interface {
	CurrentDecayMultiplier(ctx context.Context) (float64, error)
}

// ContributionSource gates contributions on a spendable unit (inventory, entitlement).
// The engine never calls it; the application layer does, before and after Contribute.
type ContributionSource interface {
	HasUnit(ctx context.Context, contributorID string) (bool, error)
	ConsumeUnit(ctx context.Context, contributorID string) error
}

// StatusPublisher pushes status snapshots to presentation collaborators.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, status StatusView) error
}

// Engine is the public contract of the sustenance engine.
type Engine interface {
	Contribute(ctx context.Context, contributorID, label string, now time.Time) Result
	Status(ctx context.Context, now time.Time) StatusView
	Protect(ctx context.Context, contributorID, label string, duration time.Duration, now time.Time) Result
	CurrentMultiplier(ctx context.Context) float64
}
