package hearth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/hearth/internal/domain"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

// --- Test doubles ---

type modifierFunc func(ctx context.Context) (float64, error)

func (f modifierFunc) CurrentDecayMultiplier(ctx context.Context) (float64, error) {
	return f(ctx)
}

// flakyStore wraps MemoryStore with switchable failures.
type flakyStore struct {
	*MemoryStore

	mu          sync.Mutex
	saveErr     error
	cooldownErr error
	saves       int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: NewMemoryStore()}
}

func (f *flakyStore) Save(ctx context.Context, state domain.IntensityState) error {
	f.mu.Lock()
	err := f.saveErr
	f.saves++
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.MemoryStore.Save(ctx, state)
}

func (f *flakyStore) RecordCooldown(ctx context.Context, id string, at time.Time) error {
	f.mu.Lock()
	err := f.cooldownErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.MemoryStore.RecordCooldown(ctx, id, at)
}

func (f *flakyStore) failSaves(err error) {
	f.mu.Lock()
	f.saveErr = err
	f.mu.Unlock()
}

func (f *flakyStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

type brokenLoadStore struct{ *MemoryStore }

func (brokenLoadStore) Load(context.Context) (domain.IntensityState, error) {
	return domain.IntensityState{}, errors.New("disk on fire")
}

// recordingObserver captures observer calls.
type recordingObserver struct {
	noopObserver

	mu        sync.Mutex
	accepted  int
	rejected  []domain.Reason
	ticks     []TickReport
	persistOp []string
}

func (r *recordingObserver) ContributionAccepted(domain.Result) {
	r.mu.Lock()
	r.accepted++
	r.mu.Unlock()
}

func (r *recordingObserver) OperationRejected(_ string, reason domain.Reason) {
	r.mu.Lock()
	r.rejected = append(r.rejected, reason)
	r.mu.Unlock()
}

func (r *recordingObserver) TickCompleted(report TickReport, _ time.Duration) {
	r.mu.Lock()
	r.ticks = append(r.ticks, report)
	r.mu.Unlock()
}

func (r *recordingObserver) PersistFailed(op string) {
	r.mu.Lock()
	r.persistOp = append(r.persistOp, op)
	r.mu.Unlock()
}

func (r *recordingObserver) tickCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ticks)
}

// --- Helpers ---

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("c-%d", n)
	}
}

// newTestEngine seeds store with intensity at t0 and returns the engine.
func newTestEngine(t *testing.T, intensity float64, store interface {
	domain.StateRepository
	domain.CooldownStore
}, modifier domain.ModifierProvider, opts ...Option) (*Engine, *clockwork.FakeClock) {
	t.Helper()

	require.NoError(t, store.Save(context.Background(), domain.NewIntensityState(intensity, t0)))
	clock := clockwork.NewFakeClockAt(t0)
	opts = append([]Option{WithIDGenerator(sequentialIDs())}, opts...)
	engine, err := NewEngine(context.Background(), clock, store, store, modifier, DefaultSettings(), opts...)
	require.NoError(t, err)
	return engine, clock
}
