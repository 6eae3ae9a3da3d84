package hearth

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/hearth/internal/platform/correlation"
)

const defaultCooldownGCInterval = 10 * time.Minute

// Scheduler drives the engine's periodic work: decay ticks, cooldown garbage
// collection and the midnight daily reset.
type Scheduler struct {
	engine     *Engine
	clock      clockwork.Clock
	interval   time.Duration
	gcInterval time.Duration
	location   *time.Location
	onTick     func(context.Context, TickReport)
}

type SchedulerOption func(*Scheduler)

// WithTickHook runs fn after every tick, e.g. to publish the new status.
func WithTickHook(fn func(context.Context, TickReport)) SchedulerOption {
	return func(s *Scheduler) { s.onTick = fn }
}

// WithResetLocation sets the time zone whose midnight triggers ResetDaily.
func WithResetLocation(loc *time.Location) SchedulerOption {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

func WithCooldownGCInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.gcInterval = d
		}
	}
}

func NewScheduler(engine *Engine, clock clockwork.Clock, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		engine:     engine,
		clock:      clock,
		interval:   engine.settings.DecayInterval,
		gcInterval: defaultCooldownGCInterval,
		location:   time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run ticks once immediately to catch up after downtime, then on every
// interval. It blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()
	gc := s.clock.NewTicker(s.gcInterval)
	defer gc.Stop()
	midnight := s.clock.NewTimer(s.untilMidnight())
	defer midnight.Stop()

	slog.InfoContext(ctx, "Hearth scheduler started", "interval", s.interval, "reset_location", s.location.String())
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Hearth scheduler stopped")
			return
		case <-ticker.Chan():
			s.tick(ctx)
		case <-gc.Chan():
			gcCtx := correlation.StartJob(ctx, "cooldown_gc")
			s.engine.PruneCooldowns(gcCtx, s.clock.Now())
		case <-midnight.Chan():
			resetCtx := correlation.StartJob(ctx, "daily_reset")
			s.engine.ResetDaily(resetCtx, s.clock.Now())
			midnight.Reset(s.untilMidnight())
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	tickCtx := correlation.StartJob(ctx, "tick")
	report := s.engine.Tick(tickCtx, s.clock.Now())
	if s.onTick != nil {
		s.onTick(tickCtx, report)
	}
}

func (s *Scheduler) untilMidnight() time.Duration {
	now := s.clock.Now().In(s.location)
	y, m, d := now.Date()
	next := time.Date(y, m, d+1, 0, 0, 0, 0, s.location)
	return next.Sub(now)
}
