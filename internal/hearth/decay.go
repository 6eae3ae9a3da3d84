package hearth

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/pscheid92/hearth/internal/domain"
)

// TickReport describes the outcome of one Tick.
type TickReport struct {
	Periods           int64
	Modifier          float64
	ModifierFallback  bool
	Protected         bool
	PreviousIntensity float64
	NewIntensity      float64
	Expired           int
	Persisted         bool
	PersistFailed     bool
}

// Tick applies catch-up decay for every whole DecayInterval elapsed since the
// last update, expires stale contributions and persists the result. It is
// idempotent for a fixed now and safe after arbitrarily long downtime.
//
// The modifier is queried outside the engine lock, and only when decay will
// actually be applied, so a slow provider never stalls Contribute or Status.
func (e *Engine) Tick(ctx context.Context, now time.Time) TickReport {
	started := e.clock.Now()

	modifier, fallback, fetched := 1.0, false, false
	if e.decayDue(ctx, now) {
		modifier, fallback = e.decayModifier(ctx)
		fetched = true
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	unlock, err := e.acquireLocked(ctx)
	if err != nil {
		e.lockFailed(ctx, "tick", err)
		report := TickReport{
			PreviousIntensity: e.state.Intensity,
			NewIntensity:      e.state.Intensity,
			Modifier:          1.0,
			PersistFailed:     true,
		}
		e.observer.TickCompleted(report, e.clock.Since(started))
		return report
	}
	defer unlock()

	report := TickReport{PreviousIntensity: e.state.Intensity, Modifier: 1.0}
	changed := false

	overlay := NewProtectionOverlay(&e.state.Protection)
	if overlay.ExpireIfDue(now) {
		slog.InfoContext(ctx, "Protection window expired")
		changed = true
	}
	report.Protected = overlay.IsActive(now)

	report.Periods = elapsedPeriods(e.state.LastUpdate, now, e.settings.DecayInterval)
	if report.Periods > 0 {
		if !report.Protected {
			if fetched {
				report.Modifier, report.ModifierFallback = modifier, fallback
			}
			e.state.Intensity = decayIntensity(e.state.Intensity, e.settings.BaseDecayRate, report.Modifier, report.Periods)
		}
		// Advance by whole periods so the remainder carries into the next tick.
		e.state.LastUpdate = e.state.LastUpdate.Add(time.Duration(report.Periods) * e.settings.DecayInterval)
		changed = true
	}

	report.Expired = e.ledger().PruneExpired(now)
	if report.Expired > 0 {
		changed = true
	}
	report.NewIntensity = e.state.Intensity

	if changed || e.dirty {
		if err := e.persist(ctx, "tick"); err != nil {
			report.PersistFailed = true
		} else {
			report.Persisted = true
		}
	}

	if report.Periods > 0 {
		slog.InfoContext(ctx, "Decay applied",
			"periods", report.Periods,
			"modifier", report.Modifier,
			"protected", report.Protected,
			"from", report.PreviousIntensity,
			"to", report.NewIntensity,
		)
	}
	if report.Expired > 0 {
		slog.InfoContext(ctx, "Contributions expired", "expired", report.Expired, "remaining", len(e.state.ActiveContributions))
	}
	if Classify(report.PreviousIntensity) != Classify(report.NewIntensity) {
		slog.InfoContext(ctx, "Band changed", "from", Classify(report.PreviousIntensity).String(), "to", Classify(report.NewIntensity).String())
	}

	e.observer.TickCompleted(report, e.clock.Since(started))
	e.observer.IntensityObserved(e.state.Intensity, len(e.state.ActiveContributions))
	return report
}

// decayDue peeks whether the next Tick at now would apply decay.
func (e *Engine) decayDue(ctx context.Context, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.poolLock != nil {
		if err := e.refreshLocked(ctx, false); err != nil {
			slog.WarnContext(ctx, "State reload failed, peeking at last known state", "error", err)
		}
	}

	p := e.state.Protection
	protected := p.Active && p.EndsAt.After(now)
	return !protected && elapsedPeriods(e.state.LastUpdate, now, e.settings.DecayInterval) > 0
}

type modifierReply struct {
	value float64
	err   error
}

// decayModifier queries the provider with a bounded timeout. Any failure,
// including a provider that ignores its context, yields the neutral 1.0.
func (e *Engine) decayModifier(ctx context.Context) (float64, bool) {
	ctx, cancel := context.WithTimeout(ctx, e.settings.ModifierTimeout)
	defer cancel()

	replyCh := make(chan modifierReply, 1)
	go func() {
		v, err := e.modifier.CurrentDecayMultiplier(ctx)
		replyCh <- modifierReply{value: v, err: err}
	}()

	var reply modifierReply
	select {
	case reply = <-replyCh:
	case <-ctx.Done():
		reply.err = ctx.Err()
	}

	if reply.err == nil && (math.IsNaN(reply.value) || math.IsInf(reply.value, 0) || reply.value < 0) {
		reply.err = errors.New("modifier out of range")
	}
	if reply.err != nil {
		slog.WarnContext(ctx, "Decay modifier unavailable, using neutral multiplier", "error", errors.Join(domain.ErrModifierUnavailable, reply.err))
		return 1.0, true
	}
	return reply.value, false
}

func elapsedPeriods(lastUpdate, now time.Time, interval time.Duration) int64 {
	if interval <= 0 || !now.After(lastUpdate) {
		return 0
	}
	return int64(now.Sub(lastUpdate) / interval)
}

func decayIntensity(intensity, baseRate, modifier float64, periods int64) float64 {
	return domain.ClampIntensity(intensity - baseRate*modifier*float64(periods))
}
