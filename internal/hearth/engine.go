package hearth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/hearth/internal/domain"
)

var _ domain.Engine = (*Engine)(nil)

// Engine owns the aggregate of one resource pool. Every method that touches
// the aggregate holds mu; callers only ever receive value snapshots. When
// several engines share one store, WithSharedState makes each mutation take
// the pool lock and reload the stored state first.
type Engine struct {
	mu sync.Mutex

	clock     clockwork.Clock
	repo      domain.StateRepository
	modifier  domain.ModifierProvider
	cooldowns *CooldownGuard
	settings  Settings
	observer  Observer
	newID     func() string
	poolLock  domain.PoolLock

	state domain.IntensityState
	// dirty is set when the in-memory state is ahead of the repository.
	dirty bool
}

type Option func(*Engine)

func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithIDGenerator overrides the contribution ID source (uuid by default).
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// WithSharedState serializes mutations through lock and reloads state and
// cooldowns from the stores before each one.
func WithSharedState(lock domain.PoolLock) Option {
	return func(e *Engine) { e.poolLock = lock }
}

// NewEngine loads the persisted state and cooldowns. A repository without
// state yields a fresh pool at Settings.InitialIntensity.
func NewEngine(ctx context.Context, clock clockwork.Clock, repo domain.StateRepository, cooldowns domain.CooldownStore, modifier domain.ModifierProvider, settings Settings, opts ...Option) (*Engine, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine settings: %w", err)
	}
	if modifier == nil {
		modifier = NeutralModifier
	}

	e := &Engine{
		clock:     clock,
		repo:      repo,
		modifier:  modifier,
		cooldowns: NewCooldownGuard(cooldowns, settings.UserCooldown),
		settings:  settings,
		observer:  noopObserver{},
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}

	now := clock.Now()
	loadCtx, cancel := context.WithTimeout(ctx, settings.SaveTimeout)
	defer cancel()

	if e.poolLock != nil {
		// Two replicas starting on an empty store must not both seed it.
		unlock, err := e.poolLock.Lock(loadCtx)
		if err != nil {
			return nil, fmt.Errorf("failed to lock pool: %w", err)
		}
		defer unlock()
	}

	state, err := repo.Load(loadCtx)
	switch {
	case errors.Is(err, domain.ErrStateNotFound):
		slog.InfoContext(ctx, "No stored hearth state, starting a new pool", "intensity", settings.InitialIntensity)
		e.state = domain.NewIntensityState(settings.InitialIntensity, now)
		e.dirty = true
	case err != nil:
		return nil, fmt.Errorf("failed to load hearth state: %w", err)
	default:
		e.state = normalizeState(state, now)
	}

	if err := e.cooldowns.Load(loadCtx); err != nil {
		return nil, err
	}

	if e.dirty {
		_ = e.persist(ctx, "init")
	}

	e.observer.IntensityObserved(e.state.Intensity, len(e.state.ActiveContributions))
	slog.InfoContext(ctx, "Hearth engine loaded",
		"intensity", e.state.Intensity,
		"active_contributions", len(e.state.ActiveContributions),
		"cooldowns", e.cooldowns.Len(),
	)
	return e, nil
}

func normalizeState(s domain.IntensityState, now time.Time) domain.IntensityState {
	s = s.Clone()
	s.Intensity = domain.ClampIntensity(s.Intensity)
	if s.LastUpdate.IsZero() {
		s.LastUpdate = now
	}
	return s
}

// Contribute adds one contribution for contributorID. Rejections (cooldown,
// capacity, unavailable storage) come back as Result values.
func (e *Engine) Contribute(ctx context.Context, contributorID, label string, now time.Time) domain.Result {
	if contributorID == "" {
		return e.reject("contribute", domain.Result{Reason: domain.ReasonInvalidContributor, Message: "A contributor id is required."})
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	unlock, err := e.acquireLocked(ctx)
	if err != nil {
		return e.unavailable(ctx, "contribute", err, "The hearth could not be updated right now. Please try again.")
	}
	defer unlock()

	before := e.state.Intensity
	base := e.baseResultLocked()

	if ok, retryAt := e.cooldowns.CanContribute(contributorID, now); !ok {
		base.Reason = domain.ReasonCooldownActive
		base.RetryAt = retryAt
		base.Message = fmt.Sprintf("You can contribute again in %s.", formatRemaining(retryAt.Sub(now)))
		return e.reject("contribute", base)
	}

	if before >= domain.MaxIntensity {
		base.Reason = domain.ReasonCapacityReached
		base.Message = "The hearth is already at full intensity. Keep your unit for later."
		return e.reject("contribute", base)
	}

	prev, prevDirty := e.state.Clone(), e.dirty

	after, active := e.ledger().Add(contributorID, label, now)
	last := e.state.ActiveContributions[len(e.state.ActiveContributions)-1]
	e.state.Counters.DailyCount++
	e.state.Counters.LifetimeCount++
	e.state.Counters.LastContribution = &last

	if err := e.persist(ctx, "contribute"); err != nil {
		e.state, e.dirty = prev, prevDirty
		return e.unavailable(ctx, "contribute", err, "The hearth could not be updated right now. Please try again.")
	}

	if err := e.cooldowns.RecordContribution(ctx, contributorID, now); err != nil {
		slog.WarnContext(ctx, "Cooldown persist failed, keeping in-memory record", "contributor_id", contributorID, "error", err)
		e.observer.PersistFailed("cooldown")
	}

	result := domain.Result{
		OK:                  true,
		PreviousIntensity:   before,
		NewIntensity:        after,
		Band:                Classify(after),
		BandChanged:         Classify(before) != Classify(after),
		ActiveContributions: active,
	}
	result.Message = fmt.Sprintf("Contribution added (%.1f%% → %.1f%%). Active contributions: %d.", before, after, active)
	if result.BandChanged {
		result.Message += fmt.Sprintf(" The hearth is now %s!", BandLabel(result.Band))
	}

	slog.InfoContext(ctx, "Contribution added",
		"contributor_id", contributorID,
		"label", label,
		"from", before,
		"to", after,
		"active", active,
	)
	e.observer.ContributionAccepted(result)
	e.observer.IntensityObserved(after, active)
	return result
}

// Protect opens or extends the protection window by duration.
func (e *Engine) Protect(ctx context.Context, contributorID, label string, duration time.Duration, now time.Time) domain.Result {
	if contributorID == "" {
		return e.reject("protect", domain.Result{Reason: domain.ReasonInvalidContributor, Message: "A contributor id is required."})
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if duration <= 0 {
		base := e.baseResultLocked()
		base.Reason = domain.ReasonInvalidDuration
		base.Message = "Protection duration must be positive."
		return e.reject("protect", base)
	}

	unlock, err := e.acquireLocked(ctx)
	if err != nil {
		return e.unavailable(ctx, "protect", err, "The protection could not be activated right now. Please try again.")
	}
	defer unlock()

	base := e.baseResultLocked()

	prev, prevDirty := e.state.Clone(), e.dirty
	overlay := NewProtectionOverlay(&e.state.Protection)
	wasActive := overlay.IsActive(now)
	endsAt := overlay.Activate(contributorID, label, duration, now)

	if err := e.persist(ctx, "protect"); err != nil {
		e.state, e.dirty = prev, prevDirty
		return e.unavailable(ctx, "protect", err, "The protection could not be activated right now. Please try again.")
	}

	base.OK = true
	base.ProtectionEndsAt = endsAt
	if wasActive {
		base.Message = fmt.Sprintf("Protection extended by %s (%s remaining).", formatRemaining(duration), formatRemaining(endsAt.Sub(now)))
	} else {
		base.Message = fmt.Sprintf("Protection active for %s.", formatRemaining(duration))
	}

	slog.InfoContext(ctx, "Protection activated",
		"contributor_id", contributorID,
		"duration", duration,
		"ends_at", endsAt,
		"stacked", wasActive,
	)
	e.observer.ProtectionActivated(duration)
	return base
}

// Status returns a snapshot at now. It clears an elapsed protection window
// but never applies decay. With shared state it reads the stored state and
// leaves the expiry to the next tick.
func (e *Engine) Status(ctx context.Context, now time.Time) domain.StatusView {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.poolLock != nil {
		if err := e.refreshLocked(ctx, false); err != nil {
			slog.WarnContext(ctx, "State reload failed, serving last known status", "error", err)
		}
		return e.viewLocked(now)
	}

	if NewProtectionOverlay(&e.state.Protection).ExpireIfDue(now) {
		slog.InfoContext(ctx, "Protection window expired")
		_ = e.persist(ctx, "status")
	}
	return e.viewLocked(now)
}

// CurrentMultiplier is the reward multiplier of the current band.
func (e *Engine) CurrentMultiplier(ctx context.Context) float64 {
	return e.Status(ctx, e.clock.Now()).Multiplier
}

// ResetDaily zeroes the daily contribution counter.
func (e *Engine) ResetDaily(ctx context.Context, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	unlock, err := e.acquireLocked(ctx)
	if err != nil {
		e.lockFailed(ctx, "daily_reset", err)
		return
	}
	defer unlock()

	previous := e.state.Counters.DailyCount
	e.state.Counters.DailyCount = 0
	_ = e.persist(ctx, "daily_reset")
	slog.InfoContext(ctx, "Daily counters reset", "previous_daily_count", previous, "at", now)
}

// ResetSeason relights the pool: ledger, protection and counters are cleared
// and intensity returns to Settings.InitialIntensity.
func (e *Engine) ResetSeason(ctx context.Context, now time.Time) domain.StatusView {
	e.mu.Lock()
	defer e.mu.Unlock()

	unlock, err := e.acquireLocked(ctx)
	if err != nil {
		e.lockFailed(ctx, "season_reset", err)
		return e.viewLocked(now)
	}
	defer unlock()

	lifetime := e.state.Counters.LifetimeCount
	e.state = domain.NewIntensityState(e.settings.InitialIntensity, now)
	_ = e.persist(ctx, "season_reset")
	slog.InfoContext(ctx, "Season reset", "lifetime_count", lifetime)
	return e.viewLocked(now)
}

// PruneCooldowns drops cooldown records whose window has elapsed.
func (e *Engine) PruneCooldowns(ctx context.Context, now time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	unlock, err := e.acquireLocked(ctx)
	if err != nil {
		e.lockFailed(ctx, "cooldown_prune", err)
		return 0
	}
	defer unlock()

	n, err := e.cooldowns.Prune(ctx, now)
	if err != nil {
		slog.WarnContext(ctx, "Cooldown prune failed", "error", err)
		e.observer.PersistFailed("cooldown_prune")
		return 0
	}
	if n > 0 {
		slog.InfoContext(ctx, "Cleaned expired cooldowns", "count", n)
	}
	return n
}

// Flush saves pending in-memory changes, if any. Shared state is never
// flushed: a copy that failed to save is stale once another replica writes.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.dirty || e.poolLock != nil {
		return nil
	}
	return e.persist(ctx, "flush")
}

// State returns a deep copy of the aggregate.
func (e *Engine) State() domain.IntensityState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

func (e *Engine) viewLocked(now time.Time) domain.StatusView {
	band := Classify(e.state.Intensity)
	ledger := e.ledger()

	view := domain.StatusView{
		Intensity:               e.state.Intensity,
		Band:                    band,
		BandLabel:               BandLabel(band),
		Emoji:                   BandEmoji(band),
		Color:                   BandColor(band),
		Multiplier:              Multiplier(band),
		ActiveContributionCount: ledger.ActiveCountAt(now),
		NextDecayAt:             e.state.LastUpdate.Add(e.settings.DecayInterval),
		LastUpdate:              e.state.LastUpdate,
		DailyCount:              e.state.Counters.DailyCount,
		LifetimeCount:           e.state.Counters.LifetimeCount,
	}
	if next, ok := ledger.NextExpiryAt(now); ok {
		view.NextExpiryAt = next
	}
	if last := e.state.Counters.LastContribution; last != nil {
		c := *last
		view.LastContribution = &c
	}

	overlay := NewProtectionOverlay(&e.state.Protection)
	if overlay.IsActive(now) {
		p := e.state.Protection
		view.Protection = domain.ProtectionStatus{
			Active:       true,
			EndsAt:       p.EndsAt,
			ActivatedBy:  p.ActivatedBy,
			Remaining:    overlay.RemainingTime(now),
			Contributors: append([]domain.ProtectionContributor(nil), p.Contributors...),
		}
	}
	return view
}

// acquireLocked takes the pool lock and reloads state and cooldowns, so the
// caller mutates the latest stored version. Without shared state it is a no-op.
func (e *Engine) acquireLocked(ctx context.Context) (func(), error) {
	if e.poolLock == nil {
		return func() {}, nil
	}

	lockCtx, cancel := context.WithTimeout(ctx, e.settings.SaveTimeout)
	defer cancel()

	unlock, err := e.poolLock.Lock(lockCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to lock pool: %w", err)
	}
	if err := e.refreshLocked(lockCtx, true); err != nil {
		unlock()
		return nil, err
	}
	return unlock, nil
}

// refreshLocked replaces the in-memory aggregate with the stored one. A store
// without state keeps the current aggregate.
func (e *Engine) refreshLocked(ctx context.Context, withCooldowns bool) error {
	loadCtx, cancel := context.WithTimeout(ctx, e.settings.SaveTimeout)
	defer cancel()

	state, err := e.repo.Load(loadCtx)
	switch {
	case errors.Is(err, domain.ErrStateNotFound):
	case err != nil:
		return fmt.Errorf("failed to reload hearth state: %w", err)
	default:
		e.state = normalizeState(state, e.clock.Now())
		e.dirty = false
	}

	if withCooldowns {
		return e.cooldowns.Load(loadCtx)
	}
	return nil
}

func (e *Engine) lockFailed(ctx context.Context, op string, err error) {
	e.observer.PersistFailed(op)
	slog.WarnContext(ctx, "Pool lock unavailable, skipping", "op", op, "error", err)
}

func (e *Engine) baseResultLocked() domain.Result {
	return domain.Result{
		PreviousIntensity:   e.state.Intensity,
		NewIntensity:        e.state.Intensity,
		Band:                Classify(e.state.Intensity),
		ActiveContributions: len(e.state.ActiveContributions),
	}
}

func (e *Engine) unavailable(ctx context.Context, op string, err error, message string) domain.Result {
	slog.WarnContext(ctx, "Operation failed, storage unavailable", "op", op, "error", err)
	base := e.baseResultLocked()
	base.Reason = domain.ReasonUnavailable
	base.Message = message
	return e.reject(op, base)
}

func (e *Engine) ledger() *Ledger {
	l := NewLedger(&e.state, e.settings.LogBonus, e.settings.LogLifetime)
	l.newID = e.newID
	return l
}

// persist saves the aggregate. On failure the in-memory state is kept and
// marked dirty so the next tick or flush retries.
func (e *Engine) persist(ctx context.Context, op string) error {
	saveCtx, cancel := context.WithTimeout(ctx, e.settings.SaveTimeout)
	defer cancel()

	if err := e.repo.Save(saveCtx, e.state.Clone()); err != nil {
		e.dirty = true
		e.observer.PersistFailed(op)
		slog.WarnContext(ctx, "Persist failed, will retry", "op", op, "error", err)
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	e.dirty = false
	return nil
}

func (e *Engine) reject(op string, r domain.Result) domain.Result {
	r.OK = false
	e.observer.OperationRejected(op, r.Reason)
	return r
}

// formatRemaining renders a duration as "2h 15min", "3h" or "45min".
func formatRemaining(d time.Duration) string {
	if d <= 0 {
		return "a moment"
	}
	totalMinutes := int(d.Minutes())
	hours, minutes := totalMinutes/60, totalMinutes%60
	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%dh %dmin", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	case minutes > 0:
		return fmt.Sprintf("%dmin", minutes)
	default:
		return "less than a minute"
	}
}
