package hearth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/hearth/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine_SeedsMissingState(t *testing.T) {
	store := NewMemoryStore()
	clock := clockwork.NewFakeClockAt(t0)

	engine, err := NewEngine(context.Background(), clock, store, store, nil, DefaultSettings())
	require.NoError(t, err)

	state := engine.State()
	assert.Equal(t, 60.0, state.Intensity)
	assert.Equal(t, t0, state.LastUpdate)
	assert.Empty(t, state.ActiveContributions)

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 60.0, stored.Intensity)
}

func TestNewEngine_NormalizesLoadedState(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), domain.IntensityState{Intensity: 140}))

	engine, err := NewEngine(context.Background(), clockwork.NewFakeClockAt(t0), store, store, nil, DefaultSettings())
	require.NoError(t, err)

	state := engine.State()
	assert.Equal(t, 100.0, state.Intensity)
	assert.Equal(t, t0, state.LastUpdate)
	assert.NotNil(t, state.ActiveContributions)
}

func TestNewEngine_LoadError(t *testing.T) {
	store := brokenLoadStore{NewMemoryStore()}

	_, err := NewEngine(context.Background(), clockwork.NewFakeClockAt(t0), store, store, nil, DefaultSettings())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestNewEngine_InvalidSettings(t *testing.T) {
	settings := DefaultSettings()
	settings.DecayInterval = 0
	store := NewMemoryStore()

	_, err := NewEngine(context.Background(), clockwork.NewFakeClockAt(t0), store, store, nil, settings)
	require.Error(t, err)
}

func TestContribute_Scenario1_AddsBonus(t *testing.T) {
	engine, _ := newTestEngine(t, 60, NewMemoryStore(), nil)

	res := engine.Contribute(context.Background(), "alice", "oak log", t0)

	require.True(t, res.OK)
	assert.Equal(t, 60.0, res.PreviousIntensity)
	assert.Equal(t, 68.0, res.NewIntensity)
	assert.Equal(t, 1, res.ActiveContributions)
	// 60 sits on the inclusive upper bound of Medium, 68 is High.
	assert.True(t, res.BandChanged)
	assert.Equal(t, domain.BandHigh, res.Band)
	assert.Contains(t, res.Message, "Vigorous")
}

func TestContribute_BandUnchangedWithinBand(t *testing.T) {
	engine, _ := newTestEngine(t, 40, NewMemoryStore(), nil)

	res := engine.Contribute(context.Background(), "alice", "", t0)

	require.True(t, res.OK)
	assert.Equal(t, 48.0, res.NewIntensity)
	assert.False(t, res.BandChanged)
}

func TestContribute_Scenario2_ClampsAtMax(t *testing.T) {
	engine, _ := newTestEngine(t, 92, NewMemoryStore(), nil)

	res := engine.Contribute(context.Background(), "alice", "", t0)

	require.True(t, res.OK)
	assert.Equal(t, 100.0, res.NewIntensity)
}

func TestContribute_CapacityReached(t *testing.T) {
	obs := &recordingObserver{}
	engine, _ := newTestEngine(t, 100, NewMemoryStore(), nil, WithObserver(obs))

	res := engine.Contribute(context.Background(), "alice", "", t0)

	assert.False(t, res.OK)
	assert.Equal(t, domain.ReasonCapacityReached, res.Reason)
	assert.Equal(t, 100.0, res.NewIntensity)
	assert.Empty(t, engine.State().ActiveContributions)
	assert.Equal(t, []domain.Reason{domain.ReasonCapacityReached}, obs.rejected)

	// Capacity rejection leaves no cooldown behind.
	ok, _ := engine.cooldowns.CanContribute("alice", t0)
	assert.True(t, ok)
}

func TestContribute_EmptyContributor(t *testing.T) {
	engine, _ := newTestEngine(t, 50, NewMemoryStore(), nil)

	res := engine.Contribute(context.Background(), "", "", t0)

	assert.False(t, res.OK)
	assert.Equal(t, domain.ReasonInvalidContributor, res.Reason)
	assert.ErrorIs(t, res.Reason.Err(), domain.ErrInvalidContributor)
}

func TestContribute_CooldownLaw(t *testing.T) {
	engine, _ := newTestEngine(t, 10, NewMemoryStore(), nil)
	ctx := context.Background()
	cooldown := DefaultSettings().UserCooldown

	require.True(t, engine.Contribute(ctx, "alice", "", t0).OK)

	res := engine.Contribute(ctx, "alice", "", t0.Add(cooldown-time.Nanosecond))
	assert.False(t, res.OK)
	assert.Equal(t, domain.ReasonCooldownActive, res.Reason)
	assert.Equal(t, t0.Add(cooldown), res.RetryAt)
	assert.Equal(t, 18.0, res.NewIntensity)

	res = engine.Contribute(ctx, "alice", "", t0.Add(cooldown))
	assert.True(t, res.OK)
	assert.Equal(t, 26.0, res.NewIntensity)
}

func TestContribute_CooldownIsPerContributor(t *testing.T) {
	engine, _ := newTestEngine(t, 10, NewMemoryStore(), nil)
	ctx := context.Background()

	require.True(t, engine.Contribute(ctx, "alice", "", t0).OK)
	assert.True(t, engine.Contribute(ctx, "bob", "", t0).OK)
}

func TestContribute_CooldownMessage(t *testing.T) {
	engine, _ := newTestEngine(t, 10, NewMemoryStore(), nil)
	ctx := context.Background()

	require.True(t, engine.Contribute(ctx, "alice", "", t0).OK)
	res := engine.Contribute(ctx, "alice", "", t0.Add(3*time.Hour+45*time.Minute))

	assert.Equal(t, "You can contribute again in 2h 15min.", res.Message)
}

func TestContribute_CooldownCheckedBeforeCapacity(t *testing.T) {
	engine, _ := newTestEngine(t, 95, NewMemoryStore(), nil)
	ctx := context.Background()

	require.True(t, engine.Contribute(ctx, "alice", "", t0).OK)
	res := engine.Contribute(ctx, "alice", "", t0.Add(time.Minute))

	assert.Equal(t, domain.ReasonCooldownActive, res.Reason)
}

func TestContribute_UpdatesCounters(t *testing.T) {
	engine, _ := newTestEngine(t, 10, NewMemoryStore(), nil)
	ctx := context.Background()

	engine.Contribute(ctx, "alice", "birch", t0)
	engine.Contribute(ctx, "bob", "pine", t0.Add(time.Minute))

	state := engine.State()
	assert.Equal(t, 2, state.Counters.DailyCount)
	assert.Equal(t, 2, state.Counters.LifetimeCount)
	require.NotNil(t, state.Counters.LastContribution)
	assert.Equal(t, "bob", state.Counters.LastContribution.ContributorID)
	assert.Equal(t, "pine", state.Counters.LastContribution.Label)
}

func TestContribute_PersistFailureRollsBack(t *testing.T) {
	store := newFlakyStore()
	obs := &recordingObserver{}
	engine, _ := newTestEngine(t, 40, store, nil, WithObserver(obs))
	store.failSaves(errors.New("connection reset"))

	res := engine.Contribute(context.Background(), "alice", "", t0)

	assert.False(t, res.OK)
	assert.Equal(t, domain.ReasonUnavailable, res.Reason)
	assert.Equal(t, 40.0, res.NewIntensity)

	state := engine.State()
	assert.Equal(t, 40.0, state.Intensity)
	assert.Empty(t, state.ActiveContributions)
	assert.Zero(t, state.Counters.LifetimeCount)

	ok, _ := engine.cooldowns.CanContribute("alice", t0)
	assert.True(t, ok, "failed contribution must not start a cooldown")
	assert.Contains(t, obs.persistOp, "contribute")
}

func TestContribute_CooldownPersistFailureStillApplies(t *testing.T) {
	store := newFlakyStore()
	engine, _ := newTestEngine(t, 40, store, nil)
	store.cooldownErr = errors.New("redis down")

	require.True(t, engine.Contribute(context.Background(), "alice", "", t0).OK)

	ok, _ := engine.cooldowns.CanContribute("alice", t0.Add(time.Hour))
	assert.False(t, ok)
}

func TestContribute_ConcurrentNoLostUpdate(t *testing.T) {
	engine, _ := newTestEngine(t, 0, NewMemoryStore(), nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		wg.Go(func() {
			engine.Contribute(ctx, id, "", t0)
		})
	}
	wg.Wait()

	state := engine.State()
	assert.Equal(t, 40.0, state.Intensity)
	assert.Len(t, state.ActiveContributions, 5)
}

func TestProtect_StackingLaw(t *testing.T) {
	engine, _ := newTestEngine(t, 50, NewMemoryStore(), nil)
	ctx := context.Background()

	first := engine.Protect(ctx, "alice", "tarp", 2*time.Hour, t0)
	require.True(t, first.OK)
	assert.Equal(t, t0.Add(2*time.Hour), first.ProtectionEndsAt)

	second := engine.Protect(ctx, "bob", "tarp", time.Hour, t0.Add(30*time.Minute))
	require.True(t, second.OK)
	assert.Equal(t, t0.Add(3*time.Hour), second.ProtectionEndsAt)
	assert.Contains(t, second.Message, "extended")

	p := engine.State().Protection
	assert.Equal(t, "alice", p.ActivatedBy)
	require.Len(t, p.Contributors, 2)
	assert.Equal(t, "bob", p.Contributors[1].ContributorID)
}

func TestProtect_AfterExpiryStartsFresh(t *testing.T) {
	engine, _ := newTestEngine(t, 50, NewMemoryStore(), nil)
	ctx := context.Background()

	engine.Protect(ctx, "alice", "", time.Hour, t0)
	res := engine.Protect(ctx, "bob", "", time.Hour, t0.Add(2*time.Hour))

	require.True(t, res.OK)
	assert.Equal(t, t0.Add(3*time.Hour), res.ProtectionEndsAt)
	p := engine.State().Protection
	assert.Equal(t, "bob", p.ActivatedBy)
	assert.Len(t, p.Contributors, 1)
}

func TestProtect_InvalidDuration(t *testing.T) {
	engine, _ := newTestEngine(t, 50, NewMemoryStore(), nil)

	for _, d := range []time.Duration{0, -time.Minute} {
		res := engine.Protect(context.Background(), "alice", "", d, t0)
		assert.False(t, res.OK)
		assert.Equal(t, domain.ReasonInvalidDuration, res.Reason)
	}
	assert.False(t, engine.State().Protection.Active)
}

func TestProtect_PersistFailureRollsBack(t *testing.T) {
	store := newFlakyStore()
	engine, _ := newTestEngine(t, 50, store, nil)
	store.failSaves(errors.New("timeout"))

	res := engine.Protect(context.Background(), "alice", "", time.Hour, t0)

	assert.Equal(t, domain.ReasonUnavailable, res.Reason)
	assert.False(t, engine.State().Protection.Active)
}

func TestStatus_View(t *testing.T) {
	engine, _ := newTestEngine(t, 50, NewMemoryStore(), nil)
	ctx := context.Background()

	engine.Contribute(ctx, "alice", "oak", t0)
	engine.Contribute(ctx, "bob", "oak", t0.Add(time.Hour))
	engine.Protect(ctx, "carol", "tarp", 90*time.Minute, t0.Add(time.Hour))

	view := engine.Status(ctx, t0.Add(2*time.Hour))

	assert.Equal(t, 66.0, view.Intensity)
	assert.Equal(t, domain.BandHigh, view.Band)
	assert.Equal(t, "Vigorous", view.BandLabel)
	assert.Equal(t, 1.35, view.Multiplier)
	assert.Equal(t, 2, view.ActiveContributionCount)
	assert.Equal(t, t0.Add(12*time.Hour), view.NextExpiryAt)
	assert.Equal(t, t0.Add(30*time.Minute), view.NextDecayAt)
	assert.True(t, view.Protection.Active)
	assert.Equal(t, "carol", view.Protection.ActivatedBy)
	assert.Equal(t, 30*time.Minute, view.Protection.Remaining)
	assert.Equal(t, 2, view.DailyCount)
	require.NotNil(t, view.LastContribution)
	assert.Equal(t, "bob", view.LastContribution.ContributorID)
}

func TestStatus_LazyProtectionExpiry(t *testing.T) {
	engine, _ := newTestEngine(t, 50, NewMemoryStore(), nil)
	ctx := context.Background()

	engine.Protect(ctx, "alice", "", time.Hour, t0)
	view := engine.Status(ctx, t0.Add(time.Hour))

	assert.False(t, view.Protection.Active)
	assert.False(t, engine.State().Protection.Active)
}

func TestStatus_DoesNotDecayOrPrune(t *testing.T) {
	engine, _ := newTestEngine(t, 50, NewMemoryStore(), nil)
	ctx := context.Background()
	engine.Contribute(ctx, "alice", "", t0)

	view := engine.Status(ctx, t0.Add(13*time.Hour))

	assert.Equal(t, 58.0, view.Intensity)
	assert.Zero(t, view.ActiveContributionCount, "expired contributions are filtered from the view")
	assert.True(t, view.NextExpiryAt.IsZero())
	assert.Len(t, engine.State().ActiveContributions, 1, "the ledger is only pruned by Tick")
}

func TestCurrentMultiplier(t *testing.T) {
	tests := []struct {
		intensity float64
		want      float64
	}{
		{0, 1.0},
		{20, 1.1},
		{45, 1.2},
		{70, 1.35},
		{99, 1.5},
	}
	for _, tt := range tests {
		engine, _ := newTestEngine(t, tt.intensity, NewMemoryStore(), nil)
		assert.Equal(t, tt.want, engine.CurrentMultiplier(context.Background()), "intensity %v", tt.intensity)
	}
}

func TestResetDaily(t *testing.T) {
	engine, _ := newTestEngine(t, 10, NewMemoryStore(), nil)
	ctx := context.Background()
	engine.Contribute(ctx, "alice", "", t0)
	engine.Contribute(ctx, "bob", "", t0)

	engine.ResetDaily(ctx, t0.Add(12*time.Hour))

	state := engine.State()
	assert.Zero(t, state.Counters.DailyCount)
	assert.Equal(t, 2, state.Counters.LifetimeCount)
	assert.Equal(t, 26.0, state.Intensity)
}

func TestResetSeason(t *testing.T) {
	engine, _ := newTestEngine(t, 10, NewMemoryStore(), nil)
	ctx := context.Background()
	engine.Contribute(ctx, "alice", "", t0)
	engine.Protect(ctx, "alice", "", time.Hour, t0)

	later := t0.Add(48 * time.Hour)
	view := engine.ResetSeason(ctx, later)

	assert.Equal(t, 60.0, view.Intensity)
	assert.False(t, view.Protection.Active)
	assert.Zero(t, view.LifetimeCount)
	assert.Equal(t, later, engine.State().LastUpdate)
}

func TestPruneCooldowns(t *testing.T) {
	store := NewMemoryStore()
	engine, _ := newTestEngine(t, 10, store, nil)
	ctx := context.Background()
	engine.Contribute(ctx, "alice", "", t0)
	engine.Contribute(ctx, "bob", "", t0.Add(4*time.Hour))

	n := engine.PruneCooldowns(ctx, t0.Add(7*time.Hour))

	assert.Equal(t, 1, n)
	stored, err := store.LoadCooldowns(ctx)
	require.NoError(t, err)
	assert.Contains(t, stored, "bob")
	assert.NotContains(t, stored, "alice")
}

func TestFlush_RetriesDirtyState(t *testing.T) {
	store := newFlakyStore()
	engine, _ := newTestEngine(t, 40, store, nil)
	ctx := context.Background()

	store.failSaves(errors.New("down"))
	engine.Tick(ctx, t0.Add(time.Hour))
	require.ErrorIs(t, engine.Flush(ctx), domain.ErrPersistence)

	store.failSaves(nil)
	require.NoError(t, engine.Flush(ctx))

	stored, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 37.0, stored.Intensity)

	before := store.saveCount()
	require.NoError(t, engine.Flush(ctx))
	assert.Equal(t, before, store.saveCount(), "clean state is not saved again")
}

func TestState_ReturnsCopy(t *testing.T) {
	engine, _ := newTestEngine(t, 10, NewMemoryStore(), nil)
	engine.Contribute(context.Background(), "alice", "", t0)

	state := engine.State()
	state.ActiveContributions[0].ContributorID = "mallory"
	state.Intensity = 0

	fresh := engine.State()
	assert.Equal(t, "alice", fresh.ActiveContributions[0].ContributorID)
	assert.Equal(t, 18.0, fresh.Intensity)
}

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{2*time.Hour + 15*time.Minute, "2h 15min"},
		{3 * time.Hour, "3h"},
		{45 * time.Minute, "45min"},
		{30 * time.Second, "less than a minute"},
		{0, "a moment"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatRemaining(tt.in))
	}
}
