package weather

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/pscheid92/hearth/internal/adapter/metrics"
	"github.com/pscheid92/hearth/internal/domain"
)

var _ domain.ModifierProvider = (*Provider)(nil)

type observer interface {
	Current(ctx context.Context) (Observation, error)
}

// Provider turns weather observations into decay multipliers. Lookups are
// cached for ttl, concurrent misses share one request, and a circuit breaker
// stops hammering a failing API. While the breaker is open a stale cached
// value is served if there is one.
type Provider struct {
	source  observer
	clock   clockwork.Clock
	ttl     time.Duration
	cb      circuitbreaker.CircuitBreaker[any]
	group   singleflight.Group
	metrics *metrics.WeatherMetrics

	mu        sync.Mutex
	cached    float64
	fetchedAt time.Time
	hasValue  bool
}

func NewProvider(source observer, clock clockwork.Clock, ttl time.Duration, m *metrics.WeatherMetrics) *Provider {
	p := &Provider{
		source:  source,
		clock:   clock,
		ttl:     ttl,
		metrics: m,
	}
	p.cb = circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.5, 4, time.Minute).
		WithDelay(5 * time.Minute).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", "weather",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			if p.metrics != nil {
				p.metrics.BreakerState.Set(stateToFloat(e.NewState))
			}
		}).
		Build()
	return p
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

func (p *Provider) CurrentDecayMultiplier(ctx context.Context) (float64, error) {
	if v, ok := p.fresh(); ok {
		if p.metrics != nil {
			p.metrics.CacheHits.Inc()
		}
		return v, nil
	}

	ch := p.group.DoChan("modifier", func() (any, error) {
		return p.refresh(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(float64), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (p *Provider) refresh(ctx context.Context) (float64, error) {
	if !p.cb.TryAcquirePermit() {
		if v, ok := p.stale(); ok {
			slog.DebugContext(ctx, "Weather breaker open, serving stale modifier", "modifier", v)
			return v, nil
		}
		return 0, fmt.Errorf("weather lookup skipped: %w", circuitbreaker.ErrOpen)
	}

	start := p.clock.Now()
	obs, err := p.source.Current(ctx)
	if p.metrics != nil {
		p.metrics.FetchDuration.Observe(p.clock.Since(start).Seconds())
	}
	if err != nil {
		p.cb.RecordError(err)
		if p.metrics != nil {
			p.metrics.Fetches.WithLabelValues("error").Inc()
		}
		return 0, fmt.Errorf("weather lookup failed: %w", err)
	}
	p.cb.RecordSuccess()

	v := DecayMultiplier(obs.TemperatureC)
	p.mu.Lock()
	p.cached, p.fetchedAt, p.hasValue = v, p.clock.Now(), true
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.Fetches.WithLabelValues("success").Inc()
		p.metrics.Modifier.Set(v)
		p.metrics.Temperature.Set(obs.TemperatureC)
	}
	slog.InfoContext(ctx, "Weather modifier refreshed", "temperature", obs.TemperatureC, "condition", obs.Condition, "modifier", v)
	return v, nil
}

func (p *Provider) fresh() (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasValue || p.clock.Since(p.fetchedAt) >= p.ttl {
		return 0, false
	}
	return p.cached, true
}

func (p *Provider) stale() (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cached, p.hasValue
}
