package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pscheid92/hearth/internal/domain"
	"github.com/pscheid92/hearth/internal/hearth"
)

var _ hearth.Observer = (*EngineMetrics)(nil)

// EngineMetrics exposes the hearth engine's activity. It plugs into the
// engine as its Observer.
type EngineMetrics struct {
	Intensity           prometheus.Gauge
	ActiveContributions prometheus.Gauge
	Contributions       prometheus.Counter
	Rejections          *prometheus.CounterVec
	Protections         prometheus.Counter
	ProtectionSeconds   prometheus.Counter
	TickDuration        prometheus.Histogram
	DecayPeriods        prometheus.Counter
	ModifierFallbacks   prometheus.Counter
	ContributionsPruned prometheus.Counter
	PersistFailures     *prometheus.CounterVec
}

// NewEngineMetrics creates and registers engine metrics on the given registry.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		Intensity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "intensity",
			Help:      "Current intensity of the pool (0-100).",
		}),
		ActiveContributions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_contributions",
			Help:      "Number of contributions in the active ledger.",
		}),
		Contributions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contributions_total",
			Help:      "Total number of accepted contributions.",
		}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Total number of rejected operations, by operation and reason.",
		}, []string{"op", "reason"}),
		Protections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protections_total",
			Help:      "Total number of protection activations.",
		}),
		ProtectionSeconds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protection_seconds_total",
			Help:      "Total protection time granted in seconds.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tick",
			Name:      "duration_seconds",
			Help:      "Duration of decay ticks in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 3, 5},
		}),
		DecayPeriods: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tick",
			Name:      "decay_periods_total",
			Help:      "Total number of decay periods consumed.",
		}),
		ModifierFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tick",
			Name:      "modifier_fallbacks_total",
			Help:      "Total number of ticks that fell back to the neutral decay modifier.",
		}),
		ContributionsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tick",
			Name:      "contributions_expired_total",
			Help:      "Total number of contributions removed from the ledger after their lifetime.",
		}),
		PersistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Total number of failed state saves, by operation.",
		}, []string{"op"}),
	}

	reg.MustRegister(
		m.Intensity, m.ActiveContributions, m.Contributions, m.Rejections,
		m.Protections, m.ProtectionSeconds, m.TickDuration, m.DecayPeriods,
		m.ModifierFallbacks, m.ContributionsPruned, m.PersistFailures,
	)
	return m
}

func (m *EngineMetrics) ContributionAccepted(domain.Result) {
	m.Contributions.Inc()
}

func (m *EngineMetrics) OperationRejected(op string, reason domain.Reason) {
	m.Rejections.WithLabelValues(op, string(reason)).Inc()
}

func (m *EngineMetrics) ProtectionActivated(d time.Duration) {
	m.Protections.Inc()
	m.ProtectionSeconds.Add(d.Seconds())
}

func (m *EngineMetrics) TickCompleted(report hearth.TickReport, elapsed time.Duration) {
	m.TickDuration.Observe(elapsed.Seconds())
	m.DecayPeriods.Add(float64(report.Periods))
	m.ContributionsPruned.Add(float64(report.Expired))
	if report.ModifierFallback {
		m.ModifierFallbacks.Inc()
	}
}

func (m *EngineMetrics) IntensityObserved(intensity float64, active int) {
	m.Intensity.Set(intensity)
	m.ActiveContributions.Set(float64(active))
}

func (m *EngineMetrics) PersistFailed(op string) {
	m.PersistFailures.WithLabelValues(op).Inc()
}
