package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/hearth/internal/domain"
	"github.com/pscheid92/hearth/internal/hearth"
)

func TestEngineMetrics_Observer(t *testing.T) {
	m := NewEngineMetrics(prometheus.NewRegistry())

	m.ContributionAccepted(domain.Result{OK: true})
	m.OperationRejected("contribute", domain.ReasonCooldownActive)
	m.OperationRejected("contribute", domain.ReasonCooldownActive)
	m.ProtectionActivated(90 * time.Second)
	m.TickCompleted(hearth.TickReport{Periods: 3, Expired: 2, ModifierFallback: true}, 10*time.Millisecond)
	m.IntensityObserved(72.5, 4)
	m.PersistFailed("tick")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Contributions))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Rejections.WithLabelValues("contribute", "cooldown_active")))
	assert.Equal(t, 90.0, testutil.ToFloat64(m.ProtectionSeconds))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DecayPeriods))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ContributionsPruned))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModifierFallbacks))
	assert.Equal(t, 72.5, testutil.ToFloat64(m.Intensity))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.ActiveContributions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PersistFailures.WithLabelValues("tick")))
}

func TestNewRegistry_RegistersAll(t *testing.T) {
	reg := NewRegistry()

	assert.NotPanics(t, func() {
		NewEngineMetrics(reg)
		NewHTTPMetrics(reg)
		NewRedisMetrics(reg)
		NewWeatherMetrics(reg)
		NewDBMetrics(reg)
	})

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewRegistry_BuildInfo(t *testing.T) {
	reg := NewRegistry()

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() != "hearth_build_info" {
			continue
		}
		found = true
		require.Len(t, f.GetMetric(), 1)
		assert.Equal(t, 1.0, f.GetMetric()[0].GetGauge().GetValue())
		labels := map[string]string{}
		for _, l := range f.GetMetric()[0].GetLabel() {
			labels[l.GetName()] = l.GetValue()
		}
		assert.Equal(t, "dev", labels["version"])
	}
	assert.True(t, found, "hearth_build_info not registered")
}
