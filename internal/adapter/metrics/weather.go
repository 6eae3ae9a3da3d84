package metrics

import "github.com/prometheus/client_golang/prometheus"

// WeatherMetrics tracks the external weather lookups behind the decay modifier.
type WeatherMetrics struct {
	Fetches       *prometheus.CounterVec
	FetchDuration prometheus.Histogram
	CacheHits     prometheus.Counter
	BreakerState  prometheus.Gauge
	Modifier      prometheus.Gauge
	Temperature   prometheus.Gauge
}

func NewWeatherMetrics(reg prometheus.Registerer) *WeatherMetrics {
	m := &WeatherMetrics{
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "weather",
			Name:      "fetches_total",
			Help:      "Total number of weather API calls, by result.",
		}, []string{"result"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "weather",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of weather API calls in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "weather",
			Name:      "cache_hits_total",
			Help:      "Total number of modifier lookups served from cache.",
		}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "weather",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),
		Modifier: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "weather",
			Name:      "decay_modifier",
			Help:      "Last decay modifier derived from the weather.",
		}),
		Temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "weather",
			Name:      "temperature_celsius",
			Help:      "Last observed temperature.",
		}),
	}

	reg.MustRegister(m.Fetches, m.FetchDuration, m.CacheHits, m.BreakerState, m.Modifier, m.Temperature)
	return m
}
