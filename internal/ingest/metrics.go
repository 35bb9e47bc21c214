package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for conversions. A nil *Metrics
// records nothing.
type Metrics struct {
	conversions *prometheus.CounterVec
	rows        *prometheus.CounterVec
	inferred    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	active      prometheus.Gauge
	busy        prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		conversions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "catalog",
				Name:      "conversions_total",
				Help:      "Catalog conversions by outcome status and input format.",
			},
			[]string{"status", "format"},
		),
		rows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "catalog",
				Name:      "rows_total",
				Help:      "Input rows converted, by result.",
			},
			[]string{"result"},
		),
		inferred: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "catalog",
				Name:      "inferred_fields_total",
				Help:      "Field values filled by inference, by field.",
			},
			[]string{"field"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "catalog",
				Name:      "conversion_duration_seconds",
				Help:      "Wall time of one file conversion.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"format"},
		),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "catalog",
			Name:      "conversions_active",
			Help:      "Conversions currently holding a slot.",
		}),
		busy: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "catalog",
			Name:      "conversions_rejected_total",
			Help:      "Conversions refused because every slot stayed busy.",
		}),
	}

	reg.MustRegister(m.conversions, m.rows, m.inferred, m.duration, m.active, m.busy)
	return m
}

// observe records a finished conversion.
func (m *Metrics) observe(out *Outcome, fieldCounts map[string]int) {
	if m == nil {
		return
	}
	format := out.Format
	if format == "" {
		format = "unknown"
	}

	m.conversions.WithLabelValues(string(out.Status), format).Inc()
	m.rows.WithLabelValues("valid").Add(float64(out.Stats.Valid))
	m.rows.WithLabelValues("ignored").Add(float64(out.Stats.Ignored))
	for field, n := range fieldCounts {
		m.inferred.WithLabelValues(field).Add(float64(n))
	}
	m.duration.WithLabelValues(format).Observe(float64(out.DurationMs) / 1000)
}

func (m *Metrics) setActive(n int) {
	if m == nil {
		return
	}
	m.active.Set(float64(n))
}

func (m *Metrics) rejected() {
	if m == nil {
		return
	}
	m.busy.Inc()
}
