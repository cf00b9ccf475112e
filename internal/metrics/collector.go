package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"jobwatch/internal/report"
)

const namespace = "jobwatch"

// Collector exports the outcome of passes as Prometheus metrics.
type Collector struct {
	registry *prometheus.Registry

	watchOK      *prometheus.GaugeVec
	watchAge     *prometheus.GaugeVec
	watchErrors  *prometheus.GaugeVec
	passes       *prometheus.CounterVec
	passDuration prometheus.Histogram
	lastPass     prometheus.Gauge
}

// NewCollector registers the pass metrics on a fresh registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		watchOK: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watch_ok",
			Help:      "1 if the watch was OK in the last pass, else 0.",
		}, []string{"task", "type"}),
		watchAge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watch_age_days",
			Help:      "Age of the watched target in days; absent while the target is missing.",
		}, []string{"task", "type"}),
		watchErrors: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watch_errors",
			Help:      "Error lines found in the watch's content in the last pass.",
		}, []string{"task", "type"}),
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_total",
			Help:      "Completed passes by outcome.",
		}, []string{"result"}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Wall time of a pass.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		lastPass: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_pass_timestamp_seconds",
			Help:      "Unix time of the last completed pass.",
		}),
	}
	c.registry.MustRegister(c.watchOK, c.watchAge, c.watchErrors, c.passes, c.passDuration, c.lastPass)
	return c
}

// Registry returns the registry the metrics live on.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Observe records one pass. Series of watches no longer in the report are
// dropped.
func (c *Collector) Observe(rep report.Report, took time.Duration) {
	c.watchOK.Reset()
	c.watchAge.Reset()
	c.watchErrors.Reset()

	for _, row := range rep.Rows {
		ok := 0.0
		if row.OK {
			ok = 1
		}
		c.watchOK.WithLabelValues(row.Task, row.Type).Set(ok)
		c.watchErrors.WithLabelValues(row.Task, row.Type).Set(float64(row.ErrorCount))
		if row.AgeDays != nil {
			c.watchAge.WithLabelValues(row.Task, row.Type).Set(*row.AgeDays)
		}
	}

	result := "ok"
	if !rep.AllOK {
		result = "failing"
	}
	c.passes.WithLabelValues(result).Inc()
	c.passDuration.Observe(took.Seconds())
	c.lastPass.Set(float64(rep.GeneratedAt.Unix()))
}
