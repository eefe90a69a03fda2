package observe

import (
	"context"
	"time"

	"github.com/Keksclan/goRawrRemote/failure"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records events as Prometheus series.
type Metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	retries  *prometheus.CounterVec
	failures *prometheus.CounterVec
	rejected prometheus.Counter
	skipped  prometheus.Counter
	degraded prometheus.Counter
}

// NewMetrics registers the repository series with reg. A nil reg uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rawr_remote_requests_total",
				Help: "Total number of remote requests by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rawr_remote_request_duration_seconds",
				Help:    "Remote request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		retries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rawr_remote_retries_total",
				Help: "Total number of retried remote requests",
			},
			[]string{"method"},
		),
		failures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rawr_remote_failures_total",
				Help: "Total number of classified failures",
			},
			[]string{"category"},
		),
		rejected: f.NewCounter(prometheus.CounterOpts{
			Name: "rawr_remote_rejected_ids_total",
			Help: "Total number of ids rejected as malformed",
		}),
		skipped: f.NewCounter(prometheus.CounterOpts{
			Name: "rawr_remote_negative_cache_skips_total",
			Help: "Total number of ids skipped because of a live negative cache entry",
		}),
		degraded: f.NewCounter(prometheus.CounterOpts{
			Name: "rawr_remote_degraded_total",
			Help: "Total number of recoverable errors turned into degraded results",
		}),
	}
}

func (m *Metrics) RequestStarted(context.Context, Call) {}

func (m *Metrics) RequestFinished(_ context.Context, c Call, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.requests.WithLabelValues(c.Method, outcome).Inc()
	m.latency.WithLabelValues(c.Method).Observe(d.Seconds())
}

func (m *Metrics) Retried(_ context.Context, c Call, _ int, _ error, _ time.Duration) {
	m.retries.WithLabelValues(c.Method).Inc()
}

func (m *Metrics) Failed(_ context.Context, _ Call, category failure.Category, _ error) {
	m.failures.WithLabelValues(category.String()).Inc()
}

func (m *Metrics) Rejected(_ context.Context, ids []string) {
	m.rejected.Add(float64(len(ids)))
}

func (m *Metrics) Skipped(_ context.Context, ids []string) {
	m.skipped.Add(float64(len(ids)))
}

func (m *Metrics) Degraded(context.Context, Call, string) {
	m.degraded.Inc()
}
