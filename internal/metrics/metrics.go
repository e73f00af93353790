package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/andresuchdata/chainplan/internal/domain"
)

const namespace = "planner"

// Recorder owns the planner's collectors on a dedicated registry.
type Recorder struct {
	registry *prometheus.Registry

	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	orders        prometheus.Counter
	transfers     prometheus.Counter
	diagnostics   *prometheus.CounterVec
	cacheRequests *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Planning runs by outcome.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a planning run.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		orders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "New supplier orders recommended.",
		}),
		transfers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "Inter-location transfers recommended.",
		}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Records skipped during a run, by kind.",
		}, []string{"kind"}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Forecast cache lookups by result.",
		}, []string{"result"}),
	}

	r.registry.MustRegister(
		r.runs, r.runDuration, r.orders, r.transfers, r.diagnostics, r.cacheRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry is served on /metrics.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveRun records the outcome of one run. A nil recorder is a no-op so
// callers that do not expose metrics can pass nil.
func (r *Recorder) ObserveRun(status domain.PlanStatus, elapsed time.Duration, orders, transfers int, diags []domain.Diagnostic) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(string(status)).Inc()
	r.runDuration.Observe(elapsed.Seconds())
	r.orders.Add(float64(orders))
	r.transfers.Add(float64(transfers))
	for _, d := range diags {
		r.diagnostics.WithLabelValues(string(d.Kind)).Inc()
	}
}

func (r *Recorder) CacheHit() {
	if r != nil {
		r.cacheRequests.WithLabelValues("hit").Inc()
	}
}

func (r *Recorder) CacheMiss() {
	if r != nil {
		r.cacheRequests.WithLabelValues("miss").Inc()
	}
}

func (r *Recorder) CacheError() {
	if r != nil {
		r.cacheRequests.WithLabelValues("error").Inc()
	}
}
