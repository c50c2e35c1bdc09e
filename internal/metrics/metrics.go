// Package metrics exposes Prometheus collectors for analysis runs and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mindline"

// Run is what one analysis pass reports.
type Run struct {
	Duration     time.Duration
	Failed       bool
	Fetched      map[string]int
	SourceErrors map[string]string
	Skipped      int
	Items        int
	Clusters     int
}

// Collector holds every metric on a private registry.
type Collector struct {
	registry *prometheus.Registry

	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
	fetched      *prometheus.CounterVec
	sourceErrors *prometheus.CounterVec
	skipped      prometheus.Counter
	items        prometheus.Gauge
	clusters     prometheus.Gauge
	lastSuccess  prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New returns a Collector with Go runtime and process collectors registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_runs_total",
			Help:      "Analysis runs by outcome.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of analysis runs.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		fetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_fetched_total",
			Help:      "Raw items returned by each source.",
		}, []string{"source"}),
		sourceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_errors_total",
			Help:      "Failed source fetches.",
		}, []string{"source"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_skipped_total",
			Help:      "Items dropped as malformed.",
		}),
		items: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_items",
			Help:      "Items analyzed by the last successful run.",
		}),
		clusters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_clusters",
			Help:      "Clusters produced by the last successful run.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	c.registry.MustRegister(
		c.runs, c.runDuration, c.fetched, c.sourceErrors, c.skipped,
		c.items, c.clusters, c.lastSuccess, c.httpRequests, c.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObserveRun records one analysis pass.
func (c *Collector) ObserveRun(r Run) {
	if c == nil {
		return
	}
	status := "ok"
	switch {
	case r.Failed:
		status = "failed"
	case len(r.SourceErrors) > 0:
		status = "partial"
	}
	c.runs.WithLabelValues(status).Inc()
	c.runDuration.Observe(r.Duration.Seconds())
	for src, n := range r.Fetched {
		c.fetched.WithLabelValues(src).Add(float64(n))
	}
	for src := range r.SourceErrors {
		c.sourceErrors.WithLabelValues(src).Inc()
	}
	c.skipped.Add(float64(r.Skipped))
	if !r.Failed {
		c.items.Set(float64(r.Items))
		c.clusters.Set(float64(r.Clusters))
		c.lastSuccess.SetToCurrentTime()
	}
}

// ObserveRequest records one HTTP request.
func (c *Collector) ObserveRequest(method, route string, status int, took time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

// Registry returns the private registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
