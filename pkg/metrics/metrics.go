// Package metrics exports run metrics in the Prometheus format. A run is
// short-lived, so metrics are written to a node_exporter textfile instead
// of being scraped.
package metrics

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/agentstation/redpush/pkg/errors"
	"github.com/agentstation/redpush/pkg/reconcile"
)

const namespace = "redpush"

// Metrics holds the collectors of one process.
type Metrics struct {
	registry *prometheus.Registry

	resources       *prometheus.CounterVec
	anomalies       *prometheus.CounterVec
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	runDuration     prometheus.Gauge
	runFailures     prometheus.Gauge
	lastSuccess     prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// resources counts actions by resource kind and action
		resources: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resources_total",
			Help:      "Resources acted on, by kind and action",
		}, []string{"kind", "action"}),

		// anomalies counts reported non-fatal problems
		anomalies: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_total",
			Help:      "Anomalies reported, by type",
		}, []string{"type"}),

		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Requests sent to the dashboard server, by method, resource and status",
		}, []string{"method", "resource", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Dashboard server request latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		}, []string{"method", "resource"}),

		runDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of the last run in seconds",
		}),

		runFailures: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_failures",
			Help:      "Resources that failed in the last run",
		}),

		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run without failures",
		}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe implements reconcile.Observer.
func (m *Metrics) Observe(_ context.Context, ev reconcile.Event) {
	if ev.Action == reconcile.ActionAnomaly {
		m.anomalies.WithLabelValues(string(ev.Anomaly)).Inc()
		return
	}
	m.resources.WithLabelValues(string(ev.Kind), string(ev.Action)).Inc()
}

// ObserveRequest records one HTTP request. Its signature matches
// transport.RequestObserver.
func (m *Metrics) ObserveRequest(method, path string, status int, elapsed time.Duration) {
	resource := resourceOf(path)
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(method, resource, code).Inc()
	m.requestDuration.WithLabelValues(method, resource).Observe(elapsed.Seconds())
}

// ObserveResult records the outcome of a finished run.
func (m *Metrics) ObserveResult(res *reconcile.Result) {
	if res == nil {
		return
	}
	m.runDuration.Set(res.Metadata.Duration.Seconds())
	m.runFailures.Set(float64(len(res.Errors)))
	if res.IsSuccess() {
		end := res.Metadata.EndTime
		if end.IsZero() {
			end = time.Now()
		}
		m.lastSuccess.Set(float64(end.Unix()))
	}
}

// WriteTextfile writes every metric to path atomically, for the
// node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.WrapIO("write metrics", path, err)
	}
	return nil
}

// resourceOf reduces a request path to its resource segment so label
// cardinality stays bounded: "/api/queries/12" becomes "queries".
func resourceOf(path string) string {
	rest := strings.Trim(strings.TrimPrefix(strings.Trim(path, "/"), "api"), "/")
	if rest == "" {
		return "unknown"
	}
	segment, _, _ := strings.Cut(rest, "/")
	return segment
}
