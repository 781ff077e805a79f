// Package observability provides Prometheus metrics for the application.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry  *prometheus.Registry
	Upstream  *UpstreamMetrics
	Datastore *DatastoreMetrics
}

// UpstreamMetrics contains Prometheus metrics for the iNaturalist client.
type UpstreamMetrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestErrors    *prometheus.CounterVec
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
}

// DatastoreMetrics contains Prometheus metrics for datastore operations.
type DatastoreMetrics struct {
	OperationsTotal      *prometheus.CounterVec
	OperationErrorsTotal *prometheus.CounterVec
}

// NewMetrics creates a new instance of Metrics, initializing all metric collectors.
// It returns an error if any metric collector fails to register.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	upstream, err := newUpstreamMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream metrics: %w", err)
	}

	datastore, err := newDatastoreMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create datastore metrics: %w", err)
	}

	return &Metrics{
		registry:  registry,
		Upstream:  upstream,
		Datastore: datastore,
	}, nil
}

func newUpstreamMetrics(registry *prometheus.Registry) (*UpstreamMetrics, error) {
	m := &UpstreamMetrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Total number of requests issued to the upstream taxonomy service",
		}, []string{"operation"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Duration of upstream requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		RequestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upstream_request_errors_total",
			Help: "Total number of failed upstream requests",
		}, []string{"operation"}),
		CacheHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upstream_cache_hits_total",
			Help: "Total number of upstream cache hits",
		}, []string{"operation"}),
		CacheMissesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upstream_cache_misses_total",
			Help: "Total number of upstream cache misses",
		}, []string{"operation"}),
	}

	collectors := []prometheus.Collector{
		m.RequestsTotal, m.RequestDuration, m.RequestErrors,
		m.CacheHitsTotal, m.CacheMissesTotal,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func newDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{
		OperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "datastore_operations_total",
			Help: "Total number of datastore operations",
		}, []string{"operation"}),
		OperationErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "datastore_operation_errors_total",
			Help: "Total number of failed datastore operations",
		}, []string{"operation"}),
	}

	for _, c := range []prometheus.Collector{m.OperationsTotal, m.OperationErrorsTotal} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
