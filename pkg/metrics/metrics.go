package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "civicrelay"

// Outcome labels shared by the relay and fleet counters.
const (
	OutcomeSuccess  = "success"
	OutcomePartial  = "partial"
	OutcomeFailure  = "failure"
	OutcomeCanceled = "canceled"
)

// RelayMetrics tracks transfers, fleet calls and HTTP traffic.
type RelayMetrics struct {
	// Upload relay
	UploadsTotal    *prometheus.CounterVec
	UploadBytes     prometheus.Counter
	UploadDuration  prometheus.Histogram
	UploadsInFlight prometheus.Gauge

	// Retrieval relay
	RetrievalsTotal *prometheus.CounterVec
	RetrievalBytes  prometheus.Counter

	// Fleet controller
	FleetCalls *prometheus.CounterVec
	FleetNodes *prometheus.GaugeVec

	// HTTP surface
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates and registers the relay metrics on registry, or on the
// default registerer when registry is nil.
func New(registry prometheus.Registerer) *RelayMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &RelayMetrics{
		UploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "total",
			Help:      "Uploads by final outcome",
		}, []string{"outcome"}),
		UploadBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "streamed_bytes_total",
			Help:      "Bytes handed to the storage cluster upload stream",
		}),
		UploadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "duration_seconds",
			Help:      "End-to-end upload duration",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		}),
		UploadsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "in_flight",
			Help:      "Upload sessions currently holding a staging file",
		}),
		RetrievalsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "total",
			Help:      "Document retrievals by outcome",
		}, []string{"outcome"}),
		RetrievalBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "bytes_total",
			Help:      "Bytes served from the storage cluster",
		}),
		FleetCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fleet",
			Name:      "calls_total",
			Help:      "Fleet control calls by operation and outcome",
		}, []string{"operation", "outcome"}),
		FleetNodes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fleet",
			Name:      "nodes",
			Help:      "Nodes per state as of the last stats poll",
		}, []string{"state"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 300},
		}, []string{"method", "route"}),
	}
}

// NewRegistry returns a registry preloaded with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
