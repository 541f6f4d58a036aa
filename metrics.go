package mcp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metricsRecorder wires Session and dispatcher events into Prometheus
// collectors, grounded in the pack's promauto-per-concern instrumentation
// style. Each Session owns its own registry rather than registering onto
// prometheus.DefaultRegisterer, so constructing more than one Session (as
// tests do) never panics on duplicate registration.
type metricsRecorder struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	pendingRequests prometheus.Gauge
	toolCallsTotal  *prometheus.CounterVec
}

// NewMetrics builds a metricsRecorder on a fresh registry and returns both
// the recorder (for WithMetrics) and the registry (for exposing /metrics).
func NewMetrics() (*metricsRecorder, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &metricsRecorder{
		registry: reg,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mcp_requests_total",
			Help: "Total number of dispatched JSON-RPC method calls, by method and outcome.",
		}, []string{"method", "outcome"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mcp_request_duration_seconds",
			Help:    "Server-side handler duration in seconds, by method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		pendingRequests: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mcp_pending_requests",
			Help: "Number of outbound requests awaiting a response.",
		}),
		toolCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mcp_tool_calls_total",
			Help: "Total number of tools/call invocations, by tool and outcome.",
		}, []string{"tool", "outcome"}),
	}
	return m, reg
}

func (m *metricsRecorder) observeDispatch(method string, success bool) {
	if m == nil {
		return
	}
	outcome := "error"
	if success {
		outcome = "success"
	}
	m.requestsTotal.WithLabelValues(method, outcome).Inc()
}

func (m *metricsRecorder) recordToolCall(tool string, success bool) {
	if m == nil {
		return
	}
	outcome := "error"
	if success {
		outcome = "success"
	}
	m.toolCallsTotal.WithLabelValues(tool, outcome).Inc()
}

func (m *metricsRecorder) incPending() {
	if m != nil {
		m.pendingRequests.Inc()
	}
}

func (m *metricsRecorder) decPending() {
	if m != nil {
		m.pendingRequests.Dec()
	}
}
