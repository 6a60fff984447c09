package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics (sidecar only)
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Session metrics
	SessionsTotal    *prometheus.CounterVec
	SessionsActive   prometheus.Gauge
	StateTransitions *prometheus.CounterVec

	// Relay metrics
	OutputBytes   prometheus.Counter
	InputBytes    prometheus.Counter
	InputErrors   prometheus.Counter
	SurfaceErrors prometheus.Counter
	Resizes       *prometheus.CounterVec

	// Process metrics
	ChildExits    *prometheus.CounterVec
	BuildDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time
}

// NewMetrics creates a collector backed by its own registry so several
// instances can coexist in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termbridge_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "termbridge_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method", "path"},
		),

		SessionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termbridge_sessions_total",
				Help: "Embedded sessions by outcome",
			},
			[]string{"outcome"},
		),
		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "termbridge_sessions_active",
				Help: "Embedded sessions currently between Idle and Closed",
			},
		),
		StateTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termbridge_state_transitions_total",
				Help: "Lifecycle state transitions",
			},
			[]string{"from", "to"},
		),

		OutputBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termbridge_output_bytes_total",
				Help: "Bytes relayed from the PTY master to the display surface",
			},
		),
		InputBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termbridge_input_bytes_total",
				Help: "Bytes relayed from the display surface to the PTY master",
			},
		),
		InputErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termbridge_input_write_errors_total",
				Help: "Swallowed write failures on the PTY master",
			},
		),
		SurfaceErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termbridge_surface_write_errors_total",
				Help: "Display surface write failures",
			},
		),
		Resizes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termbridge_resizes_total",
				Help: "Geometry updates by result",
			},
			[]string{"result"},
		),

		ChildExits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termbridge_child_exits_total",
				Help: "Child process terminations",
			},
			[]string{"role", "kind"},
		),
		BuildDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "termbridge_build_duration_seconds",
				Help:    "Development artifact build duration",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"status"},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "termbridge_ws_connections",
				Help: "Active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termbridge_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "termbridge_uptime_seconds",
			Help: "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordTransition records a lifecycle state change.
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.StateTransitions.WithLabelValues(from, to).Inc()
}

// SessionStarted marks a session as active.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
}

// SessionFinished records the outcome of a session.
func (m *Metrics) SessionFinished(outcome string) {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
	m.SessionsTotal.WithLabelValues(outcome).Inc()
}

// AddOutput records bytes forwarded to the display surface.
func (m *Metrics) AddOutput(n int) {
	if m == nil {
		return
	}
	m.OutputBytes.Add(float64(n))
}

// AddInput records bytes written to the PTY master.
func (m *Metrics) AddInput(n int) {
	if m == nil {
		return
	}
	m.InputBytes.Add(float64(n))
}

// IncInputErrors counts a swallowed master write failure.
func (m *Metrics) IncInputErrors() {
	if m == nil {
		return
	}
	m.InputErrors.Inc()
}

// IncSurfaceErrors counts a failed display surface write.
func (m *Metrics) IncSurfaceErrors() {
	if m == nil {
		return
	}
	m.SurfaceErrors.Inc()
}

// RecordResize records a geometry update; result is applied, skipped or error.
func (m *Metrics) RecordResize(result string) {
	if m == nil {
		return
	}
	m.Resizes.WithLabelValues(result).Inc()
}

// RecordChildExit records a child termination; kind is exited or signaled.
func (m *Metrics) RecordChildExit(role, kind string) {
	if m == nil {
		return
	}
	m.ChildExits.WithLabelValues(role, kind).Inc()
}

// RecordBuild records a development build attempt.
func (m *Metrics) RecordBuild(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.BuildDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}
