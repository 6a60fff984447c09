/*
Package monitoring provides Prometheus metrics for the bridge.

# Overview

Each Metrics value owns a private registry, so tests and the two binaries
never collide on global registration. A nil *Metrics is accepted by every
recording method, which lets components run without instrumentation.

# Usage

	metrics := monitoring.NewMetrics()

	// Sidecar HTTP instrumentation
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Relay accounting
	metrics.AddOutput(n)
	metrics.RecordResize("applied")

# Metrics

  - termbridge_output_bytes_total / termbridge_input_bytes_total
  - termbridge_input_write_errors_total (swallowed, never surfaced)
  - termbridge_resizes_total{result}
  - termbridge_state_transitions_total{from,to}
  - termbridge_child_exits_total{role,kind}
  - termbridge_sessions_total{outcome}, termbridge_sessions_active
  - termbridge_build_duration_seconds{status}
  - termbridge_ws_connections, termbridge_ws_messages_total{direction,type}
  - termbridge_http_requests_total, termbridge_http_request_duration_seconds
*/
package monitoring
