/*
Package monitoring provides Prometheus metrics for the relay.

# Overview

Metrics implements pump.Recorder, so each pump reports its ticks, quotas,
buffer levels, byte counts, flow-control bytes and lifecycle state as they
happen. Everything is registered on a private registry rather than the
global default, which keeps tests independent.

# Metrics

  - slowtty_ticks_total{direction}
  - slowtty_tick_quota_chars{direction}, slowtty_tick_quota{direction}
  - slowtty_buffered_bytes{direction}
  - slowtty_bytes_in_total{direction}, slowtty_bytes_out_total{direction}
  - slowtty_flow_signals_total{direction,signal}
  - slowtty_pump_state{direction,state}
  - slowtty_http_requests_total, slowtty_http_request_duration_seconds
  - slowtty_uptime_seconds, Go runtime and process collectors

# Usage

	metrics := monitoring.NewMetrics()
	handle, err := pump.Start(ctx, pump.Options{Recorder: metrics, ...})

	// Expose via the status listener
	srv := server.NewServer(metrics, snapshot, logger)
*/
package monitoring
