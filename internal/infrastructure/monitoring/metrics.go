package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/GriffinCanCode/slowtty/internal/pump"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Relay metrics
	Ticks       *prometheus.CounterVec
	Quota       *prometheus.GaugeVec
	QuotaSizes  *prometheus.HistogramVec
	Buffered    *prometheus.GaugeVec
	BytesIn     *prometheus.CounterVec
	BytesOut    *prometheus.CounterVec
	FlowSignals *prometheus.CounterVec
	State       *prometheus.GaugeVec

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector on its own registry
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.NewRegistry())
}

// NewMetricsWith creates a metrics collector registered on reg, together
// with the Go runtime and process collectors.
func NewMetricsWith(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		startTime: time.Now(),
		registry:  reg,

		Ticks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slowtty_ticks_total",
				Help: "Total number of pacing ticks",
			},
			[]string{"direction"},
		),
		Quota: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "slowtty_tick_quota_chars",
				Help: "Characters released on the last tick",
			},
			[]string{"direction"},
		),
		QuotaSizes: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "slowtty_tick_quota",
				Help:    "Distribution of per-tick character quotas",
				Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64, 128, 256, 1024, 4096},
			},
			[]string{"direction"},
		),
		Buffered: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "slowtty_buffered_bytes",
				Help: "Bytes waiting in the ring buffer at the start of the last tick",
			},
			[]string{"direction"},
		),
		BytesIn: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slowtty_bytes_in_total",
				Help: "Total bytes read from the direction's source",
			},
			[]string{"direction"},
		),
		BytesOut: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slowtty_bytes_out_total",
				Help: "Total bytes written to the direction's sink, excluding flow-control bytes",
			},
			[]string{"direction"},
		),
		FlowSignals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slowtty_flow_signals_total",
				Help: "Total flow-control bytes written to the direction's sink",
			},
			[]string{"direction", "signal"},
		),
		State: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "slowtty_pump_state",
				Help: "1 for the pump's current lifecycle state, 0 otherwise",
			},
			[]string{"direction", "state"},
		),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slowtty_http_requests_total",
				Help: "Total number of status listener requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "slowtty_http_request_duration_seconds",
				Help:    "Status listener request duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"method", "path"},
		),
	}

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "slowtty_uptime_seconds",
			Help: "Seconds since slowtty started",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveTick records one tick of a pump
func (m *Metrics) ObserveTick(direction string, quota, buffered int) {
	m.Ticks.WithLabelValues(direction).Inc()
	m.Quota.WithLabelValues(direction).Set(float64(quota))
	m.QuotaSizes.WithLabelValues(direction).Observe(float64(quota))
	m.Buffered.WithLabelValues(direction).Set(float64(buffered))
}

// AddBytes records bytes moved through a pump's buffer
func (m *Metrics) AddBytes(direction string, in, out int) {
	if in > 0 {
		m.BytesIn.WithLabelValues(direction).Add(float64(in))
	}
	if out > 0 {
		m.BytesOut.WithLabelValues(direction).Add(float64(out))
	}
}

// FlowSignal records a flow-control byte written by a pump
func (m *Metrics) FlowSignal(direction string, b byte) {
	m.FlowSignals.WithLabelValues(direction, pump.SignalName(b)).Inc()
}

// SetState records a pump's lifecycle state
func (m *Metrics) SetState(direction string, state pump.State) {
	for _, s := range []pump.State{pump.StateRunning, pump.StateDraining, pump.StateStopped} {
		v := 0.0
		if s == state {
			v = 1
		}
		m.State.WithLabelValues(direction, s.String()).Set(v)
	}
}

// RecordHTTPRequest records a status listener request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

var _ pump.Recorder = (*Metrics)(nil)
