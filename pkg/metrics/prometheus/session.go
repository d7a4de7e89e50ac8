// Package prometheus provides the Prometheus-backed implementations of
// the interfaces in pkg/metrics.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dittosftp/pkg/metrics"
)

// sessionMetrics is the Prometheus implementation of
// metrics.SessionMetrics.
type sessionMetrics struct {
	requests       *prometheus.CounterVec
	completions    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	bytes          *prometheus.CounterVec
	outstanding    prometheus.Gauge
	buffered       prometheus.Gauge
	protocolErrors *prometheus.CounterVec
	discarded      prometheus.Counter
}

// NewSessionMetrics creates a Prometheus-backed SessionMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called), which
// consumers treat as "collection disabled".
func NewSessionMetrics() metrics.SessionMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &sessionMetrics{
		requests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittosftp_requests_total",
				Help: "Total requests issued, by kind",
			},
			[]string{"kind"}, // "read", "write"
		),
		completions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittosftp_completions_total",
				Help: "Total requests consumed, by kind and outcome",
			},
			[]string{"kind", "outcome"}, // outcome: "ok", "eof", "remote_status"
		),
		latency: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittosftp_request_duration_milliseconds",
				Help: "Latency from request issue to result consumption",
				Buckets: []float64{
					1,    // 1ms - LAN round trip
					5,    // 5ms
					10,   // 10ms
					50,   // 50ms - WAN round trip
					100,  // 100ms
					500,  // 500ms
					1000, // 1s
					5000, // 5s - stalled transfers
				},
			},
			[]string{"kind"},
		),
		bytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittosftp_payload_bytes_total",
				Help: "Payload bytes transferred, by kind",
			},
			[]string{"kind"},
		),
		outstanding: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "dittosftp_outstanding_requests",
				Help: "Requests issued but not yet consumed or freed",
			},
		),
		buffered: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "dittosftp_buffered_responses",
				Help: "Responses parked in the pending-response table",
			},
		),
		protocolErrors: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittosftp_protocol_errors_total",
				Help: "Wire-contract violations observed, by reason",
			},
			[]string{"reason"}, // "framing", "short_read", "unexpected_type"
		),
		discarded: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittosftp_discarded_responses_total",
				Help: "Responses dropped because their request was freed",
			},
		),
	}
}

func (m *sessionMetrics) RecordRequest(kind string, granted uint32) {
	m.requests.WithLabelValues(kind).Inc()
}

func (m *sessionMetrics) RecordCompletion(kind, outcome string, elapsed time.Duration) {
	m.completions.WithLabelValues(kind, outcome).Inc()
	m.latency.WithLabelValues(kind).Observe(float64(elapsed.Microseconds()) / 1000.0)
}

func (m *sessionMetrics) RecordBytes(kind string, n int) {
	m.bytes.WithLabelValues(kind).Add(float64(n))
}

func (m *sessionMetrics) SetOutstanding(n int) {
	m.outstanding.Set(float64(n))
}

func (m *sessionMetrics) SetBuffered(n int) {
	m.buffered.Set(float64(n))
}

func (m *sessionMetrics) RecordProtocolError(reason string) {
	m.protocolErrors.WithLabelValues(reason).Inc()
}

func (m *sessionMetrics) RecordDiscarded() {
	m.discarded.Inc()
}
