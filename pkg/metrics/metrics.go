// Package metrics defines the observability interfaces for the SFTP
// client and manages the process-wide Prometheus registry.
//
// Metrics are optional everywhere: every consumer accepts a nil
// interface value and skips collection entirely in that case, so the
// instrumented code pays nothing when metrics are disabled.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

// InitRegistry creates the process-wide metrics registry. Until it is
// called, IsEnabled reports false and all metric constructors return nil.
func InitRegistry() {
	mu.Lock()
	defer mu.Unlock()
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
}

// IsEnabled reports whether metrics collection is enabled.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry != nil
}

// GetRegistry returns the process-wide registry, or nil if metrics are
// disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// SessionMetrics provides observability for one SFTP session's
// request/response engine.
//
// Implementations must be safe for use from the session's critical
// section; all methods are called with the session lock held and must
// not block.
type SessionMetrics interface {
	// RecordRequest records an issued request. kind is "read" or
	// "write"; granted is the capped length committed at issue time.
	RecordRequest(kind string, granted uint32)

	// RecordCompletion records a consumed request with its outcome
	// ("ok", "eof", "remote_status") and total latency from issue to
	// consumption.
	RecordCompletion(kind string, outcome string, elapsed time.Duration)

	// RecordBytes records payload bytes actually transferred.
	RecordBytes(kind string, n int)

	// SetOutstanding reports the current number of in-flight requests.
	SetOutstanding(n int)

	// SetBuffered reports the current number of responses parked in
	// the pending-response table.
	SetBuffered(n int)

	// RecordProtocolError records a wire-contract violation by reason
	// ("framing", "short_read", "unexpected_type").
	RecordProtocolError(reason string)

	// RecordDiscarded records a response dropped because its request
	// had already been freed.
	RecordDiscarded()
}
