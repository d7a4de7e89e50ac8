package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds transfer-scoped logging context
type LogContext struct {
	TransferID string    // CLI transfer identifier (uuid)
	SessionID  string    // SFTP session identifier
	Remote     string    // Remote endpoint host:port
	Op         string    // Operation: get, put, read, write
	Path       string    // Remote file path
	StartTime  time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a transfer against remote
func NewLogContext(transferID, remote string) *LogContext {
	return &LogContext{
		TransferID: transferID,
		Remote:     remote,
		StartTime:  time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithOp returns a copy with the operation set
func (lc *LogContext) WithOp(op string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Op = op
	}
	return clone
}

// WithPath returns a copy with the remote path set
func (lc *LogContext) WithPath(path string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Path = path
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
