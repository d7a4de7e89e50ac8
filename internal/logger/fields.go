package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so a transfer can
// be traced end to end by transfer id and request id.
const (
	// ========================================================================
	// Session & Correlation
	// ========================================================================
	KeyTransferID = "transfer_id" // One CLI transfer (uuid)
	KeySessionID  = "session_id"  // SFTP session identifier
	KeyRequestID  = "request_id"  // Per-session request correlation id
	KeyAwaiting   = "awaiting"    // Request id the current wait is blocked on
	KeyRemote     = "remote"      // Remote endpoint host:port
	KeyVersion    = "version"     // Negotiated protocol version

	// ========================================================================
	// Protocol & Operation
	// ========================================================================
	KeyOp         = "op"          // Operation: read, write, open, close, fstat
	KeyPacketType = "packet_type" // SSH_FXP_* packet type value
	KeyStatus     = "status"      // SSH_FX_* status code
	KeyState      = "state"       // Request handle lifecycle state
	KeyHandleLen  = "handle_len"  // Length of the opaque server file handle

	// ========================================================================
	// I/O
	// ========================================================================
	KeyPath     = "path"      // Remote file path
	KeyOffset   = "offset"    // File offset of a read/write request
	KeyCount    = "count"     // Granted byte count of a request
	KeyBytes    = "bytes"     // Actual bytes transferred
	KeyEOF      = "eof"       // End-of-file indicator
	KeyMaxRead  = "max_read"  // Negotiated read length cap
	KeyMaxWrite = "max_write" // Negotiated write length cap
	KeyWindow   = "window"    // Pipeline window (outstanding requests)
	KeyChunk    = "chunk"     // Per-request chunk size

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyError      = "error"       // Error message
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
)

// Err returns a slog.Attr for an error value, tolerating nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "<nil>")
	}
	return slog.String(KeyError, err.Error())
}

// RequestID returns a slog.Attr for a request correlation id.
func RequestID(id uint32) slog.Attr {
	return slog.Uint64(KeyRequestID, uint64(id))
}

// Op returns a slog.Attr for an operation name.
func Op(op string) slog.Attr {
	return slog.String(KeyOp, op)
}

// Path returns a slog.Attr for a remote file path.
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Offset returns a slog.Attr for a file offset.
func Offset(off uint64) slog.Attr {
	return slog.Uint64(KeyOffset, off)
}

// Bytes returns a slog.Attr for a transferred byte count.
func Bytes(n int) slog.Attr {
	return slog.Int(KeyBytes, n)
}

// Hex formats a protocol value as 0x-prefixed hex, for packet types and
// status codes the protocol documents in hex.
func Hex[T ~uint8 | ~uint32 | ~uint64](v T) string {
	return fmt.Sprintf("0x%x", uint64(v))
}
