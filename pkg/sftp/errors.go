// Package sftp implements an SFTP version 3 client built around an
// asynchronous request/response correlation engine.
//
// Reads and writes are issued as size-capped requests over a single
// session-multiplexed channel. Each issued request is represented by a
// *Request handle; the caller later waits on the handle to collect the
// typed result. Responses may arrive in any order relative to issuance:
// the session buffers payloads for handles the caller has not waited on
// yet, so waits can happen in whatever order suits the caller.
//
// # Concurrency
//
// All per-session state (request-id counter, in-flight registry, buffered
// responses) is guarded by one critical section per session. Distinct
// sessions are fully independent. Waiting blocks the session's critical
// section, so concurrent use of a single session from multiple goroutines
// must be serialized by the caller; this matches the protocol, which has
// no way to interleave two readers on one channel anyway.
package sftp

import (
	"errors"
	"fmt"

	proto "github.com/marmos91/dittosftp/internal/protocol/sftp"
)

// ErrorCode classifies client errors.
type ErrorCode int

const (
	// ErrInvalidArgument indicates caller misuse at issue time:
	// zero-length request, closed file, kind mismatch on wait.
	ErrInvalidArgument ErrorCode = iota + 1

	// ErrInvalidHandle indicates an operation on a request handle that
	// is already consumed or freed. Caller misuse, never a transport
	// condition.
	ErrInvalidHandle

	// ErrProtocolViolation indicates the server broke the wire
	// contract: malformed framing, an unexpected response type, or a
	// short read without an end-of-file indicator.
	ErrProtocolViolation

	// ErrConnectionLost indicates the channel closed or failed while
	// sending a request or awaiting a response.
	ErrConnectionLost

	// ErrRemoteStatus indicates a server-reported failure carried in
	// an SSH_FXP_STATUS packet.
	ErrRemoteStatus
)

// String returns a human-readable name for the error code.
func (e ErrorCode) String() string {
	switch e {
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrInvalidHandle:
		return "InvalidHandle"
	case ErrProtocolViolation:
		return "ProtocolViolation"
	case ErrConnectionLost:
		return "ConnectionLost"
	case ErrRemoteStatus:
		return "RemoteStatus"
	default:
		return fmt.Sprintf("Unknown(%d)", e)
	}
}

// ClientError is the error type returned by all session and request
// operations. Status and StatusText are populated only for
// ErrRemoteStatus.
type ClientError struct {
	Code       ErrorCode
	Message    string
	Status     uint32 // SSH_FX_* code, ErrRemoteStatus only
	StatusText string // server-provided message, may be empty
	Err        error  // underlying cause, may be nil
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	switch {
	case e.Code == ErrRemoteStatus && e.StatusText != "":
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.StatusText)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap returns the underlying cause, if any.
func (e *ClientError) Unwrap() error {
	return e.Err
}

// CodeOf returns the ErrorCode carried by err, or 0 if err does not wrap
// a *ClientError.
func CodeOf(err error) ErrorCode {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return 0
}

func invalidArgument(format string, args ...any) *ClientError {
	return &ClientError{Code: ErrInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

func invalidHandle(format string, args ...any) *ClientError {
	return &ClientError{Code: ErrInvalidHandle, Message: fmt.Sprintf(format, args...)}
}

func protocolViolation(format string, args ...any) *ClientError {
	return &ClientError{Code: ErrProtocolViolation, Message: fmt.Sprintf(format, args...)}
}

func connectionLost(msg string, err error) *ClientError {
	return &ClientError{Code: ErrConnectionLost, Message: msg, Err: err}
}

func remoteStatus(op string, code uint32, text string) *ClientError {
	return &ClientError{
		Code:       ErrRemoteStatus,
		Message:    fmt.Sprintf("%s failed with %s", op, proto.StatusName(code)),
		Status:     code,
		StatusText: text,
	}
}
