package sftp

import (
	"fmt"
	"time"
)

// RequestKind distinguishes read from write requests.
type RequestKind int

const (
	// KindRead marks a request issued by BeginRead.
	KindRead RequestKind = iota + 1

	// KindWrite marks a request issued by BeginWrite.
	KindWrite

	// kindControl marks a synchronous control request (open, close,
	// fstat, limits). Control requests are registered in the in-flight
	// table only so that out-of-order data responses arriving during a
	// control wait are buffered correctly; they are never exposed to
	// callers as handles.
	kindControl
)

// String returns a short name for the kind, used in logs and errors.
func (k RequestKind) String() string {
	switch k {
	case KindRead:
		return "read"
	case KindWrite:
		return "write"
	case kindControl:
		return "control"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// HandleState is the lifecycle state of a Request.
//
// Transitions:
//
//	Pending ─(response observed)→ Completed ─(wait)→ Consumed
//	Pending | Completed ─(free)→ Freed
//
// Consumed and Freed are terminal: no further operation is valid on the
// handle, and exactly one of consume or free ever happens per handle.
type HandleState int

const (
	// StatePending means the request is on the wire and no response has
	// been observed for it yet.
	StatePending HandleState = iota + 1

	// StateCompleted means a response was observed and buffered while
	// the dispatcher was draining the channel for a different id.
	StateCompleted

	// StateConsumed means a wait call extracted the typed result.
	StateConsumed

	// StateFreed means the handle was discarded. A response arriving
	// after this point is silently dropped.
	StateFreed
)

// String returns a human-readable name for the state.
func (s HandleState) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateCompleted:
		return "Completed"
	case StateConsumed:
		return "Consumed"
	case StateFreed:
		return "Freed"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// terminal reports whether no further operation is valid on a handle in
// this state.
func (s HandleState) terminal() bool {
	return s == StateConsumed || s == StateFreed
}

// rawResponse is a decoded-but-untyped response parked for a handle the
// caller has not waited on yet. body is the packet body after the common
// header; it aliases the per-Recv packet buffer, which the session owns.
type rawResponse struct {
	typ  byte
	body []byte
}

// Request is the caller-visible token for one outstanding asynchronous
// request. It is created only by BeginRead/BeginWrite and must be
// finished with exactly one of WaitRead/WaitWrite (matching its kind) or
// Free.
//
// All fields are guarded by the owning session's lock.
type Request struct {
	id      uint32
	kind    RequestKind
	state   HandleState
	file    *File
	session *Session

	// granted is the capped length committed at issue time; for reads it
	// is the yardstick against which a short payload is judged.
	granted uint32

	// resp holds the buffered response while state == StateCompleted.
	resp *rawResponse

	issuedAt time.Time
}

// ID returns the request's correlation id. Useful only for logging; ids
// are meaningless outside their session.
func (r *Request) ID() uint32 {
	return r.id
}

// Kind returns whether this is a read or write request.
func (r *Request) Kind() RequestKind {
	return r.kind
}

// State returns the handle's current lifecycle state.
func (r *Request) State() HandleState {
	r.session.mu.Lock()
	defer r.session.mu.Unlock()
	return r.state
}
