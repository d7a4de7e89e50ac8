package sftp

import (
	"time"

	"github.com/marmos91/dittosftp/internal/logger"
	proto "github.com/marmos91/dittosftp/internal/protocol/sftp"
)

// ============================================================================
// Request Issue (encoder + capping policy)
// ============================================================================

// BeginRead issues an asynchronous READ for up to n bytes at the file's
// cursor and returns the granted length together with the request handle.
//
// The requested length is capped to the session's negotiated maximum
// read length at issue time, so no oversized packet is ever emitted; the
// returned granted length is the true committed length, letting the
// caller loop to cover any remainder. The cursor advances by granted
// immediately, before the response arrives.
//
// The handle must be finished with exactly one of WaitRead or Free.
func (f *File) BeginRead(n uint32) (uint32, *Request, error) {
	return f.begin(KindRead, n, nil)
}

// BeginWrite issues an asynchronous WRITE of a prefix of p at the file's
// cursor and returns the granted length together with the request handle.
//
// Only the first granted bytes of p are transmitted; granted is len(p)
// capped to the session's negotiated maximum write length. p is fully
// copied into the outgoing packet before BeginWrite returns, so the
// caller may reuse the buffer immediately.
//
// The handle must be finished with exactly one of WaitWrite or Free.
func (f *File) BeginWrite(p []byte) (uint32, *Request, error) {
	return f.begin(KindWrite, uint32(min(len(p), int(^uint32(0)>>1))), p)
}

func (f *File) begin(kind RequestKind, n uint32, data []byte) (uint32, *Request, error) {
	s := f.session
	s.mu.Lock()
	defer s.mu.Unlock()

	if n == 0 {
		return 0, nil, invalidArgument("zero-length %s request on %q", kind, f.path)
	}
	if f.closed {
		return 0, nil, invalidArgument("%s on closed file %q", kind, f.path)
	}
	if s.closed {
		return 0, nil, invalidArgument("%s on closed session", kind)
	}

	var granted uint32
	var pkt []byte
	id := s.allocID()

	switch kind {
	case KindRead:
		granted = min(n, s.limits.MaxReadLen)
		pkt = proto.NewReadPacket(id, f.handle, f.offset, granted)
	case KindWrite:
		granted = min(n, s.limits.MaxWriteLen)
		pkt = proto.NewWritePacket(id, f.handle, f.offset, data[:granted])
	}

	if err := s.ch.Send(pkt); err != nil {
		return 0, nil, connectionLost("send "+kind.String()+" request", err)
	}

	// The send is committed: the byte range belongs to this request
	// regardless of when its response arrives.
	f.offset += uint64(granted)

	req := &Request{
		id:       id,
		kind:     kind,
		state:    StatePending,
		file:     f,
		session:  s,
		granted:  granted,
		issuedAt: time.Now(),
	}
	s.register(req)

	if s.m != nil {
		s.m.RecordRequest(kind.String(), granted)
	}
	logger.Debug("issued request",
		logger.KeyRequestID, id,
		logger.KeyOp, kind.String(),
		logger.KeyPath, f.path,
		logger.KeyOffset, f.offset-uint64(granted),
		logger.KeyCount, granted)

	return granted, req, nil
}

// ============================================================================
// Request Wait (dispatcher + result decoding)
// ============================================================================

// WaitRead blocks until this read request's response arrives and returns
// the typed result, consuming the handle.
//
// Results:
//   - (data, false, nil): a full-length payload.
//   - (data, true, nil): a payload at end of file; may be shorter than
//     the granted length, including empty.
//   - (nil, true, nil): clean end of file, no data.
//   - RemoteStatus error: the server failed the read.
//
// A payload shorter than the granted length without an end-of-file
// indicator is a ProtocolViolation: the request was already capped to
// the server's own advertised maximum, so a conformant server has no
// reason to return less except at end of file.
func (r *Request) WaitRead() ([]byte, bool, error) {
	s := r.session
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := r.checkWaitable(KindRead); err != nil {
		return nil, false, err
	}

	resp, err := s.awaitResponse(r)
	if err != nil {
		// Transport and framing failures leave the handle alive: no
		// response was extracted, and the caller still owes a Free.
		return nil, false, err
	}

	switch resp.typ {
	case proto.FxpData:
		d, perr := proto.ParseData(resp.body)
		if perr != nil {
			s.recordProtocolError("framing")
			r.consume("protocol_error")
			return nil, false, protocolViolation("parse data for request %d: %v", r.id, perr)
		}
		if uint32(len(d.Payload)) > r.granted {
			s.recordProtocolError("oversized_payload")
			r.consume("protocol_error")
			return nil, false, protocolViolation(
				"request %d returned %d bytes, granted %d", r.id, len(d.Payload), r.granted)
		}
		eof := d.HasEOF && d.EOF
		if uint32(len(d.Payload)) < r.granted && !eof {
			s.recordProtocolError("short_read")
			r.consume("protocol_error")
			return nil, false, protocolViolation(
				"short read on request %d: %d of %d bytes with no EOF indicator",
				r.id, len(d.Payload), r.granted)
		}

		out := make([]byte, len(d.Payload))
		copy(out, d.Payload)

		if s.m != nil {
			s.m.RecordBytes("read", len(out))
		}
		r.consume("ok")
		return out, eof, nil

	case proto.FxpStatus:
		st, perr := proto.ParseStatus(resp.body)
		if perr != nil {
			s.recordProtocolError("framing")
			r.consume("protocol_error")
			return nil, false, protocolViolation("parse status for request %d: %v", r.id, perr)
		}
		if st.Code == proto.FxEOF {
			r.consume("eof")
			return nil, true, nil
		}
		r.consume("remote_status")
		return nil, false, remoteStatus("read", st.Code, st.Message)

	default:
		s.recordProtocolError("unexpected_type")
		r.consume("protocol_error")
		return nil, false, protocolViolation(
			"unexpected type %d in reply to read request %d", resp.typ, r.id)
	}
}

// WaitWrite blocks until this write request's response arrives and
// returns its outcome, consuming the handle. A nil return means the
// server committed exactly the granted length; there is no partial-write
// concept at this layer.
func (r *Request) WaitWrite() error {
	s := r.session
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := r.checkWaitable(KindWrite); err != nil {
		return err
	}

	resp, err := s.awaitResponse(r)
	if err != nil {
		return err
	}

	if resp.typ != proto.FxpStatus {
		s.recordProtocolError("unexpected_type")
		r.consume("protocol_error")
		return protocolViolation(
			"unexpected type %d in reply to write request %d", resp.typ, r.id)
	}

	st, perr := proto.ParseStatus(resp.body)
	if perr != nil {
		s.recordProtocolError("framing")
		r.consume("protocol_error")
		return protocolViolation("parse status for request %d: %v", r.id, perr)
	}
	if st.Code != proto.FxOK {
		r.consume("remote_status")
		return remoteStatus("write", st.Code, st.Message)
	}

	if s.m != nil {
		s.m.RecordBytes("write", int(r.granted))
	}
	r.consume("ok")
	return nil
}

// Free discards the handle without consuming its result.
//
// A Pending handle leaves a tombstone: its eventual response is silently
// dropped by whichever wait call happens to drain it. A Completed handle
// releases its buffered payload. Freeing does not abort server-side
// execution of an already-sent request.
//
// Freeing an already-consumed or already-freed handle reports
// InvalidHandle but changes nothing, so defensive cleanup after a
// partial failure is harmless.
func (r *Request) Free() error {
	s := r.session
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.state.terminal() {
		return invalidHandle("free of %s request %d in state %s", r.kind, r.id, r.state)
	}

	logger.Debug("freed request",
		logger.KeyRequestID, r.id,
		logger.KeyOp, r.kind.String(),
		logger.KeyState, r.state.String())

	r.state = StateFreed
	s.unregister(r)
	return nil
}

// checkWaitable validates handle state and kind for a wait entry point.
// Called with the session lock held.
func (r *Request) checkWaitable(kind RequestKind) error {
	if r.state.terminal() {
		return invalidHandle("wait on %s request %d in state %s", r.kind, r.id, r.state)
	}
	if r.kind != kind {
		return invalidArgument("wait-for-%s on %s request %d", kind, r.kind, r.id)
	}
	return nil
}

// consume finalizes a handle after its result was extracted. Called with
// the session lock held.
func (r *Request) consume(outcome string) {
	s := r.session
	r.state = StateConsumed
	s.unregister(r)
	if s.m != nil {
		s.m.RecordCompletion(r.kind.String(), outcome, time.Since(r.issuedAt))
	}
}
