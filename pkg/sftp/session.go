package sftp

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/marmos91/dittosftp/internal/logger"
	proto "github.com/marmos91/dittosftp/internal/protocol/sftp"
	"github.com/marmos91/dittosftp/pkg/metrics"
)

// Session is one SFTP protocol session over a transport channel.
//
// The session owns the per-session request-id counter, the registry of
// in-flight requests and the pending-response table. The table holds
// responses whose id does not match the id currently being awaited; its
// size is bounded by the number of requests the caller keeps outstanding
// (each outstanding request buffers at most one response), so a caller
// that issues with a bounded window gets a bounded table. A caller that
// issues thousands of requests and never waits on the early ones will
// buffer thousands of payloads; the engine does not police that.
type Session struct {
	mu sync.Mutex

	ch     Channel
	nextID uint32
	limits Limits
	closed bool

	// inflight tracks every Pending or Completed request by id. A freed
	// request is removed immediately; a response arriving for an id
	// with no entry is discarded, which is exactly the tombstone
	// behavior Free needs.
	inflight map[uint32]*Request

	// buffered counts inflight entries holding a parked response.
	buffered int

	version uint32
	exts    map[string]string

	m metrics.SessionMetrics
}

// Option configures a Session.
type Option func(*Session)

// WithMetrics attaches a metrics sink to the session. A nil sink
// disables collection.
func WithMetrics(m metrics.SessionMetrics) Option {
	return func(s *Session) {
		s.m = m
	}
}

// NewSession performs the protocol handshake over ch and returns a ready
// session.
//
// The handshake sends SSH_FXP_INIT, validates the server's version, and
// fetches transfer limits exactly once: from limits@openssh.com when the
// server advertises it, otherwise the draft-02 defaults. The limits are
// immutable for the session's lifetime.
func NewSession(ch Channel, opts ...Option) (*Session, error) {
	s := newSession(ch)
	for _, opt := range opts {
		opt(s)
	}

	if err := s.handshake(); err != nil {
		return nil, err
	}
	return s, nil
}

// newSession builds the bare session state without touching the wire.
// Tests use it to exercise the engine against scripted channels.
func newSession(ch Channel) *Session {
	return &Session{
		ch:       ch,
		inflight: make(map[uint32]*Request),
		limits:   DefaultLimits(),
	}
}

func (s *Session) handshake() error {
	if err := s.ch.Send(proto.NewInitPacket(proto.ProtocolVersion)); err != nil {
		return connectionLost("send SSH_FXP_INIT", err)
	}

	pkt, err := s.ch.Recv()
	if err != nil {
		return connectionLost("await SSH_FXP_VERSION", err)
	}

	version, exts, err := proto.ParseVersion(pkt)
	if err != nil {
		return protocolViolation("parse SSH_FXP_VERSION: %v", err)
	}
	if version != proto.ProtocolVersion {
		return protocolViolation("server negotiated unsupported version %d", version)
	}
	s.version = version
	s.exts = exts

	if _, ok := exts[proto.ExtLimits]; ok {
		if err := s.fetchLimits(); err != nil {
			return err
		}
	}

	logger.Debug("session established",
		logger.KeyVersion, s.version,
		logger.KeyMaxRead, s.limits.MaxReadLen,
		logger.KeyMaxWrite, s.limits.MaxWriteLen)
	return nil
}

// fetchLimits performs the limits@openssh.com round trip. A STATUS reply
// (some servers advertise the extension and then refuse it) falls back to
// the defaults rather than failing the handshake.
func (s *Session) fetchLimits() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp, err := s.roundTripLocked("limits@openssh.com", func(id uint32) []byte {
		return proto.NewExtendedPacket(id, proto.ExtLimits)
	})
	if err != nil {
		return err
	}

	switch resp.typ {
	case proto.FxpExtendedReply:
		wire, err := proto.ParseLimits(resp.body)
		if err != nil {
			return protocolViolation("parse limits reply: %v", err)
		}
		s.limits = limitsFromExtension(wire)
		return nil
	case proto.FxpStatus:
		logger.Debug("server refused limits extension, using defaults")
		return nil
	default:
		return protocolViolation("unexpected type %d in reply to limits request", resp.typ)
	}
}

// Limits returns the session's negotiated transfer limits.
func (s *Session) Limits() Limits {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limits
}

// Extensions returns the extension pairs the server advertised during
// the handshake.
func (s *Session) Extensions() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string, len(s.exts))
	for k, v := range s.exts {
		out[k] = v
	}
	return out
}

// Close tears down the transport. Outstanding requests fail with
// ConnectionLost on their next wait; the caller should still Free them.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.ch.Close()
}

// allocID returns a fresh request id. Ids increase monotonically per
// session and are the sole correlation key; with a uint32 counter and no
// reuse of outstanding ids, wraparound collisions would need 2^32
// simultaneously outstanding requests.
func (s *Session) allocID() uint32 {
	s.nextID++
	return s.nextID
}

// register enters a request into the in-flight table.
func (s *Session) register(req *Request) {
	s.inflight[req.id] = req
	s.updateGauges()
}

// unregister removes a request from the in-flight table, dropping any
// parked response.
func (s *Session) unregister(req *Request) {
	if req.resp != nil {
		req.resp = nil
		s.buffered--
	}
	delete(s.inflight, req.id)
	s.updateGauges()
}

func (s *Session) updateGauges() {
	if s.m == nil {
		return
	}
	s.m.SetOutstanding(len(s.inflight))
	s.m.SetBuffered(s.buffered)
}

// awaitResponse drives the dispatcher until req's response surfaces.
//
// If the response was already parked by an earlier wait's side effect it
// is returned immediately. Otherwise packets are drained from the
// channel: a packet for another still-pending request is parked in that
// request's handle, a packet for an unknown id (freed, or never ours) is
// discarded, and channel EOF becomes ConnectionLost. Each outstanding
// request's payload crosses this loop at most once, so the work one wait
// performs is bounded by the number of currently outstanding requests.
//
// Called with s.mu held; the lock is kept across the blocking Recv, which
// is the documented single-critical-section-per-session model.
func (s *Session) awaitResponse(req *Request) (*rawResponse, error) {
	if req.resp != nil {
		resp := req.resp
		req.resp = nil
		s.buffered--
		s.updateGauges()
		return resp, nil
	}

	for {
		pkt, err := s.ch.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, connectionLost(
					fmt.Sprintf("channel closed awaiting response %d", req.id), err)
			}
			return nil, connectionLost(
				fmt.Sprintf("receive failed awaiting response %d", req.id), err)
		}

		hdr, body, err := proto.ParseHeader(pkt)
		if err != nil {
			s.recordProtocolError("framing")
			return nil, protocolViolation("malformed response header: %v", err)
		}

		if hdr.RequestID == req.id {
			return &rawResponse{typ: hdr.Type, body: body}, nil
		}

		other, ok := s.inflight[hdr.RequestID]
		if !ok || other.state != StatePending {
			// Freed before its response arrived, or an id we never
			// issued. Either way the packet is dropped without
			// disturbing anyone else's state.
			logger.Debug("discarding response for unknown request",
				logger.KeyRequestID, hdr.RequestID,
				logger.KeyPacketType, hdr.Type)
			if s.m != nil {
				s.m.RecordDiscarded()
			}
			continue
		}

		other.resp = &rawResponse{typ: hdr.Type, body: body}
		other.state = StateCompleted
		s.buffered++
		s.updateGauges()

		logger.Debug("buffered out-of-order response",
			logger.KeyRequestID, hdr.RequestID,
			logger.KeyPacketType, hdr.Type,
			logger.KeyAwaiting, req.id)
	}
}

// roundTripLocked issues a synchronous control request and waits for its
// reply. The control request is registered in the in-flight table so
// that data responses arriving out of order during the wait are parked
// for their own handles.
//
// Called with s.mu held.
func (s *Session) roundTripLocked(op string, build func(id uint32) []byte) (*rawResponse, error) {
	if s.closed {
		return nil, invalidArgument("%s on closed session", op)
	}

	id := s.allocID()
	req := &Request{
		id:       id,
		kind:     kindControl,
		state:    StatePending,
		session:  s,
		issuedAt: time.Now(),
	}
	s.register(req)
	defer s.unregister(req)

	if err := s.ch.Send(build(id)); err != nil {
		return nil, connectionLost(fmt.Sprintf("send %s request", op), err)
	}

	return s.awaitResponse(req)
}

func (s *Session) recordProtocolError(reason string) {
	if s.m != nil {
		s.m.RecordProtocolError(reason)
	}
}

// statusError converts a STATUS body into a RemoteStatus error for op.
func statusError(op string, body []byte) error {
	st, err := proto.ParseStatus(body)
	if err != nil {
		return protocolViolation("parse status for %s: %v", op, err)
	}
	return remoteStatus(op, st.Code, st.Message)
}
