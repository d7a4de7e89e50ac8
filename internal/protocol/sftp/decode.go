package sftp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ============================================================================
// Wire Decoding Helpers - Wire Format → Go Types
// ============================================================================

// ErrShortPacket indicates a packet body ended before a field could be
// fully decoded. Callers map this to their protocol-violation error.
var ErrShortPacket = errors.New("sftp: short packet")

// ReadFrame reads one length-prefixed packet frame from r and returns the
// packet contents starting at the type byte.
//
// A zero-length frame or one exceeding MaxPacketLength is rejected: both
// indicate a peer that is not speaking secsh-filexfer, and buffering an
// attacker-controlled length would allow unbounded allocation.
//
// io.EOF is returned unwrapped when the stream ends cleanly between
// frames, so callers can distinguish orderly channel shutdown from a
// truncated packet (io.ErrUnexpectedEOF).
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read frame length: %w", err)
	}

	length := binary.BigEndian.Uint32(hdr[:])
	if length == 0 {
		return nil, fmt.Errorf("zero-length frame")
	}
	if length > MaxPacketLength {
		return nil, fmt.Errorf("frame length %d exceeds maximum %d", length, MaxPacketLength)
	}

	pkt := make([]byte, length)
	if _, err := io.ReadFull(r, pkt); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}
	return pkt, nil
}

// Reader consumes decoded fields from a packet body.
//
// It is a cursor over a byte slice; decoded strings and byte arrays alias
// the underlying packet buffer and must be copied by the caller if they
// outlive it.
type Reader struct {
	b []byte
}

// NewReader returns a Reader over the given packet bytes.
func NewReader(b []byte) *Reader {
	return &Reader{b: b}
}

// Len returns the number of unconsumed bytes.
func (r *Reader) Len() int {
	return len(r.b)
}

// Byte consumes a single byte.
func (r *Reader) Byte() (byte, error) {
	if len(r.b) < 1 {
		return 0, ErrShortPacket
	}
	v := r.b[0]
	r.b = r.b[1:]
	return v, nil
}

// Uint32 consumes a big-endian uint32.
func (r *Reader) Uint32() (uint32, error) {
	if len(r.b) < 4 {
		return 0, ErrShortPacket
	}
	v := binary.BigEndian.Uint32(r.b)
	r.b = r.b[4:]
	return v, nil
}

// Uint64 consumes a big-endian uint64.
func (r *Reader) Uint64() (uint64, error) {
	if len(r.b) < 8 {
		return 0, ErrShortPacket
	}
	v := binary.BigEndian.Uint64(r.b)
	r.b = r.b[8:]
	return v, nil
}

// Bytes consumes a uint32-length-prefixed byte array.
// The returned slice aliases the packet buffer.
func (r *Reader) Bytes() ([]byte, error) {
	length, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	if uint32(len(r.b)) < length {
		return nil, ErrShortPacket
	}
	v := r.b[:length]
	r.b = r.b[length:]
	return v, nil
}

// String consumes a uint32-length-prefixed string.
func (r *Reader) String() (string, error) {
	b, err := r.Bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Bool consumes a single boolean byte. Any non-zero value is true,
// matching SSH boolean encoding.
func (r *Reader) Bool() (bool, error) {
	b, err := r.Byte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}
