package sftp

import (
	proto "github.com/marmos91/dittosftp/internal/protocol/sftp"
)

// Limits holds the session's negotiated maximum transfer sizes. They are
// fetched once during the handshake and immutable afterwards: every
// BeginRead/BeginWrite on the session caps against the same values.
type Limits struct {
	// MaxReadLen caps the length field of a single READ request.
	MaxReadLen uint32

	// MaxWriteLen caps the data length of a single WRITE request.
	MaxWriteLen uint32
}

// DefaultLimits returns the draft-02 fallback limits used when the server
// does not advertise limits@openssh.com.
func DefaultLimits() Limits {
	return Limits{
		MaxReadLen:  proto.DefaultMaxDataLength,
		MaxWriteLen: proto.DefaultMaxDataLength,
	}
}

// limitsFromExtension converts a limits@openssh.com reply into session
// limits. A server advertising zero or absurdly large values falls back
// to the defaults for that direction: the cap exists to keep our packets
// inside what the transport accepts, so it must stay below the packet
// ceiling regardless of what the server claims.
func limitsFromExtension(l proto.Limits) Limits {
	out := DefaultLimits()

	const ceiling = proto.MaxPacketLength - 1024 // room for the READ/WRITE header

	if l.MaxReadLength > 0 && l.MaxReadLength <= ceiling {
		out.MaxReadLen = uint32(l.MaxReadLength)
	}
	if l.MaxWriteLength > 0 && l.MaxWriteLength <= ceiling {
		out.MaxWriteLen = uint32(l.MaxWriteLength)
	}
	return out
}
