package sftp

import (
	"fmt"
)

// ============================================================================
// Request Packet Builders
// ============================================================================
//
// Each builder returns the packet contents starting at the type byte; the
// length prefix is added by WriteFrame when the packet hits the wire.
// Builders over-allocate nothing: capacity is computed up front so the
// append chain never reallocates.

// NewInitPacket builds an SSH_FXP_INIT packet. INIT and VERSION are the
// only packets that carry no request id.
func NewInitPacket(version uint32) []byte {
	pkt := make([]byte, 0, 5)
	pkt = append(pkt, FxpInit)
	return AppendUint32(pkt, version)
}

// NewOpenPacket builds an SSH_FXP_OPEN packet for the given path,
// pflags and initial attributes.
func NewOpenPacket(id uint32, path string, pflags uint32, attrs Attrs) []byte {
	pkt := make([]byte, 0, 1+4+4+len(path)+4+4+24)
	pkt = append(pkt, FxpOpen)
	pkt = AppendUint32(pkt, id)
	pkt = AppendString(pkt, path)
	pkt = AppendUint32(pkt, pflags)
	return appendAttrs(pkt, attrs)
}

// NewClosePacket builds an SSH_FXP_CLOSE packet for the given server
// file handle.
func NewClosePacket(id uint32, handle []byte) []byte {
	pkt := make([]byte, 0, 1+4+4+len(handle))
	pkt = append(pkt, FxpClose)
	pkt = AppendUint32(pkt, id)
	return AppendString(pkt, handle)
}

// NewReadPacket builds an SSH_FXP_READ packet requesting length bytes at
// offset from the given server file handle.
func NewReadPacket(id uint32, handle []byte, offset uint64, length uint32) []byte {
	pkt := make([]byte, 0, 1+4+4+len(handle)+8+4)
	pkt = append(pkt, FxpRead)
	pkt = AppendUint32(pkt, id)
	pkt = AppendString(pkt, handle)
	pkt = AppendUint64(pkt, offset)
	return AppendUint32(pkt, length)
}

// NewWritePacket builds an SSH_FXP_WRITE packet committing data at
// offset on the given server file handle.
func NewWritePacket(id uint32, handle []byte, offset uint64, data []byte) []byte {
	pkt := make([]byte, 0, 1+4+4+len(handle)+8+4+len(data))
	pkt = append(pkt, FxpWrite)
	pkt = AppendUint32(pkt, id)
	pkt = AppendString(pkt, handle)
	pkt = AppendUint64(pkt, offset)
	return AppendString(pkt, data)
}

// NewFstatPacket builds an SSH_FXP_FSTAT packet for the given server
// file handle.
func NewFstatPacket(id uint32, handle []byte) []byte {
	pkt := make([]byte, 0, 1+4+4+len(handle))
	pkt = append(pkt, FxpFstat)
	pkt = AppendUint32(pkt, id)
	return AppendString(pkt, handle)
}

// NewExtendedPacket builds an SSH_FXP_EXTENDED packet carrying only an
// extension name, which is all limits@openssh.com needs.
func NewExtendedPacket(id uint32, name string) []byte {
	pkt := make([]byte, 0, 1+4+4+len(name))
	pkt = append(pkt, FxpExtended)
	pkt = AppendUint32(pkt, id)
	return AppendString(pkt, name)
}

// ============================================================================
// Response Packet Parsing
// ============================================================================

// Header is the decoded common header of an id-bearing response packet.
type Header struct {
	Type      byte
	RequestID uint32
}

// ParseHeader splits a packet into its common header and remaining body.
//
// It applies to every response type except SSH_FXP_VERSION, which carries
// no request id and is handled by ParseVersion during the handshake.
func ParseHeader(pkt []byte) (Header, []byte, error) {
	r := NewReader(pkt)

	typ, err := r.Byte()
	if err != nil {
		return Header{}, nil, fmt.Errorf("packet type: %w", err)
	}
	id, err := r.Uint32()
	if err != nil {
		return Header{}, nil, fmt.Errorf("request id: %w", err)
	}
	return Header{Type: typ, RequestID: id}, r.b, nil
}

// ParseVersion parses an SSH_FXP_VERSION packet (including its leading
// type byte) into the negotiated version and the advertised extension
// name/data pairs.
func ParseVersion(pkt []byte) (uint32, map[string]string, error) {
	r := NewReader(pkt)

	typ, err := r.Byte()
	if err != nil {
		return 0, nil, fmt.Errorf("packet type: %w", err)
	}
	if typ != FxpVersion {
		return 0, nil, fmt.Errorf("expected SSH_FXP_VERSION, got type %d", typ)
	}

	version, err := r.Uint32()
	if err != nil {
		return 0, nil, fmt.Errorf("version: %w", err)
	}

	exts := make(map[string]string)
	for r.Len() > 0 {
		name, err := r.String()
		if err != nil {
			return 0, nil, fmt.Errorf("extension name: %w", err)
		}
		data, err := r.String()
		if err != nil {
			return 0, nil, fmt.Errorf("extension data for %q: %w", name, err)
		}
		exts[name] = data
	}
	return version, exts, nil
}

// Status is a decoded SSH_FXP_STATUS body.
type Status struct {
	Code    uint32
	Message string
}

// ParseStatus parses an SSH_FXP_STATUS body (after the common header).
//
// Version 3 status packets carry a message and language tag after the
// code; some minimal servers omit them, which is tolerated since the
// code alone is authoritative.
func ParseStatus(body []byte) (Status, error) {
	r := NewReader(body)

	code, err := r.Uint32()
	if err != nil {
		return Status{}, fmt.Errorf("status code: %w", err)
	}

	st := Status{Code: code}
	if r.Len() > 0 {
		msg, err := r.String()
		if err != nil {
			return Status{}, fmt.Errorf("status message: %w", err)
		}
		st.Message = msg
	}
	return st, nil
}

// ParseHandle parses an SSH_FXP_HANDLE body into the opaque server file
// handle. The handle is copied out of the packet buffer since it lives
// for the whole life of the open file.
func ParseHandle(body []byte) ([]byte, error) {
	r := NewReader(body)

	h, err := r.Bytes()
	if err != nil {
		return nil, fmt.Errorf("handle: %w", err)
	}
	out := make([]byte, len(h))
	copy(out, h)
	return out, nil
}

// Data is a decoded SSH_FXP_DATA body.
//
// HasEOF reports whether the optional end-of-file boolean from later
// filexfer drafts was present; EOF is only meaningful when HasEOF is
// true. Version 3 servers never send it, so a short read from them is
// indistinguishable from truncation and is rejected upstream.
type Data struct {
	Payload []byte
	EOF     bool
	HasEOF  bool
}

// ParseData parses an SSH_FXP_DATA body. The payload aliases the packet
// buffer.
func ParseData(body []byte) (Data, error) {
	r := NewReader(body)

	payload, err := r.Bytes()
	if err != nil {
		return Data{}, fmt.Errorf("data payload: %w", err)
	}

	d := Data{Payload: payload}
	if r.Len() > 0 {
		eof, err := r.Bool()
		if err != nil {
			return Data{}, fmt.Errorf("data eof flag: %w", err)
		}
		d.EOF = eof
		d.HasEOF = true
	}
	return d, nil
}

// ParseAttrs parses an SSH_FXP_ATTRS body (or an attrs structure embedded
// in another packet).
func ParseAttrs(body []byte) (Attrs, error) {
	r := NewReader(body)
	return decodeAttrs(r)
}

func decodeAttrs(r *Reader) (Attrs, error) {
	var a Attrs
	var err error

	if a.Flags, err = r.Uint32(); err != nil {
		return Attrs{}, fmt.Errorf("attr flags: %w", err)
	}
	if a.Flags&AttrFlagSize != 0 {
		if a.Size, err = r.Uint64(); err != nil {
			return Attrs{}, fmt.Errorf("attr size: %w", err)
		}
	}
	if a.Flags&AttrFlagUIDGID != 0 {
		if a.UID, err = r.Uint32(); err != nil {
			return Attrs{}, fmt.Errorf("attr uid: %w", err)
		}
		if a.GID, err = r.Uint32(); err != nil {
			return Attrs{}, fmt.Errorf("attr gid: %w", err)
		}
	}
	if a.Flags&AttrFlagPermissions != 0 {
		if a.Permissions, err = r.Uint32(); err != nil {
			return Attrs{}, fmt.Errorf("attr permissions: %w", err)
		}
	}
	if a.Flags&AttrFlagACModTime != 0 {
		if a.Atime, err = r.Uint32(); err != nil {
			return Attrs{}, fmt.Errorf("attr atime: %w", err)
		}
		if a.Mtime, err = r.Uint32(); err != nil {
			return Attrs{}, fmt.Errorf("attr mtime: %w", err)
		}
	}
	return a, nil
}

// ParseLimits parses a limits@openssh.com SSH_FXP_EXTENDED_REPLY body.
//
// Reply format per OpenSSH PROTOCOL: four uint64 values: max-packet-length,
// max-read-length, max-write-length, max-open-handles.
func ParseLimits(body []byte) (Limits, error) {
	r := NewReader(body)
	var l Limits
	var err error

	if l.MaxPacketLength, err = r.Uint64(); err != nil {
		return Limits{}, fmt.Errorf("max-packet-length: %w", err)
	}
	if l.MaxReadLength, err = r.Uint64(); err != nil {
		return Limits{}, fmt.Errorf("max-read-length: %w", err)
	}
	if l.MaxWriteLength, err = r.Uint64(); err != nil {
		return Limits{}, fmt.Errorf("max-write-length: %w", err)
	}
	if l.MaxOpenHandles, err = r.Uint64(); err != nil {
		return Limits{}, fmt.Errorf("max-open-handles: %w", err)
	}
	return l, nil
}

// StatusName returns a human-readable name for an SSH_FX status code,
// used in error messages and logs.
func StatusName(code uint32) string {
	switch code {
	case FxOK:
		return "SSH_FX_OK"
	case FxEOF:
		return "SSH_FX_EOF"
	case FxNoSuchFile:
		return "SSH_FX_NO_SUCH_FILE"
	case FxPermissionDenied:
		return "SSH_FX_PERMISSION_DENIED"
	case FxFailure:
		return "SSH_FX_FAILURE"
	case FxBadMessage:
		return "SSH_FX_BAD_MESSAGE"
	case FxNoConnection:
		return "SSH_FX_NO_CONNECTION"
	case FxConnectionLost:
		return "SSH_FX_CONNECTION_LOST"
	case FxOpUnsupported:
		return "SSH_FX_OP_UNSUPPORTED"
	default:
		return fmt.Sprintf("SSH_FX_UNKNOWN(%d)", code)
	}
}
