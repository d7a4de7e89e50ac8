package sftp

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ============================================================================
// Wire Encoding Helpers - Go Types → Wire Format
// ============================================================================
//
// All integers in secsh-filexfer are big-endian. Strings and byte arrays
// are length-prefixed with a uint32 and carry no padding (unlike XDR).

// AppendUint32 appends a big-endian uint32 to buf.
func AppendUint32(buf []byte, v uint32) []byte {
	return binary.BigEndian.AppendUint32(buf, v)
}

// AppendUint64 appends a big-endian uint64 to buf.
func AppendUint64(buf []byte, v uint64) []byte {
	return binary.BigEndian.AppendUint64(buf, v)
}

// AppendString appends a uint32-length-prefixed string to buf.
//
// Per draft-ietf-secsh-filexfer-02 Section 3, a string is encoded as:
//
//	[length:uint32][data:length bytes]
//
// The same encoding is used for opaque byte arrays such as file handles,
// so AppendString accepts both via a byte-slice convertible argument.
func AppendString[T string | []byte](buf []byte, s T) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// WriteFrame writes a complete length-prefixed packet frame to w.
//
// pkt holds the packet contents starting at the type byte; the uint32
// length prefix is computed and written here. This is the only place the
// outbound length prefix is produced, so the framing contract lives in
// exactly one spot.
func WriteFrame(w io.Writer, pkt []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(pkt)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := w.Write(pkt); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

// appendAttrs appends an encoded attrs structure (Section 5) to buf.
// Only fields whose flag bit is set are emitted.
func appendAttrs(buf []byte, a Attrs) []byte {
	buf = AppendUint32(buf, a.Flags)
	if a.Flags&AttrFlagSize != 0 {
		buf = AppendUint64(buf, a.Size)
	}
	if a.Flags&AttrFlagUIDGID != 0 {
		buf = AppendUint32(buf, a.UID)
		buf = AppendUint32(buf, a.GID)
	}
	if a.Flags&AttrFlagPermissions != 0 {
		buf = AppendUint32(buf, a.Permissions)
	}
	if a.Flags&AttrFlagACModTime != 0 {
		buf = AppendUint32(buf, a.Atime)
		buf = AppendUint32(buf, a.Mtime)
	}
	return buf
}
