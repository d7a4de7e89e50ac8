// Package sftp implements the wire encoding for SSH File Transfer Protocol
// version 3, as described in draft-ietf-secsh-filexfer-02, plus the
// limits@openssh.com extension used to discover server transfer limits.
//
// The package is purely about bytes on the wire: packet framing, request
// building, and response parsing. Session state, request correlation and the
// AIO handle lifecycle live in pkg/sftp.
package sftp

// ProtocolVersion is the filexfer protocol version this client speaks.
// Version 3 is what draft-ietf-secsh-filexfer-02 describes and what
// every deployed server supports.
const ProtocolVersion = 3

// Packet type values per draft-ietf-secsh-filexfer-02 Section 3.
const (
	FxpInit          = 1
	FxpVersion       = 2
	FxpOpen          = 3
	FxpClose         = 4
	FxpRead          = 5
	FxpWrite         = 6
	FxpLstat         = 7
	FxpFstat         = 8
	FxpSetstat       = 9
	FxpFsetstat      = 10
	FxpOpendir       = 11
	FxpReaddir       = 12
	FxpRemove        = 13
	FxpMkdir         = 14
	FxpRmdir         = 15
	FxpRealpath      = 16
	FxpStat          = 17
	FxpRename        = 18
	FxpReadlink      = 19
	FxpSymlink       = 20
	FxpStatus        = 101
	FxpHandle        = 102
	FxpData          = 103
	FxpName          = 104
	FxpAttrs         = 105
	FxpExtended      = 200
	FxpExtendedReply = 201
)

// Status codes per draft-ietf-secsh-filexfer-02 Section 7.
const (
	FxOK               = 0
	FxEOF              = 1
	FxNoSuchFile       = 2
	FxPermissionDenied = 3
	FxFailure          = 4
	FxBadMessage       = 5
	FxNoConnection     = 6
	FxConnectionLost   = 7
	FxOpUnsupported    = 8
)

// Open pflags per draft-ietf-secsh-filexfer-02 Section 6.3.
const (
	FxfRead   = 0x00000001
	FxfWrite  = 0x00000002
	FxfAppend = 0x00000004
	FxfCreat  = 0x00000008
	FxfTrunc  = 0x00000010
	FxfExcl   = 0x00000020
)

// Attribute flag bits per draft-ietf-secsh-filexfer-02 Section 5.
const (
	AttrFlagSize        = 0x00000001
	AttrFlagUIDGID      = 0x00000002
	AttrFlagPermissions = 0x00000004
	AttrFlagACModTime   = 0x00000008
	AttrFlagExtended    = 0x80000000
)

// Default length values per draft-ietf-secsh-filexfer-02 Section 3.
// These are the transfer limits assumed when the server does not
// advertise the limits@openssh.com extension.
const (
	// DefaultMaxPacketLength bounds a whole packet including the
	// length prefix, type byte and payload.
	DefaultMaxPacketLength = 34000

	// DefaultMaxDataLength bounds the data portion of a single
	// READ or WRITE request.
	DefaultMaxDataLength = 32768
)

// ExtLimits is the name of the OpenSSH extension carrying server
// transfer limits (max packet, read, write lengths and open handles).
const ExtLimits = "limits@openssh.com"

// MaxPacketLength is the largest packet this client will accept from a
// server. OpenSSH servers may emit packets up to 256KiB; anything beyond
// this is treated as a framing error rather than buffered.
const MaxPacketLength = 256 * 1024

// Attrs holds the file attribute structure from Section 5.
// Only fields whose flag bit is set in Flags are valid.
type Attrs struct {
	Flags       uint32
	Size        uint64
	UID         uint32
	GID         uint32
	Permissions uint32
	Atime       uint32
	Mtime       uint32
}

// Limits holds the server transfer limits from a limits@openssh.com
// extended reply.
type Limits struct {
	MaxPacketLength uint64
	MaxReadLength   uint64
	MaxWriteLength  uint64
	MaxOpenHandles  uint64
}
