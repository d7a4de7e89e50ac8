package sftp

import (
	"io"
	"time"

	"github.com/marmos91/dittosftp/internal/logger"
	proto "github.com/marmos91/dittosftp/internal/protocol/sftp"
)

// Open flags, mapped onto the draft-02 pflags bits.
const (
	OpenRead      = proto.FxfRead
	OpenWrite     = proto.FxfWrite
	OpenAppend    = proto.FxfAppend
	OpenCreate    = proto.FxfCreat
	OpenTruncate  = proto.FxfTrunc
	OpenExclusive = proto.FxfExcl
)

// FileAttr is the subset of remote file attributes this client surfaces.
// Fields the server did not report are zero.
type FileAttr struct {
	Size        uint64
	UID         uint32
	GID         uint32
	Permissions uint32
	Atime       time.Time
	Mtime       time.Time
}

// File is a remote open-file reference with a current byte cursor.
//
// The cursor is advanced at issue time by exactly the granted length of
// each read or write, so concurrently outstanding requests address
// disjoint, deterministic byte ranges regardless of the order their
// responses come back in.
type File struct {
	session *Session
	handle  []byte
	path    string
	offset  uint64
	flags   uint32
	closed  bool
}

// Open opens a remote file and returns a File whose cursor starts at
// zero (or at the end when OpenAppend is set and the size is known).
func (s *Session) Open(path string, flags uint32, perm uint32) (*File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attrs := proto.Attrs{}
	if flags&OpenCreate != 0 {
		attrs.Flags = proto.AttrFlagPermissions
		attrs.Permissions = perm
	}

	resp, err := s.roundTripLocked("open", func(id uint32) []byte {
		return proto.NewOpenPacket(id, path, flags, attrs)
	})
	if err != nil {
		return nil, err
	}

	switch resp.typ {
	case proto.FxpHandle:
		handle, err := proto.ParseHandle(resp.body)
		if err != nil {
			return nil, protocolViolation("parse handle for %q: %v", path, err)
		}
		logger.Debug("opened remote file",
			logger.KeyPath, path,
			logger.KeyHandleLen, len(handle))
		return &File{session: s, handle: handle, path: path, flags: flags}, nil
	case proto.FxpStatus:
		return nil, statusError("open "+path, resp.body)
	default:
		return nil, protocolViolation("unexpected type %d in reply to open", resp.typ)
	}
}

// Path returns the remote path the file was opened with.
func (f *File) Path() string {
	return f.path
}

// Offset returns the file's current cursor position. With requests
// outstanding this is the position already committed to the wire, not
// the position confirmed by the server.
func (f *File) Offset() uint64 {
	f.session.mu.Lock()
	defer f.session.mu.Unlock()
	return f.offset
}

// Seek repositions the cursor for subsequent reads and writes. It is
// invalid while requests are outstanding on this file: those requests
// already own their byte ranges and a moved cursor would silently
// interleave ranges.
func (f *File) Seek(offset uint64) error {
	s := f.session
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.closed {
		return invalidArgument("seek on closed file %q", f.path)
	}
	for _, req := range s.inflight {
		if req.file == f {
			return invalidArgument("seek on %q with request %d outstanding", f.path, req.id)
		}
	}
	f.offset = offset
	return nil
}

// Close closes the remote handle. Outstanding requests on the file are
// not waited for; the caller owns their lifecycle.
func (f *File) Close() error {
	s := f.session
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.closed {
		return invalidArgument("close on closed file %q", f.path)
	}
	f.closed = true

	resp, err := s.roundTripLocked("close", func(id uint32) []byte {
		return proto.NewClosePacket(id, f.handle)
	})
	if err != nil {
		return err
	}

	if resp.typ != proto.FxpStatus {
		return protocolViolation("unexpected type %d in reply to close", resp.typ)
	}
	st, err := proto.ParseStatus(resp.body)
	if err != nil {
		return protocolViolation("parse close status: %v", err)
	}
	if st.Code != proto.FxOK {
		return remoteStatus("close "+f.path, st.Code, st.Message)
	}
	return nil
}

// Stat returns the remote file's current attributes via FSTAT.
func (f *File) Stat() (FileAttr, error) {
	s := f.session
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.closed {
		return FileAttr{}, invalidArgument("stat on closed file %q", f.path)
	}

	resp, err := s.roundTripLocked("fstat", func(id uint32) []byte {
		return proto.NewFstatPacket(id, f.handle)
	})
	if err != nil {
		return FileAttr{}, err
	}

	switch resp.typ {
	case proto.FxpAttrs:
		attrs, err := proto.ParseAttrs(resp.body)
		if err != nil {
			return FileAttr{}, protocolViolation("parse attrs for %q: %v", f.path, err)
		}
		return fileAttrFromWire(attrs), nil
	case proto.FxpStatus:
		return FileAttr{}, statusError("fstat "+f.path, resp.body)
	default:
		return FileAttr{}, protocolViolation("unexpected type %d in reply to fstat", resp.typ)
	}
}

func fileAttrFromWire(a proto.Attrs) FileAttr {
	out := FileAttr{
		Size:        a.Size,
		UID:         a.UID,
		GID:         a.GID,
		Permissions: a.Permissions,
	}
	if a.Flags&proto.AttrFlagACModTime != 0 {
		out.Atime = time.Unix(int64(a.Atime), 0)
		out.Mtime = time.Unix(int64(a.Mtime), 0)
	}
	return out
}

// Read reads up to len(p) bytes from the cursor, the issue-then-wait
// composition of one asynchronous request. It implements io.Reader:
// a single protocol round trip per call, short reads allowed, io.EOF at
// end of file.
func (f *File) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	want := uint32(len(p))
	if uint64(len(p)) > uint64(^uint32(0)) {
		want = ^uint32(0)
	}

	_, req, err := f.BeginRead(want)
	if err != nil {
		return 0, err
	}

	data, eof, err := req.WaitRead()
	if err != nil {
		return 0, err
	}

	n := copy(p, data)
	if eof && n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write writes len(p) bytes at the cursor, looping issue-then-wait until
// the whole buffer is committed. It implements io.Writer.
func (f *File) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		granted, req, err := f.BeginWrite(p[written:])
		if err != nil {
			return written, err
		}
		if err := req.WaitWrite(); err != nil {
			return written, err
		}
		written += int(granted)
	}
	return written, nil
}
