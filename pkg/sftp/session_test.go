package sftp

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	proto "github.com/marmos91/dittosftp/internal/protocol/sftp"
)

// ============================================================================
// Handshake Fixtures
// ============================================================================

func versionPacket(version uint32, exts map[string]string) []byte {
	pkt := []byte{proto.FxpVersion}
	pkt = proto.AppendUint32(pkt, version)
	for k, v := range exts {
		pkt = proto.AppendString(pkt, k)
		pkt = proto.AppendString(pkt, v)
	}
	return pkt
}

func limitsReplyPacket(id uint32, maxPacket, maxRead, maxWrite, maxHandles uint64) []byte {
	pkt := []byte{proto.FxpExtendedReply}
	pkt = proto.AppendUint32(pkt, id)
	pkt = proto.AppendUint64(pkt, maxPacket)
	pkt = proto.AppendUint64(pkt, maxRead)
	pkt = proto.AppendUint64(pkt, maxWrite)
	return proto.AppendUint64(pkt, maxHandles)
}

func attrsPacket(id uint32, size uint64, perms uint32) []byte {
	pkt := []byte{proto.FxpAttrs}
	pkt = proto.AppendUint32(pkt, id)
	pkt = proto.AppendUint32(pkt, proto.AttrFlagSize|proto.AttrFlagPermissions)
	pkt = proto.AppendUint64(pkt, size)
	return proto.AppendUint32(pkt, perms)
}

// ============================================================================
// Handshake and Limits Negotiation
// ============================================================================

func TestHandshake(t *testing.T) {
	t.Run("NegotiatesLimitsExtension", func(t *testing.T) {
		ch := &scriptChannel{}
		ch.queue(
			versionPacket(3, map[string]string{proto.ExtLimits: "1"}),
			limitsReplyPacket(1, 261120, 65536, 131072, 64),
		)

		s, err := NewSession(ch)
		require.NoError(t, err)

		limits := s.Limits()
		assert.EqualValues(t, 65536, limits.MaxReadLen)
		assert.EqualValues(t, 131072, limits.MaxWriteLen)
		assert.Equal(t, map[string]string{proto.ExtLimits: "1"}, s.Extensions())

		// INIT first, then exactly one limits round trip.
		require.Len(t, ch.sent, 2)
		assert.EqualValues(t, proto.FxpInit, ch.sent[0][0])
		assert.EqualValues(t, proto.FxpExtended, ch.sent[1][0])
	})

	t.Run("FallsBackToDefaultsWithoutExtension", func(t *testing.T) {
		ch := &scriptChannel{}
		ch.queue(versionPacket(3, nil))

		s, err := NewSession(ch)
		require.NoError(t, err)

		assert.Equal(t, DefaultLimits(), s.Limits())
		require.Len(t, ch.sent, 1, "no limits request without the advertisement")
	})

	t.Run("FallsBackWhenServerRefusesLimits", func(t *testing.T) {
		ch := &scriptChannel{}
		ch.queue(
			versionPacket(3, map[string]string{proto.ExtLimits: "1"}),
			statusPacket(1, proto.FxOpUnsupported, "unsupported"),
		)

		s, err := NewSession(ch)
		require.NoError(t, err)
		assert.Equal(t, DefaultLimits(), s.Limits())
	})

	t.Run("RejectsUnsupportedVersion", func(t *testing.T) {
		ch := &scriptChannel{}
		ch.queue(versionPacket(5, nil))

		_, err := NewSession(ch)
		assert.Equal(t, ErrProtocolViolation, CodeOf(err))
	})

	t.Run("ChannelEOFIsConnectionLost", func(t *testing.T) {
		ch := &scriptChannel{}

		_, err := NewSession(ch)
		assert.Equal(t, ErrConnectionLost, CodeOf(err))
	})
}

func TestLimitsFromExtension(t *testing.T) {
	t.Run("ZeroValuesKeepDefaults", func(t *testing.T) {
		got := limitsFromExtension(proto.Limits{})
		assert.Equal(t, DefaultLimits(), got)
	})

	t.Run("AbsurdValuesKeepDefaults", func(t *testing.T) {
		got := limitsFromExtension(proto.Limits{
			MaxReadLength:  1 << 40,
			MaxWriteLength: 1 << 40,
		})
		assert.Equal(t, DefaultLimits(), got)
	})

	t.Run("SaneValuesAreAdopted", func(t *testing.T) {
		got := limitsFromExtension(proto.Limits{
			MaxReadLength:  65536,
			MaxWriteLength: 131072,
		})
		assert.EqualValues(t, 65536, got.MaxReadLen)
		assert.EqualValues(t, 131072, got.MaxWriteLen)
	})
}

// ============================================================================
// Control Operations
// ============================================================================

func TestOpenCloseStat(t *testing.T) {
	t.Run("OpenReturnsFileOnHandle", func(t *testing.T) {
		ch := &scriptChannel{}
		s := newTestSession(ch, 32768)
		ch.queue(handlePacket(1, []byte("remote-h")))

		f, err := s.Open("/data/a.bin", OpenRead, 0)
		require.NoError(t, err)
		assert.Equal(t, "/data/a.bin", f.Path())
		assert.Zero(t, f.Offset())
	})

	t.Run("OpenSurfacesRemoteStatus", func(t *testing.T) {
		ch := &scriptChannel{}
		s := newTestSession(ch, 32768)
		ch.queue(statusPacket(1, proto.FxNoSuchFile, "no such file"))

		_, err := s.Open("/data/missing", OpenRead, 0)
		assert.Equal(t, ErrRemoteStatus, CodeOf(err))
	})

	t.Run("CloseRoundTrips", func(t *testing.T) {
		ch := &scriptChannel{}
		s := newTestSession(ch, 32768)
		f := newTestFile(s)
		ch.queue(statusPacket(1, proto.FxOK, ""))

		require.NoError(t, f.Close())
		assert.Equal(t, ErrInvalidArgument, CodeOf(f.Close()), "double close")
	})

	t.Run("StatDecodesAttrs", func(t *testing.T) {
		ch := &scriptChannel{}
		s := newTestSession(ch, 32768)
		f := newTestFile(s)
		ch.queue(attrsPacket(1, 1048576, 0o644))

		attr, err := f.Stat()
		require.NoError(t, err)
		assert.EqualValues(t, 1048576, attr.Size)
		assert.EqualValues(t, 0o644, attr.Permissions)
	})

	t.Run("ControlWaitParksDataResponses", func(t *testing.T) {
		ch := &scriptChannel{}
		s := newTestSession(ch, 4)
		f := newTestFile(s)

		_, req, err := f.BeginRead(4) // id 1
		require.NoError(t, err)

		// The stat reply (id 2) arrives after the read's data, so the
		// control wait must park the data for the read's handle.
		ch.queue(
			dataPacket(1, []byte("aaaa")),
			attrsPacket(2, 64, 0o600),
		)

		attr, err := f.Stat()
		require.NoError(t, err)
		assert.EqualValues(t, 64, attr.Size)
		require.Equal(t, StateCompleted, req.State())

		data, _, err := req.WaitRead()
		require.NoError(t, err)
		assert.Equal(t, []byte("aaaa"), data)
	})
}

func TestSeek(t *testing.T) {
	t.Run("MovesCursor", func(t *testing.T) {
		ch := &scriptChannel{}
		s := newTestSession(ch, 1024)
		f := newTestFile(s)

		require.NoError(t, f.Seek(4096))
		_, req, err := f.BeginRead(16)
		require.NoError(t, err)
		defer req.Free()

		_, offset, _ := decodeReadPacket(t, ch.sent[0])
		assert.EqualValues(t, 4096, offset)
	})

	t.Run("RejectedWithOutstandingRequests", func(t *testing.T) {
		ch := &scriptChannel{}
		s := newTestSession(ch, 1024)
		f := newTestFile(s)

		_, req, err := f.BeginRead(16)
		require.NoError(t, err)
		defer req.Free()

		assert.Equal(t, ErrInvalidArgument, CodeOf(f.Seek(0)))
	})
}

// ============================================================================
// Synchronous Composition
// ============================================================================

func TestFileRead(t *testing.T) {
	t.Run("SingleRoundTrip", func(t *testing.T) {
		ch := &scriptChannel{}
		s := newTestSession(ch, 32768)
		f := newTestFile(s)
		ch.queue(dataPacketEOF(1, []byte("hello")))

		p := make([]byte, 16)
		n, err := f.Read(p)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, []byte("hello"), p[:n])
	})

	t.Run("EOFAfterDrain", func(t *testing.T) {
		ch := &scriptChannel{}
		s := newTestSession(ch, 32768)
		f := newTestFile(s)
		ch.queue(statusPacket(1, proto.FxEOF, "EOF"))

		p := make([]byte, 16)
		n, err := f.Read(p)
		assert.Zero(t, n)
		assert.ErrorIs(t, err, io.EOF)
	})
}

func TestFileWrite(t *testing.T) {
	t.Run("LoopsUntilCommitted", func(t *testing.T) {
		ch := &scriptChannel{}
		s := newTestSession(ch, 4)
		f := newTestFile(s)
		ch.queue(
			statusPacket(1, proto.FxOK, ""),
			statusPacket(2, proto.FxOK, ""),
			statusPacket(3, proto.FxOK, ""),
		)

		n, err := f.Write([]byte("0123456789"))
		require.NoError(t, err)
		assert.Equal(t, 10, n)
		assert.Len(t, ch.sent, 3, "10 bytes under a 4-byte cap take 3 writes")
		assert.EqualValues(t, 10, f.Offset())
	})

	t.Run("PartialCountOnFailure", func(t *testing.T) {
		ch := &scriptChannel{}
		s := newTestSession(ch, 4)
		f := newTestFile(s)
		ch.queue(
			statusPacket(1, proto.FxOK, ""),
			statusPacket(2, proto.FxPermissionDenied, "denied"),
		)

		n, err := f.Write([]byte("01234567"))
		assert.Equal(t, 4, n)
		assert.Equal(t, ErrRemoteStatus, CodeOf(err))
	})
}

func TestSessionClose(t *testing.T) {
	ch := &scriptChannel{}
	s := newTestSession(ch, 4)

	require.NoError(t, s.Close())
	assert.True(t, ch.closed)
	assert.NoError(t, s.Close(), "close is idempotent")

	f := newTestFile(s)
	_, _, err := f.BeginRead(4)
	assert.Equal(t, ErrInvalidArgument, CodeOf(err))
}
