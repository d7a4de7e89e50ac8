package commands

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	proto "github.com/marmos91/dittosftp/internal/protocol/sftp"
	"github.com/marmos91/dittosftp/pkg/sftp"
)

// fakeChannel scripts the server side of a session for pipeline tests.
type fakeChannel struct {
	responses [][]byte
}

func (c *fakeChannel) Send(pkt []byte) error { return nil }

func (c *fakeChannel) Recv() ([]byte, error) {
	if len(c.responses) == 0 {
		return nil, io.EOF
	}
	pkt := c.responses[0]
	c.responses = c.responses[1:]
	return pkt, nil
}

func (c *fakeChannel) Close() error { return nil }

func openTestFile(t *testing.T, ch *fakeChannel) *sftp.File {
	t.Helper()

	// VERSION for the handshake, HANDLE for the open.
	version := []byte{proto.FxpVersion}
	version = proto.AppendUint32(version, proto.ProtocolVersion)

	handle := []byte{proto.FxpHandle}
	handle = proto.AppendUint32(handle, 1)
	handle = proto.AppendString(handle, "h")

	ch.responses = append([][]byte{version, handle}, ch.responses...)

	sess, err := sftp.NewSession(ch)
	require.NoError(t, err)

	f, err := sess.Open("/remote/file", sftp.OpenRead, 0)
	require.NoError(t, err)
	return f
}

func TestPipeline(t *testing.T) {
	t.Run("FIFOOrder", func(t *testing.T) {
		ch := &fakeChannel{}
		f := openTestFile(t, ch)

		var pl pipeline
		var issued []*sftp.Request
		for i := 0; i < 3; i++ {
			_, req, err := f.BeginRead(16)
			require.NoError(t, err)
			pl.push(req)
			issued = append(issued, req)
		}

		require.Equal(t, 3, pl.len())
		assert.Same(t, issued[0], pl.pop())
		assert.Same(t, issued[1], pl.pop())
		require.Equal(t, 1, pl.len())
	})

	t.Run("AbortFreesEveryQueuedRequest", func(t *testing.T) {
		ch := &fakeChannel{}
		f := openTestFile(t, ch)

		var pl pipeline
		var issued []*sftp.Request
		for i := 0; i < 4; i++ {
			_, req, err := f.BeginRead(16)
			require.NoError(t, err)
			pl.push(req)
			issued = append(issued, req)
		}

		pl.abort()
		assert.Zero(t, pl.len())
		for _, req := range issued {
			assert.Equal(t, sftp.StateFreed, req.State())
		}
	})
}
