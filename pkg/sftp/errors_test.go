package sftp

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	proto "github.com/marmos91/dittosftp/internal/protocol/sftp"
)

func TestClientError(t *testing.T) {
	t.Run("RemoteStatusMessage", func(t *testing.T) {
		err := remoteStatus("read /a", proto.FxPermissionDenied, "denied")
		assert.Equal(t, "RemoteStatus: read /a failed with SSH_FX_PERMISSION_DENIED (denied)", err.Error())
	})

	t.Run("WrappedCauseSurvivesErrorsIs", func(t *testing.T) {
		err := connectionLost("receive failed", io.ErrClosedPipe)
		assert.ErrorIs(t, err, io.ErrClosedPipe)
		assert.Contains(t, err.Error(), "ConnectionLost")
	})

	t.Run("CodeOf", func(t *testing.T) {
		assert.Equal(t, ErrInvalidHandle, CodeOf(invalidHandle("stale")))
		assert.Equal(t, ErrInvalidHandle, CodeOf(wrap(invalidHandle("stale"))))
		assert.Zero(t, CodeOf(errors.New("plain")))
		assert.Zero(t, CodeOf(nil))
	})
}

func wrap(err error) error {
	return &wrapped{err}
}

type wrapped struct{ err error }

func (w *wrapped) Error() string { return "wrapped: " + w.err.Error() }
func (w *wrapped) Unwrap() error { return w.err }

func TestErrorCodeString(t *testing.T) {
	assert.Equal(t, "ProtocolViolation", ErrProtocolViolation.String())
	assert.Equal(t, "Unknown(42)", ErrorCode(42).String())
}

func TestStateAndKindString(t *testing.T) {
	assert.Equal(t, "Pending", StatePending.String())
	assert.Equal(t, "Completed", StateCompleted.String())
	assert.Equal(t, "Consumed", StateConsumed.String())
	assert.Equal(t, "Freed", StateFreed.String())
	assert.Equal(t, "read", KindRead.String())
	assert.Equal(t, "write", KindWrite.String())
}
