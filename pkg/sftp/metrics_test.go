package sftp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingMetrics captures engine instrumentation calls for assertions.
type recordingMetrics struct {
	requests    []string
	completions []string
	bytes       map[string]int
	outstanding int
	buffered    int
	protoErrors []string
	discarded   int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{bytes: make(map[string]int)}
}

func (m *recordingMetrics) RecordRequest(kind string, granted uint32) {
	m.requests = append(m.requests, kind)
}

func (m *recordingMetrics) RecordCompletion(kind, outcome string, elapsed time.Duration) {
	m.completions = append(m.completions, kind+"/"+outcome)
}

func (m *recordingMetrics) RecordBytes(kind string, n int) {
	m.bytes[kind] += n
}

func (m *recordingMetrics) SetOutstanding(n int) { m.outstanding = n }

func (m *recordingMetrics) SetBuffered(n int) { m.buffered = n }

func (m *recordingMetrics) RecordProtocolError(r string) {
	m.protoErrors = append(m.protoErrors, r)
}

func (m *recordingMetrics) RecordDiscarded() { m.discarded++ }

func TestSessionMetrics(t *testing.T) {
	ch := &scriptChannel{}
	rec := newRecordingMetrics()
	s := newTestSession(ch, 4)
	s.m = rec
	f := newTestFile(s)

	_, req1, err := f.BeginRead(4)
	require.NoError(t, err)
	_, req2, err := f.BeginRead(4)
	require.NoError(t, err)
	require.Equal(t, 2, rec.outstanding)

	require.NoError(t, req2.Free())
	require.Equal(t, 1, rec.outstanding)

	// req2's late response is discarded; req1's delivers 4 bytes.
	ch.queue(
		dataPacket(2, []byte("dead")),
		dataPacket(1, []byte("aaaa")),
	)

	_, _, err = req1.WaitRead()
	require.NoError(t, err)

	assert.Equal(t, []string{"read", "read"}, rec.requests)
	assert.Equal(t, []string{"read/ok"}, rec.completions)
	assert.Equal(t, 4, rec.bytes["read"])
	assert.Equal(t, 1, rec.discarded)
	assert.Zero(t, rec.outstanding)
	assert.Zero(t, rec.buffered)
	assert.Empty(t, rec.protoErrors)
}
