package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput redirects the logger to a buffer for the duration of fn
// and returns everything written.
func captureOutput(level, format string, fn func()) string {
	var buf bytes.Buffer
	InitWithWriter(&buf, level, format, false)
	fn()
	return buf.String()
}

func TestLevelFiltering(t *testing.T) {
	t.Run("DebugSuppressedAtInfo", func(t *testing.T) {
		out := captureOutput("INFO", "text", func() {
			Debug("hidden")
			Info("visible")
		})
		assert.NotContains(t, out, "hidden")
		assert.Contains(t, out, "visible")
	})

	t.Run("DebugVisibleAtDebug", func(t *testing.T) {
		out := captureOutput("DEBUG", "text", func() {
			Debug("issued request", KeyRequestID, 42)
		})
		assert.Contains(t, out, "issued request")
		assert.Contains(t, out, "request_id=42")
	})

	t.Run("ErrorAlwaysVisible", func(t *testing.T) {
		out := captureOutput("ERROR", "text", func() {
			Warn("hidden")
			Error("boom")
		})
		assert.NotContains(t, out, "hidden")
		assert.Contains(t, out, "boom")
	})
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
}

func TestJSONFormat(t *testing.T) {
	out := captureOutput("INFO", "json", func() {
		Info("transfer complete", KeyBytes, 1024, KeyEOF, true)
	})

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &record))
	assert.Equal(t, "transfer complete", record["msg"])
	assert.Equal(t, float64(1024), record[KeyBytes])
	assert.Equal(t, true, record[KeyEOF])
}

func TestContextLogging(t *testing.T) {
	t.Run("InjectsTransferFields", func(t *testing.T) {
		lc := NewLogContext("t-123", "sftp.example.com:22")
		ctx := WithContext(context.Background(), lc.WithOp("get").WithPath("/data/file.bin"))

		out := captureOutput("INFO", "text", func() {
			InfoCtx(ctx, "chunk done")
		})
		assert.Contains(t, out, "transfer_id=t-123")
		assert.Contains(t, out, "remote=sftp.example.com:22")
		assert.Contains(t, out, "op=get")
		assert.Contains(t, out, "path=/data/file.bin")
	})

	t.Run("NilContextIsHarmless", func(t *testing.T) {
		out := captureOutput("INFO", "text", func() {
			InfoCtx(context.Background(), "no log context")
		})
		assert.Contains(t, out, "no log context")
	})
}

func TestLogContext(t *testing.T) {
	lc := NewLogContext("t-1", "host:22")

	clone := lc.WithOp("put")
	assert.Equal(t, "put", clone.Op)
	assert.Empty(t, lc.Op, "WithOp must not mutate the original")

	assert.Nil(t, (*LogContext)(nil).Clone())
	assert.Zero(t, (*LogContext)(nil).DurationMs())
}

func TestFieldHelpers(t *testing.T) {
	assert.Equal(t, "<nil>", Err(nil).Value.String())
	assert.Equal(t, "0x67", Hex(uint8(103)))
	assert.Equal(t, KeyRequestID, RequestID(7).Key)
	assert.Equal(t, KeyOffset, Offset(32768).Key)
}

func TestConcurrentLogging(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				Info("concurrent", "worker", n, "iteration", j)
			}
		}(i)
	}
	wg.Wait()

	lines := strings.Count(buf.String(), "\n")
	assert.Equal(t, 16*50, lines)
}
