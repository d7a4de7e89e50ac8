package bufpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Buffer Allocation Tests
// ============================================================================

func TestBufferAllocation(t *testing.T) {
	t.Run("AllocatesControlBuffer", func(t *testing.T) {
		buf := Get(100)
		defer Put(buf)

		assert.GreaterOrEqual(t, len(buf), 100)
		assert.Equal(t, DefaultControlSize, cap(buf))
	})

	t.Run("AllocatesFrameBuffer", func(t *testing.T) {
		buf := Get(32*1024 + 13) // default-limit data packet with header
		defer Put(buf)

		assert.GreaterOrEqual(t, len(buf), 32*1024+13)
		assert.Equal(t, DefaultFrameSize, cap(buf))
	})

	t.Run("AllocatesBulkBuffer", func(t *testing.T) {
		buf := Get(256 * 1024)
		defer Put(buf)

		assert.GreaterOrEqual(t, len(buf), 256*1024)
		assert.Equal(t, DefaultBulkSize, cap(buf))
	})

	t.Run("AllocatesOversizedBuffer", func(t *testing.T) {
		buf := Get(1024 * 1024)
		defer Put(buf)

		assert.GreaterOrEqual(t, len(buf), 1024*1024)
		assert.Equal(t, len(buf), cap(buf))
	})
}

// ============================================================================
// Size Class Boundaries
// ============================================================================

func TestBufferSizeClasses(t *testing.T) {
	t.Run("ExactClassSizesStayInClass", func(t *testing.T) {
		for _, size := range []int{DefaultControlSize, DefaultFrameSize, DefaultBulkSize} {
			buf := Get(size)
			assert.Equal(t, size, cap(buf))
			Put(buf)
		}
	})

	t.Run("JustAboveControl", func(t *testing.T) {
		buf := Get(DefaultControlSize + 1)
		defer Put(buf)

		assert.Equal(t, DefaultFrameSize, cap(buf))
	})

	t.Run("JustAboveFrame", func(t *testing.T) {
		buf := Get(DefaultFrameSize + 1)
		defer Put(buf)

		assert.Equal(t, DefaultBulkSize, cap(buf))
	})
}

// ============================================================================
// Put and Reuse Tests
// ============================================================================

func TestBufferPutAndReuse(t *testing.T) {
	t.Run("ReusesReturnedBuffer", func(t *testing.T) {
		buf1 := Get(1024)
		Put(buf1)

		buf2 := Get(1024)
		Put(buf2)

		assert.Equal(t, cap(buf1), cap(buf2))
	})

	t.Run("HandlesNilPut", func(t *testing.T) {
		require.NotPanics(t, func() {
			Put(nil)
		})
	})

	t.Run("DoesNotPoolOversizedBuffers", func(t *testing.T) {
		buf := Get(2 * 1024 * 1024)
		require.NotPanics(t, func() {
			Put(buf)
		})

		buf2 := Get(2 * 1024 * 1024)
		defer Put(buf2)

		assert.Equal(t, len(buf2), cap(buf2))
	})
}

// ============================================================================
// Custom Pool Tests
// ============================================================================

func TestCustomPool(t *testing.T) {
	t.Run("CustomSizes", func(t *testing.T) {
		pool := NewPool(&Config{
			ControlSize: 1024,
			FrameSize:   8192,
			BulkSize:    65536,
		})

		control := pool.Get(500)
		assert.Equal(t, 1024, cap(control))
		pool.Put(control)

		frame := pool.Get(2000)
		assert.Equal(t, 8192, cap(frame))
		pool.Put(frame)

		bulk := pool.Get(10000)
		assert.Equal(t, 65536, cap(bulk))
		pool.Put(bulk)
	})

	t.Run("NilConfig", func(t *testing.T) {
		pool := NewPool(nil)

		buf := pool.Get(100)
		assert.Equal(t, DefaultControlSize, cap(buf))
		pool.Put(buf)
	})

	t.Run("ZeroConfigValues", func(t *testing.T) {
		pool := NewPool(&Config{})

		buf := pool.Get(100)
		assert.Equal(t, DefaultControlSize, cap(buf))
		pool.Put(buf)
	})
}

// ============================================================================
// Concurrency
// ============================================================================

func TestConcurrentGetPut(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				buf := Get(j * 97)
				assert.GreaterOrEqual(t, len(buf), j*97)
				Put(buf)
			}
		}()
	}
	wg.Wait()
}

func TestGetUint32(t *testing.T) {
	buf := GetUint32(32768)
	defer Put(buf)

	assert.GreaterOrEqual(t, len(buf), 32768)
	assert.Equal(t, DefaultFrameSize, cap(buf))
}
