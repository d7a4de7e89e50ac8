// Package bufpool provides a tiered buffer pool for efficient memory reuse.
//
// The pool hands out reusable byte slices for packet staging and transfer
// chunk buffers, cutting GC pressure on pipelined transfers where every
// outstanding request would otherwise allocate its own frame.
//
// # Design Rationale
//
// Three size tiers match the traffic an SFTP session actually produces:
//   - Control buffers (default 4KB): OPEN/CLOSE/STATUS packets and headers
//   - Frame buffers (default 40KB): a default-limit 32KiB data payload
//     plus framing overhead
//   - Bulk buffers (default 288KB): payloads up to the largest limit an
//     OpenSSH server advertises, plus framing overhead
//
// Buffers larger than the bulk tier are allocated directly and not
// pooled, so an occasional oversized request does not pin memory.
//
// # Thread Safety
//
// All operations are thread-safe via sync.Pool. Safe for concurrent use
// across sessions and goroutines.
//
// # Usage
//
//	buf := bufpool.Get(size)
//	defer bufpool.Put(buf)
//	// ... use buf ...
package bufpool

import (
	"sync"
)

// Default buffer size classes.
// These can be overridden when creating a custom pool with NewPool.
const (
	// DefaultControlSize covers control packets and frame headers (4KB)
	DefaultControlSize = 4 << 10

	// DefaultFrameSize covers a default-limit data packet with framing (40KB)
	DefaultFrameSize = 40 << 10

	// DefaultBulkSize covers the largest packet this client accepts (288KB)
	DefaultBulkSize = 288 << 10
)

// Pool manages a set of byte slice pools organized by size class.
// It selects the appropriate class for each requested size and falls
// back to direct allocation for oversized requests.
type Pool struct {
	control     sync.Pool
	frame       sync.Pool
	bulk        sync.Pool
	controlSize int
	frameSize   int
	bulkSize    int
}

// Config holds configuration for creating a custom buffer pool.
type Config struct {
	// ControlSize is the size of control buffers (default: 4KB)
	ControlSize int

	// FrameSize is the size of frame buffers (default: 40KB)
	FrameSize int

	// BulkSize is the size of bulk buffers (default: 288KB)
	BulkSize int
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		ControlSize: DefaultControlSize,
		FrameSize:   DefaultFrameSize,
		BulkSize:    DefaultBulkSize,
	}
}

// NewPool creates a new buffer pool with the given configuration.
// If config is nil, default values are used.
func NewPool(cfg *Config) *Pool {
	if cfg == nil {
		defaultCfg := DefaultConfig()
		cfg = &defaultCfg
	}

	// Apply defaults for zero values
	if cfg.ControlSize <= 0 {
		cfg.ControlSize = DefaultControlSize
	}
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = DefaultFrameSize
	}
	if cfg.BulkSize <= 0 {
		cfg.BulkSize = DefaultBulkSize
	}

	p := &Pool{
		controlSize: cfg.ControlSize,
		frameSize:   cfg.FrameSize,
		bulkSize:    cfg.BulkSize,
	}

	p.control = sync.Pool{
		New: func() any {
			buf := make([]byte, p.controlSize)
			return &buf
		},
	}
	p.frame = sync.Pool{
		New: func() any {
			buf := make([]byte, p.frameSize)
			return &buf
		},
	}
	p.bulk = sync.Pool{
		New: func() any {
			buf := make([]byte, p.bulkSize)
			return &buf
		},
	}

	return p
}

// Get returns a byte slice of at least the requested size. The slice
// capacity may exceed size to align with a pool size class.
//
// The caller must call Put() when finished with the buffer; a buffer
// that never comes back simply falls out of the pool's working set.
//
// For sizes above the bulk class a fresh slice is allocated directly and
// will not be pooled.
func (p *Pool) Get(size int) []byte {
	var bufPtr *[]byte

	switch {
	case size <= p.controlSize:
		bufPtr = p.control.Get().(*[]byte)
	case size <= p.frameSize:
		bufPtr = p.frame.Get().(*[]byte)
	case size <= p.bulkSize:
		bufPtr = p.bulk.Get().(*[]byte)
	default:
		// Oversized: allocate directly without pooling so very large
		// buffers are not kept alive indefinitely.
		return make([]byte, size)
	}

	// Return slice with exact requested length but backed by pooled buffer
	buf := *bufPtr
	return buf[:size]
}

// Put returns a buffer to the pool for reuse.
// The buffer must have been obtained from Get() and must not be used
// after Put().
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}

	// The size class is recovered from the capacity; anything that does
	// not match a class came from the oversized path and is left to GC.
	fullBuf := buf[:cap(buf)]
	switch cap(buf) {
	case p.controlSize:
		p.control.Put(&fullBuf)
	case p.frameSize:
		p.frame.Put(&fullBuf)
	case p.bulkSize:
		p.bulk.Put(&fullBuf)
	}
}

// =============================================================================
// Global Pool
// =============================================================================

// globalPool is the package-level buffer pool with default configuration.
var globalPool = NewPool(nil)

// Get returns a byte slice of at least the requested size from the global pool.
func Get(size int) []byte {
	return globalPool.Get(size)
}

// Put returns a buffer to the global pool. Always pair with Get().
func Put(buf []byte) {
	globalPool.Put(buf)
}

// GetUint32 is a convenience wrapper that accepts uint32 size, matching
// the protocol's length fields.
func GetUint32(size uint32) []byte {
	return globalPool.Get(int(size))
}
