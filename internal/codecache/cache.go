// Package codecache manages the reserved virtual-address region that houses
// generated machine code, the page-protection transitions on it, and the
// instruction-cache maintenance that follows writes.
package codecache

import (
	"sync"

	"fortio.org/safecast"
)

// Cache is a contiguous reserved address range subdivided into pages that
// are writable while code is being emitted and executable afterwards.
//
// A cache is either in the writable state (no live entry points may
// reference it) or the executable state (entry points may be live). Both
// transitions, and every write, require the caller to hold the
// synchronization gate; the cache itself only guards its own accounting.
type Cache struct {
	mu sync.Mutex

	base     uintptr
	size     uint32
	writePos uint32
	// mapped is how many bytes from base have been committed (page
	// granular). Pages are committed lazily as the write position grows.
	mapped     uint32
	executable bool
}

// New reserves a cache of the given byte size near the running image. The
// reservation is address space only; pages are committed as code is
// written. Released only at process exit.
func New(size uint32) *Cache {
	ps := PageSize()
	aligned, err := safecast.Conv[uint32](alignUp(uintptr(size), uintptr(ps)))
	if err != nil {
		bugf("code cache size %d overflows after page alignment", size)
	}
	return &Cache{
		base: ReserveAddrSpace(aligned),
		size: aligned,
	}
}

// Base returns the start of the reserved range.
func (c *Cache) Base() uintptr { return c.base }

// Size returns the reserved range's byte size.
func (c *Cache) Size() uint32 {
	return c.size
}

// Used returns how many bytes of code have been written.
func (c *Cache) Used() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writePos
}

// Executable reports whether the cache is currently in the executable state.
func (c *Cache) Executable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.executable
}

// Write appends code to the cache and returns its address. It reports
// failure when the reservation is exhausted or a page cannot be made
// writable; the caller degrades to interpreted execution. The caller must
// hold the synchronization gate and the cache must be in the writable
// state.
func (c *Cache) Write(code []byte) (uintptr, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.executable {
		panic("codecache: write while executable")
	}
	n, err := safecast.Conv[uint32](len(code))
	if err != nil || n > c.size-c.writePos {
		return 0, false
	}
	if !c.commitLocked(c.writePos + n) {
		return 0, false
	}
	addr := c.base + uintptr(c.writePos)
	dst := sliceAt(addr, len(code))
	copy(dst, code)
	c.writePos += n
	return addr, true
}

// commitLocked grows the committed (writable) prefix to cover upTo bytes.
func (c *Cache) commitLocked(upTo uint32) bool {
	if upTo <= c.mapped {
		return true
	}
	ps := PageSize()
	end, err := safecast.Conv[uint32](alignUp(uintptr(upTo), uintptr(ps)))
	if err != nil || end > c.size {
		end = c.size
	}
	if !MarkWritable(c.base+uintptr(c.mapped), end-c.mapped) {
		return false
	}
	c.mapped = end
	return true
}

// MakeExecutable transitions the written span to the executable state and
// flushes the instruction cache over it. Entry points may go live only
// after this returns. The caller must hold the synchronization gate.
func (c *Cache) MakeExecutable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	MarkExecutable(c.base, c.mapped)
	InvalidateICache(c.base, c.base+uintptr(c.mapped))
	c.executable = true
}

// MakeWritable transitions the whole committed span back to the writable
// state, for example ahead of a global invalidation rewrite. No entry point
// into the cache may be live. Failure is reported to the caller.
func (c *Cache) MakeWritable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mapped != 0 && !MarkWritable(c.base, c.mapped) {
		return false
	}
	c.executable = false
	return true
}
