package codecache

import (
	"sync"

	"fortio.org/safecast"
	"golang.org/x/sys/unix"
)

// Page sizes above this are treated as an unsupported platform: the design
// assumes fine-grained control over protection, which needs small pages.
const maxSanePageSize = 1 << 30

var (
	pageSizeOnce sync.Once
	pageSize     uint32
)

// PageSize returns the operating system page size, queried once. An
// implausible value is a fatal configuration error, not something to limp
// along with.
func PageSize() uint32 {
	pageSizeOnce.Do(func() {
		ps := unix.Getpagesize()
		if ps <= 0 {
			bugf("failed to query page size")
		}
		if ps > maxSanePageSize {
			bugf("page size %d exceeds 1 GiB sanity ceiling", ps)
		}
		v, err := safecast.Conv[uint32](ps)
		if err != nil {
			bugf("page size %d does not fit in 32 bits", ps)
		}
		pageSize = v
	})
	return pageSize
}

// alignUp rounds n up to the next multiple of align (a power of two).
func alignUp(n uintptr, align uintptr) uintptr {
	rem := n % align
	if rem == 0 {
		return n
	}
	return n + align - rem
}
