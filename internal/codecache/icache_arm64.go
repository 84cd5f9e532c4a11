//go:build arm64

package codecache

// InvalidateICache flushes the instruction cache for [start, end). Required
// on ARM64 before transferring control into freshly written code: the
// instruction cache is not coherent with the data cache. start is
// inclusive, end exclusive.
func InvalidateICache(start, end uintptr) {
	if start >= end {
		return
	}
	icacheInvalidate(start, end)
}

// implemented in icache_arm64.s
func icacheInvalidate(start, end uintptr)
