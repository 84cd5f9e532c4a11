//go:build amd64

package codecache

// InvalidateICache is a no-op on x86-64: instruction and data caches are
// coherent, so freshly written code becomes visible without maintenance.
// start is inclusive, end exclusive.
func InvalidateICache(start, end uintptr) {}
