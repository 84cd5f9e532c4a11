//go:build !amd64 && !arm64

package codecache

// InvalidateICache assumes coherent instruction caches on architectures we
// have no maintenance sequence for. Ports to split-cache architectures must
// supply one before generated code can run.
func InvalidateICache(start, end uintptr) {}
