package codecache

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// sliceAt views raw memory at addr as a byte slice.
func sliceAt(addr uintptr, n int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
}

// MarkWritable makes [addr, addr+size) readable and writable. Failure is
// reported to the caller, which is expected to degrade gracefully ("cannot
// mutate this region right now").
func MarkWritable(addr uintptr, size uint32) bool {
	if size == 0 {
		return true
	}
	return unix.Mprotect(sliceAt(addr, int(size)), unix.PROT_READ|unix.PROT_WRITE) == nil
}

// MarkExecutable makes [addr, addr+size) readable and executable. A
// zero-length region is a no-op without touching the OS; some platforms
// error on it. A failing protection change is fatal: the runtime cannot
// proceed without executing its own generated code.
func MarkExecutable(addr uintptr, size uint32) {
	if size == 0 {
		return
	}
	if err := unix.Mprotect(sliceAt(addr, int(size)), unix.PROT_READ|unix.PROT_EXEC); err != nil {
		bugf("couldn't make code page (%#x, %d bytes) executable: %v", addr, size, err)
	}
}
