//go:build unix && !linux

package codecache

import (
	"reflect"

	"golang.org/x/sys/unix"
)

// ReserveAddrSpace reserves size bytes of virtual address space. Platforms
// without MAP_FIXED_NOREPLACE get a plain address hint: the kernel may place
// the mapping elsewhere, which only costs longer call encodings.
func ReserveAddrSpace(size uint32) uintptr {
	sample := reflect.ValueOf(PageSize).Pointer()
	base, errno := mmapHint(alignUp(sample, uintptr(PageSize())), size)
	if errno == 0 {
		return base
	}
	base, errno = mmapHint(0, size)
	if errno != 0 {
		bugf("address space reservation of %d bytes failed: %v", size, errno)
	}
	return base
}

func mmapHint(addr uintptr, size uint32) (uintptr, unix.Errno) {
	r1, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		addr,
		uintptr(size),
		unix.PROT_NONE,
		unix.MAP_PRIVATE|unix.MAP_ANON,
		^uintptr(0),
		0,
	)
	if errno != 0 {
		return 0, errno
	}
	return r1, 0
}
