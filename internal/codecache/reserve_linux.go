//go:build linux

package codecache

import (
	"math"
	"reflect"

	"golang.org/x/sys/unix"
)

// probeStep is how far forward each reservation probe moves after a refusal.
const probeStep = 4 << 20

// ReserveAddrSpace reserves (without committing) size bytes of virtual
// address space, preferring addresses within a signed 32-bit displacement of
// the runtime's own code so relative call encodings stay short. Probing uses
// MAP_FIXED_NOREPLACE so an occupied hint is refused instead of clobbered;
// after the probe window is exhausted the kernel picks the address. Running
// out of address space entirely is fatal.
func ReserveAddrSpace(size uint32) uintptr {
	ps := uintptr(PageSize())
	sample := reflect.ValueOf(PageSize).Pointer()
	probeEnd := sample + math.MaxInt32
	req := alignUp(sample, ps)

	for req < probeEnd {
		base, errno := mmapReserve(req, size, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_FIXED_NOREPLACE)
		if errno == 0 {
			return base
		}
		req += probeStep
	}

	// No nearby address available; let the kernel choose (e.g. under
	// valgrind-style tooling).
	base, errno := mmapReserve(0, size, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if errno != 0 {
		bugf("address space reservation of %d bytes failed: %v", size, errno)
	}
	return base
}

func mmapReserve(addr uintptr, size uint32, flags int) (uintptr, unix.Errno) {
	r1, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		addr,
		uintptr(size),
		unix.PROT_NONE,
		uintptr(flags),
		^uintptr(0), // fd -1
		0,
	)
	if errno != 0 {
		return 0, errno
	}
	return r1, 0
}
