package main

import (
	"sync/atomic"

	"opal/internal/codecache"
	"opal/internal/vm"
)

// stubGenerator stands in for a real code generator during the self-test.
// It emits an inert filler stub per entry point and periodically declines,
// so both the success and the failure path of compilation get traffic. The
// stubs are installed as entry pointers but never executed.
type stubGenerator struct {
	cache *codecache.Cache
	calls atomic.Uint64

	// lookupSerial supplies the current method-lookup serial for tagging
	// inline call caches. Set after the jit is constructed.
	lookupSerial func() uint64
}

func (g *stubGenerator) EntryPoint(cu *vm.CodeUnit, _ *vm.ExecutionContext) uintptr {
	n := g.calls.Add(1)
	if n%16 == 0 {
		return 0
	}

	// Warm the unit's call-site caches the way a real generator would
	// while specializing its sends; a recompile after a lookup change sees
	// them as misses and refills under the new serial.
	if g.lookupSerial != nil {
		serial := g.lookupSerial()
		for _, cd := range cu.CallSites {
			if _, ok := cd.CachedEntry(serial); !ok {
				cd.FillCache(&vm.MethodEntry{Def: &vm.MethodDef{Type: vm.MethodTypeBytecode}}, serial)
			}
		}
	}

	stub := make([]byte, 16)
	for i := range stub {
		stub[i] = byte(cu.Size())
	}
	addr, ok := g.cache.Write(stub)
	if !ok {
		return 0
	}
	return addr
}
