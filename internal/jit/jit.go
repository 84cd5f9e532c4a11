// Package jit owns the contract between the garbage-collected object space,
// the code cache and the external code generator: compilation entry,
// entry-pointer installation, and the invalidation machinery that keeps
// compiled code honest when its assumptions break.
package jit

import (
	"sync/atomic"

	"opal/internal/codecache"
	"opal/internal/config"
	"opal/internal/gate"
	"opal/internal/objspace"
	"opal/internal/vm"
)

// Generator is the external code generator. EntryPoint compiles a block
// version starting at the unit's first instruction and returns a pointer
// into the code cache, or 0 when it declines to produce code.
type Generator interface {
	EntryPoint(cu *vm.CodeUnit, ec *vm.ExecutionContext) uintptr
}

// JIT wires the compilation entry point to the gate, the cache and the
// object space.
type JIT struct {
	space *objspace.Space
	gate  *gate.Gate
	cache *codecache.Cache
	gen   Generator
	opts  config.Options

	stats Stats
	inv   invariants

	// lookupSerial tags inline call caches. It advances whenever a method
	// entry is invalidated, making every cache filled under an older
	// serial read as a miss.
	lookupSerial atomic.Uint64

	events chan Event
	root   objspace.Handle
}

// New creates the JIT runtime-support layer and registers its
// process-lifetime GC root. The root anchors language-side bookkeeping and
// has no content of its own to mark.
func New(space *objspace.Space, g *gate.Gate, cache *codecache.Cache, gen Generator, opts config.Options) *JIT {
	j := &JIT{
		space: space,
		gate:  g,
		cache: cache,
		gen:   gen,
		opts:  opts,
	}
	j.inv.init()
	j.root = space.RegisterRoot(j)
	return j
}

// Cache exposes the code cache for diagnostics.
func (j *JIT) Cache() *codecache.Cache { return j.cache }

// Root returns the handle of the registered GC root.
func (j *JIT) Root() objspace.Handle { return j.root }

// LookupSerial returns the current method-lookup serial. Generators tag
// vm.CallData caches with it; see MethodEntryInvalidated.
func (j *JIT) LookupSerial() uint64 { return j.lookupSerial.Load() }

// Compile compiles a code unit into machine code and installs the entry
// pointer. It acquires the gate and forces all other contexts to a safe
// point first, so no caller can observe a half-installed entry or a cache
// in the writable state. tok is the calling context's gate token: the
// barrier must not wait on the caller itself, and a caller already holding
// the gate just recurses. Returns false when the generator produced no
// code; the interpreter then simply keeps executing the unit.
func (j *JIT) Compile(tok *gate.Token, cu *vm.CodeUnit, ec *vm.ExecutionContext) bool {
	j.gate.Enter(tok, here("Compile"))
	defer j.gate.Leave(tok, here("Compile"))

	cu.MarkCompiling()
	if !j.cache.MakeWritable() {
		cu.ResetEntry(vm.EntryFailed)
		j.stats.CompileFailures.Add(1)
		return false
	}

	entry := j.gen.EntryPoint(cu, ec)

	j.cache.MakeExecutable()

	if entry == 0 {
		cu.ResetEntry(vm.EntryFailed)
		j.stats.CompileFailures.Add(1)
		j.emit(Event{Kind: EventCompileFailed, Unit: cu.Name})
		return false
	}
	cu.InstallEntry(entry)
	j.stats.CompiledUnits.Add(1)
	j.emit(Event{Kind: EventCompiled, Unit: cu.Name, CacheUsed: j.cache.Used(), CacheSize: j.cache.Size()})
	return true
}

// ForEachCodeUnit walks the whole managed heap and invokes fn once per live
// code unit. Code units are ordinary heap objects, so this is a full scan;
// the object space lifts any instrumentation poison per object and restores
// it afterwards. The walk is not a snapshot; see objspace.EachObject.
func (j *JIT) ForEachCodeUnit(fn func(*vm.CodeUnit)) {
	j.space.EachObject(func(_ objspace.Handle, obj *objspace.Object) bool {
		if obj.Kind == objspace.KindCodeUnit {
			if cu, ok := obj.Ext.(*vm.CodeUnit); ok {
				fn(cu)
			}
		}
		return true
	})
}

func here(op string) string {
	return "jit." + op
}
