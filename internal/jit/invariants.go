package jit

import (
	"sync"

	"opal/internal/gate"
	"opal/internal/vm"
)

// Compiled code bakes in assumptions about the world: that a basic operator
// on a core class still has its default meaning, that a method lookup keeps
// resolving to the same entry, that only one execution context exists, that
// the global constant state is unchanged. Each assumption is recorded here
// against the units that depend on it; when the interpreter reports the
// assumption broken, every dependent unit's entry pointer is cleared under
// the gate before any caller can observe it.

// RedefinitionFlag identifies the core class whose basic operator was
// touched.
type RedefinitionFlag uint32

const (
	IntegerRedefined RedefinitionFlag = 1 << iota
	FloatRedefined
	StringRedefined
	ArrayRedefined
	HashRedefined
	SymbolRedefined
)

// BasicOperator identifies one specializable core operator.
type BasicOperator uint8

const (
	BopPlus BasicOperator = iota
	BopMinus
	BopMult
	BopDiv
	BopMod
	BopEq
	BopLt
	BopLe
	BopGt
	BopGe
	BopAref
	BopAset
	BopFreeze
)

type bopKey struct {
	klass RedefinitionFlag
	bop   BasicOperator
}

type unitSet map[*vm.CodeUnit]struct{}

type invariants struct {
	mu sync.Mutex

	bopUnits      map[bopKey]unitSet
	lookupUnits   map[*vm.MethodEntry]unitSet
	constUnits    unitSet
	singleCtx     unitSet
	redefinedBops map[bopKey]struct{}
}

func (inv *invariants) init() {
	inv.bopUnits = make(map[bopKey]unitSet)
	inv.lookupUnits = make(map[*vm.MethodEntry]unitSet)
	inv.constUnits = make(unitSet)
	inv.singleCtx = make(unitSet)
	inv.redefinedBops = make(map[bopKey]struct{})
}

func addUnit(m map[bopKey]unitSet, k bopKey, cu *vm.CodeUnit) {
	set, ok := m[k]
	if !ok {
		set = make(unitSet)
		m[k] = set
	}
	set[cu] = struct{}{}
}

// AssumeBopNotRedefined records that cu relies on the default meaning of a
// basic operator. It refuses (returns false) when the operator has already
// been redefined, in which case the generator must emit the generic path.
// Called during compilation, under the gate.
func (j *JIT) AssumeBopNotRedefined(cu *vm.CodeUnit, klass RedefinitionFlag, bop BasicOperator) bool {
	j.inv.mu.Lock()
	defer j.inv.mu.Unlock()
	k := bopKey{klass, bop}
	if _, redefined := j.inv.redefinedBops[k]; redefined {
		return false
	}
	addUnit(j.inv.bopUnits, k, cu)
	return true
}

// AssumeMethodLookupStable records that cu relies on a method lookup
// resolving to me. Called during compilation, under the gate.
func (j *JIT) AssumeMethodLookupStable(cu *vm.CodeUnit, me *vm.MethodEntry) {
	j.inv.mu.Lock()
	defer j.inv.mu.Unlock()
	set, ok := j.inv.lookupUnits[me]
	if !ok {
		set = make(unitSet)
		j.inv.lookupUnits[me] = set
	}
	set[cu] = struct{}{}
}

// AssumeStableConstantState records that cu relies on the global constant
// state. Called during compilation, under the gate.
func (j *JIT) AssumeStableConstantState(cu *vm.CodeUnit) {
	j.inv.mu.Lock()
	defer j.inv.mu.Unlock()
	j.inv.constUnits[cu] = struct{}{}
}

// AssumeSingleContext records that cu relies on no second execution context
// ever being spawned.
func (j *JIT) AssumeSingleContext(cu *vm.CodeUnit) {
	j.inv.mu.Lock()
	defer j.inv.mu.Unlock()
	j.inv.singleCtx[cu] = struct{}{}
}

// BopRedefined is the interpreter's notification that a basic operator was
// redefined. Every unit that assumed the default meaning is invalidated.
// tok is the notifying context's gate token, here and in the notifications
// below.
func (j *JIT) BopRedefined(tok *gate.Token, klass RedefinitionFlag, bop BasicOperator) {
	j.gate.Enter(tok, here("BopRedefined"))
	defer j.gate.Leave(tok, here("BopRedefined"))

	j.inv.mu.Lock()
	k := bopKey{klass, bop}
	j.inv.redefinedBops[k] = struct{}{}
	set := j.inv.bopUnits[k]
	delete(j.inv.bopUnits, k)
	j.inv.mu.Unlock()

	j.stats.BopRedefinitions.Add(1)
	j.invalidateSet(set)
}

// MethodEntryInvalidated is the interpreter's notification that a callable
// method entry became stale (redefinition, refinement, module mutation).
// Besides invalidating dependent units it advances the lookup serial, so
// every inline call cache in the process reads as a miss from here on.
func (j *JIT) MethodEntryInvalidated(tok *gate.Token, me *vm.MethodEntry) {
	j.gate.Enter(tok, here("MethodEntryInvalidated"))
	defer j.gate.Leave(tok, here("MethodEntryInvalidated"))

	j.inv.mu.Lock()
	set := j.inv.lookupUnits[me]
	delete(j.inv.lookupUnits, me)
	j.inv.mu.Unlock()

	j.lookupSerial.Add(1)
	j.stats.MethodLookupChanges.Add(1)
	j.invalidateSet(set)
}

// ConstantStateChanged is the interpreter's notification that the global
// constant state moved.
func (j *JIT) ConstantStateChanged(tok *gate.Token) {
	j.gate.Enter(tok, here("ConstantStateChanged"))
	defer j.gate.Leave(tok, here("ConstantStateChanged"))

	j.inv.mu.Lock()
	set := j.inv.constUnits
	j.inv.constUnits = make(unitSet)
	j.inv.mu.Unlock()

	j.stats.ConstantStateChanges.Add(1)
	j.invalidateSet(set)
}

// BeforeContextSpawn runs before a second execution context starts: units
// compiled under the single-context assumption are invalidated.
func (j *JIT) BeforeContextSpawn(tok *gate.Token) {
	j.gate.Enter(tok, here("BeforeContextSpawn"))
	defer j.gate.Leave(tok, here("BeforeContextSpawn"))

	j.inv.mu.Lock()
	set := j.inv.singleCtx
	j.inv.singleCtx = make(unitSet)
	j.inv.mu.Unlock()

	j.invalidateSet(set)
}

// TracingInvalidateAll invalidates every compiled unit in the process, via
// a full heap walk. Used when an assumption shared by all compiled code
// becomes false, e.g. global tracing being enabled.
func (j *JIT) TracingInvalidateAll(tok *gate.Token) {
	j.gate.Enter(tok, here("TracingInvalidateAll"))
	defer j.gate.Leave(tok, here("TracingInvalidateAll"))

	// Entry pointers are cleared regardless of whether the cache could be
	// made writable; stale bytes are unreachable once no entry points at
	// them and get rewritten by the next compile.
	j.cache.MakeWritable()
	j.ForEachCodeUnit(func(cu *vm.CodeUnit) {
		j.invalidateUnit(cu)
	})
	j.cache.MakeExecutable()
	j.stats.GlobalInvalidations.Add(1)
	j.emit(Event{Kind: EventGlobalInvalidation, CacheUsed: j.cache.Used(), CacheSize: j.cache.Size()})
}

func (j *JIT) invalidateSet(set unitSet) {
	for cu := range set {
		j.invalidateUnit(cu)
	}
}

// invalidateUnit clears a unit's entry pointer. Caller must hold the gate.
func (j *JIT) invalidateUnit(cu *vm.CodeUnit) {
	if cu.Entry() == 0 && cu.State() != vm.EntryCompiled {
		return
	}
	cu.ResetEntry(vm.EntryInvalidated)
	j.stats.InvalidatedUnits.Add(1)
	j.emit(Event{Kind: EventInvalidated, Unit: cu.Name})
}
