package jit

import (
	"testing"

	"opal/internal/codecache"
	"opal/internal/config"
	"opal/internal/gate"
	"opal/internal/objspace"
	"opal/internal/vm"
)

// fakeGen emits a fixed stub per entry point, or declines when told to.
type fakeGen struct {
	cache   *codecache.Cache
	decline bool
}

func (g *fakeGen) EntryPoint(*vm.CodeUnit, *vm.ExecutionContext) uintptr {
	if g.decline {
		return 0
	}
	addr, ok := g.cache.Write([]byte{0xC3})
	if !ok {
		return 0
	}
	return addr
}

type harness struct {
	space *objspace.Space
	jit   *JIT
	gen   *fakeGen
	ec    *vm.ExecutionContext
	tok   gate.Token
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	space := objspace.New()
	cache := codecache.New(codecache.PageSize())
	gen := &fakeGen{cache: cache}
	j := New(space, gate.New(), cache, gen, config.Default())
	return &harness{space: space, jit: j, gen: gen, ec: vm.NewExecutionContext()}
}

func (h *harness) unit(name string) *vm.CodeUnit {
	cu := &vm.CodeUnit{Name: name, Encoded: []uint64{uint64(vm.OpLeave)}}
	h.space.NewCodeUnit(cu)
	return cu
}

func TestNewRegistersRoot(t *testing.T) {
	h := newHarness(t)
	if h.jit.Root() == 0 {
		t.Fatalf("no GC root registered")
	}
	if h.space.Root() != h.jit.Root() {
		t.Fatalf("space root %d != jit root %d", h.space.Root(), h.jit.Root())
	}
}

func TestCompileInstallsEntry(t *testing.T) {
	h := newHarness(t)
	cu := h.unit("m")

	if !h.jit.Compile(&h.tok, cu, h.ec) {
		t.Fatalf("compile failed")
	}
	if cu.State() != vm.EntryCompiled {
		t.Fatalf("state = %s, want compiled", cu.State())
	}
	if cu.Entry() == 0 {
		t.Fatalf("no entry pointer installed")
	}
	if !h.jit.Cache().Executable() {
		t.Fatalf("cache left in the writable state after compilation")
	}
	if got := h.jit.Stats().CompiledUnits.Load(); got != 1 {
		t.Fatalf("CompiledUnits = %d, want 1", got)
	}
}

func TestCompileFailure(t *testing.T) {
	h := newHarness(t)
	h.gen.decline = true
	cu := h.unit("m")

	if h.jit.Compile(&h.tok, cu, h.ec) {
		t.Fatalf("declined compilation reported success")
	}
	if cu.State() != vm.EntryFailed {
		t.Fatalf("state = %s, want failed", cu.State())
	}
	if cu.Entry() != 0 {
		t.Fatalf("failed compilation left an entry pointer")
	}
	if got := h.jit.Stats().CompileFailures.Load(); got != 1 {
		t.Fatalf("CompileFailures = %d, want 1", got)
	}
}

func TestBopInvalidation(t *testing.T) {
	h := newHarness(t)
	cu := h.unit("m")
	h.jit.Compile(&h.tok, cu, h.ec)

	if !h.jit.AssumeBopNotRedefined(cu, IntegerRedefined, BopPlus) {
		t.Fatalf("assumption refused before any redefinition")
	}

	h.jit.BopRedefined(&h.tok, IntegerRedefined, BopPlus)
	if cu.State() != vm.EntryInvalidated || cu.Entry() != 0 {
		t.Fatalf("unit survived the redefinition: state %s entry %#x", cu.State(), cu.Entry())
	}

	// Once redefined, new compilations must take the generic path.
	if h.jit.AssumeBopNotRedefined(cu, IntegerRedefined, BopPlus) {
		t.Fatalf("assumption granted after redefinition")
	}
	// Other operators are unaffected.
	if !h.jit.AssumeBopNotRedefined(cu, IntegerRedefined, BopMinus) {
		t.Fatalf("unrelated operator refused")
	}
}

func TestMethodLookupInvalidation(t *testing.T) {
	h := newHarness(t)
	cu := h.unit("m")
	other := h.unit("other")
	h.jit.Compile(&h.tok, cu, h.ec)
	h.jit.Compile(&h.tok, other, h.ec)

	me := &vm.MethodEntry{Def: &vm.MethodDef{Type: vm.MethodTypeBytecode}}
	h.jit.AssumeMethodLookupStable(cu, me)

	h.jit.MethodEntryInvalidated(&h.tok, me)
	if cu.State() != vm.EntryInvalidated {
		t.Fatalf("dependent unit not invalidated: %s", cu.State())
	}
	if other.State() != vm.EntryCompiled {
		t.Fatalf("independent unit invalidated: %s", other.State())
	}
}

func TestCallCacheStaleAfterLookupChange(t *testing.T) {
	h := newHarness(t)
	cu := h.unit("m")
	cd := &vm.CallData{CI: vm.NewCallInfo(0, 7, 0, nil)}
	cu.CallSites = []*vm.CallData{cd}

	me := &vm.MethodEntry{Def: &vm.MethodDef{Type: vm.MethodTypeBytecode}}
	cd.FillCache(me, h.jit.LookupSerial())
	if got, ok := cd.CachedEntry(h.jit.LookupSerial()); !ok || got != me {
		t.Fatalf("fresh cache not served")
	}

	h.jit.MethodEntryInvalidated(&h.tok, me)
	if _, ok := cd.CachedEntry(h.jit.LookupSerial()); ok {
		t.Fatalf("cache served across a lookup change")
	}
}

func TestConstantStateInvalidation(t *testing.T) {
	h := newHarness(t)
	cu := h.unit("m")
	h.jit.Compile(&h.tok, cu, h.ec)
	h.jit.AssumeStableConstantState(cu)

	h.jit.ConstantStateChanged(&h.tok)
	if cu.State() != vm.EntryInvalidated {
		t.Fatalf("unit survived the constant state change: %s", cu.State())
	}
	if got := h.jit.Stats().ConstantStateChanges.Load(); got != 1 {
		t.Fatalf("ConstantStateChanges = %d, want 1", got)
	}
}

func TestBeforeContextSpawn(t *testing.T) {
	h := newHarness(t)
	cu := h.unit("m")
	h.jit.Compile(&h.tok, cu, h.ec)
	h.jit.AssumeSingleContext(cu)

	h.jit.BeforeContextSpawn(&h.tok)
	if cu.State() != vm.EntryInvalidated {
		t.Fatalf("single-context unit survived the spawn: %s", cu.State())
	}
}

func TestTracingInvalidateAll(t *testing.T) {
	h := newHarness(t)
	a := h.unit("a")
	b := h.unit("b")
	never := h.unit("never")
	h.jit.Compile(&h.tok, a, h.ec)
	h.jit.Compile(&h.tok, b, h.ec)

	h.jit.TracingInvalidateAll(&h.tok)

	for _, cu := range []*vm.CodeUnit{a, b} {
		if cu.State() != vm.EntryInvalidated || cu.Entry() != 0 {
			t.Fatalf("unit %s survived: state %s entry %#x", cu.Name, cu.State(), cu.Entry())
		}
	}
	// Units that never compiled are left alone.
	if never.State() != vm.EntryNotCompiled {
		t.Fatalf("uncompiled unit touched: %s", never.State())
	}
	if got := h.jit.Stats().GlobalInvalidations.Load(); got != 1 {
		t.Fatalf("GlobalInvalidations = %d, want 1", got)
	}
	if !h.jit.Cache().Executable() {
		t.Fatalf("cache left writable after the global invalidation")
	}
}

func TestRecompileAfterInvalidation(t *testing.T) {
	h := newHarness(t)
	cu := h.unit("m")
	h.jit.Compile(&h.tok, cu, h.ec)
	h.jit.AssumeStableConstantState(cu)
	h.jit.ConstantStateChanged(&h.tok)

	if !h.jit.Compile(&h.tok, cu, h.ec) {
		t.Fatalf("recompilation failed")
	}
	if cu.State() != vm.EntryCompiled || cu.Entry() == 0 {
		t.Fatalf("recompiled unit: state %s entry %#x", cu.State(), cu.Entry())
	}
}

func TestForEachCodeUnitExactlyOnce(t *testing.T) {
	h := newHarness(t)
	a := h.unit("a")
	b := h.unit("b")
	// Non-unit heap objects must not be visited.
	h.space.NewString()
	h.space.NewStruct(nil)

	seen := map[*vm.CodeUnit]int{}
	h.jit.ForEachCodeUnit(func(cu *vm.CodeUnit) {
		seen[cu]++
	})
	if len(seen) != 2 || seen[a] != 1 || seen[b] != 1 {
		t.Fatalf("walk visited %v", seen)
	}
}

func TestEventFeed(t *testing.T) {
	h := newHarness(t)
	events := h.jit.Subscribe(8)
	cu := h.unit("m")
	h.jit.Compile(&h.tok, cu, h.ec)
	h.jit.AssumeStableConstantState(cu)
	h.jit.ConstantStateChanged(&h.tok)
	h.jit.CloseFeed()

	var kinds []EventKind
	for ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	if len(kinds) != 2 || kinds[0] != EventCompiled || kinds[1] != EventInvalidated {
		t.Fatalf("event kinds = %v", kinds)
	}
}
