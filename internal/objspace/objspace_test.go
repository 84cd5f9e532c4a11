package objspace

import (
	"testing"
)

func TestGetInvalidHandles(t *testing.T) {
	s := New()
	wantContract(t, func() { s.Get(0) })
	wantContract(t, func() { s.Get(99) })
}

func TestGetDeadHandle(t *testing.T) {
	s := New()
	orphan, _ := s.AllocStrbuf(8)
	s.Collect()
	wantContract(t, func() { s.Get(orphan) })
}

func TestPoisonBlocksReads(t *testing.T) {
	s := New()
	str := s.NewString()

	s.Poison(str)
	wantContract(t, func() { s.Get(str) })

	s.Unpoison(str)
	if s.Get(str).Kind != KindString {
		t.Fatalf("unpoisoned object unreadable")
	}
}

func TestPinZeroHandleIsNoop(t *testing.T) {
	s := New()
	guard := s.Pin(0)
	guard.Release()
	guard.Release() // idempotent
}

func TestPinReleaseIdempotent(t *testing.T) {
	s := New()
	str := s.NewString()
	guard := s.Pin(str)
	guard.Release()
	guard.Release()
	if s.Get(str).pins != 0 {
		t.Fatalf("pins = %d after release, want 0", s.Get(str).pins)
	}
}

func TestUnbalancedPinRelease(t *testing.T) {
	s := New()
	str := s.NewString()
	g1 := s.Pin(str)
	g2 := PinGuard{s: s, h: str}
	g1.Release()
	wantContract(t, func() { g2.Release() })
}

func TestEachObjectVisitsEverythingOnce(t *testing.T) {
	s := New()
	want := map[Handle]int{
		s.NewString():      0,
		s.NewMatch():       0,
		s.NewStruct(nil):   0,
		s.NewCodeUnit(nil): 0,
	}

	s.EachObject(func(h Handle, obj *Object) bool {
		want[h]++
		return true
	})
	for h, n := range want {
		if n != 1 {
			t.Fatalf("handle %d visited %d times", h, n)
		}
	}
}

func TestEachObjectAllocationOrder(t *testing.T) {
	s := New()
	s.NewString()
	s.NewMatch()
	s.NewStruct(nil)

	var last uint64
	s.EachObject(func(_ Handle, obj *Object) bool {
		if obj.AllocID <= last {
			t.Fatalf("walk out of allocation order: %d after %d", obj.AllocID, last)
		}
		last = obj.AllocID
		return true
	})
}

func TestEachObjectStopsEarly(t *testing.T) {
	s := New()
	s.NewString()
	s.NewString()
	s.NewString()

	visits := 0
	s.EachObject(func(Handle, *Object) bool {
		visits++
		return false
	})
	if visits != 1 {
		t.Fatalf("visits = %d after early stop, want 1", visits)
	}
}

func TestEachObjectLiftsAndRestoresPoison(t *testing.T) {
	s := New()
	str := s.NewString()
	s.Poison(str)

	seen := false
	s.EachObject(func(h Handle, obj *Object) bool {
		if h == str {
			seen = true
			if obj.Poisoned {
				t.Fatalf("poison not lifted during the walk")
			}
		}
		return true
	})
	if !seen {
		t.Fatalf("poisoned object skipped by the walk")
	}

	// Restored after the walk: ordinary reads trap again.
	wantContract(t, func() { s.Get(str) })
}

func TestRecordWrite(t *testing.T) {
	s := New()
	a := s.NewString()
	b := s.NewString()

	s.RecordWrite(a, b)
	if got := s.Counters().BarrierWrites; got != 1 {
		t.Fatalf("BarrierWrites = %d, want 1", got)
	}

	wantContract(t, func() { s.RecordWrite(0, b) })
	wantContract(t, func() { s.RecordWrite(a, 0) })
}

func TestStructFields(t *testing.T) {
	s := New()
	ref := s.NewString()
	st := s.NewStruct([]Value{Int(1), Nil, Bool(true)})

	if got := s.StructLen(st); got != 3 {
		t.Fatalf("StructLen = %d, want 3", got)
	}
	if got := s.StructGet(st, 0); got.I != 1 {
		t.Fatalf("field 0 = %+v", got)
	}

	before := s.Counters().BarrierWrites
	s.StructSet(st, 1, Ref(ref))
	if got := s.StructGet(st, 1); got.H != ref {
		t.Fatalf("field 1 = %+v", got)
	}
	if s.Counters().BarrierWrites != before+1 {
		t.Fatalf("handle store did not hit the write barrier")
	}

	// Immediate stores bypass the barrier.
	before = s.Counters().BarrierWrites
	s.StructSet(st, 2, Int(9))
	if s.Counters().BarrierWrites != before {
		t.Fatalf("immediate store hit the write barrier")
	}

	wantContract(t, func() { s.StructGet(st, 3) })
	wantContract(t, func() { s.StructSet(st, -1, Nil) })
}

func TestRegisterRoot(t *testing.T) {
	s := New()
	if s.Root() != 0 {
		t.Fatalf("root registered before RegisterRoot")
	}

	anchor := struct{ name string }{"anchor"}
	h := s.RegisterRoot(&anchor)
	if s.Root() != h {
		t.Fatalf("Root() = %d, want %d", s.Root(), h)
	}
	if s.Get(h).Kind != KindRoot {
		t.Fatalf("root object kind = %s", s.Get(h).Kind)
	}

	wantContract(t, func() { s.RegisterRoot(nil) })
}

func TestCountersTrackAllocations(t *testing.T) {
	s := New()
	s.NewString()
	s.AllocStrbuf(8)

	c := s.Counters()
	if c.Allocations != 2 {
		t.Fatalf("Allocations = %d, want 2", c.Allocations)
	}
	if c.StrbufAllocs != 1 {
		t.Fatalf("StrbufAllocs = %d, want 1", c.StrbufAllocs)
	}
}
