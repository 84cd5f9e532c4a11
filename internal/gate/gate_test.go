package gate

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestEnterLeave(t *testing.T) {
	g := New()
	tok := Token{}
	g.Enter(&tok, "test")
	if tok.Level() != 1 {
		t.Fatalf("level = %d after enter, want 1", tok.Level())
	}
	g.Leave(&tok, "test")
	if tok.Level() != 0 {
		t.Fatalf("level = %d after leave, want 0", tok.Level())
	}
}

func TestReentrancy(t *testing.T) {
	g := New()
	tok := Token{}
	g.Enter(&tok, "outer")
	g.Enter(&tok, "inner")
	if tok.Level() != 2 {
		t.Fatalf("level = %d after nested enter, want 2", tok.Level())
	}
	g.Leave(&tok, "inner")
	g.Leave(&tok, "outer")

	// Fully released: another token can take the gate without blocking.
	other := Token{}
	g.Enter(&other, "other")
	g.Leave(&other, "other")
}

func TestLeaveWithoutEnter(t *testing.T) {
	g := New()
	tok := Token{}
	defer func() {
		if recover() == nil {
			t.Fatalf("unmatched leave did not panic")
		}
	}()
	g.Leave(&tok, "test")
}

func TestMutualExclusion(t *testing.T) {
	g := New()
	var inside atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < 200; k++ {
				tok := Token{}
				g.Enter(&tok, "worker")
				if n := inside.Add(1); n != 1 {
					t.Errorf("%d owners inside the gate", n)
				}
				inside.Add(-1)
				g.Leave(&tok, "worker")
			}
		}()
	}
	wg.Wait()
}

func TestBarrierWaitsForSafePoint(t *testing.T) {
	g := New()
	reg := g.Register()
	defer g.Unregister(reg)

	polling := make(chan struct{})
	release := make(chan struct{})
	go func() {
		close(polling)
		for {
			select {
			case <-release:
				return
			default:
			}
			reg.SafePoint()
		}
	}()
	<-polling

	// Enter returns only once the polling context has parked.
	tok := Token{}
	g.Enter(&tok, "barrier")
	g.Leave(&tok, "barrier")
	close(release)
}

func TestBarrierSkipsOutsideContexts(t *testing.T) {
	g := New()
	reg := g.Register()
	defer g.Unregister(reg)

	// The context is in a blocking region: the barrier must not wait on it.
	reg.Outside()

	done := make(chan struct{})
	go func() {
		tok := Token{}
		g.Enter(&tok, "barrier")
		g.Leave(&tok, "barrier")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("barrier waited for a context that is outside managed code")
	}
	reg.Inside()
}

func TestInsideParksDuringBarrier(t *testing.T) {
	g := New()
	reg := g.Register()
	defer g.Unregister(reg)
	reg.Outside()

	tok := Token{}
	g.Enter(&tok, "hold")

	reentered := make(chan struct{})
	go func() {
		reg.Inside() // must park until the owner leaves
		close(reentered)
	}()

	select {
	case <-reentered:
		t.Fatalf("context re-entered managed code during an active barrier")
	case <-time.After(50 * time.Millisecond):
	}

	g.Leave(&tok, "hold")
	select {
	case <-reentered:
	case <-time.After(2 * time.Second):
		t.Fatalf("context never resumed after the barrier lifted")
	}
}

// A registered context blocked in Enter counts as parked, so another
// owner's barrier completes instead of deadlocking on it.
func TestBlockedEntererDoesNotStallBarrier(t *testing.T) {
	g := New()
	regA := g.Register()
	regB := g.Register()
	defer g.Unregister(regA)
	defer g.Unregister(regB)

	// Both contexts race for the gate. Whichever wins runs a barrier that
	// must treat the loser, blocked in Enter, as parked.
	entered := make(chan struct{})
	go func() {
		tokB := Token{Reg: regB}
		g.Enter(&tokB, "second")
		g.Leave(&tokB, "second")
		close(entered)
	}()

	tokA := Token{Reg: regA}
	g.Enter(&tokA, "first")
	g.Leave(&tokA, "first")

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("second context never acquired the gate")
	}
}

func TestStats(t *testing.T) {
	g := New()
	tok := Token{}
	g.Enter(&tok, "loc-a")
	g.Leave(&tok, "loc-b")

	barriers, _, lastLoc := g.Stats()
	if barriers != 1 {
		t.Fatalf("barriers = %d, want 1", barriers)
	}
	if lastLoc != "loc-b" {
		t.Fatalf("lastLoc = %q, want %q", lastLoc, "loc-b")
	}
}
