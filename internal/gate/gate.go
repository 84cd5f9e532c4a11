// Package gate provides the process-wide synchronization gate: a reentrant
// exclusive lock combined with a cooperative barrier that parks every other
// execution context at a safe point. While a caller is inside the barrier,
// no other context runs interpreted or compiled code, so it is safe to
// mutate shared executable memory and globally visible entry pointers.
package gate

import "sync"

// Token identifies one logical lock owner across nested Enter/Leave pairs.
// The recursion level lives in the token, and the same token must be passed
// to the matching Leave.
type Token struct {
	// Reg is the execution context the owner runs on, if any. The barrier
	// does not wait for the owner's own context.
	Reg *Reg

	level uint32
}

// Level reports the token's current recursion depth.
func (t *Token) Level() uint32 { return t.level }

// regState tracks where a registered context currently is.
type regState uint8

const (
	stateRunning regState = iota
	stateParked
	stateOutside
)

// Reg represents one registered execution context. Contexts running managed
// code must poll SafePoint; contexts entering blocking regions outside
// managed code bracket them with Outside/Inside so the barrier does not
// wait on them.
type Reg struct {
	g     *Gate
	state regState
}

// Gate is the process-wide gate. The zero value is not usable; call New.
type Gate struct {
	mu   sync.Mutex
	cond *sync.Cond

	owner *Token
	regs  map[*Reg]struct{}

	barrier bool

	// diagnostics
	lastLoc     string
	contentions uint64
	barriers    uint64
}

// New creates a gate with no registered contexts.
func New() *Gate {
	g := &Gate{regs: make(map[*Reg]struct{})}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Register adds an execution context to the gate's rendezvous set.
func (g *Gate) Register() *Reg {
	g.mu.Lock()
	defer g.mu.Unlock()
	r := &Reg{g: g}
	g.regs[r] = struct{}{}
	return r
}

// Unregister removes a context. It must not be called while a barrier is
// waiting on the context.
func (g *Gate) Unregister(r *Reg) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.regs, r)
	g.cond.Broadcast()
}

// Enter acquires the gate and forces all other registered contexts to reach
// a safe point before returning. It is reentrant for the same token:
// nested calls only bump the recursion level. loc is a source-location
// string kept for diagnostics.
//
// Acquisition is unconditional and blocking; there is no timeout path.
func (g *Gate) Enter(tok *Token, loc string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.owner == tok {
		tok.level++
		return
	}
	// A context blocked here is at a safe point: another owner's barrier
	// must not wait for it.
	for g.owner != nil {
		if tok.Reg != nil {
			tok.Reg.state = stateParked
			g.cond.Broadcast()
		}
		g.contentions++
		g.cond.Wait()
	}
	if tok.Reg != nil {
		tok.Reg.state = stateRunning
	}
	g.owner = tok
	tok.level = 1
	g.lastLoc = loc

	// Barrier: everyone else must park or be outside managed code.
	g.barrier = true
	g.barriers++
	g.cond.Broadcast()
	for !g.quiescentLocked(tok) {
		g.cond.Wait()
	}
}

// Leave releases one level of the gate. The token must be the one used to
// enter; releasing a gate the token does not own is a programming error.
func (g *Gate) Leave(tok *Token, loc string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.owner != tok || tok.level == 0 {
		panic("gate: leave without matching enter")
	}
	tok.level--
	if tok.level > 0 {
		return
	}
	g.owner = nil
	g.barrier = false
	g.lastLoc = loc
	g.cond.Broadcast()
}

func (g *Gate) quiescentLocked(tok *Token) bool {
	for r := range g.regs {
		if r == tok.Reg {
			continue
		}
		if r.state == stateRunning {
			return false
		}
	}
	return true
}

// SafePoint is polled by contexts running managed code. When a barrier is
// active the context parks here until the gate owner leaves.
func (r *Reg) SafePoint() {
	g := r.g
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.barrier {
		return
	}
	if g.owner != nil && g.owner.Reg == r {
		return
	}
	r.state = stateParked
	g.cond.Broadcast()
	for g.barrier {
		g.cond.Wait()
	}
	r.state = stateRunning
}

// Outside marks the context as having left managed code (a blocking region).
// The barrier does not wait for contexts that are outside.
func (r *Reg) Outside() {
	g := r.g
	g.mu.Lock()
	r.state = stateOutside
	g.cond.Broadcast()
	g.mu.Unlock()
}

// Inside re-enters managed code. If a barrier is active, the context parks
// until it lifts.
func (r *Reg) Inside() {
	g := r.g
	g.mu.Lock()
	for g.barrier && !(g.owner != nil && g.owner.Reg == r) {
		r.state = stateParked
		g.cond.Broadcast()
		g.cond.Wait()
	}
	r.state = stateRunning
	g.mu.Unlock()
}

// Stats reports gate diagnostics.
func (g *Gate) Stats() (barriers, contentions uint64, lastLoc string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.barriers, g.contentions, g.lastLoc
}
