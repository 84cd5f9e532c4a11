package objspace

// Pin prevents an object (and, for buffer owners, the buffer they currently
// own) from being relocated or reclaimed until the guard is released. The
// guard's scope bounds the validity of any raw pointer resolved from the
// pinned object.
//
// Pinning Handle(0) returns a no-op guard, mirroring the optional source
// object of AttachStrbufCopy.
func (s *Space) Pin(h Handle) PinGuard {
	if h == 0 {
		return PinGuard{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	obj := s.getLocked(h)
	obj.pins++
	s.counters.PinAcquires++
	return PinGuard{s: s, h: h}
}

// PinGuard keeps one object pinned. Release is idempotent.
type PinGuard struct {
	s    *Space
	h    Handle
	done bool
}

// Release drops the pin.
func (g *PinGuard) Release() {
	if g.s == nil || g.done {
		return
	}
	g.done = true
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	obj, ok := g.s.objs[g.h]
	if !ok || obj == nil || obj.pins == 0 {
		contractViolation("unbalanced pin release for handle %d", g.h)
	}
	obj.pins--
}
