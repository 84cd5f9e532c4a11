package objspace

import "sort"

// EachObject visits every live heap object in allocation order. The walk is
// not a point-in-time snapshot: objects allocated after the walk begins are
// not visited, objects freed mid-walk are skipped, and interleaving with
// concurrent mutation is implementation-defined. Objects present when the
// walk starts are never skipped.
//
// Poison is lifted per object for the duration of its visit and restored
// afterwards, so instrumentation keeps catching stray reads outside this
// controlled walk. The callback returns false to stop early.
func (s *Space) EachObject(fn func(Handle, *Object) bool) {
	s.mu.Lock()
	handles := make([]Handle, 0, len(s.objs))
	for h, obj := range s.objs {
		if obj.Alive {
			handles = append(handles, h)
		}
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	s.mu.Unlock()

	for _, h := range handles {
		s.mu.Lock()
		obj, ok := s.objs[h]
		if !ok || obj == nil || !obj.Alive {
			s.mu.Unlock()
			continue
		}
		wasPoisoned := obj.Poisoned
		obj.Poisoned = false
		s.mu.Unlock()

		cont := fn(h, obj)

		if wasPoisoned {
			s.mu.Lock()
			obj.Poisoned = true
			s.mu.Unlock()
		}
		if !cont {
			return
		}
	}
}
