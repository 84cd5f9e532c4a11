package objspace

// RecordWrite notifies the collector of a newly created reference from old
// to young. Generated code must call this whenever it stores a heap
// reference into another heap object, so incremental/generational tracking
// sees the new edge.
func (s *Space) RecordWrite(old, young Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordWriteLocked(old, young)
}

func (s *Space) recordWriteLocked(old, young Handle) {
	if old == 0 || young == 0 {
		contractViolation("write barrier with invalid edge %d -> %d", old, young)
	}
	s.counters.BarrierWrites++
}
