package objspace

// RegisterRoot installs the process-lifetime anchor object. It has no
// content to mark and no off-heap memory to report; language-side
// bookkeeping hangs auxiliary roots off it. Registering twice is a contract
// violation: the root persists until process exit.
func (s *Space) RegisterRoot(ext any) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.root != 0 {
		contractViolation("process root already registered as handle %d", s.root)
	}
	h, obj := s.allocLocked(KindRoot)
	obj.Ext = ext
	obj.pins++ // never relocated, never reclaimed
	s.root = h
	return h
}

// Root returns the registered root handle, or 0 before registration.
func (s *Space) Root() Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}
