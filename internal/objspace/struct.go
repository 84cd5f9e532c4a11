package objspace

// Struct member access by index. Generated code goes through these instead
// of depending on the field layout of runtime-internal structures.

// StructLen returns the number of fields of a struct object.
func (s *Space) StructLen(st Handle) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj := s.getLocked(st)
	if obj.Kind != KindStruct {
		contractViolation("handle %d is not a struct (%s)", st, obj.Kind)
	}
	return len(obj.Fields)
}

// StructGet reads field k of a struct object.
func (s *Space) StructGet(st Handle, k int) Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj := s.getLocked(st)
	if obj.Kind != KindStruct {
		contractViolation("handle %d is not a struct (%s)", st, obj.Kind)
	}
	if k < 0 || k >= len(obj.Fields) {
		contractViolation("struct field index %d out of range [0,%d)", k, len(obj.Fields))
	}
	return obj.Fields[k]
}

// StructSet writes field k of a struct object, recording the new edge with
// the write barrier when the value is a heap reference.
func (s *Space) StructSet(st Handle, k int, v Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj := s.getLocked(st)
	if obj.Kind != KindStruct {
		contractViolation("handle %d is not a struct (%s)", st, obj.Kind)
	}
	if k < 0 || k >= len(obj.Fields) {
		contractViolation("struct field index %d out of range [0,%d)", k, len(obj.Fields))
	}
	obj.Fields[k] = v
	if v.Kind == VKHandle && v.H != 0 {
		s.recordWriteLocked(st, v.H)
	}
}
