package objspace

import (
	"fmt"
	"sync"
)

// Handle is a stable, monotonically increasing reference to a heap object.
// Handle(0) is always invalid. Handles never change even when the collector
// relocates an object's backing storage, which makes them safe to hold
// across allocation points (unlike raw content pointers).
type Handle uint32

// Kind identifies the kind of heap object.
type Kind uint8

const (
	KindString Kind = iota
	KindMatch
	KindStruct
	KindCodeUnit
	KindStrbuf
	KindRoot
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindMatch:
		return "match"
	case KindStruct:
		return "struct"
	case KindCodeUnit:
		return "code-unit"
	case KindStrbuf:
		return "strbuf"
	case KindRoot:
		return "root"
	default:
		return "<invalid-kind>"
	}
}

// Object is a fixed-size heap object header. Variable-length payloads live
// in a separately allocated strbuf referenced through the Strbuf slot; the
// header itself never moves.
type Object struct {
	Kind    Kind
	Alive   bool
	AllocID uint64

	// Poisoned marks the object as inaccessible to ordinary reads. It
	// stands in for memory-safety instrumentation: Get traps on poisoned
	// objects, and only the heap walk may lift the poison temporarily.
	Poisoned bool

	pins uint32

	// Strbuf is the buffer-identity slot of KindString and KindMatch
	// owners: it names the current backing strbuf, not its address.
	Strbuf Handle

	// Ptr is the owner's cached raw content pointer into its strbuf. It
	// must be refreshed immediately after any (re)allocation and must not
	// be read across a window where allocation could occur.
	Ptr  []byte
	Capa int
	Len  int

	// Fields of KindStruct objects.
	Fields []Value

	// Ext is the opaque extension payload of KindCodeUnit and KindRoot
	// objects. The object space never inspects it.
	Ext any

	// raw backing storage of KindStrbuf objects: a descriptor header
	// followed by Capa content bytes. Replaced wholesale on relocation.
	raw   []byte
	owner Handle
}

// Space stores all heap objects of one runtime instance.
type Space struct {
	mu          sync.Mutex
	next        Handle
	nextAllocID uint64
	objs        map[Handle]*Object

	root Handle

	// stress forces a relocation pass on every allocation, moving all
	// unpinned strbufs and scrubbing their old backing storage. Stale
	// cached pointers then read zeroes instead of silently working.
	stress bool

	counters Counters
}

// Counters aggregates object-space bookkeeping for stats reporting.
type Counters struct {
	Allocations    uint64
	StrbufAllocs   uint64
	Relocations    uint64
	Sweeps         uint64
	SweptStrbufs   uint64
	BarrierWrites  uint64
	PinAcquires    uint64
}

// New creates an empty object space.
func New() *Space {
	return &Space{
		next:        1,
		nextAllocID: 1,
		objs:        make(map[Handle]*Object, 128),
	}
}

// SetStress toggles relocate-on-every-allocation mode.
func (s *Space) SetStress(on bool) {
	s.mu.Lock()
	s.stress = on
	s.mu.Unlock()
}

// Counters returns a snapshot of the space's bookkeeping counters.
func (s *Space) Counters() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}

func (s *Space) allocLocked(kind Kind) (Handle, *Object) {
	handle := s.next
	s.next++
	obj := &Object{
		Kind:    kind,
		Alive:   true,
		AllocID: s.nextAllocID,
	}
	s.nextAllocID++
	s.objs[handle] = obj
	s.counters.Allocations++
	return handle, obj
}

// NewString allocates an empty heap string header. Its buffer is attached
// separately through AttachStrbufCopy.
func (s *Space) NewString() Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, _ := s.allocLocked(KindString)
	return h
}

// NewMatch allocates a match object whose char-offset table is backed by a
// strbuf.
func (s *Space) NewMatch() Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, _ := s.allocLocked(KindMatch)
	return h
}

// NewStruct allocates a struct object with the given field values.
func (s *Space) NewStruct(fields []Value) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, obj := s.allocLocked(KindStruct)
	obj.Fields = append([]Value(nil), fields...)
	return h
}

// NewCodeUnit allocates a heap-resident code unit carrier. The unit itself
// is opaque to the object space; the jit package finds it again through the
// heap walk.
func (s *Space) NewCodeUnit(ext any) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, obj := s.allocLocked(KindCodeUnit)
	obj.Ext = ext
	return h
}

// Get resolves a handle to its object header. Resolving an invalid, dead or
// poisoned handle is a contract violation.
func (s *Space) Get(h Handle) *Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(h)
}

func (s *Space) getLocked(h Handle) *Object {
	if h == 0 {
		contractViolation("invalid handle 0")
	}
	obj, ok := s.objs[h]
	if !ok || obj == nil {
		contractViolation("invalid handle %d", h)
	}
	if !obj.Alive {
		contractViolation("dead handle %d (alloc=%d)", h, obj.AllocID)
	}
	if obj.Poisoned {
		contractViolation("poisoned read: handle %d (alloc=%d)", h, obj.AllocID)
	}
	return obj
}

// Poison marks an object inaccessible until the next sanctioned walk or an
// explicit Unpoison.
func (s *Space) Poison(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objs[h]
	if !ok || obj == nil || !obj.Alive {
		contractViolation("poison of invalid handle %d", h)
	}
	obj.Poisoned = true
}

// Unpoison lifts the poison from an object.
func (s *Space) Unpoison(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objs[h]
	if !ok || obj == nil {
		contractViolation("unpoison of invalid handle %d", h)
	}
	obj.Poisoned = false
}

// ContractError reports a violated programming contract. It is raised by
// panic: these indicate bugs in the caller or the runtime core, never
// recoverable conditions.
type ContractError struct {
	Msg string
}

func (e *ContractError) Error() string {
	return "objspace contract violation: " + e.Msg
}

func contractViolation(format string, args ...any) {
	panic(&ContractError{Msg: fmt.Sprintf(format, args...)})
}
