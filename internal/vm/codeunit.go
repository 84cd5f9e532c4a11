package vm

import "sync/atomic"

// EntryState tracks the compiled-entry lifecycle of a code unit.
type EntryState uint32

const (
	EntryNotCompiled EntryState = iota
	EntryCompiling
	EntryCompiled
	EntryFailed
	EntryInvalidated
)

func (st EntryState) String() string {
	switch st {
	case EntryNotCompiled:
		return "not-compiled"
	case EntryCompiling:
		return "compiling"
	case EntryCompiled:
		return "compiled"
	case EntryFailed:
		return "failed"
	case EntryInvalidated:
		return "invalidated"
	default:
		return "<invalid-state>"
	}
}

// ParamFlags mirrors the parameter shape of a code unit as the compiler
// emitted it.
type ParamFlags struct {
	HasLead        bool
	HasOpt         bool
	HasRest        bool
	HasPost        bool
	HasKw          bool
	HasKwrest      bool
	HasBlock       bool
	LegacyKeywords bool
	AcceptsNoKwarg bool
}

// ParamKeyword describes the keyword parameter table of a code unit.
type ParamKeyword struct {
	Num      int
	Required int
	Bits     uint32
	Table    []MethodID
}

// CodeUnit is the compiled representation of one method or block: the
// encoded instruction sequence plus the slots this core owns: a single
// optional machine-code entry pointer and an opaque compiler payload.
//
// The entry pointer is either 0 (not yet compiled, or invalidated) or a
// pointer into currently valid executable memory. It is installed and
// cleared with single atomic writes, and only while the caller holds the
// synchronization gate, so no reader can observe a partial update.
type CodeUnit struct {
	Name      string
	File      string
	FirstLine int32

	// Encoded is the word-encoded instruction stream: an opcode word
	// followed by its operand words, repeating. Reference-typed operands
	// index into Pool.
	Encoded []uint64
	Pool    []any

	StackMax       uint32
	LocalTableSize uint32
	ParamSize      uint32
	LeadNum        int
	OptNum         int
	OptTable       []uint32
	Flags          ParamFlags
	Keyword        *ParamKeyword

	// BuiltinInline is set by the bytecode compiler when the unit's body
	// is eligible for leaf-builtin substitution.
	BuiltinInline bool

	// CallSites lists the unit's send sites with their inline caches, in
	// instruction order.
	CallSites []*CallData

	// LocalUnit points at the unit owning the local table (itself for
	// methods, the enclosing method for blocks).
	LocalUnit *CodeUnit

	entry   atomic.Uintptr
	state   atomic.Uint32
	payload atomic.Value
}

// Size returns the length of the encoded instruction stream in words.
func (cu *CodeUnit) Size() uint32 { return uint32(len(cu.Encoded)) }

// PCAtIdx returns the program counter for an instruction index. The index
// must be inside the encoded stream.
func (cu *CodeUnit) PCAtIdx(idx uint32) int {
	if int(idx) >= len(cu.Encoded) {
		panic("vm: instruction index outside encoded stream")
	}
	return int(idx)
}

// OpcodeAtPC decodes the numeric instruction tag at pc.
func (cu *CodeUnit) OpcodeAtPC(pc int) Opcode {
	return Opcode(cu.Encoded[pc])
}

// Entry returns the unit's compiled entry pointer, 0 when absent.
func (cu *CodeUnit) Entry() uintptr {
	return cu.entry.Load()
}

// InstallEntry publishes a compiled entry pointer. The caller must hold the
// synchronization gate.
func (cu *CodeUnit) InstallEntry(p uintptr) {
	cu.entry.Store(p)
	cu.state.Store(uint32(EntryCompiled))
}

// ResetEntry clears the entry pointer so no caller can reach stale code.
// The caller must hold the synchronization gate.
func (cu *CodeUnit) ResetEntry(st EntryState) {
	cu.entry.Store(0)
	cu.state.Store(uint32(st))
}

// State returns the unit's compiled-entry lifecycle state.
func (cu *CodeUnit) State() EntryState {
	return EntryState(cu.state.Load())
}

// MarkCompiling moves the unit into the compiling state. The caller must
// hold the synchronization gate.
func (cu *CodeUnit) MarkCompiling() {
	cu.state.Store(uint32(EntryCompiling))
}

// Payload returns the opaque compiler payload, nil when unset.
func (cu *CodeUnit) Payload() any {
	return cu.payload.Load()
}

// SetPayload installs the compiler payload. The slot is write-once;
// overwriting a live payload is a bug in the compiler backend.
func (cu *CodeUnit) SetPayload(p any) {
	if cu.payload.Load() != nil {
		panic("vm: code unit payload already set")
	}
	cu.payload.Store(p)
}
