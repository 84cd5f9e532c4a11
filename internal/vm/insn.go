package vm

// Opcode is the numeric instruction tag of the bytecode interpreter. The
// full instruction set lives with the bytecode compiler; this table carries
// only what generated code needs, names and encoded lengths.
type Opcode uint16

const (
	OpNop Opcode = iota
	OpGetLocal
	OpSetLocal
	OpPutSelf
	OpPutObject
	OpSend
	OpLeave
	OpJump
	OpBranchUnless
	OpInvokeBuiltin
	OpInvokeBuiltinDelegateLeave
	opcodeCount
)

type insnInfo struct {
	name string
	// length in words, opcode included
	length int
}

var insnTable = [opcodeCount]insnInfo{
	OpNop:                        {"nop", 1},
	OpGetLocal:                   {"getlocal", 3},
	OpSetLocal:                   {"setlocal", 3},
	OpPutSelf:                    {"putself", 1},
	OpPutObject:                  {"putobject", 2},
	OpSend:                       {"send", 3},
	OpLeave:                      {"leave", 1},
	OpJump:                       {"jump", 2},
	OpBranchUnless:               {"branchunless", 2},
	OpInvokeBuiltin:              {"invokebuiltin", 2},
	OpInvokeBuiltinDelegateLeave: {"opt_invokebuiltin_delegate_leave", 3},
}

// InsnName returns the mnemonic for a numeric instruction tag.
func InsnName(op Opcode) string {
	if op >= opcodeCount {
		return "<invalid-opcode>"
	}
	return insnTable[op].name
}

// InsnLen returns the encoded length in words of an instruction, opcode
// word included.
func InsnLen(op Opcode) int {
	if op >= opcodeCount {
		panic("vm: instruction length of invalid opcode")
	}
	return insnTable[op].length
}

// BuiltinFunction is one native builtin callable from bytecode.
type BuiltinFunction struct {
	Name  string
	Argc  int
	Index uint32
	Fn    func(ec *ExecutionContext, args []uint64) uint64
}

// LeafBuiltinFunction returns the builtin function of a unit that consists
// solely of one builtin-dispatch instruction followed by a return, or nil.
// Such units can be replaced by a single native call.
func LeafBuiltinFunction(cu *CodeUnit) *BuiltinFunction {
	if !leafInvokeBuiltinUnit(cu) {
		return nil
	}
	bf, _ := cu.Pool[cu.Encoded[1]].(*BuiltinFunction)
	return bf
}

func leafInvokeBuiltinUnit(cu *CodeUnit) bool {
	delegateLen := InsnLen(OpInvokeBuiltinDelegateLeave)
	leaveLen := InsnLen(OpLeave)
	return len(cu.Encoded) == delegateLen+leaveLen &&
		cu.OpcodeAtPC(0) == OpInvokeBuiltinDelegateLeave &&
		cu.OpcodeAtPC(delegateLen) == OpLeave &&
		cu.BuiltinInline
}
