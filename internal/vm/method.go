package vm

import "opal/internal/objspace"

// Visibility of a method entry.
type Visibility uint8

const (
	VisiPublic Visibility = iota
	VisiPrivate
	VisiProtected
)

// MethodType classifies how a method is defined.
type MethodType uint8

const (
	MethodTypeBytecode MethodType = iota
	MethodTypeCFunc
	MethodTypeAttrSet
	MethodTypeIvar
	MethodTypeBMethod
	MethodTypeOptimized
	MethodTypeMissing
	MethodTypeUndef
)

// OptimizedType names the interpreter fast paths a method entry may stand
// for.
type OptimizedType uint8

const (
	OptimizedSend OptimizedType = iota
	OptimizedCall
	OptimizedBlockCall
	OptimizedStructAref
	OptimizedStructAset
)

// CFunc describes a native method implementation.
type CFunc struct {
	Fn   uintptr
	Argc int
}

// MethodDef is the shared definition behind one or more method entries.
type MethodDef struct {
	Type           MethodType
	CFunc          CFunc
	Unit           *CodeUnit
	AttrID         MethodID
	BMethodProc    objspace.Handle
	OptimizedType  OptimizedType
	OptimizedIndex uint32
	MethodSerial   uintptr
	OriginalID     MethodID
}

// MethodEntry is one resolved, callable method.
type MethodEntry struct {
	Visi Visibility
	Def  *MethodDef
}

// DefType returns the definition type of a method entry, reporting
// MethodTypeUndef for undefined entries instead of trapping.
func (me *MethodEntry) DefType() MethodType {
	if me == nil || me.Def == nil {
		return MethodTypeUndef
	}
	return me.Def.Type
}

// DefCFunc returns the native implementation descriptor. Only meaningful
// for MethodTypeCFunc entries.
func (me *MethodEntry) DefCFunc() CFunc { return me.Def.CFunc }

// DefUnit returns the bytecode body of a bytecode-defined method.
func (me *MethodEntry) DefUnit() *CodeUnit { return me.Def.Unit }

// DefOptimizedIndex returns the fast-path index of an optimized method.
func (me *MethodEntry) DefOptimizedIndex() uint32 { return me.Def.OptimizedIndex }
