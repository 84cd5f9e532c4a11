package vm

import "opal/internal/objspace"

// Env is one link in a frame's lexical environment chain.
type Env struct {
	prev  *Env
	Slots []objspace.Value
}

// NewEnv creates an environment whose parent is prev (nil for the outermost
// scope).
func NewEnv(prev *Env, slots []objspace.Value) *Env {
	return &Env{prev: prev, Slots: slots}
}

// Prev returns the enclosing environment.
func (e *Env) Prev() *Env { return e.prev }

// Frame is a live activation record on an execution context's call stack.
// Its address is valid only while the frame is on the live stack. Generated
// code never touches the layout directly; every structural access goes
// through the accessors below so interpreter internals can change without
// breaking the generation boundary.
type Frame struct {
	pc   int
	sp   int
	self objspace.Value
	ep   *Env
	unit *CodeUnit
}

// PC returns the frame's program counter.
func (f *Frame) PC() int { return f.pc }

// SetPC updates the frame's program counter.
func (f *Frame) SetPC(pc int) { f.pc = pc }

// SP returns the frame's stack pointer.
func (f *Frame) SP() int { return f.sp }

// SetSP updates the frame's stack pointer.
func (f *Frame) SetSP(sp int) { f.sp = sp }

// Self returns the frame's receiver.
func (f *Frame) Self() objspace.Value { return f.self }

// EP returns the frame's environment pointer.
func (f *Frame) EP() *Env { return f.ep }

// Unit returns the code unit executing in this frame.
func (f *Frame) Unit() *CodeUnit { return f.unit }

// EPLevel hops lv environments up the frame's lexical chain. The hop count
// is statically determined by the compiler and must not exceed the actual
// chain depth; no bounds check is performed.
func (f *Frame) EPLevel(lv uint32) *Env {
	ep := f.ep
	for i := uint32(0); i < lv; i++ {
		ep = ep.prev
	}
	return ep
}
