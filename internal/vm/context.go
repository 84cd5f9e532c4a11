package vm

import "opal/internal/objspace"

// ExecutionContext is one logical thread of interpreted or compiled
// execution: a stack of frames plus the bookkeeping compiled code needs to
// reach it.
type ExecutionContext struct {
	frames []Frame
}

// NewExecutionContext creates an empty execution context.
func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{frames: make([]Frame, 0, 16)}
}

// CFP returns the current (topmost) frame, or nil when the stack is empty.
func (ec *ExecutionContext) CFP() *Frame {
	if len(ec.frames) == 0 {
		return nil
	}
	return &ec.frames[len(ec.frames)-1]
}

// PushFrame pushes a new activation record for unit and returns it.
func (ec *ExecutionContext) PushFrame(unit *CodeUnit, self objspace.Value, ep *Env) *Frame {
	ec.frames = append(ec.frames, Frame{
		self: self,
		ep:   ep,
		unit: unit,
	})
	return &ec.frames[len(ec.frames)-1]
}

// PopFrame pops the current frame. Popping an empty stack is a bug in the
// embedding runtime, not a recoverable condition.
func (ec *ExecutionContext) PopFrame() {
	if len(ec.frames) == 0 {
		panic("vm: pop of empty frame stack")
	}
	ec.frames = ec.frames[:len(ec.frames)-1]
}

// Depth returns the number of live frames.
func (ec *ExecutionContext) Depth() int { return len(ec.frames) }
