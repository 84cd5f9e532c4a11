// Package exits collects and exports side-exit locations: which frames
// compiled code was in when it fell back to the interpreter, and how often.
package exits

import "sync"

// FrameID is the stable identity of one profiled frame.
type FrameID uint64

// FrameSource resolves frame identities to display information. It is
// implemented by the interpreter's profiling layer.
type FrameSource interface {
	// FullLabel returns the frame's display name.
	FullLabel(f FrameID) string
	// Path returns the frame's source file, preferring the absolute path.
	Path(f FrameID) string
	// FirstLine returns the frame's first line number, 0 when unknown.
	FirstLine(f FrameID) int32
}

// Recorder accumulates raw samples. The raw stream encodes one sample as
// the stack depth, the frame identities from callee to caller, the exit
// instruction tag, and a sample count; the line stream is index-parallel.
// Consecutive identical stacks collapse into a count bump on the previous
// sample.
type Recorder struct {
	mu    sync.Mutex
	raw   []uint64
	lines []int32

	// start of the previous sample group, -1 when none
	prev int
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{prev: -1}
}

// Record appends one sample: the frame stack with its parallel line
// numbers, plus the instruction tag the exit happened on.
func (r *Recorder) Record(stack []FrameID, stackLines []int32, exitInsn uint64, exitLine int32) {
	if len(stack) != len(stackLines) {
		panic("exits: stack and line samples out of step")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sameAsPrevLocked(stack, exitInsn) {
		r.raw[len(r.raw)-1]++
		r.lines[len(r.lines)-1]++
		return
	}

	r.prev = len(r.raw)
	r.raw = append(r.raw, uint64(len(stack)))
	r.lines = append(r.lines, int32(len(stack)))
	for i, f := range stack {
		r.raw = append(r.raw, uint64(f))
		r.lines = append(r.lines, stackLines[i])
	}
	r.raw = append(r.raw, exitInsn)
	r.lines = append(r.lines, exitLine)
	r.raw = append(r.raw, 1)
	r.lines = append(r.lines, 1)
}

func (r *Recorder) sameAsPrevLocked(stack []FrameID, exitInsn uint64) bool {
	if r.prev < 0 {
		return false
	}
	group := r.raw[r.prev:]
	if uint64(len(stack)) != group[0] {
		return false
	}
	for i, f := range stack {
		if group[1+i] != uint64(f) {
			return false
		}
	}
	return group[1+len(stack)] == exitInsn
}

// Samples returns copies of the raw and line streams.
func (r *Recorder) Samples() ([]uint64, []int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint64(nil), r.raw...), append([]int32(nil), r.lines...)
}
