package jit

import "sync/atomic"

// Stats aggregates compilation and invalidation counters. Collected
// unconditionally but only reported when gen-stats is enabled.
type Stats struct {
	CompiledUnits   atomic.Uint64
	CompileFailures atomic.Uint64

	InvalidatedUnits     atomic.Uint64
	BopRedefinitions     atomic.Uint64
	MethodLookupChanges  atomic.Uint64
	ConstantStateChanges atomic.Uint64
	GlobalInvalidations  atomic.Uint64
}

// Stats returns the live counter set.
func (j *JIT) Stats() *Stats { return &j.stats }

// Snapshot copies the counters into a plain map for reporting.
func (s *Stats) Snapshot() map[string]uint64 {
	return map[string]uint64{
		"compiled_units":         s.CompiledUnits.Load(),
		"compile_failures":       s.CompileFailures.Load(),
		"invalidated_units":      s.InvalidatedUnits.Load(),
		"bop_redefinitions":      s.BopRedefinitions.Load(),
		"method_lookup_changes":  s.MethodLookupChanges.Load(),
		"constant_state_changes": s.ConstantStateChanges.Load(),
		"global_invalidations":   s.GlobalInvalidations.Load(),
	}
}
