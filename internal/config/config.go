// Package config holds the runtime options of the JIT core, loadable from
// an opal.toml file.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Options configures the JIT core. Zero values are filled from Default by
// Load; Validate rejects combinations the runtime cannot honor.
type Options struct {
	// ExecMemSize is the size of the executable memory reservation in MiB.
	ExecMemSize int `toml:"exec-mem-size"`

	// CallThreshold is the number of calls after which a code unit is
	// compiled. 1 means compile on first execution.
	CallThreshold int `toml:"call-threshold"`

	// GreedyVersioning generates block versions greedily until the limit
	// is hit.
	GreedyVersioning bool `toml:"greedy-versioning"`

	// NoTypeProp disables propagation of type information.
	NoTypeProp bool `toml:"no-type-prop"`

	// MaxVersions bounds the versions per block; 1 always creates generic
	// versions.
	MaxVersions int `toml:"max-versions"`

	// GenStats captures and reports compilation statistics.
	GenStats bool `toml:"gen-stats"`

	// TraceExitLocations records side-exit stacks for the exit-locations
	// report.
	TraceExitLocations bool `toml:"trace-exit-locations"`

	// StressGC forces a relocation pass on every allocation point.
	StressGC bool `toml:"stress-gc"`
}

// Default returns the built-in option values.
func Default() Options {
	return Options{
		ExecMemSize:   256,
		CallThreshold: 10,
		MaxVersions:   4,
	}
}

// Load reads options from a TOML file, layered over the defaults. A missing
// path returns the defaults unchanged.
func Load(path string) (Options, error) {
	opts := Default()
	if path == "" {
		return opts, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return opts, nil
	}
	if _, err := toml.DecodeFile(path, &opts); err != nil {
		return opts, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := opts.Validate(); err != nil {
		return opts, fmt.Errorf("%s: %w", path, err)
	}
	return opts, nil
}

// Validate checks option ranges.
func (o Options) Validate() error {
	if o.ExecMemSize <= 0 {
		return fmt.Errorf("exec-mem-size must be positive, got %d", o.ExecMemSize)
	}
	if o.ExecMemSize > 2048 {
		return fmt.Errorf("exec-mem-size %d MiB exceeds the 2 GiB reservation limit", o.ExecMemSize)
	}
	if o.CallThreshold < 1 {
		return fmt.Errorf("call-threshold must be at least 1, got %d", o.CallThreshold)
	}
	if o.MaxVersions < 1 {
		return fmt.Errorf("max-versions must be at least 1, got %d", o.MaxVersions)
	}
	return nil
}

// ExecMemBytes returns the executable memory reservation size in bytes.
func (o Options) ExecMemBytes() uint32 {
	return uint32(o.ExecMemSize) << 20
}
