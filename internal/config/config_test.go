package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	opts := Default()
	if opts.ExecMemSize != 256 {
		t.Errorf("ExecMemSize = %d, want 256", opts.ExecMemSize)
	}
	if opts.CallThreshold != 10 {
		t.Errorf("CallThreshold = %d, want 10", opts.CallThreshold)
	}
	if opts.MaxVersions != 4 {
		t.Errorf("MaxVersions = %d, want 4", opts.MaxVersions)
	}
	if err := opts.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	opts, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("missing file is an error: %v", err)
	}
	if opts != Default() {
		t.Fatalf("missing file did not yield the defaults: %+v", opts)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	opts, err := Load("")
	if err != nil || opts != Default() {
		t.Fatalf("empty path: %+v, %v", opts, err)
	}
}

func TestLoadLayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opal.toml")
	data := `
exec-mem-size = 64
call-threshold = 1
trace-exit-locations = true
stress-gc = true
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	opts, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if opts.ExecMemSize != 64 || opts.CallThreshold != 1 {
		t.Fatalf("overrides not applied: %+v", opts)
	}
	if !opts.TraceExitLocations || !opts.StressGC {
		t.Fatalf("boolean overrides not applied: %+v", opts)
	}
	// Untouched keys keep their defaults.
	if opts.MaxVersions != 4 {
		t.Fatalf("MaxVersions = %d, want default 4", opts.MaxVersions)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{"zero exec-mem-size", "exec-mem-size = 0"},
		{"oversized exec-mem-size", "exec-mem-size = 4096"},
		{"zero call-threshold", "call-threshold = 0"},
		{"zero max-versions", "max-versions = 0"},
		{"malformed", "exec-mem-size = ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "opal.toml")
			if err := os.WriteFile(path, []byte(tt.toml), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Fatalf("invalid config accepted")
			}
		})
	}
}

func TestExecMemBytes(t *testing.T) {
	opts := Options{ExecMemSize: 2}
	if got := opts.ExecMemBytes(); got != 2<<20 {
		t.Fatalf("ExecMemBytes = %d, want %d", got, 2<<20)
	}
}
