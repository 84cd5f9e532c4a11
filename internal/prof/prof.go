// Package prof wraps the runtime profilers behind a single session object
// so the CLI can start and stop them in one place.
package prof

import (
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
)

// Session holds open profile outputs for one run.
type Session struct {
	cpuFile   *os.File
	traceFile *os.File
	memPath   string
}

// Start opens the requested profilers. Empty paths disable the respective
// profiler. The heap profile is captured at Stop time.
func Start(cpuPath, tracePath, memPath string) (*Session, error) {
	s := &Session{memPath: memPath}
	if cpuPath != "" {
		f, err := os.Create(cpuPath)
		if err != nil {
			return nil, err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return nil, err
		}
		s.cpuFile = f
	}
	if tracePath != "" {
		f, err := os.Create(tracePath)
		if err != nil {
			s.Stop()
			return nil, err
		}
		if err := trace.Start(f); err != nil {
			_ = f.Close()
			s.Stop()
			return nil, err
		}
		s.traceFile = f
	}
	return s, nil
}

// Stop closes every active profiler. Safe to call more than once.
func (s *Session) Stop() {
	if s.cpuFile != nil {
		pprof.StopCPUProfile()
		_ = s.cpuFile.Close()
		s.cpuFile = nil
	}
	if s.traceFile != nil {
		trace.Stop()
		_ = s.traceFile.Close()
		s.traceFile = nil
	}
	if s.memPath != "" {
		_ = writeMem(s.memPath)
		s.memPath = ""
	}
}

func writeMem(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()
	runtime.GC()
	return pprof.WriteHeapProfile(f)
}
