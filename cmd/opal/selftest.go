package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"opal/internal/codecache"
	"opal/internal/config"
	"opal/internal/exits"
	"opal/internal/gate"
	"opal/internal/jit"
	"opal/internal/objspace"
	"opal/internal/observ"
	"opal/internal/prof"
	"opal/internal/vm"
)

var (
	selftestWorkers  int
	selftestIters    int
	selftestStressGC bool
	selftestUI       bool
	selftestTimings  bool
	selftestExitsOut string
	selftestCPUProf  string
	selftestMemProf  string
	selftestTrace    string
)

func init() {
	selftestCmd.Flags().IntVar(&selftestWorkers, "workers", 4, "number of concurrent execution contexts")
	selftestCmd.Flags().IntVar(&selftestIters, "iters", 2000, "iterations per context")
	selftestCmd.Flags().BoolVar(&selftestStressGC, "stress-gc", false, "relocate buffers on every allocation point")
	selftestCmd.Flags().BoolVar(&selftestUI, "ui", false, "render the live activity monitor")
	selftestCmd.Flags().BoolVar(&selftestTimings, "timings", false, "print phase timings")
	selftestCmd.Flags().StringVar(&selftestExitsOut, "exits-out", "", "write the exit-locations report to this file")
	selftestCmd.Flags().StringVar(&selftestCPUProf, "cpuprofile", "", "write a CPU profile to this file")
	selftestCmd.Flags().StringVar(&selftestMemProf, "memprofile", "", "write a heap profile to this file")
	selftestCmd.Flags().StringVar(&selftestTrace, "trace", "", "write a runtime trace to this file")
}

var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Hammer the runtime core from concurrent contexts",
	Long: `selftest spins up several execution contexts that allocate and grow
relocatable buffers, push and pop frames, compile code units and break
compilation assumptions, all at once. It exists to shake out races and
contract violations that single-threaded use never hits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		quiet, _ := cmd.Flags().GetBool("quiet")

		opts, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if selftestStressGC {
			opts.StressGC = true
		}
		if selftestExitsOut != "" {
			opts.TraceExitLocations = true
		}

		session, err := prof.Start(selftestCPUProf, selftestTrace, selftestMemProf)
		if err != nil {
			return err
		}
		defer session.Stop()

		timer := observ.NewTimer()
		endSetup := timer.Span("setup")

		space := objspace.New()
		space.SetStress(opts.StressGC)
		g := gate.New()
		cache := codecache.New(opts.ExecMemBytes())
		gen := &stubGenerator{cache: cache}
		j := jit.New(space, g, cache, gen, opts)
		gen.lookupSerial = j.LookupSerial

		rec := exits.NewRecorder()
		endSetup("")

		endRun := timer.Span("run")
		var runErr error
		if selftestUI && isTerminal(os.Stdout) {
			runErr = runWorkersWithUI(cmd.Context(), space, g, j, rec, opts)
		} else {
			runErr = runWorkers(cmd.Context(), space, g, j, rec, opts)
		}
		endRun(fmt.Sprintf("%d contexts x %d iters", selftestWorkers, selftestIters))
		if runErr != nil {
			return runErr
		}

		endSweep := timer.Span("sweep")
		space.Collect()
		endSweep("")

		if selftestExitsOut != "" {
			report := rec.Dict(stubFrames{})
			if err := exits.WriteFile(selftestExitsOut, report); err != nil {
				return err
			}
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "exit locations written to %s\n", selftestExitsOut)
			}
		}

		if !quiet {
			printStats(cmd, space, g, j)
		}
		if selftestTimings {
			fmt.Fprint(cmd.OutOrStdout(), timer.Summary())
		}
		return nil
	},
}

func printStats(cmd *cobra.Command, space *objspace.Space, g *gate.Gate, j *jit.JIT) {
	p := message.NewPrinter(language.English)
	out := cmd.OutOrStdout()

	snap := j.Stats().Snapshot()
	p.Fprintf(out, "compiled units:         %d\n", snap["compiled_units"])
	p.Fprintf(out, "compile failures:       %d\n", snap["compile_failures"])
	p.Fprintf(out, "invalidated units:      %d\n", snap["invalidated_units"])
	p.Fprintf(out, "bop redefinitions:      %d\n", snap["bop_redefinitions"])
	p.Fprintf(out, "method lookup changes:  %d\n", snap["method_lookup_changes"])
	p.Fprintf(out, "constant state changes: %d\n", snap["constant_state_changes"])
	p.Fprintf(out, "global invalidations:   %d\n", snap["global_invalidations"])

	c := space.Counters()
	p.Fprintf(out, "allocations:            %d\n", c.Allocations)
	p.Fprintf(out, "strbuf allocations:     %d\n", c.StrbufAllocs)
	p.Fprintf(out, "relocations:            %d\n", c.Relocations)
	p.Fprintf(out, "swept strbufs:          %d\n", c.SweptStrbufs)
	p.Fprintf(out, "barrier writes:         %d\n", c.BarrierWrites)

	barriers, contentions, _ := g.Stats()
	p.Fprintf(out, "gate barriers:          %d\n", barriers)
	p.Fprintf(out, "gate contentions:       %d\n", contentions)
	p.Fprintf(out, "code cache used:        %d of %d bytes\n", j.Cache().Used(), j.Cache().Size())
}

func runWorkers(ctx context.Context, space *objspace.Space, g *gate.Gate, j *jit.JIT, rec *exits.Recorder, opts config.Options) error {
	eg, ctx := errgroup.WithContext(ctx)
	for w := 0; w < selftestWorkers; w++ {
		w := w
		eg.Go(func() error {
			return workerLoop(ctx, w, space, g, j, rec, opts)
		})
	}
	return eg.Wait()
}

// workerLoop is one execution context's life: allocate strings and grow
// their buffers, run frames, get units compiled and occasionally break the
// assumptions they were compiled under.
func workerLoop(ctx context.Context, id int, space *objspace.Space, g *gate.Gate, j *jit.JIT, rec *exits.Recorder, opts config.Options) (err error) {
	reg := g.Register()
	defer g.Unregister(reg)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("context %d: %v", id, r)
		}
	}()

	ec := vm.NewExecutionContext()
	cu := makeCodeUnit(fmt.Sprintf("selftest:unit-%d", id))
	space.NewCodeUnit(cu)

	tok := gate.Token{Reg: reg}
	calls := 0
	for i := 0; i < selftestIters; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		reg.SafePoint()

		// String churn: allocate, grow, shrink, read back. Raw content is
		// only touched under a pin; other contexts allocate concurrently,
		// so every moment is an allocation point.
		str := space.NewString()
		space.NewStrbufFor(str, 8, 1)
		fill := byte('a' + id%26)
		pin := space.Pin(str)
		content := space.Content(str)
		for b := range content {
			content[b] = fill
		}
		pin.Release()
		space.SizedRealloc(str, 64, 8)
		space.SizedRealloc(str, 16, 64)
		pin = space.Pin(str)
		cerr := verifyContent(id, space.Content(str), fill)
		pin.Release()
		if cerr != nil {
			return cerr
		}

		// Frame traffic through the accessor boundary.
		env := vm.NewEnv(nil, []objspace.Value{objspace.Int(int64(i))})
		inner := vm.NewEnv(env, []objspace.Value{objspace.Nil})
		f := ec.PushFrame(cu, objspace.Nil, inner)
		f.SetPC(0)
		f.SetSP(1)
		if f.EPLevel(1) != env {
			return fmt.Errorf("context %d: environment hop went wide", id)
		}
		ec.PopFrame()

		calls++
		if calls >= opts.CallThreshold && cu.State() == vm.EntryNotCompiled {
			j.AssumeStableConstantState(cu)
			j.Compile(&tok, cu, ec)
		}

		switch {
		case i%701 == 700:
			j.ConstantStateChanged(&tok)
			calls = 0
		case i%997 == 996:
			j.BopRedefined(&tok, jit.IntegerRedefined, jit.BopPlus)
		}
		if cu.State() == vm.EntryInvalidated {
			j.Compile(&tok, cu, ec)
		}

		if opts.TraceExitLocations && i%50 == 0 {
			rec.Record(
				[]exits.FrameID{exits.FrameID(id)*2 + 1, exits.FrameID(id) * 2},
				[]int32{int32(i % 100), 1},
				uint64(vm.OpSend), int32(i%100),
			)
		}
		if i%500 == 499 {
			space.Collect()
		}
	}
	return nil
}

// verifyContent checks that the realloc chain preserved the first eight
// fill bytes, not just the capacity.
func verifyContent(id int, got []byte, fill byte) error {
	if len(got) < 16 {
		return fmt.Errorf("context %d: content shrank below capacity: %d", id, len(got))
	}
	for b := 0; b < 8; b++ {
		if got[b] != fill {
			return fmt.Errorf("context %d: content byte %d is %q, want %q", id, b, got[b], fill)
		}
	}
	return nil
}

func makeCodeUnit(name string) *vm.CodeUnit {
	return &vm.CodeUnit{
		Name:      name,
		File:      "selftest",
		FirstLine: 1,
		Encoded: []uint64{
			uint64(vm.OpPutSelf),
			uint64(vm.OpPutObject), 0,
			uint64(vm.OpSend), 1, 0,
			uint64(vm.OpLeave),
		},
		Pool:           []any{int64(42)},
		CallSites:      []*vm.CallData{{CI: vm.NewCallInfo(1, 1, vm.CallFCall, nil)}},
		StackMax:       2,
		LocalTableSize: 1,
	}
}

// stubFrames resolves the synthetic frame identities the self-test records.
type stubFrames struct{}

func (stubFrames) FullLabel(f exits.FrameID) string {
	return fmt.Sprintf("selftest#frame_%d", uint64(f))
}

func (stubFrames) Path(exits.FrameID) string { return "selftest" }

func (stubFrames) FirstLine(f exits.FrameID) int32 {
	if f%2 == 0 {
		return 0
	}
	return int32(f)
}
