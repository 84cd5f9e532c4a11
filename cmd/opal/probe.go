package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"opal/internal/codecache"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Probe the platform's executable-memory facilities",
	Long: `probe reserves a small code cache, runs it through a full
write/protect cycle and reports what the platform gave us. Useful when
diagnosing reservation failures on a new target.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		fmt.Fprintf(out, "page size:    %d bytes\n", codecache.PageSize())

		cache := codecache.New(1 << 20)
		fmt.Fprintf(out, "reserved:     %d bytes at %#x\n", cache.Size(), cache.Base())

		stub := []byte{0xCC, 0xCC, 0xCC, 0xCC}
		addr, ok := cache.Write(stub)
		if !ok {
			return fmt.Errorf("could not write to the reserved region")
		}
		fmt.Fprintf(out, "first write:  %#x\n", addr)

		cache.MakeExecutable()
		fmt.Fprintf(out, "executable:   %v\n", cache.Executable())
		if !cache.MakeWritable() {
			return fmt.Errorf("could not flip the region back to writable")
		}
		fmt.Fprintln(out, "write/protect cycle ok")
		return nil
	},
}
