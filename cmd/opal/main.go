package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"opal/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "opal",
	Short: "Opal managed-runtime JIT core",
	Long:  `Opal is the memory-management and JIT-support core of a managed runtime, with diagnostic tools`,
}

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(selftestCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(inspectCmd)

	rootCmd.PersistentFlags().String("config", "opal.toml", "path to the runtime options file")
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
