package main

import (
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"opal/internal/exits"
)

var inspectTop int

func init() {
	inspectCmd.Flags().IntVar(&inspectTop, "top", 10, "number of exit sites to show")
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <exits-dump>",
	Short: "Summarize an exit-locations dump",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := exits.ReadFile(args[0])
		if err != nil {
			return err
		}

		p := message.NewPrinter(language.English)
		out := cmd.OutOrStdout()

		sites, total := exitSites(report)
		p.Fprintf(out, "%d distinct frames, %d samples across %d exit sites\n",
			len(report.Frames), total, len(sites))

		sort.Slice(sites, func(i, k int) bool { return sites[i].count > sites[k].count })
		if len(sites) > inspectTop {
			sites = sites[:inspectTop]
		}
		for _, s := range sites {
			name := "?"
			if fi, ok := report.Frames[s.frame]; ok {
				name = fi.Name
			}
			p.Fprintf(out, "  %8d  insn %d  at %s:%d\n", s.count, s.insn, name, s.line)
		}
		return nil
	},
}

type exitSite struct {
	frame exits.FrameID
	insn  uint64
	line  int32
	count uint64
}

// exitSites walks the encoded sample stream and aggregates per exit site:
// the innermost frame, the instruction tag and the exit line.
func exitSites(report *exits.Report) ([]exitSite, uint64) {
	type key struct {
		frame exits.FrameID
		insn  uint64
		line  int32
	}
	agg := make(map[key]uint64)
	var total uint64

	idx := 0
	for idx < len(report.Raw) {
		depth := int(report.Raw[idx])
		idx++
		var innermost exits.FrameID
		if depth > 0 {
			innermost = exits.FrameID(report.Raw[idx])
		}
		idx += depth
		if idx+1 >= len(report.Raw) {
			return nil, 0 // truncated dump; report what we have
		}
		insn := report.Raw[idx]
		line := report.Lines[idx]
		idx++
		count := report.Raw[idx]
		idx++

		agg[key{innermost, insn, line}] += count
		total += count
	}

	sites := make([]exitSite, 0, len(agg))
	for k, c := range agg {
		sites = append(sites, exitSite{frame: k.frame, insn: k.insn, line: k.line, count: c})
	}
	return sites, total
}
