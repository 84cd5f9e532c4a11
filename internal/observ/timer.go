package observ

import (
	"fmt"
	"time"
)

// Span records the duration and metadata of one measured stretch of work.
type Span struct {
	Name  string
	Start time.Time
	Dur   time.Duration
	Note  string
}

// Timer tracks the wall time of the phases of a run, e.g. the stages of a
// self-test pass. Not safe for concurrent use.
type Timer struct {
	spans []Span
}

// NewTimer creates a new empty Timer.
func NewTimer() *Timer { return &Timer{spans: make([]Span, 0, 8)} }

// Span starts a named span and returns the function that ends it. The note
// is attached when the span ends.
func (t *Timer) Span(name string) func(note string) {
	t.spans = append(t.spans, Span{Name: name, Start: time.Now()})
	idx := len(t.spans) - 1
	return func(note string) {
		s := &t.spans[idx]
		s.Dur = time.Since(s.Start)
		s.Note = note
	}
}

// Summary returns a human-readable string summarizing all tracked spans.
func (t *Timer) Summary() string {
	report := t.Report()
	out := "timings:\n"
	for _, s := range report.Spans {
		out += fmt.Sprintf("  %-20s %7.2f ms", s.Name, s.DurationMS)
		if s.Note != "" {
			out += "  // " + s.Note
		}
		out += "\n"
	}
	out += fmt.Sprintf("  %-20s %7.2f ms\n", "total", report.TotalMS)
	return out
}

// SpanReport is the serializable form of one span.
type SpanReport struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
	Note       string  `json:"note,omitempty"`
}

// Report aggregates all spans with the total duration.
type Report struct {
	TotalMS float64      `json:"total_ms"`
	Spans   []SpanReport `json:"spans"`
}

// Report builds the span slice and total duration in milliseconds.
func (t *Timer) Report() Report {
	if len(t.spans) == 0 {
		return Report{}
	}
	report := Report{
		Spans: make([]SpanReport, len(t.spans)),
	}
	var total time.Duration
	for i, span := range t.spans {
		total += span.Dur
		report.Spans[i] = SpanReport{
			Name:       span.Name,
			DurationMS: durationToMillis(span.Dur),
			Note:       span.Note,
		}
	}
	report.TotalMS = durationToMillis(total)
	return report
}

func durationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
