// Package ui renders a live terminal monitor of compilation activity.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"opal/internal/jit"
)

const eventTail = 10

type monitorModel struct {
	title   string
	events  <-chan jit.Event
	spinner spinner.Model
	prog    progress.Model

	recent []recentLine
	width  int
	done   bool

	compiled    int
	failed      int
	invalidated int
	cacheUsed   uint32
	cacheSize   uint32
}

type recentLine struct {
	label string
	unit  string
}

type eventMsg jit.Event
type doneMsg struct{}

// NewMonitorModel returns a Bubble Tea model that renders the compiler's
// activity feed: recent events, running counters, and cache occupancy.
func NewMonitorModel(title string, events <-chan jit.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	return &monitorModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		width:   80,
	}
}

func (m *monitorModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(jit.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		progModel, cmd := m.prog.Update(msg)
		m.prog = progModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *monitorModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := m.title
	if m.done {
		header = fmt.Sprintf("done: %s", header)
	} else {
		header = fmt.Sprintf("%s %s", m.spinner.View(), header)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("  compiled %d   failed %d   invalidated %d\n\n",
		m.compiled, m.failed, m.invalidated))

	labelWidth := 12
	nameWidth := m.width - labelWidth - 4
	if nameWidth < 20 {
		nameWidth = 20
	}
	for _, line := range m.recent {
		styled := styleLabel(line.label).Render(fmt.Sprintf("%12s", line.label))
		b.WriteString(fmt.Sprintf("  %s %s\n", styled, truncate(line.unit, nameWidth)))
	}

	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  code cache %s\n", humanBytes(m.cacheUsed)))
	if m.done {
		b.WriteString(m.prog.ViewAs(m.cachePct()))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")

	return b.String()
}

func (m *monitorModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *monitorModel) applyEvent(ev jit.Event) tea.Cmd {
	label := eventLabel(ev.Kind)
	switch ev.Kind {
	case jit.EventCompiled:
		m.compiled++
	case jit.EventCompileFailed:
		m.failed++
	case jit.EventInvalidated:
		m.invalidated++
	}
	if ev.CacheSize > 0 {
		m.cacheUsed = ev.CacheUsed
		m.cacheSize = ev.CacheSize
	}

	m.recent = append(m.recent, recentLine{label: label, unit: ev.Unit})
	if len(m.recent) > eventTail {
		m.recent = m.recent[len(m.recent)-eventTail:]
	}
	return m.prog.SetPercent(m.cachePct())
}

func (m *monitorModel) cachePct() float64 {
	if m.cacheSize == 0 {
		return 0
	}
	return float64(m.cacheUsed) / float64(m.cacheSize)
}

func eventLabel(kind jit.EventKind) string {
	switch kind {
	case jit.EventCompiled:
		return "compiled"
	case jit.EventCompileFailed:
		return "failed"
	case jit.EventInvalidated:
		return "invalidated"
	case jit.EventGlobalInvalidation:
		return "flushed"
	default:
		return ""
	}
}

func styleLabel(label string) lipgloss.Style {
	switch label {
	case "compiled":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case "failed":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case "invalidated", "flushed":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func humanBytes(n uint32) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/float64(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
