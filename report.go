package featdeps

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Reporter receives resolution events. It is purely observational.
type Reporter interface {
	// Detected is called once with the platform fact.
	Detected(fact string)
	// Report is called once per resolved descriptor.
	Report(res Result)
}

// NopReporter discards all events.
type NopReporter struct{}

func (NopReporter) Detected(string) {}
func (NopReporter) Report(Result)   {}

// TextReporter writes one status line per feature. Colors are used only
// when the writer is a terminal.
type TextReporter struct {
	w        io.Writer
	label    lipgloss.Style
	yes      lipgloss.Style
	skip     lipgloss.Style
	conflict lipgloss.Style
	no       lipgloss.Style
}

// NewTextReporter returns a reporter writing to w.
func NewTextReporter(w io.Writer) *TextReporter {
	r := lipgloss.NewRenderer(w)
	return &TextReporter{
		w:        w,
		label:    r.NewStyle().Bold(true),
		yes:      r.NewStyle().Foreground(lipgloss.Color("2")),
		skip:     r.NewStyle().Foreground(lipgloss.Color("3")),
		conflict: r.NewStyle().Foreground(lipgloss.Color("6")),
		no:       r.NewStyle().Foreground(lipgloss.Color("1")),
	}
}

func (t *TextReporter) Detected(fact string) {
	fmt.Fprintf(t.w, "%s %s\n", t.label.Render("Detected target OS:"), fact)
}

func (t *TextReporter) Report(res Result) {
	fmt.Fprintf(t.w, "Checking for %s: %s\n", res.Desc, t.style(res.Outcome).Render(StatusText(res)))
}

func (t *TextReporter) style(o Outcome) lipgloss.Style {
	switch o {
	case OutcomeSatisfied:
		return t.yes
	case OutcomeSkippedConflict:
		return t.conflict
	case OutcomeProbeFailed:
		return t.no
	default:
		return t.skip
	}
}

// StatusText returns the reason of a result followed by its detail in
// parentheses, e.g. "no (missing SWIFT_VERSION)".
func StatusText(res Result) string {
	if res.Detail == "" {
		return res.Reason
	}
	return fmt.Sprintf("%s (%s)", res.Reason, res.Detail)
}

// Summary returns a plain-text digest of results grouped by outcome.
func Summary(results []Result) string {
	var b strings.Builder

	groups := []struct {
		title string
		match func(Outcome) bool
	}{
		{"Enabled", func(o Outcome) bool { return o == OutcomeSatisfied }},
		{"Skipped", Outcome.Skipped},
		{"Not found", func(o Outcome) bool { return o == OutcomeProbeFailed }},
	}
	for _, g := range groups {
		var names []string
		for _, res := range results {
			if g.match(res.Outcome) {
				names = append(names, res.Feature)
			}
		}
		fmt.Fprintf(&b, "%s (%d):", g.title, len(names))
		if len(names) > 0 {
			fmt.Fprintf(&b, " %s", strings.Join(names, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}
