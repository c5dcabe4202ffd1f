// Package report renders search results as the plain-text, Croatian-labelled
// blocks the zet CLI prints. Nothing here fetches or computes data.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const ruleWidth = 70

// Theme holds the few styles the report uses. Styles are bound to the output
// writer, so colors are dropped when it is not a terminal.
type Theme struct {
	Title lipgloss.Style
	Faint lipgloss.Style
	Error lipgloss.Style
}

func DefaultTheme(w io.Writer) Theme {
	r := lipgloss.NewRenderer(w)
	return Theme{
		Title: r.NewStyle().Bold(true),
		Faint: r.NewStyle().Faint(true),
		Error: r.NewStyle().Foreground(lipgloss.Color("9")),
	}
}

// Printer writes report blocks to w. Times are shown in loc.
type Printer struct {
	w     io.Writer
	loc   *time.Location
	theme Theme
}

func New(w io.Writer, loc *time.Location) *Printer {
	if loc == nil {
		loc = time.Local
	}
	return &Printer{w: w, loc: loc, theme: DefaultTheme(w)}
}

func (p *Printer) Writer() io.Writer {
	return p.w
}

func (p *Printer) Location() *time.Location {
	return p.loc
}

// Println writes one line.
func (p *Printer) Println(a ...any) {
	fmt.Fprintln(p.w, a...)
}

func (p *Printer) Printf(format string, a ...any) {
	fmt.Fprintf(p.w, format, a...)
}

// Lines writes each line followed by a newline.
func (p *Printer) Lines(lines []string) {
	for _, l := range lines {
		fmt.Fprintln(p.w, l)
	}
}

// Divider prints a blank line and a rule, then the title and a second rule
// when title is not empty.
func (p *Printer) Divider(title string) {
	rule := strings.Repeat("=", ruleWidth)
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, rule)
	if title == "" {
		return
	}
	fmt.Fprintln(p.w, "  "+p.theme.Title.Render(title))
	fmt.Fprintln(p.w, rule)
}

// RealtimeError is the line printed in place of realtime results.
func (p *Printer) RealtimeError(err error) {
	fmt.Fprintln(p.w, p.theme.Error.Render("Ne mogu dohvatiti realtime: "+err.Error()))
}

// InvalidIndex is printed when a list selection is out of range.
func (p *Printer) InvalidIndex() {
	fmt.Fprintln(p.w, "Nevažeći indeks.")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// clock renders t as HH:MM in loc, or "-" for nil.
func clock(t *time.Time, loc *time.Location) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.In(loc).Format("15:04")
}
