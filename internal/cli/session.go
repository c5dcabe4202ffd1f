package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ficojok/ZETdev/internal/app"
	"github.com/ficojok/ZETdev/internal/report"
)

var errInputClosed = errors.New("input closed")

// Source selects which data a search prints.
type Source int

const (
	SourceRealtime Source = iota + 1
	SourceStatic
	SourceBoth
)

func (s Source) Realtime() bool { return s == SourceRealtime || s == SourceBoth }
func (s Source) Static() bool   { return s == SourceStatic || s == SourceBoth }

// ParseSource accepts the menu digits (1, 2, 3) and the flag names
// (rt, static, both).
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "rt", "realtime":
		return SourceRealtime, nil
	case "2", "static", "statika":
		return SourceStatic, nil
	case "3", "both", "oba":
		return SourceBoth, nil
	default:
		return 0, fmt.Errorf("unknown source %q (expected rt|static|both)", s)
	}
}

// chooser picks one of n candidates. ok is false when the choice is out of range.
type chooser func(n int) (idx int, ok bool, err error)

func fixedChoice(idx int) chooser {
	return func(n int) (int, bool, error) {
		return idx, idx >= 0 && idx < n, nil
	}
}

// session is one run of the tool: the loaded application, the report printer
// and, for the interactive menu, the prompt reader.
type session struct {
	app *app.Application
	p   *report.Printer
	in  *bufio.Reader
	out io.Writer
}

func newSession(a *app.Application, in io.Reader, out io.Writer) *session {
	if in == nil {
		in = strings.NewReader("")
	}
	return &session{
		app: a,
		p:   report.New(out, a.Location()),
		in:  bufio.NewReader(in),
		out: out,
	}
}

// prompt prints label and reads one line. It returns errInputClosed at EOF
// with nothing read.
func (s *session) prompt(label string) (string, error) {
	fmt.Fprint(s.out, label)
	line, err := s.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		if errors.Is(err, io.EOF) {
			return "", errInputClosed
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptChoice asks for an index, defaulting to 0. Unparsable input also
// selects 0.
func (s *session) promptChoice(n int) (int, bool, error) {
	raw, err := s.prompt("Odaberite indeks (enter za 0): ")
	if err != nil {
		return 0, false, err
	}
	idx, err := strconv.Atoi(raw)
	if err != nil {
		idx = 0
	}
	return idx, idx >= 0 && idx < n, nil
}

// resolveAt builds the schedule query time from a YYYY-MM-DD date and an
// HH:MM time in now's location. An empty date means today and an empty time
// means midnight.
func resolveAt(date, hm string, now time.Time) (time.Time, error) {
	date = strings.TrimSpace(date)
	hm = strings.TrimSpace(hm)
	if date == "" {
		date = now.Format("2006-01-02")
	}
	if hm == "" {
		hm = "00:00"
	}
	at, err := time.ParseInLocation("2006-01-02 15:04", date+" "+hm, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date/time %q %q: %w", date, hm, err)
	}
	return at, nil
}
