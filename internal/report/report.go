// Package report renders cycle results as one line of text per event.
//
// Every line starts with the event label in double quotes, followed by a
// colon. The sign of the total day count picks the wording: positive counts
// are "ago", negative counts are "away", zero is "today".
package report

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"datez/internal/model"
)

// Mode selects which derived facts a line shows.
type Mode string

const (
	// ModeDays shows the signed total day count only.
	ModeDays Mode = "days"
	// ModeParts shows the years/weeks/days breakdown only.
	ModeParts Mode = "parts"
	// ModeBoth shows the breakdown followed by the day count.
	ModeBoth Mode = "both"
)

// ParseMode maps a config value to a Mode. Empty or unknown values yield
// ModeBoth and ok=false for unknown ones.
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeDays:
		return ModeDays, true
	case ModeParts:
		return ModeParts, true
	case ModeBoth, "":
		return ModeBoth, true
	default:
		return ModeBoth, false
	}
}

func quote(label string) string {
	return "\"" + label + "\""
}

// relative renders a signed day count: "N days ago", "today" or "N days away".
func relative(n int64) string {
	switch {
	case n > 0:
		return fmt.Sprintf("%d days ago", n)
	case n < 0:
		return fmt.Sprintf("%d days away", -n)
	default:
		return "today"
	}
}

// direction is the trailing word for a breakdown of a signed day count.
func direction(n int64) string {
	if n < 0 {
		return "away"
	}
	return "ago"
}

func breakdown(p model.Parts) string {
	return fmt.Sprintf("%d years %d weeks %d days", p.Years, p.Weeks, p.Days)
}

// TotalDays renders `"label": N days ago`, `"label": today` or
// `"label": N days away`.
func TotalDays(label string, n int64) string {
	return quote(label) + ": " + relative(n)
}

// Parts renders `"label": Y years W weeks D days`.
func Parts(label string, p model.Parts) string {
	return quote(label) + ": " + breakdown(p)
}

// Combined renders `"label": Y years W weeks D days ago (N days ago)`.
func Combined(label string, n int64, p model.Parts) string {
	if n == 0 {
		return TotalDays(label, n)
	}
	return fmt.Sprintf("%s: %s %s (%s)", quote(label), breakdown(p), direction(n), relative(n))
}

// ErrorLine is the placeholder for an event whose pipeline failed.
func ErrorLine(label string, err error) string {
	return quote(label) + ": error: " + err.Error()
}

// Line renders one result according to mode.
func Line(mode Mode, r model.Result) string {
	if r.Err != nil {
		return ErrorLine(r.Label, r.Err)
	}
	switch mode {
	case ModeDays:
		return TotalDays(r.Label, r.TotalDays)
	case ModeParts:
		return Parts(r.Label, r.Parts)
	default:
		return Combined(r.Label, r.TotalDays, r.Parts)
	}
}

// Sink writes report lines to an output. It is safe for concurrent use.
type Sink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewSink(w io.Writer) *Sink {
	return &Sink{w: w}
}

// Write emits each line followed by a newline.
func (s *Sink) Write(lines []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, line := range lines {
		if _, err := io.WriteString(s.w, line+"\n"); err != nil {
			return fmt.Errorf("report: write: %w", err)
		}
	}
	return nil
}
