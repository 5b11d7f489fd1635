package model

import (
	"time"

	"datez/internal/civil"
)

// Kind discriminates the two shapes of DateSpec.
type Kind string

const (
	KindFixed     Kind = "FixedDate"
	KindRecurring Kind = "NextDate"
)

// DateSpec is the immutable input specification of one tracked event.
// It is either a Fixed or a Recurring value.
type DateSpec interface {
	Kind() Kind
	DisplayLabel() string
}

// Fixed refers to one specific calendar date.
type Fixed struct {
	Label string
	Date  civil.Date
}

func (Fixed) Kind() Kind             { return KindFixed }
func (f Fixed) DisplayLabel() string { return f.Label }

// Recurring refers to the next occurrence of Month/Day, shifted by
// YearOffset additional years.
type Recurring struct {
	Label      string
	Month      time.Month
	Day        int
	YearOffset int
}

func (Recurring) Kind() Kind             { return KindRecurring }
func (r Recurring) DisplayLabel() string { return r.Label }

// Span is a signed whole-day duration measured from an event's resolved
// date to "now". Positive means the event lies in the past.
type Span struct {
	Days int64
}

// Abs returns the magnitude of s.
func (s Span) Abs() Span {
	if s.Days < 0 {
		return Span{Days: -s.Days}
	}
	return s
}

// Parts is the magnitude-only breakdown of a Span into years, weeks and
// days, each greedily maximal.
type Parts struct {
	Years int64
	Weeks int8
	Days  int8
}

// Event is one tracked event: its immutable spec plus the fields derived
// from it during the current cycle.
type Event struct {
	// ID is the stable index of the event in load order.
	ID   int
	Spec DateSpec
}

// Result holds everything derived for one Event in one cycle. A Result is
// built from scratch every cycle; nothing is carried over.
type Result struct {
	EventID int
	Label   string
	Kind    Kind

	Resolved  civil.Date
	Elapsed   Span
	TotalDays int64
	Parts     Parts

	// Err is set when any pipeline stage failed for this event. The other
	// derived fields are then meaningless.
	Err error
}

// OK reports whether the pipeline completed for this event.
func (r Result) OK() bool { return r.Err == nil }
