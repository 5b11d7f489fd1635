package ics

import (
	"fmt"

	"github.com/teambition/rrule-go"

	"datez/internal/civil"
	"datez/internal/model"
)

// maxUpcoming caps how many occurrences a single call may expand.
const maxUpcoming = 100

// yearlyRule returns the yearly recurrence of spec's month/day starting the
// day after now, so that an anniversary on now itself is not included.
func yearlyRule(now civil.Date, spec model.Recurring, count int) (*rrule.RRule, error) {
	return rrule.NewRRule(rrule.ROption{
		Freq:       rrule.YEARLY,
		Dtstart:    now.AddDays(1).Time(),
		Bymonth:    []int{int(spec.Month)},
		Bymonthday: []int{spec.Day},
		Count:      count,
	})
}

// Upcoming lists the next n occurrences of spec after now, each shifted by
// spec.YearOffset years. Whenever the resolver succeeds for the same now,
// the first entry equals its result.
//
// A February 29 spec only occurs in leap years; when YearOffset moves such
// an occurrence into a common year it is left out, so fewer than n dates
// may be returned.
func Upcoming(now civil.Date, spec model.Recurring, n int) ([]civil.Date, error) {
	if n <= 0 {
		return nil, nil
	}
	if n > maxUpcoming {
		n = maxUpcoming
	}
	if !civil.ValidMonthDay(spec.Month, spec.Day) {
		return nil, fmt.Errorf("upcoming %q: %w", spec.Label, model.ErrInvalidDate)
	}

	rule, err := yearlyRule(now, spec, n)
	if err != nil {
		return nil, fmt.Errorf("upcoming %q: %w", spec.Label, err)
	}

	out := make([]civil.Date, 0, n)
	for _, t := range rule.All() {
		d, err := civil.New(t.Year()+spec.YearOffset, spec.Month, spec.Day)
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// rruleText is the RRULE value for a yearly recurring spec.
func rruleText(spec model.Recurring) string {
	return fmt.Sprintf("FREQ=YEARLY;BYMONTH=%d;BYMONTHDAY=%d", int(spec.Month), spec.Day)
}
