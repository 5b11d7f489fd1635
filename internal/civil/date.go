// Package civil wraps cloud.google.com/go/civil with the pieces datez
// needs on top of it: a bounded year range, signed ISO years, clamped year
// arithmetic and month/day validation independent of any year.
package civil

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gcivil "cloud.google.com/go/civil"
)

// Supported year range. Dates outside of it are rejected as invalid so that
// day counts between any two valid dates always fit comfortably in an int64.
const (
	MinYear = -9999
	MaxYear = 9999
)

// ErrInvalidDate is returned for malformed or impossible calendar dates.
var ErrInvalidDate = errors.New("invalid date")

// Date is a calendar date in the proleptic Gregorian calendar, without
// time-of-day or zone.
type Date gcivil.Date

// New constructs a Date, rejecting impossible combinations such as 2023-02-29.
func New(year int, month time.Month, day int) (Date, error) {
	if year < MinYear || year > MaxYear {
		return Date{}, fmt.Errorf("%w: year %d out of range", ErrInvalidDate, year)
	}
	if month < time.January || month > time.December {
		return Date{}, fmt.Errorf("%w: month %d out of range", ErrInvalidDate, int(month))
	}
	d := Date{Year: year, Month: month, Day: day}
	if !d.civil().IsValid() {
		return Date{}, fmt.Errorf("%w: %s", ErrInvalidDate, d)
	}
	return d, nil
}

// MustNew is New for constants known to be valid. It panics otherwise.
func MustNew(year int, month time.Month, day int) Date {
	d, err := New(year, month, day)
	if err != nil {
		panic(err)
	}
	return d
}

// Parse parses an ISO-8601 calendar date (YYYY-MM-DD). Years before 1 BCE
// carry a leading minus sign, as written by String.
func Parse(s string) (Date, error) {
	sign := 1
	body := s
	if rest, ok := strings.CutPrefix(s, "-"); ok {
		sign = -1
		body = rest
	}
	g, err := gcivil.ParseDate(body)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return New(sign*g.Year, g.Month, g.Day)
}

// FromTime returns the date of t as seen in t's location.
func FromTime(t time.Time) Date {
	return Date(gcivil.DateOf(t))
}

// ValidMonthDay reports whether month/day is a valid date in at least one
// year. February 29 is valid; February 30 is not.
func ValidMonthDay(month time.Month, day int) bool {
	if month < time.January || month > time.December || day < 1 {
		return false
	}
	// 2000 is a leap year, so this is the longest each month can be.
	return day <= DaysIn(2000, month)
}

// DaysIn returns the number of days in the given month of year.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (d Date) civil() gcivil.Date { return gcivil.Date(d) }

// Time returns midnight UTC at the start of d.
func (d Date) Time() time.Time {
	return d.civil().In(time.UTC)
}

func (d Date) IsZero() bool { return d.civil().IsZero() }

// Compare returns -1, 0 or +1 depending on whether d is before, equal to
// or after other.
func (d Date) Compare(other Date) int { return d.civil().Compare(other.civil()) }

func (d Date) Before(other Date) bool { return d.civil().Before(other.civil()) }
func (d Date) After(other Date) bool  { return d.civil().After(other.civil()) }
func (d Date) Equal(other Date) bool  { return d == other }

// DaysSince returns the signed number of days from other to d. It is
// positive when d is after other.
func (d Date) DaysSince(other Date) int64 {
	return int64(d.civil().DaysSince(other.civil()))
}

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int64) Date {
	return Date(d.civil().AddDays(int(n)))
}

// AddYears returns d shifted by n years. The day is clamped to the length
// of the target month, so 2024-02-29 plus one year is 2025-02-28.
func (d Date) AddYears(n int) Date {
	y := d.Year + n
	day := d.Day
	if last := DaysIn(y, d.Month); day > last {
		day = last
	}
	return Date{Year: y, Month: d.Month, Day: day}
}

// InRange reports whether d lies in the supported year range.
func (d Date) InRange() bool {
	return d.Year >= MinYear && d.Year <= MaxYear
}

func (d Date) String() string {
	if d.Year < 0 {
		return fmt.Sprintf("-%04d-%02d-%02d", -d.Year, int(d.Month), d.Day)
	}
	return d.civil().String()
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
