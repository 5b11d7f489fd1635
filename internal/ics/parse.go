package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"datez/internal/civil"
	appLog "datez/internal/log"
	"datez/internal/model"
)

// ParseICS turns the VEVENTs of an ICS payload into date specs.
//
//   - A VEVENT without RRULE becomes a Fixed spec on its start date.
//   - A VEVENT with a yearly RRULE becomes a Recurring spec on the month
//     and day of its start date.
//   - Other recurrence frequencies and RECURRENCE-ID overrides have no
//     DateSpec equivalent and are skipped with a log line.
//
// Labels come from SUMMARY, falling back to the UID. loc decides the
// calendar day of DTSTART values pinned to UTC or a TZID; nil means
// time.Local.
func ParseICS(src Source, body []byte, loc *time.Location) ([]model.DateSpec, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty ICS body", model.ErrParse)
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", model.ErrParse, src.ID, err)
	}
	if loc == nil {
		loc = time.Local
	}

	specs := make([]model.DateSpec, 0)
	for _, ve := range cal.Events() {
		spec, err := parseVEvent(ve, loc)
		if errors.Is(err, errSkip) {
			appLog.Debug("ics vevent skipped", "id", src.ID, "reason", err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", src.ID, err)
		}
		specs = append(specs, spec)
	}

	appLog.Info("ics parse completed", "id", src.ID, "url", redactURL(src.URL), "event_count", len(specs))
	return specs, nil
}

var errSkip = errors.New("skipped")

func parseVEvent(ve *ical.VEvent, loc *time.Location) (model.DateSpec, error) {
	label := ""
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		label = p.Value
	}
	if label == "" {
		if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
			label = p.Value
		}
	}

	if ve.GetProperty("RECURRENCE-ID") != nil {
		return nil, fmt.Errorf("%w: override of %q", errSkip, label)
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return nil, fmt.Errorf("%w: %q has no DTSTART", model.ErrParse, label)
	}
	start, err := startDate(ve, dtStart, loc)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", label, err)
	}

	rruleProp := ve.GetProperty(ical.ComponentPropertyRrule)
	if rruleProp == nil || rruleProp.Value == "" {
		return model.Fixed{Label: label, Date: start}, nil
	}

	opt, err := rrule.StrToROption(rruleProp.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: rrule %q: %w", model.ErrParse, label, rruleProp.Value, err)
	}
	if opt.Freq != rrule.YEARLY || (opt.Interval != 0 && opt.Interval != 1) {
		return nil, fmt.Errorf("%w: %q recurs other than yearly", errSkip, label)
	}

	return model.Recurring{Label: label, Month: start.Month, Day: start.Day}, nil
}

// startDate reads the calendar date of DTSTART.
//
// DATE values and floating DATE-TIME values (no Z, no TZID) keep the date
// as written. A DATE-TIME pinned to UTC or a TZID names an instant, so its
// date is the one that instant falls on in loc.
func startDate(ve *ical.VEvent, prop *ical.IANAProperty, loc *time.Location) (civil.Date, error) {
	v := strings.TrimSpace(prop.Value)
	if len(v) < 8 {
		return civil.Date{}, fmt.Errorf("%w: DTSTART %q", model.ErrInvalidDate, v)
	}

	_, hasTZID := prop.ICalParameters["TZID"]
	pinned := strings.Contains(v, "T") && (strings.HasSuffix(v, "Z") || hasTZID)
	if !pinned {
		return civil.Parse(v[0:4] + "-" + v[4:6] + "-" + v[6:8])
	}

	t, err := ve.GetStartAt()
	if err != nil {
		return civil.Date{}, fmt.Errorf("%w: DTSTART %q: %w", model.ErrInvalidDate, v, err)
	}
	return civil.FromTime(t.In(loc)), nil
}
