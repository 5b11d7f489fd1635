package ics

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"datez/internal/model"
	"datez/internal/pipeline"
	"datez/internal/report"
)

const productID = "-//datez//datez//EN"

// Export renders the events of a cycle as an iCalendar document. Each
// event that resolved successfully becomes one all-day VEVENT on its
// resolved date, described by its report line in mode. Recurring specs also carry
// a yearly RRULE so calendar clients show later anniversaries.
//
// stamp is written as DTSTAMP on every VEVENT.
func Export(snap pipeline.Snapshot, events []model.Event, mode report.Mode, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	specs := make(map[int]model.DateSpec, len(events))
	for _, ev := range events {
		specs[ev.ID] = ev.Spec
	}

	for _, res := range snap.Results {
		if res.Err != nil {
			continue
		}

		ve := cal.AddEvent(fmt.Sprintf("datez-%d@datez", res.EventID))
		ve.SetDtStampTime(stamp.UTC())
		ve.SetSummary(res.Label)
		ve.SetDescription(report.Line(mode, res))

		start := res.Resolved.Time()
		ve.SetAllDayStartAt(start)
		ve.SetAllDayEndAt(start.AddDate(0, 0, 1))

		if rec, ok := specs[res.EventID].(model.Recurring); ok {
			ve.AddRrule(rruleText(rec))
		}
	}

	return cal.Serialize()
}
