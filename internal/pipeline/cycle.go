// Package pipeline turns tracked events into per-cycle results.
//
// A cycle runs, for every event and against one shared "now":
//
//	Resolve -> Elapsed -> TotalDays / Decompose -> report line
//
// Every stage is a pure function. Results are rebuilt from scratch each
// cycle, and a failure in one event never stops the others.
package pipeline

import (
	"datez/internal/civil"
	"datez/internal/model"
	"datez/internal/report"
)

// Snapshot is the output of one cycle.
type Snapshot struct {
	Now     civil.Date
	Results []model.Result
	Lines   []string
}

// Failed returns the number of events whose pipeline failed.
func (s Snapshot) Failed() int {
	n := 0
	for _, r := range s.Results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// Evaluate runs every stage for a single event.
func Evaluate(now civil.Date, ev model.Event) model.Result {
	res := model.Result{
		EventID: ev.ID,
		Label:   ev.Spec.DisplayLabel(),
		Kind:    ev.Spec.Kind(),
	}

	resolved, err := Resolve(now, ev.Spec)
	if err != nil {
		res.Err = err
		return res
	}
	res.Resolved = resolved

	span, err := Elapsed(now, resolved)
	if err != nil {
		res.Err = err
		return res
	}
	res.Elapsed = span
	res.TotalDays = TotalDays(span)

	parts, err := Decompose(now, span)
	if err != nil {
		res.Err = err
		return res
	}
	res.Parts = parts

	return res
}

// RunCycle evaluates all events against now and renders one line per event
// in mode. Events are processed in the order given. Failures are recorded
// in the results; reporting them is up to the caller.
func RunCycle(now civil.Date, events []model.Event, mode report.Mode) Snapshot {
	snap := Snapshot{
		Now:     now,
		Results: make([]model.Result, 0, len(events)),
		Lines:   make([]string, 0, len(events)),
	}

	for _, ev := range events {
		res := Evaluate(now, ev)
		snap.Results = append(snap.Results, res)
		snap.Lines = append(snap.Lines, report.Line(mode, res))
	}

	return snap
}
