/*
Package scheduler re-runs the pipeline on a cron schedule.

Each run takes a single "now" from the injected clock, converted into the
configured zone, and evaluates every tracked event against it. Runs never
overlap: the cron chain skips a tick while the previous run is still
going, and manual runs share the same lock.

The latest snapshot is kept for readers such as the HTTP API.
*/
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"datez/internal/civil"
	appLog "datez/internal/log"
	"datez/internal/model"
	"datez/internal/pipeline"
	"datez/internal/report"
)

// Options configures a Scheduler. Zero values select defaults.
type Options struct {
	// Schedule is a cron spec; defaults to "@every 10s".
	Schedule string
	// Location decides which calendar day "now" falls on; defaults to time.Local.
	Location *time.Location
	// Mode selects the report line format.
	Mode report.Mode
	// Sink receives the report lines of every run. Optional.
	Sink *report.Sink
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// Scheduler owns the tracked events and runs cycles over them.
type Scheduler struct {
	events []model.Event
	opts   Options

	runMu sync.Mutex

	mu     sync.RWMutex
	latest *pipeline.Snapshot
	runs   int

	cron *cron.Cron
}

// New creates a Scheduler. It validates the schedule but does not start it.
func New(events []model.Event, opts Options) (*Scheduler, error) {
	if opts.Schedule == "" {
		opts.Schedule = "@every 10s"
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Mode == "" {
		opts.Mode = report.ModeBoth
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(opts.Location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	s := &Scheduler{
		events: events,
		opts:   opts,
		cron:   c,
	}

	if _, err := c.AddFunc(opts.Schedule, func() { s.RunOnce() }); err != nil {
		return nil, fmt.Errorf("scheduler: invalid schedule %q: %w", opts.Schedule, err)
	}
	return s, nil
}

// Today returns the calendar date of the clock in the configured zone.
func (s *Scheduler) Today() civil.Date {
	return civil.FromTime(s.opts.Now().In(s.opts.Location))
}

// RunOnce runs one cycle against the clock's current date.
func (s *Scheduler) RunOnce() pipeline.Snapshot {
	return s.RunAt(s.Today())
}

// RunAt runs one cycle against now, records it as the latest snapshot and
// writes its lines to the sink.
func (s *Scheduler) RunAt(now civil.Date) pipeline.Snapshot {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	started := time.Now()
	snap := pipeline.RunCycle(now, s.events, s.opts.Mode)
	for _, res := range snap.Results {
		if res.Err != nil {
			appLog.Error("event evaluation failed", res.Err, "id", res.EventID, "label", res.Label, "now", now)
		}
	}

	s.mu.Lock()
	s.latest = &snap
	s.runs++
	s.mu.Unlock()

	if s.opts.Sink != nil {
		if err := s.opts.Sink.Write(snap.Lines); err != nil {
			appLog.Error("report write failed", err)
		}
	}

	appLog.Debug("cycle finished",
		"now", now,
		"events", len(snap.Results),
		"failed", snap.Failed(),
		"took", time.Since(started),
	)
	return snap
}

// Start runs a cycle immediately and then on every scheduled tick.
func (s *Scheduler) Start() {
	s.RunOnce()
	s.cron.Start()
	appLog.Info("scheduler started", "schedule", s.opts.Schedule, "timezone", s.opts.Location.String(), "events", len(s.events))
}

// Stop halts the schedule. The returned context is done once a run in
// progress has finished.
func (s *Scheduler) Stop() context.Context {
	ctx := s.cron.Stop()
	appLog.Info("scheduler stopped")
	return ctx
}

// Latest returns the most recent snapshot, if any run has completed.
func (s *Scheduler) Latest() (pipeline.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return pipeline.Snapshot{}, false
	}
	return *s.latest, true
}

// Runs returns the number of completed cycles.
func (s *Scheduler) Runs() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runs
}

// Events returns the tracked events.
func (s *Scheduler) Events() []model.Event {
	out := make([]model.Event, len(s.events))
	copy(out, s.events)
	return out
}

// cronLogger routes the cron library's logging into the app logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	if err == nil {
		err = errors.New(msg)
	}
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
