// Package store loads the tracked events from their persisted form.
//
// The set of events is fixed once loaded: there are no operations to add,
// edit or remove events afterwards.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	appLog "datez/internal/log"
	"datez/internal/model"
)

// Format selects the decoder for an events file.
type Format string

const (
	// FormatJSON accepts plain JSON as well as JSONC (comments and
	// trailing commas).
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks a Format from a file extension. Anything that is not
// .yaml or .yml is treated as JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Store holds the tracked events in load order.
type Store struct {
	source string
	events []model.Event
}

// Load reads and decodes the events file at path. Any failure rejects the
// whole file; a partial event set is never returned.
func Load(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: events path is empty", model.ErrIO)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", model.ErrIO, path, err)
	}

	s, err := Decode(data, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.source = path

	appLog.Info("events loaded", "path", path, "count", len(s.events))
	return s, nil
}

// Decode parses an events document in the given format.
func Decode(data []byte, format Format) (*Store, error) {
	var records []record

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("%w: %w", model.ErrParse, err)
		}
	case FormatJSON, "":
		if err := json.Unmarshal(jsonc.ToJSON(data), &records); err != nil {
			return nil, fmt.Errorf("%w: %w", model.ErrParse, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown format %q", model.ErrParse, format)
	}

	specs := make([]model.DateSpec, 0, len(records))
	for i, r := range records {
		spec, err := r.spec()
		if err != nil {
			return nil, &model.RecordError{Index: i, Label: r.label(), Err: err}
		}
		specs = append(specs, spec)
	}

	return New(specs)
}

// New builds a Store directly from specs, validating each one.
func New(specs []model.DateSpec) (*Store, error) {
	events := make([]model.Event, 0, len(specs))
	for i, spec := range specs {
		if spec == nil {
			return nil, &model.RecordError{Index: i, Err: errors.New("nil spec")}
		}
		if err := Validate(spec); err != nil {
			return nil, &model.RecordError{Index: i, Label: spec.DisplayLabel(), Err: err}
		}
		events = append(events, model.Event{ID: i, Spec: spec})
	}
	return &Store{events: events}, nil
}

// With returns a new Store holding s's events followed by specs. It is
// meant for merging sources during startup, before the first cycle.
func (s *Store) With(specs ...model.DateSpec) (*Store, error) {
	all := make([]model.DateSpec, 0, len(s.events)+len(specs))
	for _, ev := range s.events {
		all = append(all, ev.Spec)
	}
	merged, err := New(append(all, specs...))
	if err != nil {
		return nil, err
	}
	merged.source = s.source
	return merged, nil
}

// Events returns the tracked events ordered by ID. The returned slice is a
// copy; specs themselves are immutable values.
func (s *Store) Events() []model.Event {
	out := make([]model.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Event looks up a tracked event by ID.
func (s *Store) Event(id int) (model.Event, bool) {
	if id < 0 || id >= len(s.events) {
		return model.Event{}, false
	}
	return s.events[id], true
}

// Len returns the number of tracked events.
func (s *Store) Len() int { return len(s.events) }

// Source returns the path the store was loaded from, if any.
func (s *Store) Source() string { return s.source }

func (r record) label() string {
	switch {
	case r.FixedDate != nil:
		return r.FixedDate.Label
	case r.NextDate != nil:
		return r.NextDate.Label
	default:
		return r.Label
	}
}
