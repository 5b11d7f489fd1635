package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"gopkg.in/yaml.v3"

	"datez/internal/civil"
	"datez/internal/model"
)

// record is one persisted entry. Two shapes decode into it:
//
//	{"kind": "FixedDate", "label": "Launch", "date": "2020-01-01"}
//	{"FixedDate": {"label": "Launch", "date": "2020-01-01"}}
//
// and likewise for "NextDate", whose date is {"count", "month", "day"}.
type record struct {
	Kind  string  `json:"kind" yaml:"kind"`
	Label string  `json:"label" yaml:"label"`
	Date  rawDate `json:"date" yaml:"date"`

	FixedDate *body `json:"FixedDate" yaml:"FixedDate"`
	NextDate  *body `json:"NextDate" yaml:"NextDate"`
}

type body struct {
	Label string  `json:"label" yaml:"label"`
	Date  rawDate `json:"date" yaml:"date"`
}

// nextDate is the persisted form of a recurring month/day. Count is the
// number of additional years.
type nextDate struct {
	Count int16 `json:"count" yaml:"count"`
	Month int8  `json:"month" yaml:"month"`
	Day   int8  `json:"day" yaml:"day"`
}

// rawDate holds either an ISO date string or a nextDate object, depending
// on the record kind.
type rawDate struct {
	iso  string
	next *nextDate
	set  bool
}

func (d *rawDate) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	d.set = true
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &d.iso)
	}
	var nd nextDate
	if err := json.Unmarshal(b, &nd); err != nil {
		return err
	}
	d.next = &nd
	return nil
}

func (d *rawDate) UnmarshalYAML(n *yaml.Node) error {
	d.set = true
	if n.Kind == yaml.ScalarNode {
		return n.Decode(&d.iso)
	}
	var nd nextDate
	if err := n.Decode(&nd); err != nil {
		return err
	}
	d.next = &nd
	return nil
}

// spec converts the record into a validated DateSpec.
func (r record) spec() (model.DateSpec, error) {
	kind, label, date, err := r.normalize()
	if err != nil {
		return nil, err
	}

	switch kind {
	case model.KindFixed:
		if date.next != nil || date.iso == "" {
			return nil, fmt.Errorf("%w: FixedDate needs an ISO date string", model.ErrParse)
		}
		d, err := civil.Parse(date.iso)
		if err != nil {
			return nil, err
		}
		return model.Fixed{Label: label, Date: d}, nil

	case model.KindRecurring:
		if date.next == nil {
			return nil, fmt.Errorf("%w: NextDate needs a {count, month, day} object", model.ErrParse)
		}
		spec := model.Recurring{
			Label:      label,
			Month:      time.Month(date.next.Month),
			Day:        int(date.next.Day),
			YearOffset: int(date.next.Count),
		}
		if err := Validate(spec); err != nil {
			return nil, err
		}
		return spec, nil
	}

	return nil, fmt.Errorf("%w: unknown kind %q", model.ErrParse, kind)
}

// normalize folds both record shapes into (kind, label, date).
func (r record) normalize() (model.Kind, string, rawDate, error) {
	tagged := 0
	if r.FixedDate != nil {
		tagged++
	}
	if r.NextDate != nil {
		tagged++
	}

	switch {
	case tagged > 1 || (tagged == 1 && (r.Kind != "" || r.Date.set)):
		return "", "", rawDate{}, fmt.Errorf("%w: ambiguous record", model.ErrParse)
	case r.FixedDate != nil:
		return model.KindFixed, r.FixedDate.Label, r.FixedDate.Date, nil
	case r.NextDate != nil:
		return model.KindRecurring, r.NextDate.Label, r.NextDate.Date, nil
	case r.Kind == "":
		return "", "", rawDate{}, fmt.Errorf("%w: record has no kind", model.ErrParse)
	}
	if !r.Date.set {
		return "", "", rawDate{}, fmt.Errorf("%w: record has no date", model.ErrParse)
	}
	return model.Kind(r.Kind), r.Label, r.Date, nil
}

// Validate checks the load-time invariants of a spec.
func Validate(spec model.DateSpec) error {
	switch s := spec.(type) {
	case model.Fixed:
		if _, err := civil.New(s.Date.Year, s.Date.Month, s.Date.Day); err != nil {
			return err
		}
	case model.Recurring:
		if !civil.ValidMonthDay(s.Month, s.Day) {
			return fmt.Errorf("%w: month %d day %d never occurs", model.ErrInvalidDate, int(s.Month), s.Day)
		}
		if s.YearOffset < math.MinInt16 || s.YearOffset > math.MaxInt16 {
			return fmt.Errorf("%w: year offset %d out of range", model.ErrParse, s.YearOffset)
		}
	default:
		return fmt.Errorf("%w: unsupported spec %T", model.ErrParse, spec)
	}
	return nil
}
