package pipeline

import (
	"fmt"

	"datez/internal/civil"
	"datez/internal/model"
)

// Resolve returns the concrete date spec refers to as seen from now.
//
// Fixed specs resolve to their stored date. Recurring specs resolve to the
// next occurrence of their month/day strictly after now, shifted by
// YearOffset years. An anniversary falling on now itself counts as already
// passed and rolls over to next year.
func Resolve(now civil.Date, spec model.DateSpec) (civil.Date, error) {
	switch s := spec.(type) {
	case model.Fixed:
		return s.Date, nil

	case model.Recurring:
		candidate, err := civil.New(now.Year, s.Month, s.Day)
		if err != nil {
			return civil.Date{}, fmt.Errorf("resolve %q: %w", s.Label, err)
		}

		adjust := 1
		if candidate.After(now) {
			adjust = 0
		}

		resolved, err := civil.New(now.Year+s.YearOffset+adjust, s.Month, s.Day)
		if err != nil {
			return civil.Date{}, fmt.Errorf("resolve %q: %w", s.Label, err)
		}
		return resolved, nil
	}

	return civil.Date{}, fmt.Errorf("resolve: unsupported spec %T", spec)
}
