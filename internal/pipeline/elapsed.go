package pipeline

import (
	"fmt"

	"datez/internal/civil"
	"datez/internal/model"
)

// MaxSpanDays bounds the magnitude of any span. It is the number of days
// in the supported civil range.
const MaxSpanDays = 7_304_484

// Elapsed returns the signed span from resolved to now in whole calendar
// days: positive when resolved lies in the past, negative in the future.
func Elapsed(now, resolved civil.Date) (model.Span, error) {
	if !now.InRange() || !resolved.InRange() {
		return model.Span{}, fmt.Errorf("elapsed: %w: %s to %s", model.ErrSpanOverflow, resolved, now)
	}

	days := now.DaysSince(resolved)
	if days > MaxSpanDays || days < -MaxSpanDays {
		return model.Span{}, fmt.Errorf("elapsed: %w: %d days", model.ErrSpanOverflow, days)
	}
	return model.Span{Days: days}, nil
}
