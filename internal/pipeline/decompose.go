package pipeline

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"datez/internal/civil"
	"datez/internal/model"
)

// TotalDays returns the signed whole-day count of span.
func TotalDays(span model.Span) int64 {
	return span.Days
}

// Decompose breaks |span| into years, then weeks, then days, anchored at
// now. Years are calendar years, so leap days are counted exactly as the
// calendar places them between now and now+|span|.
//
// The parts always reconstruct the magnitude:
//
//	now.AddYears(years).AddDays(7*weeks + days) == now.AddDays(|span|)
func Decompose(now civil.Date, span model.Span) (model.Parts, error) {
	years, rem, err := splitYears(now, span)
	if err != nil {
		return model.Parts{}, err
	}

	weeks := rem / 7
	days := rem % 7
	if weeks > math.MaxInt8 || days > math.MaxInt8 {
		return model.Parts{}, fmt.Errorf("decompose: %w: %d weeks %d days", model.ErrConversion, weeks, days)
	}

	return model.Parts{Years: years, Weeks: int8(weeks), Days: int8(days)}, nil
}

// FractionalYears expresses |span| in years anchored at now: whole years
// plus the leftover days as a fraction of the following anchored year.
// The result is rounded to two decimal places.
func FractionalYears(now civil.Date, span model.Span) (decimal.Decimal, error) {
	years, rem, err := splitYears(now, span)
	if err != nil {
		return decimal.Zero, err
	}

	anchor := now.AddYears(int(years))
	yearLen := now.AddYears(int(years) + 1).DaysSince(anchor)

	frac := decimal.NewFromInt(rem).Div(decimal.NewFromInt(yearLen))
	return decimal.NewFromInt(years).Add(frac).Round(2), nil
}

// splitYears returns the whole calendar years in |span| counted forward
// from now, and the days left over after subtracting them.
func splitYears(now civil.Date, span model.Span) (int64, int64, error) {
	mag := span.Abs().Days
	if mag > MaxSpanDays {
		return 0, 0, fmt.Errorf("decompose: %w: %d days", model.ErrSpanOverflow, mag)
	}

	end := now.AddDays(mag)
	if !end.InRange() {
		return 0, 0, fmt.Errorf("decompose: %w: %s + %d days leaves the calendar range", model.ErrConversion, now, mag)
	}

	// No calendar year is longer than 366 days, so mag/366 never overshoots.
	years := int(mag / 366)
	for !now.AddYears(years + 1).After(end) {
		years++
	}

	anchor := now.AddYears(years)
	return int64(years), end.DaysSince(anchor), nil
}
