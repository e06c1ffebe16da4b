// Package tradingday models the calendar of an intraday power market: a trading
// day is the 24-hour window anchored at 23:00 local time on the preceding
// calendar day, split into hourly periods 1..24.
//
// Instants, zones, and durations are kept as the distinct types the standard
// library provides (time.Time, *time.Location, time.Duration); period arithmetic
// is physical-duration arithmetic, so periods stay one elapsed hour apart across
// daylight-saving transitions even when their wall-clock labels repeat or skip.
package tradingday

import (
	"errors"
	"fmt"
	"time"

	"github.com/guttosm/powerpulse/internal/logger"
)

// ErrPeriodOutOfRange is returned when a period index falls outside 1..24.
var ErrPeriodOutOfRange = errors.New("period out of range")

// Calendar resolves trading-day boundaries and wall-clock labels in one
// configured zone. Safe for concurrent use; it holds no mutable state.
type Calendar struct {
	loc *time.Location
}

// NewCalendar returns a Calendar for the given zone.
func NewCalendar(loc *time.Location) *Calendar {
	return &Calendar{loc: loc}
}

// Location returns the configured zone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// DateOf truncates an instant to the calendar date it falls on in the
// configured zone (midnight local time).
func (c *Calendar) DateOf(t time.Time) time.Time {
	local := t.In(c.loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc)
}

// Start returns the instant the trading day for the given date begins:
// wall-clock 23:00 on the preceding calendar day in the configured zone.
//
// DST resolution:
//   - If that wall-clock was skipped by a spring-forward gap, the first valid
//     instant after the gap is returned.
//   - If it is ambiguous because of a fall-back overlap, the earlier of the two
//     mappings is returned.
//
// Both cases are logged; on ordinary days the unique strict mapping is returned.
func (c *Calendar) Start(date time.Time) time.Time {
	// The preceding day comes from the date's local calendar fields, not from a
	// local midnight, which a DST gap can swallow.
	y, m, d := date.In(c.loc).Date()
	t := time.Date(y, m, d-1, 23, 0, 0, 0, c.loc)

	// A normalized result with a different wall clock means 23:00 fell inside
	// a spring-forward gap.
	if t.Hour() != 23 || t.Minute() != 0 {
		resolved := c.firstInstantAfterGap(t)
		logger.L().Warn().
			Str("date", c.FormatDate(date)).
			Time("resolved", resolved).
			Msg("trading day start skipped by DST gap, using first instant after the gap")
		return resolved
	}

	// Probe the common transition sizes. If a nearby instant renders to the
	// same wall clock, 23:00 occurs twice and t is one of the two mappings.
	for _, delta := range []time.Duration{-time.Hour, -30 * time.Minute} {
		earlier := t.Add(delta)
		if sameWallMinute(earlier.In(c.loc), t) {
			logger.L().Warn().
				Str("date", c.FormatDate(date)).
				Time("resolved", earlier).
				Msg("trading day start ambiguous in DST overlap, using earlier mapping")
			return earlier
		}
	}
	for _, delta := range []time.Duration{time.Hour, 30 * time.Minute} {
		if sameWallMinute(t.Add(delta).In(c.loc), t) {
			logger.L().Warn().
				Str("date", c.FormatDate(date)).
				Time("resolved", t).
				Msg("trading day start ambiguous in DST overlap, using earlier mapping")
			return t
		}
	}

	return t
}

// PeriodToWallClock returns the zoned instant period k of a trading day starts
// at: start plus k-1 elapsed hours. Crossing a DST transition the elapsed time
// stays exact while the wall-clock hour skips or repeats.
func (c *Calendar) PeriodToWallClock(start time.Time, period int) (time.Time, error) {
	if period < 1 || period > 24 {
		return time.Time{}, fmt.Errorf("%w: %d", ErrPeriodOutOfRange, period)
	}
	return start.Add(time.Duration(period-1) * time.Hour).In(c.loc), nil
}

// Format renders an instant's local wall clock as "HH:MM".
func (c *Calendar) Format(t time.Time) string {
	return t.In(c.loc).Format("15:04")
}

// FormatDate renders an instant's local calendar date as "YYYY-MM-DD".
func (c *Calendar) FormatDate(t time.Time) string {
	return t.In(c.loc).Format("2006-01-02")
}

// ToLocal converts a UTC instant into the configured zone.
func (c *Calendar) ToLocal(utc time.Time) time.Time {
	return utc.In(c.loc)
}

// firstInstantAfterGap locates the end of the DST gap that swallowed the
// requested wall clock. norm is the instant time.Date normalized the invalid
// wall clock to; the transition boundary is the first instant carrying norm's
// UTC offset, found by binary search below it.
func (c *Calendar) firstInstantAfterGap(norm time.Time) time.Time {
	_, offAfter := norm.In(c.loc).Zone()

	lo := norm.Add(-6 * time.Hour)
	if _, off := lo.In(c.loc).Zone(); off == offAfter {
		// No transition in the window; nothing to resolve.
		return norm
	}
	hi := norm
	for hi.Sub(lo) > time.Millisecond {
		mid := lo.Add(hi.Sub(lo) / 2)
		if _, off := mid.In(c.loc).Zone(); off == offAfter {
			hi = mid
		} else {
			lo = mid
		}
	}
	// Transitions land on whole seconds; snap off the search residue.
	return hi.Round(time.Second).In(c.loc)
}

func sameWallMinute(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd && a.Hour() == b.Hour() && a.Minute() == b.Minute()
}
