// Package aggregate folds the trading source's raw position records into the
// hourly buckets of one trading day.
package aggregate

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/guttosm/powerpulse/internal/domain/models"
	"github.com/guttosm/powerpulse/internal/tradingday"
)

// ErrNilTrades is returned when the trade slice itself is absent. An empty
// slice is not nil trades; it fails the period-count check instead.
var ErrNilTrades = errors.New("trades must not be nil")

// Aggregator sums trade periods into per-hour positions labelled with the
// trading day's wall-clock times.
type Aggregator struct {
	cal *tradingday.Calendar
}

// New constructs an Aggregator over the given calendar.
func New(cal *tradingday.Calendar) *Aggregator {
	return &Aggregator{cal: cal}
}

// Aggregate flattens every trade's periods, groups them by period index, and
// sums volumes per group in input order. The result is ordered by ascending
// period and labelled with each period's local wall-clock start time for the
// trading day identified by targetDate.
//
// Validation:
//   - trades must not be nil (ErrNilTrades).
//   - the total number of period records must be a positive multiple of 24;
//     the error message carries the offending count.
//
// Volumes are summed with plain float64 addition and never rounded here;
// rounding to two decimals is the report writer's contract.
func (a *Aggregator) Aggregate(trades []models.Trade, targetDate time.Time) ([]models.Position, error) {
	if trades == nil {
		return nil, ErrNilTrades
	}

	count := 0
	for _, t := range trades {
		count += len(t.Periods)
	}
	if count == 0 || count%24 != 0 {
		return nil, fmt.Errorf("Expected period count to be a multiple of 24, but found %d periods", count)
	}

	sums := make(map[int]float64)
	for _, t := range trades {
		for _, p := range t.Periods {
			sums[p.Period] += p.Volume
		}
	}

	periods := make([]int, 0, len(sums))
	for k := range sums {
		periods = append(periods, k)
	}
	sort.Ints(periods)

	start := a.cal.Start(targetDate)
	positions := make([]models.Position, 0, len(periods))
	for _, k := range periods {
		wallClock, err := a.cal.PeriodToWallClock(start, k)
		if err != nil {
			return nil, err
		}
		positions = append(positions, models.Position{
			LocalTime: a.cal.Format(wallClock),
			Volume:    sums[k],
			Period:    k,
		})
	}

	return positions, nil
}
