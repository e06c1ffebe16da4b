// Package tradesim provides a deterministic stand-in for the external trading
// API so the service can run unattended without upstream connectivity. Volumes
// are derived from the target date, so reruns for the same day reproduce the
// same snapshot.
package tradesim

import (
	"context"
	"time"

	"github.com/guttosm/powerpulse/internal/domain/models"
)

// Source generates a fixed pair of 24-period trades per trading date.
type Source struct{}

// New returns a simulated trade source.
func New() *Source {
	return &Source{}
}

// Fetch returns two synthetic trades for the target date, each carrying
// periods 1..24. The base volume moves with the day of month so consecutive
// days produce visibly different snapshots.
func (s *Source) Fetch(ctx context.Context, targetDate time.Time) ([]models.Trade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := float64(targetDate.Day()%9+1) * 10

	buy := models.Trade{TradeDate: targetDate}
	sell := models.Trade{TradeDate: targetDate}
	for k := 1; k <= 24; k++ {
		buy.Periods = append(buy.Periods, models.TradePeriod{Period: k, Volume: base + float64(k)})
		sell.Periods = append(sell.Periods, models.TradePeriod{Period: k, Volume: -base / 2})
	}
	return []models.Trade{buy, sell}, nil
}
