package models

import "time"

// Trade represents one intraday position record returned by the trading source.
// The engine treats it as opaque: identity fields are never interpreted, only the
// period volumes are summed.
//
// Fields:
//   - TradeDate: the trading day the record belongs to (date-only, source zone).
//   - Periods:   ordered hourly slots; a well-formed trade carries 24 of them.
type Trade struct {
	TradeDate time.Time
	Periods   []TradePeriod
}

// TradePeriod is a single hourly slot of a trade.
//
// Fields:
//   - Period: hour index within the trading day, 1..24.
//   - Volume: traded volume for that hour; may be negative (short positions).
type TradePeriod struct {
	Period int
	Volume float64
}
