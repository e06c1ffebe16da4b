package models

import "time"

// FailedExtraction is one dead-letter queue entry: an extraction that exhausted
// its retry budget and is waiting to be replayed on the next service start.
//
// All instants are UTC. The target trading date is not stored; it is derived
// from ExtractionTimeUtc in the configured zone, so a zone change between runs
// cannot desynchronize the entry from its date.
type FailedExtraction struct {
	ExtractionTimeUtc time.Time `json:"ExtractionTimeUtc"`
	FailedAtUtc       time.Time `json:"FailedAtUtc"`
	RetryCount        int       `json:"RetryCount"`
	LastError         string    `json:"LastError"`
}

// TargetDate derives the trading date this entry is for, in the given zone.
// The result is date-only (midnight in loc).
func (f FailedExtraction) TargetDate(loc *time.Location) time.Time {
	local := f.ExtractionTimeUtc.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
