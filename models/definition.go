package models

import "time"

// DefaultLookbackDays is how far back a series starts when it has no data and
// no fixed genesis.
const DefaultLookbackDays = 30

// Definition is the static configuration of a series for the process lifetime.
type Definition struct {
	Name string
	// Path is the dataset file the series is stored in.
	Path string
	// LookbackDays is only used when the dataset is empty and Genesis is zero.
	LookbackDays int
	// Genesis, when non-zero, is the fixed timestamp (ms) a new dataset
	// starts from.
	Genesis int64
	// Window is the span of a single query.
	Window time.Duration
	// Limit is the page size sent to the exchange.
	Limit int
	// Period is the aggregation interval for statistics endpoints; empty for
	// event based series.
	Period string
}

// GenesisAt returns the timestamp a new dataset starts from: the fixed
// genesis if any, otherwise now minus the lookback window.
func (d Definition) GenesisAt(now time.Time) int64 {
	if d.Genesis > 0 {
		return d.Genesis
	}
	days := d.LookbackDays
	if days <= 0 {
		days = DefaultLookbackDays
	}
	return now.AddDate(0, 0, -days).UnixMilli()
}
