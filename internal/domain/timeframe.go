package domain

import "time"

// Timeframe is one sampling period for aggregated price bars, named with the
// terminal's conventions (M1, H1, D1, ...).
type Timeframe struct {
	Name   string
	Period time.Duration
}

var timeframes = []Timeframe{
	{Name: "M1", Period: time.Minute},
	{Name: "M5", Period: 5 * time.Minute},
	{Name: "M15", Period: 15 * time.Minute},
	{Name: "M30", Period: 30 * time.Minute},
	{Name: "H1", Period: time.Hour},
	{Name: "H4", Period: 4 * time.Hour},
	{Name: "D1", Period: 24 * time.Hour},
	{Name: "W1", Period: 7 * 24 * time.Hour},
	{Name: "MN1", Period: 30 * 24 * time.Hour}, // nominal month
}

// Timeframes returns the full catalog of known timeframes, smallest first.
func Timeframes() []Timeframe {
	out := make([]Timeframe, len(timeframes))
	copy(out, timeframes)
	return out
}

// TimeframeByName resolves a terminal timeframe name (e.g. "H1").
func TimeframeByName(name string) (Timeframe, bool) {
	for _, tf := range timeframes {
		if tf.Name == name {
			return tf, true
		}
	}
	return Timeframe{}, false
}

// Intraday reports whether the timeframe is shorter than a trading day.
// Daily and larger bars follow the trading calendar rather than the clock.
func (tf Timeframe) Intraday() bool {
	return tf.Period < 24*time.Hour
}
