package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	// TimestampLayout is the canonical text form used in persisted series files
	// and in terminal payloads.
	TimestampLayout = "2006.01.02 15:04"
	// DateLayout is the short form used by daily and larger bars and in HIST
	// request ranges.
	DateLayout = "2006.01.02"
)

// Candle represents a single OHLCV bar as delivered by the terminal.
type Candle struct {
	Time       time.Time // Bar open time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	TickVolume int64
	Spread     int64
	RealVolume int64
}

// ParseTimestamp parses a terminal timestamp in either the canonical minute
// form or the bare date form used by daily and larger bars.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(TimestampLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FormatTimestamp renders t in the canonical series-file form.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}
