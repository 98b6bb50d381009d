package history

import (
	"time"

	"mt4bridge/internal/domain"
)

// Anomaly is one candle whose close deviates from the trusted baseline.
type Anomaly struct {
	Time         time.Time
	Close        float64
	Baseline     float64
	DeviationPct float64
}

// ScanAnomalies flags candles whose close deviates from the recent baseline
// by more than thresholdPct percent. The baseline is the mean close over the
// trailing window ending at the newest candle; rows inside the window are
// trusted and never flagged. Flags are advisory, removal is a separate
// operator action.
func ScanAnomalies(candles []domain.Candle, window time.Duration, thresholdPct float64) []Anomaly {
	if len(candles) == 0 || window <= 0 || thresholdPct <= 0 {
		return nil
	}

	newest := candles[0].Time
	for _, c := range candles[1:] {
		if c.Time.After(newest) {
			newest = c.Time
		}
	}
	cutoff := newest.Add(-window)

	var sum float64
	var n int
	for _, c := range candles {
		if !c.Time.Before(cutoff) {
			sum += c.Close
			n++
		}
	}
	if n == 0 || sum == 0 {
		return nil
	}
	baseline := sum / float64(n)

	var out []Anomaly
	for _, c := range candles {
		if !c.Time.Before(cutoff) {
			continue
		}
		dev := (c.Close - baseline) / baseline * 100
		if dev < 0 {
			dev = -dev
		}
		if dev > thresholdPct {
			out = append(out, Anomaly{Time: c.Time, Close: c.Close, Baseline: baseline, DeviationPct: dev})
		}
	}
	return out
}

// RemoveAnomalies drops the flagged candles from the series, preserving order.
func RemoveAnomalies(candles []domain.Candle, anomalies []Anomaly) []domain.Candle {
	if len(anomalies) == 0 {
		return candles
	}
	flagged := make(map[int64]struct{}, len(anomalies))
	for _, a := range anomalies {
		flagged[a.Time.Unix()] = struct{}{}
	}
	kept := make([]domain.Candle, 0, len(candles))
	for _, c := range candles {
		if _, bad := flagged[c.Time.Unix()]; bad {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}
