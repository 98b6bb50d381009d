package history

import (
	"fmt"
	"sort"
	"time"

	"mt4bridge/internal/domain"
	"mt4bridge/internal/ports"
)

// intradayTolerance absorbs terminal clock skew in bar spacing.
const intradayTolerance = time.Minute

// TimeframeMismatchError reports a payload whose sampling interval does not
// match the requested timeframe.
type TimeframeMismatchError struct {
	Requested string
	Detected  string
}

func (e *TimeframeMismatchError) Error() string {
	return fmt.Sprintf("requested timeframe %s but payload looks like %s", e.Requested, e.Detected)
}

func (e *TimeframeMismatchError) Unwrap() error { return ports.ErrTimeframeMismatch }

// DetectTimeframe infers the sampling period of a candle series from the mode
// of its pairwise timestamp deltas. Gaps over nights and weekends are rare
// relative to in-session bars, so the mode is the true period. ok is false
// when fewer than two candles are present or no timeframe matches.
func DetectTimeframe(candles []domain.Candle) (domain.Timeframe, bool) {
	if len(candles) < 2 {
		return domain.Timeframe{}, false
	}

	sorted := make([]domain.Candle, len(candles))
	copy(sorted, candles)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	counts := make(map[time.Duration]int)
	for i := 1; i < len(sorted); i++ {
		counts[sorted[i].Time.Sub(sorted[i-1].Time)]++
	}
	var mode time.Duration
	best := 0
	for d, n := range counts {
		if n > best || (n == best && d < mode) {
			mode, best = d, n
		}
	}

	for _, tf := range domain.Timeframes() {
		if matchesPeriod(mode, tf) {
			return tf, true
		}
	}
	return domain.Timeframe{}, false
}

// matchesPeriod compares a detected delta to a timeframe's nominal period.
// Daily and larger periods follow irregular calendars, so their windows are
// wide; intraday bars get a tight tolerance.
func matchesPeriod(delta time.Duration, tf domain.Timeframe) bool {
	switch tf.Name {
	case "D1":
		return delta >= 23*time.Hour && delta <= 25*time.Hour
	case "W1":
		return delta >= 6*24*time.Hour && delta <= 8*24*time.Hour
	case "MN1":
		return delta >= 28*24*time.Hour && delta <= 31*24*time.Hour
	default:
		diff := delta - tf.Period
		if diff < 0 {
			diff = -diff
		}
		return diff <= intradayTolerance
	}
}

// Validate rejects a payload whose detected timeframe differs from the
// requested one. Series too short to measure pass; there is nothing to
// contradict the request.
func Validate(candles []domain.Candle, requested domain.Timeframe) error {
	detected, ok := DetectTimeframe(candles)
	if !ok {
		if len(candles) < 2 {
			return nil
		}
		return &TimeframeMismatchError{Requested: requested.Name, Detected: "unknown"}
	}
	if detected.Name != requested.Name {
		return &TimeframeMismatchError{Requested: requested.Name, Detected: detected.Name}
	}
	return nil
}
