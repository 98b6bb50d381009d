package history

import (
	"time"

	"mt4bridge/internal/domain"
)

// terminal daily bars close at 21:55 server time; before that the current
// day's bar is still forming and the last complete bar belongs to the
// previous trading day.
const (
	closeHour   = 21
	closeMinute = 55
)

// staleMultiple is how many of the timeframe's own periods an intraday
// series may lag during active trading before it counts as stale.
const staleMultiple = 3

// Calendar answers trading-day questions for the freshness policy.
type Calendar interface {
	IsTradingDay(date time.Time) bool
}

// Policy decides whether a persisted series still covers the most recent
// completed period. One explicit calendar rules all carry-forward cases:
// weekends, holidays and the pre-close window all resolve through
// LastTradingDay rather than per-case heuristics.
type Policy struct {
	Cal Calendar
	Now func() time.Time // defaults to time.Now
}

func (p *Policy) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// LastTradingDay returns the most recent day with a completed daily bar,
// at midnight. Today counts only once past the terminal close.
func (p *Policy) LastTradingDay() time.Time {
	now := p.now()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	beforeClose := now.Hour() < closeHour || (now.Hour() == closeHour && now.Minute() < closeMinute)
	if beforeClose || !p.Cal.IsTradingDay(day) {
		day = day.AddDate(0, 0, -1)
	}
	for !p.Cal.IsTradingDay(day) {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

// Fresh reports whether a series whose newest bar opened at last still covers
// the most recent completed period for tf.
//
// Daily and larger bars are fresh when the newest bar is on or after the last
// trading day. Intraday bars additionally must not lag more than a small
// multiple of their own period while the market is trading; outside trading
// days the carry-forward rule alone applies.
func (p *Policy) Fresh(last time.Time, tf domain.Timeframe) bool {
	now := p.now()
	lastDay := p.LastTradingDay()
	lastBarDay := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, last.Location())

	if lastBarDay.Before(lastDay) {
		return false
	}
	if !tf.Intraday() {
		return true
	}
	if !p.Cal.IsTradingDay(now) {
		return true
	}
	return now.Sub(last) <= staleMultiple*tf.Period
}
