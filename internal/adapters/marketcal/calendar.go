// Package marketcal answers trading-day questions for the freshness policy.
package marketcal

import (
	"time"

	"github.com/scmhub/calendar"
)

// TradingCalendar wraps an exchange calendar resolved by MIC (ISO 10383).
// When no calendar exists for the MIC it degrades to a Mon-Fri rule, which
// matches forex and CFD symbols well enough for staleness checks.
type TradingCalendar struct {
	cal      *calendar.Calendar
	fallback bool
	loc      *time.Location
}

// New resolves a calendar for the given MIC, falling back to xnys and then
// to the weekday rule.
func New(mic string) *TradingCalendar {
	cal := calendar.GetCalendar(mic)
	if cal == nil {
		cal = calendar.GetCalendar("xnys")
	}
	if cal == nil {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			loc = time.UTC
		}
		return &TradingCalendar{fallback: true, loc: loc}
	}
	return &TradingCalendar{cal: cal, loc: cal.Loc}
}

// IsTradingDay reports whether date falls on a business day of the exchange.
func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	if tc.loc != nil {
		date = date.In(tc.loc)
	}
	if tc.fallback {
		wd := date.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return tc.cal.IsBusinessDay(date)
}
