package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"mt4bridge/internal/domain"
)

// weekdayCalendar trades Monday through Friday.
type weekdayCalendar struct{}

func (weekdayCalendar) IsTradingDay(date time.Time) bool {
	wd := date.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func policyAt(now time.Time) *Policy {
	return &Policy{Cal: weekdayCalendar{}, Now: func() time.Time { return now }}
}

func TestLastTradingDay(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "weekday after close counts today",
			now:  time.Date(2024, 3, 13, 22, 30, 0, 0, time.UTC), // Wednesday
			want: time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "weekday before close carries back one day",
			now:  time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "monday morning carries back to friday",
			now:  time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "saturday resolves to friday",
			now:  time.Date(2024, 3, 16, 12, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "sunday resolves to friday",
			now:  time.Date(2024, 3, 17, 12, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policyAt(tt.now).LastTradingDay()
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
		})
	}
}

func TestFresh(t *testing.T) {
	h1, _ := domain.TimeframeByName("H1")
	d1, _ := domain.TimeframeByName("D1")

	t.Run("daily bar on the last trading day is fresh", func(t *testing.T) {
		now := time.Date(2024, 3, 16, 12, 0, 0, 0, time.UTC) // Saturday
		last := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC) // Friday bar
		assert.True(t, policyAt(now).Fresh(last, d1))
	})

	t.Run("daily bar older than the last trading day is stale", func(t *testing.T) {
		now := time.Date(2024, 3, 16, 12, 0, 0, 0, time.UTC)
		last := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC) // Thursday bar
		assert.False(t, policyAt(now).Fresh(last, d1))
	})

	t.Run("intraday bar keeping up during trading is fresh", func(t *testing.T) {
		now := time.Date(2024, 3, 13, 14, 0, 0, 0, time.UTC)
		last := now.Add(-2 * time.Hour) // within 3x the period
		assert.True(t, policyAt(now).Fresh(last, h1))
	})

	t.Run("intraday bar lagging during trading is stale", func(t *testing.T) {
		now := time.Date(2024, 3, 13, 14, 0, 0, 0, time.UTC)
		last := now.Add(-5 * time.Hour)
		assert.False(t, policyAt(now).Fresh(last, h1))
	})

	t.Run("intraday bar from friday is fresh over the weekend", func(t *testing.T) {
		now := time.Date(2024, 3, 16, 12, 0, 0, 0, time.UTC)  // Saturday
		last := time.Date(2024, 3, 15, 21, 0, 0, 0, time.UTC) // late Friday
		assert.True(t, policyAt(now).Fresh(last, h1))
	})

	t.Run("intraday bar from before friday is stale over the weekend", func(t *testing.T) {
		now := time.Date(2024, 3, 16, 12, 0, 0, 0, time.UTC)
		last := time.Date(2024, 3, 14, 21, 0, 0, 0, time.UTC) // Thursday
		assert.False(t, policyAt(now).Fresh(last, h1))
	})
}
