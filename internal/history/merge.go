package history

import (
	"sort"

	"mt4bridge/internal/domain"
)

// Merge unions an existing series with newly validated candles, keyed by bar
// time with new rows winning ties, and returns the result strictly ascending.
// Merging the same input twice is a no-op.
func Merge(existing, incoming []domain.Candle) []domain.Candle {
	byTime := make(map[int64]domain.Candle, len(existing)+len(incoming))
	for _, c := range existing {
		byTime[c.Time.Unix()] = c
	}
	for _, c := range incoming {
		byTime[c.Time.Unix()] = c
	}

	merged := make([]domain.Candle, 0, len(byTime))
	for _, c := range byTime {
		merged = append(merged, c)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Time.Before(merged[j].Time) })
	return merged
}
