package ports

import (
	"context"
	"time"

	"mt4bridge/internal/domain"
)

// SeriesStore persists ordered candle series per (symbol, timeframe) pair.
// Implementations must write atomically: a failed Store leaves the previous
// series intact.
type SeriesStore interface {
	// Load returns the persisted series, ascending by timestamp.
	// A missing series yields an empty slice and no error.
	Load(symbol, timeframe string) ([]domain.Candle, error)
	// Store rewrites the whole series in canonical form.
	Store(symbol, timeframe string, candles []domain.Candle) error
	// LastTimestamp reports the most recent persisted bar time.
	// ok is false when no series exists yet.
	LastTimestamp(symbol, timeframe string) (t time.Time, ok bool, err error)
}

// TickStore persists live feed quotes for later analysis.
type TickStore interface {
	SaveTick(ctx context.Context, tick domain.Tick, receivedAt time.Time) error
	Close() error
}
