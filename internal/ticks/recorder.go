// Package ticks consumes live feed frames and records them.
package ticks

import (
	"context"
	"sync/atomic"
	"time"

	"mt4bridge/internal/domain"
	"mt4bridge/internal/ports"
)

// Recorder parses feed frames and persists the resulting quotes. It is wired
// as the session's stream handler, so Record runs on the dispatcher
// goroutine and must stay cheap.
type Recorder struct {
	store ports.TickStore
	log   ports.Logger
	now   func() time.Time

	recorded  atomic.Uint64
	malformed atomic.Uint64
}

func NewRecorder(store ports.TickStore, log ports.Logger) *Recorder {
	return &Recorder{store: store, log: log, now: time.Now}
}

// Record handles one raw feed frame. Malformed frames and storage errors are
// counted and logged, never escalated; one bad frame must not stall the feed.
func (r *Recorder) Record(msg string) {
	ctx := context.Background()

	tick, err := domain.ParseTick(msg)
	if err != nil {
		r.malformed.Add(1)
		r.log.Warn(ctx, "dropping malformed feed frame", map[string]interface{}{
			"frame": msg, "error": err.Error(),
		})
		return
	}

	if err := r.store.SaveTick(ctx, tick, r.now()); err != nil {
		r.log.Error(ctx, err, "tick persistence failed", map[string]interface{}{"symbol": tick.Symbol})
		return
	}
	r.recorded.Add(1)
	r.log.Debug(ctx, "tick recorded", map[string]interface{}{
		"symbol": tick.Symbol, "bid": tick.Bid, "ask": tick.Ask,
	})
}

// Recorded reports how many ticks were persisted since start.
func (r *Recorder) Recorded() uint64 { return r.recorded.Load() }

// Malformed reports how many frames were dropped as unparsable.
func (r *Recorder) Malformed() uint64 { return r.malformed.Load() }
