// Package history acquires and reconciles candle series from the terminal:
// freshness decision, one outstanding request at a time, payload sanitation
// and validation, merge into the persisted series and anomaly flagging.
package history

import (
	"context"
	"fmt"
	"time"

	"mt4bridge/internal/domain"
	"mt4bridge/internal/ports"
	"mt4bridge/internal/protocol"
)

// Conn is the synchronous command/reply surface the engine drives. The
// session satisfies it; tests supply a scripted fake.
type Conn interface {
	Send(msg string) bool
	Receive(timeout time.Duration) (string, bool)
}

// Config holds the engine's pacing and range settings.
type Config struct {
	// RequestTimeout bounds the wait for one historical response.
	RequestTimeout time.Duration
	// RequestDelay separates consecutive requests so the terminal is never
	// flooded.
	RequestDelay time.Duration
	// HistoryStart is the earliest date ever requested, YYYY.MM.DD.
	HistoryStart string

	Logger ports.Logger
}

func (cfg *Config) withDefaults() Config {
	out := *cfg
	if out.RequestTimeout <= 0 {
		out.RequestTimeout = 30 * time.Second
	}
	if out.RequestDelay <= 0 {
		out.RequestDelay = 3 * time.Second
	}
	if out.HistoryStart == "" {
		out.HistoryStart = "2015.01.01"
	}
	return out
}

// Request names one series to reconcile. MaxHistory, when positive, clamps
// how far back the request may reach; terminals only serve a limited range
// per timeframe.
type Request struct {
	Symbol     string
	Timeframe  domain.Timeframe
	MaxHistory time.Duration
}

// Result summarizes one series' outcome. Err is nil for fetched and fresh
// series; failures are per series and never abort the batch.
type Result struct {
	Symbol    string
	Timeframe string
	Fresh     bool
	Merged    int
	Err       error
}

// Engine runs single threaded with exactly one outstanding request.
type Engine struct {
	cfg    Config
	conn   Conn
	store  ports.SeriesStore
	policy *Policy
	log    ports.Logger
}

func NewEngine(conn Conn, store ports.SeriesStore, policy *Policy, cfg Config) (*Engine, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for history engine: %w", ports.ErrConfigurationError)
	}
	if conn == nil || store == nil || policy == nil {
		return nil, fmt.Errorf("conn, store and policy are required: %w", ports.ErrConfigurationError)
	}
	return &Engine{
		cfg:    cfg.withDefaults(),
		conn:   conn,
		store:  store,
		policy: policy,
		log:    cfg.Logger,
	}, nil
}

// Fetch reconciles one series: skip when fresh, otherwise request, validate,
// merge and persist. Expected failures come back inside the Result.
func (e *Engine) Fetch(ctx context.Context, req Request) Result {
	res := Result{Symbol: req.Symbol, Timeframe: req.Timeframe.Name}

	last, haveLast, err := e.store.LastTimestamp(req.Symbol, req.Timeframe.Name)
	if err != nil {
		res.Err = fmt.Errorf("reading last timestamp: %w", err)
		return res
	}
	if haveLast && e.policy.Fresh(last, req.Timeframe) {
		res.Fresh = true
		e.log.Debug(ctx, "series is fresh, skipping", map[string]interface{}{
			"symbol": req.Symbol, "timeframe": req.Timeframe.Name, "last": domain.FormatTimestamp(last),
		})
		return res
	}

	start := e.rangeStart(last, haveLast, req)
	end := e.policy.now()
	cmd := protocol.Hist(req.Symbol, req.Timeframe.Name, e.formatBound(start, req.Timeframe), e.formatBound(end, req.Timeframe))

	e.log.Info(ctx, "requesting historical data", map[string]interface{}{
		"symbol": req.Symbol, "timeframe": req.Timeframe.Name, "command": cmd,
	})
	if !e.conn.Send(cmd) {
		res.Err = fmt.Errorf("sending %q: %w", cmd, ports.ErrChannelUnhealthy)
		return res
	}

	raw, ok := e.conn.Receive(e.cfg.RequestTimeout)
	if !ok {
		res.Err = fmt.Errorf("no response for %s %s within %s: %w",
			req.Symbol, req.Timeframe.Name, e.cfg.RequestTimeout, ports.ErrTimeout)
		return res
	}

	payload, err := DecodePayload(raw)
	if err != nil {
		res.Err = err
		return res
	}
	if err := Validate(payload.Candles, req.Timeframe); err != nil {
		res.Err = err
		return res
	}

	existing, err := e.store.Load(req.Symbol, req.Timeframe.Name)
	if err != nil {
		res.Err = fmt.Errorf("loading existing series: %w", err)
		return res
	}
	merged := Merge(existing, payload.Candles)
	if err := e.store.Store(req.Symbol, req.Timeframe.Name, merged); err != nil {
		res.Err = fmt.Errorf("persisting merged series: %w", err)
		return res
	}

	res.Merged = len(merged)
	e.log.Info(ctx, "series reconciled", map[string]interface{}{
		"symbol": req.Symbol, "timeframe": req.Timeframe.Name,
		"received": len(payload.Candles), "total": len(merged),
	})
	return res
}

// FetchAll reconciles the given series sequentially with an inter-request
// delay. Context cancellation stops between series, never mid-persist.
func (e *Engine) FetchAll(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, 0, len(reqs))
	for i, req := range reqs {
		if ctx.Err() != nil {
			break
		}
		res := e.Fetch(ctx, req)
		if res.Err != nil {
			e.log.Error(ctx, res.Err, "series fetch failed", map[string]interface{}{
				"symbol": req.Symbol, "timeframe": req.Timeframe.Name,
			})
		}
		results = append(results, res)

		if i < len(reqs)-1 && !res.Fresh {
			select {
			case <-ctx.Done():
			case <-time.After(e.cfg.RequestDelay):
			}
		}
	}
	return results
}

// rangeStart picks where the request begins: the newest persisted bar for a
// continuation, else the configured history start, clamped to the terminal's
// per-timeframe retention.
func (e *Engine) rangeStart(last time.Time, haveLast bool, req Request) time.Time {
	if haveLast {
		return last
	}
	start, err := domain.ParseTimestamp(e.cfg.HistoryStart)
	if err != nil {
		start = e.policy.now().AddDate(-1, 0, 0)
	}
	if req.MaxHistory > 0 {
		if floor := e.policy.now().Add(-req.MaxHistory); start.Before(floor) {
			start = floor
		}
	}
	return start
}

// formatBound renders a range bound per the timeframe: intraday keeps the
// minute component, daily and larger use the bare date.
func (e *Engine) formatBound(t time.Time, tf domain.Timeframe) string {
	if tf.Intraday() {
		return t.Format(domain.TimestampLayout)
	}
	return t.Format(domain.DateLayout)
}
