package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"mt4bridge/config"
	"mt4bridge/internal/adapters/logger"
	"mt4bridge/internal/adapters/marketcal"
	"mt4bridge/internal/adapters/seriesfile"
	"mt4bridge/internal/adapters/zmqtransport"
	"mt4bridge/internal/domain"
	"mt4bridge/internal/history"
	"mt4bridge/internal/session"
)

// Reconciles the persisted series of every catalog (symbol, timeframe) pair
// against the terminal, one request at a time.
func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Catalog and series store
	catalog := config.LoadCatalog(cfg.CatalogPath, appLogger)
	store, err := seriesfile.New(cfg.DataDir, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize series store")
		log.Fatalf("FATAL: Failed to initialize series store: %v", err)
	}

	// 4. Open the terminal session
	transport, err := zmqtransport.New()
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize transport")
		log.Fatalf("FATAL: Failed to initialize transport: %v", err)
	}
	sess, err := session.Open(transport, session.Config{
		CommandEndpoint: cfg.CommandEndpoint(),
		ReplyEndpoint:   cfg.ReplyEndpoint(),
		FeedEndpoint:    cfg.FeedEndpoint(),
		MaxRetries:      cfg.MaxRetries,
		RetryDelay:      cfg.RetryDelay,
		PollInterval:    cfg.PollInterval,
		JoinTimeout:     cfg.JoinTimeout,
		Logger:          appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to open terminal session")
		log.Fatalf("FATAL: Failed to open terminal session: %v", err)
	}
	defer sess.Shutdown()

	// 5. Build the acquisition engine
	policy := &history.Policy{Cal: marketcal.New(cfg.CalendarMIC)}
	engine, err := history.NewEngine(sess, store, policy, history.Config{
		RequestTimeout: cfg.RequestTimeout,
		RequestDelay:   cfg.RequestDelay,
		HistoryStart:   cfg.HistoryStart.Format(domain.DateLayout),
		Logger:         appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize history engine")
		log.Fatalf("FATAL: Failed to initialize history engine: %v", err)
	}

	// 6. One request per catalog pair
	var reqs []history.Request
	for _, symbol := range catalog.Symbols {
		for _, spec := range catalog.Timeframes {
			tf, ok := spec.Timeframe()
			if !ok {
				continue
			}
			reqs = append(reqs, history.Request{
				Symbol:     symbol,
				Timeframe:  tf,
				MaxHistory: spec.MaxHistory(),
			})
		}
	}

	results := engine.FetchAll(ctx, reqs)

	var fetched, fresh, failed int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
		case r.Fresh:
			fresh++
		default:
			fetched++
		}
	}
	appLogger.Info(ctx, "Historical reconciliation finished", map[string]interface{}{
		"series": len(results), "fetched": fetched, "fresh": fresh, "failed": failed,
	})
	if failed > 0 {
		for _, r := range results {
			if r.Err != nil {
				appLogger.Warn(ctx, "Series failed", map[string]interface{}{
					"symbol": r.Symbol, "timeframe": r.Timeframe, "error": r.Err.Error(),
				})
			}
		}
	}
}
