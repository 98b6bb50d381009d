package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os/signal"
	"syscall"
	"time"

	"mt4bridge/config"
	"mt4bridge/internal/adapters/logger"
	"mt4bridge/internal/adapters/sqlite"
	"mt4bridge/internal/adapters/zmqtransport"
	"mt4bridge/internal/protocol"
	"mt4bridge/internal/session"
	"mt4bridge/internal/ticks"
)

// The live bridge: connects the three terminal channels, subscribes the
// catalog symbols on the feed and records ticks until interrupted.
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

	// 3. Load the symbol/timeframe catalog
	catalog := config.LoadCatalog(cfg.CatalogPath, appLogger)

	// 4. Initialize the tick store
	tickStore, err := sqlite.NewTickStore(sqlite.Config{DBPath: cfg.TickDBPath, Logger: appLogger})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize tick store")
		log.Fatalf("FATAL: Failed to initialize tick store: %v", err)
	}
	defer func() {
		if err := tickStore.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing tick store")
		}
	}()
	recorder := ticks.NewRecorder(tickStore, appLogger)

	// 5. Open the terminal session
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
		OnStream:        recorder.Record,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to open terminal session")
		log.Fatalf("FATAL: Failed to open terminal session: %v", err)
	}
	defer sess.Shutdown()

	// 6. Subscribe catalog symbols and start the price stream
	for _, symbol := range catalog.Symbols {
		if err := sess.Subscribe(symbol); err != nil {
			appLogger.Warn(ctx, "Failed to subscribe symbol", map[string]interface{}{
				"symbol": symbol, "error": err.Error(),
			})
		}
	}
	if !sess.Send(protocol.TrackPrices()) {
		appLogger.Warn(ctx, "Failed to request price tracking; will retry on next heartbeat")
	}

	// 7. Run until interrupted, heartbeating to keep the command path warm
	heartbeat := time.NewTicker(cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	appLogger.Info(ctx, "Bridge running", map[string]interface{}{
		"symbols":   len(catalog.Symbols),
		"heartbeat": cfg.HeartbeatInterval.String(),
	})
	for {
		select {
		case <-ctx.Done():
			appLogger.Info(context.Background(), "Shutdown signal received", map[string]interface{}{
				"ticksRecorded": recorder.Recorded(),
				"framesDropped": recorder.Malformed(),
			})
			return
		case <-heartbeat.C:
			if !sess.Send(protocol.Heartbeat()) {
				appLogger.Warn(ctx, "Heartbeat not sent, command channel unhealthy", map[string]interface{}{
					"status": sess.Status(),
				})
			}
		}
	}
}
