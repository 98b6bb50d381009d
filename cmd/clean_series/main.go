package main

import (
	"context"
	"flag"
	"log"

	"mt4bridge/config"
	"mt4bridge/internal/adapters/logger"
	"mt4bridge/internal/adapters/seriesfile"
	"mt4bridge/internal/domain"
	"mt4bridge/internal/history"
)

// Scans persisted series for price anomalies against a trailing baseline.
// Reporting only by default; -remove drops the flagged rows and re-scans to
// confirm the series is clean.
func main() {
	remove := flag.Bool("remove", false, "remove flagged rows instead of only reporting them")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Catalog and series store
	catalog := config.LoadCatalog(cfg.CatalogPath, appLogger)
	store, err := seriesfile.New(cfg.DataDir, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize series store")
		log.Fatalf("FATAL: Failed to initialize series store: %v", err)
	}

	var flagged, removed int
	for _, symbol := range catalog.Symbols {
		for _, spec := range catalog.Timeframes {
			candles, err := store.Load(symbol, spec.Name)
			if err != nil {
				appLogger.Warn(ctx, "Skipping unreadable series", map[string]interface{}{
					"symbol": symbol, "timeframe": spec.Name, "error": err.Error(),
				})
				continue
			}
			if len(candles) == 0 {
				continue
			}

			anomalies := history.ScanAnomalies(candles, cfg.AnomalyWindow, cfg.AnomalyThresholdPct)
			flagged += len(anomalies)
			for _, a := range anomalies {
				appLogger.Warn(ctx, "Anomalous close", map[string]interface{}{
					"symbol":    symbol,
					"timeframe": spec.Name,
					"time":      domain.FormatTimestamp(a.Time),
					"close":     a.Close,
					"baseline":  a.Baseline,
					"deviation": a.DeviationPct,
				})
			}
			if len(anomalies) == 0 || !*remove {
				continue
			}

			kept := history.RemoveAnomalies(candles, anomalies)
			if err := store.Store(symbol, spec.Name, kept); err != nil {
				appLogger.Error(ctx, err, "Failed to rewrite cleaned series", map[string]interface{}{
					"symbol": symbol, "timeframe": spec.Name,
				})
				continue
			}
			removed += len(anomalies)

			// Re-scan to confirm removal left no anomalies behind.
			if left := history.ScanAnomalies(kept, cfg.AnomalyWindow, cfg.AnomalyThresholdPct); len(left) > 0 {
				appLogger.Warn(ctx, "Series still anomalous after removal", map[string]interface{}{
					"symbol": symbol, "timeframe": spec.Name, "remaining": len(left),
				})
			}
		}
	}

	appLogger.Info(ctx, "Anomaly scan finished", map[string]interface{}{
		"flagged": flagged, "removed": removed,
	})
}
