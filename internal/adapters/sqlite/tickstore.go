// Package sqlite implements the ports.TickStore interface using SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mt4bridge/internal/domain"
	"mt4bridge/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// TickStore persists live feed quotes.
type TickStore struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite tick store.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewTickStore opens (or creates) the tick database and verifies the schema.
func NewTickStore(cfg Config) (*TickStore, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite tick store: %w", ports.ErrConfigurationError)
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/ticks.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite tick store initialization failed")
		return nil, err
	}

	// WAL mode for better concurrency between the recorder and readers.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite tick store initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite tick store initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; the Go driver benefits from a
	// single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	store := &TickStore{db: db, logger: cfg.Logger}
	if err := store.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize tick schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite tick store initialization failed")
		return nil, err
	}

	cfg.Logger.Info(context.Background(), "SQLite tick store ready", map[string]interface{}{"path": dbPath})
	return store, nil
}

func (s *TickStore) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS ticks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		bid REAL NOT NULL,
		ask REAL NOT NULL,
		received_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ticks_symbol_received_at ON ticks (symbol, received_at);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// SaveTick records one feed quote with its arrival time.
func (s *TickStore) SaveTick(ctx context.Context, tick domain.Tick, receivedAt time.Time) error {
	const query = `INSERT INTO ticks (symbol, bid, ask, received_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, tick.Symbol, tick.Bid, tick.Ask, receivedAt); err != nil {
		return fmt.Errorf("failed to insert tick for symbol %s: %w: %w", tick.Symbol, ports.ErrStoreFailed, err)
	}
	return nil
}

// RecentBySymbol retrieves the most recent ticks for a symbol, newest first.
func (s *TickStore) RecentBySymbol(ctx context.Context, symbol string, limit int) ([]domain.Tick, error) {
	const query = `
	SELECT symbol, bid, ask FROM ticks
	WHERE symbol = ? ORDER BY received_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticks for symbol %s: %w", symbol, err)
	}
	defer rows.Close()

	ticks := make([]domain.Tick, 0, limit)
	for rows.Next() {
		var t domain.Tick
		if err := rows.Scan(&t.Symbol, &t.Bid, &t.Ask); err != nil {
			return nil, fmt.Errorf("failed to scan tick row: %w", err)
		}
		ticks = append(ticks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tick rows: %w", err)
	}
	return ticks, nil
}

// Close closes the database connection.
func (s *TickStore) Close() error {
	if s.db != nil {
		s.logger.Info(context.Background(), "Closing SQLite tick store")
		return s.db.Close()
	}
	return nil
}
