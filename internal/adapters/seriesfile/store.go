// Package seriesfile persists candle series as CSV files under a data root,
// one file per (symbol, timeframe) pair.
package seriesfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mt4bridge/internal/domain"
	"mt4bridge/internal/ports"
)

var header = []string{"time", "open", "high", "low", "close", "tick_volume", "spread", "real_volume"}

// Store lays files out as root/SYMBOL/TIMEFRAME/SYMBOL_TIMEFRAME.csv with
// broker suffix characters stripped from the directory and file names.
// Rewrites go through a temp file and rename so a crash mid-write never
// corrupts an existing series.
type Store struct {
	root string
	log  ports.Logger
}

func New(root string, log ports.Logger) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("data root is required: %w", ports.ErrConfigurationError)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating data root %s: %w: %w", root, ports.ErrStoreFailed, err)
	}
	return &Store{root: root, log: log}, nil
}

// sanitizeSymbol maps a broker symbol to a filesystem-safe name. Plus
// suffixes are dropped and dots become underscores, so "US.100+" and
// "US.100" share a series.
func sanitizeSymbol(symbol string) string {
	s := strings.ReplaceAll(symbol, "+", "")
	s = strings.ReplaceAll(s, ".", "_")
	return s
}

func (st *Store) path(symbol, timeframe string) string {
	name := sanitizeSymbol(symbol)
	return filepath.Join(st.root, name, timeframe, fmt.Sprintf("%s_%s.csv", name, timeframe))
}

// Load reads the persisted series. A missing file is an empty series, not an
// error. Malformed rows are skipped with a warning so one bad line does not
// discard years of data.
func (st *Store) Load(symbol, timeframe string) ([]domain.Candle, error) {
	path := st.path(symbol, timeframe)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening series %s: %w: %w", path, ports.ErrStoreFailed, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading series %s: %w: %w", path, ports.ErrStoreFailed, err)
	}

	ctx := context.Background()
	candles := make([]domain.Candle, 0, len(records))
	for i, rec := range records {
		if i == 0 && len(rec) > 0 && rec[0] == "time" {
			continue
		}
		c, err := parseRow(rec)
		if err != nil {
			if st.log != nil {
				st.log.Warn(ctx, "skipping malformed series row", map[string]interface{}{
					"path": path, "line": i + 1, "error": err.Error(),
				})
			}
			continue
		}
		candles = append(candles, c)
	}
	return candles, nil
}

// Store rewrites the whole series atomically in canonical form.
func (st *Store) Store(symbol, timeframe string, candles []domain.Candle) error {
	path := st.path(symbol, timeframe)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating series dir for %s: %w: %w", path, ports.ErrStoreFailed, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".series-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp series file: %w: %w", ports.ErrStoreFailed, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("writing series header: %w: %w", ports.ErrStoreFailed, err)
	}
	for _, c := range candles {
		if err := w.Write(formatRow(c)); err != nil {
			tmp.Close()
			return fmt.Errorf("writing series row: %w: %w", ports.ErrStoreFailed, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing series %s: %w: %w", path, ports.ErrStoreFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp series file: %w: %w", ports.ErrStoreFailed, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing series %s: %w: %w", path, ports.ErrStoreFailed, err)
	}
	return nil
}

// LastTimestamp reports the newest persisted bar time. ok is false for a
// missing or empty series.
func (st *Store) LastTimestamp(symbol, timeframe string) (time.Time, bool, error) {
	candles, err := st.Load(symbol, timeframe)
	if err != nil {
		return time.Time{}, false, err
	}
	if len(candles) == 0 {
		return time.Time{}, false, nil
	}
	last := candles[0].Time
	for _, c := range candles[1:] {
		if c.Time.After(last) {
			last = c.Time
		}
	}
	return last, true, nil
}

func parseRow(rec []string) (domain.Candle, error) {
	if len(rec) != len(header) {
		return domain.Candle{}, fmt.Errorf("expected %d fields, got %d", len(header), len(rec))
	}
	t, err := domain.ParseTimestamp(rec[0])
	if err != nil {
		return domain.Candle{}, err
	}
	c := domain.Candle{Time: t}
	floats := []*float64{&c.Open, &c.High, &c.Low, &c.Close}
	for i, dst := range floats {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
		if err != nil {
			return domain.Candle{}, fmt.Errorf("field %s: %w", header[i+1], err)
		}
		*dst = v
	}
	ints := []*int64{&c.TickVolume, &c.Spread, &c.RealVolume}
	for i, dst := range ints {
		v, err := strconv.ParseInt(strings.TrimSpace(rec[i+5]), 10, 64)
		if err != nil {
			return domain.Candle{}, fmt.Errorf("field %s: %w", header[i+5], err)
		}
		*dst = v
	}
	return c, nil
}

func formatRow(c domain.Candle) []string {
	return []string{
		domain.FormatTimestamp(c.Time),
		strconv.FormatFloat(c.Open, 'f', -1, 64),
		strconv.FormatFloat(c.High, 'f', -1, 64),
		strconv.FormatFloat(c.Low, 'f', -1, 64),
		strconv.FormatFloat(c.Close, 'f', -1, 64),
		strconv.FormatInt(c.TickVolume, 10),
		strconv.FormatInt(c.Spread, 10),
		strconv.FormatInt(c.RealVolume, 10),
	}
}
