package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"mt4bridge/internal/domain"
	"mt4bridge/internal/ports"
)

// TimeframeSpec binds a terminal timeframe name to its maximum history range.
// The terminal only serves a limited range per timeframe, so requests are
// clamped accordingly.
type TimeframeSpec struct {
	Name      string `yaml:"name"`
	MaxDays   int    `yaml:"max_days,omitempty"`
	MaxMonths int    `yaml:"max_months,omitempty"`
	MaxYears  int    `yaml:"max_years,omitempty"`
}

// MaxHistory converts the configured limit to a duration. Zero means the
// global history start applies unclamped.
func (s TimeframeSpec) MaxHistory() time.Duration {
	days := s.MaxDays + s.MaxMonths*30 + s.MaxYears*365
	return time.Duration(days) * 24 * time.Hour
}

// Timeframe resolves the spec against the domain timeframe table.
func (s TimeframeSpec) Timeframe() (domain.Timeframe, bool) {
	return domain.TimeframeByName(s.Name)
}

// Catalog is the symbol/timeframe universe the bridge operates on, loaded
// once at startup and passed by reference to collaborators.
type Catalog struct {
	Symbols    []string        `yaml:"symbols"`
	Timeframes []TimeframeSpec `yaml:"timeframes"`
}

// DefaultCatalog returns the built-in fallback universe.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Symbols: []string{"US.100+", "EURUSD+", "GOLDs+"},
		Timeframes: []TimeframeSpec{
			{Name: "M1", MaxDays: 7},
			{Name: "M5", MaxDays: 30},
			{Name: "M15", MaxDays: 90},
			{Name: "H1", MaxYears: 1},
			{Name: "D1", MaxYears: 10},
		},
	}
}

// LoadCatalog reads the catalog file. A missing or malformed file falls back
// to the validated defaults rather than failing startup; entries naming an
// unknown timeframe are dropped.
func LoadCatalog(path string, log ports.Logger) *Catalog {
	ctx := context.Background()

	raw, err := os.ReadFile(path)
	if err != nil {
		log.Warn(ctx, "catalog file not readable, using defaults", map[string]interface{}{"path": path, "error": err.Error()})
		return DefaultCatalog()
	}

	var cat Catalog
	if err := yaml.Unmarshal(raw, &cat); err != nil {
		log.Warn(ctx, "catalog file malformed, using defaults", map[string]interface{}{"path": path, "error": err.Error()})
		return DefaultCatalog()
	}

	if err := cat.validate(); err != nil {
		log.Warn(ctx, "catalog invalid, using defaults", map[string]interface{}{"path": path, "error": err.Error()})
		return DefaultCatalog()
	}

	kept := cat.Timeframes[:0]
	for _, spec := range cat.Timeframes {
		if _, ok := spec.Timeframe(); !ok {
			log.Warn(ctx, "dropping unknown timeframe from catalog", map[string]interface{}{"name": spec.Name})
			continue
		}
		kept = append(kept, spec)
	}
	cat.Timeframes = kept
	if len(cat.Timeframes) == 0 {
		log.Warn(ctx, "catalog has no usable timeframes, using defaults", map[string]interface{}{"path": path})
		return DefaultCatalog()
	}

	log.Info(ctx, "catalog loaded", map[string]interface{}{
		"path":       path,
		"symbols":    len(cat.Symbols),
		"timeframes": len(cat.Timeframes),
	})
	return &cat
}

func (c *Catalog) validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("no symbols configured")
	}
	if len(c.Timeframes) == 0 {
		return fmt.Errorf("no timeframes configured")
	}
	seen := make(map[string]struct{}, len(c.Symbols))
	for _, s := range c.Symbols {
		if s == "" {
			return fmt.Errorf("empty symbol entry")
		}
		if _, dup := seen[s]; dup {
			return fmt.Errorf("duplicate symbol %q", s)
		}
		seen[s] = struct{}{}
	}
	return nil
}
