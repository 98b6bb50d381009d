package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mt4bridge/internal/domain"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestStore creates a temporary database for testing
func setupTestStore(t *testing.T) (*TickStore, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "mt4bridge-test-*")
	require.NoError(t, err)

	store, err := NewTickStore(Config{
		DBPath: filepath.Join(tmpDir, "ticks.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}
	return store, cleanup
}

func TestTickStore_SaveAndRecent(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	base := time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC)

	ticks := []domain.Tick{
		{Symbol: "EURUSD+", Bid: 1.0891, Ask: 1.0893},
		{Symbol: "EURUSD+", Bid: 1.0892, Ask: 1.0894},
		{Symbol: "US.100+", Bid: 17950.5, Ask: 17952.0},
	}
	for i, tick := range ticks {
		require.NoError(t, store.SaveTick(ctx, tick, base.Add(time.Duration(i)*time.Second)))
	}

	recent, err := store.RecentBySymbol(ctx, "EURUSD+", 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	// Newest first.
	assert.Equal(t, 1.0892, recent[0].Bid)
	assert.Equal(t, 1.0891, recent[1].Bid)

	other, err := store.RecentBySymbol(ctx, "US.100+", 10)
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, 17950.5, other[0].Bid)
}

func TestTickStore_RecentLimit(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	base := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.SaveTick(ctx, domain.Tick{Symbol: "GOLDs+", Bid: float64(i), Ask: float64(i) + 0.5}, base.Add(time.Duration(i)*time.Second)))
	}

	recent, err := store.RecentBySymbol(ctx, "GOLDs+", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 4.0, recent[0].Bid)
}

func TestTickStore_UnknownSymbolIsEmpty(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	recent, err := store.RecentBySymbol(context.Background(), "NOPE", 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestTickStore_RequiresLogger(t *testing.T) {
	_, err := NewTickStore(Config{DBPath: "ignored.db"})
	require.Error(t, err)
}
