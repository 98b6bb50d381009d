package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mt4bridge/internal/domain"
)

func TestMerge(t *testing.T) {
	base := time.Date(2020, 1, 6, 9, 0, 0, 0, time.UTC)
	c := func(offset time.Duration, close float64) domain.Candle {
		return domain.Candle{Time: base.Add(offset), Close: close}
	}

	t.Run("union sorted ascending", func(t *testing.T) {
		existing := []domain.Candle{c(2*time.Hour, 1.2), c(0, 1.0)}
		incoming := []domain.Candle{c(time.Hour, 1.1), c(3*time.Hour, 1.3)}

		merged := Merge(existing, incoming)
		require.Len(t, merged, 4)
		for i := 1; i < len(merged); i++ {
			assert.True(t, merged[i-1].Time.Before(merged[i].Time), "not strictly ascending at %d", i)
		}
	})

	t.Run("new rows win ties", func(t *testing.T) {
		existing := []domain.Candle{c(0, 1.0)}
		incoming := []domain.Candle{c(0, 9.9)}

		merged := Merge(existing, incoming)
		require.Len(t, merged, 1)
		assert.Equal(t, 9.9, merged[0].Close)
	})

	t.Run("idempotent", func(t *testing.T) {
		existing := []domain.Candle{c(0, 1.0), c(time.Hour, 1.1)}
		incoming := []domain.Candle{c(time.Hour, 1.1), c(2*time.Hour, 1.2)}

		once := Merge(existing, incoming)
		twice := Merge(once, incoming)
		assert.Equal(t, once, twice)
	})

	t.Run("empty inputs", func(t *testing.T) {
		assert.Empty(t, Merge(nil, nil))
		assert.Len(t, Merge(nil, []domain.Candle{c(0, 1.0)}), 1)
		assert.Len(t, Merge([]domain.Candle{c(0, 1.0)}, nil), 1)
	})
}
