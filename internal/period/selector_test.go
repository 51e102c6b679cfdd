package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecodata/plantpulse/internal/schema"
)

func prodAt(ts time.Time, pieces int) schema.ProductionRecord {
	return schema.ProductionRecord{Timestamp: ts, EquipmentID: "M1", PiecesMade: pieces}
}

// fixedClock pins "now" to a Wednesday.
func fixedClock() func() time.Time {
	now := time.Date(2024, 11, 20, 9, 30, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func newTestSelector() *Selector {
	return NewSelectorAt(DefaultConfig(), fixedClock())
}

func TestSelector_Rolling24(t *testing.T) {
	end := time.Date(2024, 11, 19, 18, 0, 0, 0, time.UTC)
	records := []schema.ProductionRecord{
		prodAt(end.Add(-30*time.Hour), 100),
		prodAt(end, 200),
	}

	w, ok := newTestSelector().SelectMode(records, ModeRolling24)
	require.True(t, ok)
	assert.Equal(t, end, w.End)
	assert.Equal(t, end.Add(-24*time.Hour), w.Start)
	assert.Equal(t, "Last 24 Hours", w.Label)
}

func TestSelector_Yesterday(t *testing.T) {
	w, ok := newTestSelector().SelectMode([]schema.ProductionRecord{
		prodAt(time.Date(2024, 11, 19, 10, 0, 0, 0, time.UTC), 100),
	}, ModeYesterday)
	require.True(t, ok)

	assert.Equal(t, time.Date(2024, 11, 19, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2024, 11, 19, 23, 59, 59, 0, time.UTC), w.End)
}

func TestSelector_Auto(t *testing.T) {
	t.Run("healthy latest day is used as-is", func(t *testing.T) {
		day := time.Date(2024, 11, 19, 0, 0, 0, 0, time.UTC) // Tuesday
		records := []schema.ProductionRecord{
			prodAt(day.Add(8*time.Hour), 400),
			prodAt(day.Add(12*time.Hour), 400),
		}
		w, ok := newTestSelector().SelectMode(records, ModeAuto)
		require.True(t, ok)
		assert.Equal(t, day, w.Start)
		assert.Contains(t, w.Label, "Today")
	})

	t.Run("thin latest day falls back to previous productive day", func(t *testing.T) {
		prevDay := time.Date(2024, 11, 18, 0, 0, 0, 0, time.UTC) // Monday
		thinDay := time.Date(2024, 11, 19, 0, 0, 0, 0, time.UTC)
		records := []schema.ProductionRecord{
			prodAt(prevDay.Add(10*time.Hour), 2000),
			prodAt(thinDay.Add(1*time.Hour), 50), // below the 500 threshold
		}
		w, ok := newTestSelector().SelectMode(records, ModeAuto)
		require.True(t, ok)
		assert.Equal(t, prevDay, w.Start)
		assert.Contains(t, w.Label, "Previous Close")
	})

	t.Run("sunday falls back even with volume", func(t *testing.T) {
		saturday := time.Date(2024, 11, 16, 0, 0, 0, 0, time.UTC)
		sunday := time.Date(2024, 11, 17, 0, 0, 0, 0, time.UTC)
		records := []schema.ProductionRecord{
			prodAt(saturday.Add(10*time.Hour), 3000),
			prodAt(sunday.Add(10*time.Hour), 3000),
		}
		w, ok := newTestSelector().SelectMode(records, ModeAuto)
		require.True(t, ok)
		assert.Equal(t, saturday, w.Start)
	})

	t.Run("zero production everywhere yields full history", func(t *testing.T) {
		first := time.Date(2024, 11, 10, 8, 0, 0, 0, time.UTC)
		last := time.Date(2024, 11, 19, 20, 0, 0, 0, time.UTC)
		records := []schema.ProductionRecord{prodAt(first, 0), prodAt(last, 0)}

		w, ok := newTestSelector().SelectMode(records, ModeAuto)
		require.True(t, ok)
		assert.Equal(t, "Full History", w.Label)
		assert.Equal(t, first, w.Start)
		assert.Equal(t, last, w.End)
	})

	t.Run("lookback exhausts within seven days", func(t *testing.T) {
		// only productive day is 10 days before the thin latest day
		old := time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC)
		thin := time.Date(2024, 11, 19, 0, 0, 0, 0, time.UTC)
		records := []schema.ProductionRecord{
			prodAt(old.Add(10*time.Hour), 2000),
			prodAt(thin.Add(time.Hour), 10),
		}
		w, ok := newTestSelector().SelectMode(records, ModeAuto)
		require.True(t, ok)
		assert.Equal(t, "Full History", w.Label)
	})

	t.Run("idempotent for the same frame", func(t *testing.T) {
		day := time.Date(2024, 11, 19, 0, 0, 0, 0, time.UTC)
		records := []schema.ProductionRecord{prodAt(day.Add(9*time.Hour), 800)}

		s := newTestSelector()
		w1, ok1 := s.SelectMode(records, ModeAuto)
		w2, ok2 := s.SelectMode(records, ModeAuto)
		require.True(t, ok1)
		require.True(t, ok2)
		assert.Equal(t, w1, w2)
	})

	t.Run("empty frame has no window", func(t *testing.T) {
		_, ok := newTestSelector().SelectMode(nil, ModeAuto)
		assert.False(t, ok)
	})
}
