package quality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecodata/plantpulse/internal/schema"
)

func tele(ts time.Time, pressure, humidity, temp, cycle float64) schema.TelemetryRecord {
	return schema.TelemetryRecord{
		Timestamp:   ts,
		EquipmentID: "M1",
		PressureMPa: pressure,
		HumidityPct: humidity,
		DieTempC:    temp,
		CycleTimeS:  cycle,
	}
}

func baseTime() time.Time {
	return time.Date(2024, 11, 20, 8, 0, 0, 0, time.UTC)
}

func TestValidator_Telemetry(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)

	t.Run("filters rows outside physical limits", func(t *testing.T) {
		records := []schema.TelemetryRecord{
			tele(baseTime(), 12, 11, 60, 6),
			tele(baseTime().Add(time.Minute), 25, 11, 60, 6),  // pressure too high
			tele(baseTime().Add(2*time.Minute), 12, 11, 95, 6), // temp too high
		}
		valid, report := v.Telemetry(records, &schema.Stats{InitialRows: 3})
		assert.Len(t, valid, 1)
		assert.Equal(t, 2, report.Processing.RemovedInvalid)
		assert.InDelta(t, 66.67, report.Processing.RemovalRatePct, 0.01)

		// retained rows are in range by construction
		for _, r := range valid {
			assert.GreaterOrEqual(t, r.PressureMPa, 8.0)
			assert.LessOrEqual(t, r.PressureMPa, 18.0)
		}
	})

	t.Run("missing column skips its range check", func(t *testing.T) {
		records := []schema.TelemetryRecord{
			tele(baseTime(), 12, 11, 60, 20), // cycle out of range
		}
		norm := &schema.Stats{InitialRows: 1, MissingColumns: []string{"cycle_time_s"}}
		valid, report := v.Telemetry(records, norm)
		assert.Len(t, valid, 1)
		assert.False(t, report.SchemaOK)
		assert.Contains(t, report.MissingColumns, "cycle_time_s")
	})

	t.Run("winsorizes extreme values", func(t *testing.T) {
		// 100 well-behaved pressures plus one extreme spike
		records := make([]schema.TelemetryRecord, 0, 101)
		for i := 0; i < 100; i++ {
			records = append(records, tele(baseTime().Add(time.Duration(i)*time.Minute), 12+float64(i%10)*0.1, 11, 60, 6))
		}
		records = append(records, tele(baseTime().Add(101*time.Minute), 17.9, 11, 60, 6))

		valid, report := v.Telemetry(records, &schema.Stats{InitialRows: len(records)})
		require.Len(t, valid, 101)

		counts := report.Outliers["pressure_mpa"]
		assert.Equal(t, 1, counts.IQR)
		assert.Equal(t, 1, counts.Winsorized)

		// the spike was clipped down to the 99th percentile
		var maxP float64
		for _, r := range valid {
			if r.PressureMPa > maxP {
				maxP = r.PressureMPa
			}
		}
		assert.Less(t, maxP, 17.9)
	})
}

func TestValidator_Production(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)

	prod := func(made, scrapped int) schema.ProductionRecord {
		return schema.ProductionRecord{Timestamp: baseTime(), EquipmentID: "M1", PiecesMade: made, PiecesScrapped: scrapped, Shift: schema.ShiftA}
	}

	t.Run("enforces scrap not exceeding production", func(t *testing.T) {
		records := []schema.ProductionRecord{
			prod(100, 5),
			prod(100, 150), // scrap > production
			prod(-1, 0),    // negative production
			prod(50, -2),   // negative scrap
		}
		valid, report := v.Production(records, &schema.Stats{InitialRows: 4})
		require.Len(t, valid, 1)
		assert.Equal(t, 3, report.Processing.RemovedInvalid)
		for _, r := range valid {
			assert.LessOrEqual(t, r.PiecesScrapped, r.PiecesMade)
		}
	})

	t.Run("counts exact duplicates", func(t *testing.T) {
		records := []schema.ProductionRecord{prod(100, 5), prod(100, 5), prod(90, 3)}
		_, report := v.Production(records, &schema.Stats{InitialRows: 3})
		assert.Equal(t, 1, report.Duplicates.Count)
		assert.InDelta(t, 33.33, report.Duplicates.Pct, 0.01)
	})
}

func TestValidator_Events(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)

	records := []schema.EventRecord{
		{EventID: "E1", Timestamp: baseTime(), EquipmentID: "M1", EventType: "stoppage", SeverityCode: 3, DurationMin: 30},
		{EventID: "E2", Timestamp: baseTime(), EquipmentID: "M1", EventType: "unknown", SeverityCode: 0, DurationMin: 0},
	}
	valid, report := v.Events(records, &schema.Stats{InitialRows: 2})
	assert.Len(t, valid, 2)

	// severity completeness treats unmapped severities as nulls
	assert.Equal(t, 1, report.Completeness["severity"].NullCount)
}
