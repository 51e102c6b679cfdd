package silver

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecodata/plantpulse/internal/schema"
)

func telemetryFixture() []schema.TelemetryRecord {
	day1 := time.Date(2024, 11, 19, 8, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 11, 20, 9, 30, 0, 0, time.UTC)
	return []schema.TelemetryRecord{
		{Timestamp: day1, EquipmentID: "M1", PressureMPa: 12.5, HumidityPct: 11, DieTempC: 60, CycleTimeS: 6},
		{Timestamp: day1.Add(time.Minute), EquipmentID: "M1", PressureMPa: 12.7, HumidityPct: 11.2, DieTempC: 61, CycleTimeS: 6.1, Defect: true},
		{Timestamp: day2, EquipmentID: "M2", PressureMPa: 13.1, HumidityPct: 10.8, DieTempC: 59, CycleTimeS: 5.9},
	}
}

func TestWriter_Snappy(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, CodecSnappy, nil)
	require.NoError(t, err)
	require.NoError(t, w.WriteTelemetry(telemetryFixture()))

	t.Run("writes flat silver csv", func(t *testing.T) {
		data, err := os.ReadFile(filepath.Join(dir, "telemetry_silver.csv"))
		require.NoError(t, err)
		rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 4) // header + 3 records
		assert.Equal(t, schema.TelemetryColumns, rows[0])
	})

	t.Run("partitions by day", func(t *testing.T) {
		for _, day := range []string{"2024-11-19", "2024-11-20"} {
			path := filepath.Join(dir, "parquet", "telemetry", "data="+day, "part-00000.csv.snappy")
			compressed, err := os.ReadFile(path)
			require.NoError(t, err, "partition %s missing", day)

			raw, err := snappy.Decode(nil, compressed)
			require.NoError(t, err)
			rows, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
			require.NoError(t, err)
			assert.Equal(t, schema.TelemetryColumns, rows[0])
		}
	})

	t.Run("day one holds two rows", func(t *testing.T) {
		path := filepath.Join(dir, "parquet", "telemetry", "data=2024-11-19", "part-00000.csv.snappy")
		compressed, err := os.ReadFile(path)
		require.NoError(t, err)
		raw, err := snappy.Decode(nil, compressed)
		require.NoError(t, err)
		rows, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
		require.NoError(t, err)
		assert.Len(t, rows, 3)
	})
}

func TestWriter_Zstd(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, CodecZstd, nil)
	require.NoError(t, err)
	require.NoError(t, w.WriteTelemetry(telemetryFixture()))

	path := filepath.Join(dir, "parquet", "telemetry", "data=2024-11-19", "part-00000.csv.zst")
	compressed, err := os.ReadFile(path)
	require.NoError(t, err)

	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()
	raw, err := dec.DecodeAll(compressed, nil)
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestWriter_AllDatasets(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "", nil) // codec defaults to snappy
	require.NoError(t, err)

	ts := time.Date(2024, 11, 19, 8, 0, 0, 0, time.UTC)
	require.NoError(t, w.WriteProduction([]schema.ProductionRecord{
		{Timestamp: ts, EquipmentID: "M1", PiecesMade: 100, PiecesScrapped: 2, Shift: schema.ShiftA, EnergyKWh: 40},
	}))
	require.NoError(t, w.WriteEvents([]schema.EventRecord{
		{EventID: "E1", Timestamp: ts, EquipmentID: "M1", EventType: "fault", Severity: "Alta", SeverityCode: 3, DurationMin: 20},
	}))

	assert.FileExists(t, filepath.Join(dir, "production_silver.csv"))
	assert.FileExists(t, filepath.Join(dir, "events_silver.csv"))
	assert.FileExists(t, filepath.Join(dir, "parquet", "production", "data=2024-11-19", "part-00000.csv.snappy"))
	assert.FileExists(t, filepath.Join(dir, "parquet", "events", "data=2024-11-19", "part-00000.csv.snappy"))
}

func TestNewWriter_RejectsUnknownCodec(t *testing.T) {
	_, err := NewWriter(t.TempDir(), "lz4", nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "codec")
}
