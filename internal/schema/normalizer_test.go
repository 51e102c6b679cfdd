package schema

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecodata/plantpulse/internal/table"
)

func TestFoldHeader(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Temperatura Matriz (C)", "temperatura_matriz_c"},
		{"  Pressão MPa ", "pressao_mpa"},
		{"Máquina", "maquina"},
		{"cycle.time.s", "cycle_time_s"},
		{"already_folded", "already_folded"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FoldHeader(tt.in))
		})
	}
}

func TestCoerceNumeric(t *testing.T) {
	t.Run("plain number", func(t *testing.T) {
		v, coerced := CoerceNumeric("55.5")
		assert.Equal(t, 55.5, v)
		assert.False(t, coerced)
	})

	t.Run("unit suffix stripped", func(t *testing.T) {
		v, coerced := CoerceNumeric("55C")
		assert.Equal(t, 55.0, v)
		assert.True(t, coerced)
	})

	t.Run("sensor error marker", func(t *testing.T) {
		v, coerced := CoerceNumeric("ERR")
		assert.True(t, math.IsNaN(v))
		assert.True(t, coerced)
	})

	t.Run("empty cell", func(t *testing.T) {
		v, coerced := CoerceNumeric("")
		assert.True(t, math.IsNaN(v))
		assert.False(t, coerced)
	})
}

func TestSeverityCode(t *testing.T) {
	assert.Equal(t, SeverityCodeLow, SeverityCode("Baixa"))
	assert.Equal(t, SeverityCodeMedium, SeverityCode("Média"))
	assert.Equal(t, SeverityCodeMedium, SeverityCode("Media"))
	assert.Equal(t, SeverityCodeHigh, SeverityCode("Alta"))
	assert.Equal(t, SeverityCodeHigh, SeverityCode("high"))
	assert.Equal(t, SeverityCodeUnknown, SeverityCode("whatever"))
}

func TestShiftForHour(t *testing.T) {
	assert.Equal(t, ShiftA, ShiftForHour(6))
	assert.Equal(t, ShiftA, ShiftForHour(13))
	assert.Equal(t, ShiftB, ShiftForHour(14))
	assert.Equal(t, ShiftB, ShiftForHour(21))
	assert.Equal(t, ShiftC, ShiftForHour(22))
	assert.Equal(t, ShiftC, ShiftForHour(3))
}

func TestNormalizer_Telemetry(t *testing.T) {
	raw := &table.Table{
		Headers: []string{"Timestamp", "Máquina", "Pressao MPa", "Umidade", "Temperatura Matriz (C)", "Defeito"},
		Rows: [][]string{
			{"2024-11-20 10:00:00", "M1", "12.5", "11.0", "60.2", "0"},
			{"2024-11-20 10:01:00", "M1", "13.1", "10.5", "55C", "1"},
			{"not-a-date", "M1", "12.0", "10.0", "58.0", "0"},
			{"2024-11-20 10:02:00", "M2", "ERR", "9.8", "59.1", "0"},
		},
	}

	n := NewNormalizer(nil)
	records, stats := n.Telemetry(raw)

	require.Len(t, records, 3)
	assert.Equal(t, 1, stats.DroppedTimestamps)
	assert.Equal(t, 4, stats.InitialRows)
	assert.Equal(t, 3, stats.FinalRows)

	assert.Equal(t, "M1", records[0].EquipmentID)
	assert.Equal(t, 12.5, records[0].PressureMPa)
	assert.False(t, records[0].Defect)

	// "55C" coerced to 55, defect flag set
	assert.Equal(t, 55.0, records[1].DieTempC)
	assert.True(t, records[1].Defect)

	// "ERR" becomes NaN, row retained
	assert.True(t, math.IsNaN(records[2].PressureMPa))
}

func TestNormalizer_Production(t *testing.T) {
	raw := &table.Table{
		Headers: []string{"timestamp", "maquina", "pecas_produzidas", "pecas_refugadas", "consumo_kwh"},
		Rows: [][]string{
			{"2024-11-20 07:30:00", "M1", "100", "5", "42.0"},
			{"2024-11-20 15:00:00", "M1", "90", "2", "38.5"},
			{"2024-11-20 23:10:00", "M2", "80", "1", "35.0"},
		},
	}

	n := NewNormalizer(nil)
	records, stats := n.Production(raw)

	require.Len(t, records, 3)
	assert.Zero(t, stats.DroppedTimestamps)
	assert.Contains(t, stats.MissingColumns, "shift")

	// shift derived from the timestamp hour
	assert.Equal(t, ShiftA, records[0].Shift)
	assert.Equal(t, ShiftB, records[1].Shift)
	assert.Equal(t, ShiftC, records[2].Shift)
	assert.Equal(t, 100, records[0].PiecesMade)
	assert.Equal(t, 5, records[0].PiecesScrapped)
}

func TestNormalizer_Events(t *testing.T) {
	raw := &table.Table{
		Headers: []string{"evento_id", "timestamp", "maquina_id", "evento", "severidade", "duracao_min", "origem"},
		Rows: [][]string{
			{"E2", "2024-11-20 11:00:00", "M1", "Parada Mecânica", "Alta", "30", "CLP"},
			{"E1", "2024-11-20 09:00:00", "M1", "Troca de Molde", "Baixa", "10", "Manual"},
			{"E3", "2024-11-20 12:00:00", "M2", "Falha Elétrica", "Desconhecida", "15", "CLP"},
		},
	}

	n := NewNormalizer(nil)
	records, _ := n.Events(raw)

	require.Len(t, records, 3)

	// sorted by timestamp
	assert.Equal(t, "E1", records[0].EventID)
	assert.Equal(t, "E2", records[1].EventID)

	assert.Equal(t, SeverityCodeLow, records[0].SeverityCode)
	assert.Equal(t, SeverityCodeHigh, records[1].SeverityCode)
	// unmapped severity defaults to 0
	assert.Equal(t, SeverityCodeUnknown, records[2].SeverityCode)
	assert.Equal(t, 30.0, records[1].DurationMin)
}

func TestRoundTripTables(t *testing.T) {
	records := []TelemetryRecord{{
		Timestamp:   time.Date(2024, 11, 20, 10, 0, 0, 0, time.UTC),
		EquipmentID: "M1",
		PressureMPa: 12.5,
		HumidityPct: 11,
		DieTempC:    60,
		CycleTimeS:  6,
		Defect:      true,
	}}

	tbl := TelemetryTable(records)
	n := NewNormalizer(nil)
	back, stats := n.Telemetry(tbl)

	require.Len(t, back, 1)
	assert.Empty(t, stats.MissingColumns)
	assert.Equal(t, records[0], back[0])
}
