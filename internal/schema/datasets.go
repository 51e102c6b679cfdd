// Package schema normalizes raw bronze tables into the canonical typed
// datasets consumed by the rest of the pipeline.
package schema

import (
	"math"
	"strconv"
	"time"

	"github.com/ecodata/plantpulse/internal/table"
)

// Dataset names
const (
	DatasetTelemetry  = "telemetry"
	DatasetProduction = "production"
	DatasetEvents     = "events"
)

// TelemetryRecord is one sensor cycle. Missing numeric readings are NaN.
type TelemetryRecord struct {
	Timestamp   time.Time
	EquipmentID string
	PressureMPa float64
	HumidityPct float64
	DieTempC    float64
	CycleTimeS  float64
	Defect      bool
}

// ProductionRecord is one production report row.
type ProductionRecord struct {
	Timestamp      time.Time
	EquipmentID    string
	PiecesMade     int
	PiecesScrapped int
	Shift          string
	EnergyKWh      float64
}

// EventRecord is one plant event (stoppage, fault, maintenance).
type EventRecord struct {
	EventID      string
	Timestamp    time.Time
	EquipmentID  string
	EventType    string
	Severity     string
	SeverityCode int
	DurationMin  float64
	Origin       string
}

// Severity codes derived from free-text severity.
const (
	SeverityCodeUnknown = 0
	SeverityCodeLow     = 1
	SeverityCodeMedium  = 2
	SeverityCodeHigh    = 3
)

// Shifts derived from the hour of day.
const (
	ShiftA = "A" // 06:00-14:00
	ShiftB = "B" // 14:00-22:00
	ShiftC = "C" // 22:00-06:00
)

// ShiftForHour maps an hour of day onto its shift.
func ShiftForHour(hour int) string {
	switch {
	case hour >= 6 && hour < 14:
		return ShiftA
	case hour >= 14 && hour < 22:
		return ShiftB
	default:
		return ShiftC
	}
}

// Expected canonical columns per dataset, checked at the ingestion
// boundary instead of probing columns inside aggregation code.
var (
	TelemetryColumns = []string{
		"timestamp", "equipment_id", "pressure_mpa", "humidity_pct",
		"die_temp_c", "cycle_time_s", "defect_flag",
	}
	ProductionColumns = []string{
		"timestamp", "equipment_id", "pieces_made", "pieces_scrapped",
		"shift", "energy_kwh",
	}
	EventColumns = []string{
		"event_id", "timestamp", "equipment_id", "event_type",
		"severity", "severity_code", "duration_min", "origin",
	}
)

const timestampLayout = "2006-01-02 15:04:05"

// TelemetryTable serializes records back to a canonical silver table.
func TelemetryTable(records []TelemetryRecord) *table.Table {
	t := &table.Table{Headers: TelemetryColumns}
	for _, r := range records {
		defect := "0"
		if r.Defect {
			defect = "1"
		}
		t.Rows = append(t.Rows, []string{
			r.Timestamp.Format(timestampLayout),
			r.EquipmentID,
			formatFloat(r.PressureMPa),
			formatFloat(r.HumidityPct),
			formatFloat(r.DieTempC),
			formatFloat(r.CycleTimeS),
			defect,
		})
	}
	return t
}

// ProductionTable serializes records back to a canonical silver table.
func ProductionTable(records []ProductionRecord) *table.Table {
	t := &table.Table{Headers: ProductionColumns}
	for _, r := range records {
		t.Rows = append(t.Rows, []string{
			r.Timestamp.Format(timestampLayout),
			r.EquipmentID,
			strconv.Itoa(r.PiecesMade),
			strconv.Itoa(r.PiecesScrapped),
			r.Shift,
			formatFloat(r.EnergyKWh),
		})
	}
	return t
}

// EventTable serializes records back to a canonical silver table.
func EventTable(records []EventRecord) *table.Table {
	t := &table.Table{Headers: EventColumns}
	for _, r := range records {
		t.Rows = append(t.Rows, []string{
			r.EventID,
			r.Timestamp.Format(timestampLayout),
			r.EquipmentID,
			r.EventType,
			r.Severity,
			strconv.Itoa(r.SeverityCode),
			formatFloat(r.DurationMin),
			r.Origin,
		})
	}
	return t
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
