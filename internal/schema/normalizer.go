package schema

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ecodata/plantpulse/internal/table"
)

// Stats records what normalization did to a dataset. Rows dropped for
// unparsable timestamps are counted here instead of vanishing silently.
type Stats struct {
	Dataset           string   `json:"dataset"`
	InitialRows       int      `json:"initial_rows"`
	FinalRows         int      `json:"final_rows"`
	DroppedTimestamps int      `json:"dropped_timestamps"`
	CoercedValues     int      `json:"coerced_values"`
	MissingColumns    []string `json:"missing_columns,omitempty"`
}

// Normalizer standardizes raw bronze tables into canonical datasets.
type Normalizer struct {
	logger *zap.Logger
}

// NewNormalizer creates a normalizer.
func NewNormalizer(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger}
}

var (
	nonWordRe    = regexp.MustCompile(`[^\w]+`)
	nonNumericRe = regexp.MustCompile(`[^\d.+-]`)
)

// asciiFold maps common Latin diacritics to their ASCII base letter.
var asciiFold = map[rune]rune{
	'á': 'a', 'à': 'a', 'â': 'a', 'ã': 'a', 'ä': 'a',
	'é': 'e', 'è': 'e', 'ê': 'e', 'ë': 'e',
	'í': 'i', 'ì': 'i', 'î': 'i', 'ï': 'i',
	'ó': 'o', 'ò': 'o', 'ô': 'o', 'õ': 'o', 'ö': 'o',
	'ú': 'u', 'ù': 'u', 'û': 'u', 'ü': 'u',
	'ç': 'c', 'ñ': 'n',
}

// FoldHeader lowercases, trims, ASCII-folds and snake-cases a raw
// column name: "Temperatura Matriz (C)" -> "temperatura_matriz_c".
func FoldHeader(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.Map(func(r rune) rune {
		if folded, ok := asciiFold[r]; ok {
			return folded
		}
		return r
	}, s)
	s = nonWordRe.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// Per-dataset rename maps: folded raw header -> canonical column.
// Raw files historically carried Portuguese headers; silver exports and
// re-ingested files carry the canonical names, so both spellings map.
var telemetryRenames = map[string]string{
	"timestamp":            "timestamp",
	"maquina":              "equipment_id",
	"maquina_id":           "equipment_id",
	"isa95_equipamento":    "equipment_id",
	"equipment_id":         "equipment_id",
	"pressao_mpa":          "pressure_mpa",
	"pressure_mpa":         "pressure_mpa",
	"umidade":              "humidity_pct",
	"umidade_pct":          "humidity_pct",
	"humidity_pct":         "humidity_pct",
	"temperatura_matriz_c": "die_temp_c",
	"temp_matriz_c":        "die_temp_c",
	"die_temp_c":           "die_temp_c",
	"ciclo_tempo_s":        "cycle_time_s",
	"cycle_time_s":         "cycle_time_s",
	"defeito":              "defect_flag",
	"flag_defeito":         "defect_flag",
	"defect_flag":          "defect_flag",
}

var productionRenames = map[string]string{
	"timestamp":         "timestamp",
	"maquina":           "equipment_id",
	"maquina_id":        "equipment_id",
	"isa95_equipamento": "equipment_id",
	"equipment_id":      "equipment_id",
	"pecas_produzidas":  "pieces_made",
	"pieces_made":       "pieces_made",
	"pecas_refugadas":   "pieces_scrapped",
	"pieces_scrapped":   "pieces_scrapped",
	"turno":             "shift",
	"shift":             "shift",
	"consumo_kwh":       "energy_kwh",
	"energy_kwh":        "energy_kwh",
}

var eventRenames = map[string]string{
	"evento_id":         "event_id",
	"id_evento":         "event_id",
	"event_id":          "event_id",
	"timestamp":         "timestamp",
	"maquina":           "equipment_id",
	"maquina_id":        "equipment_id",
	"id_maquina":        "equipment_id",
	"isa95_equipamento": "equipment_id",
	"equipment_id":      "equipment_id",
	"evento":            "event_type",
	"descricao":         "event_type",
	"event_type":        "event_type",
	"severidade":        "severity",
	"severidade_texto":  "severity",
	"severity":          "severity",
	"sev_codigo":        "severity_code",
	"severity_code":     "severity_code",
	"duracao_min":       "duration_min",
	"duration_min":      "duration_min",
	"origem":            "origin",
	"sistema_origem":    "origin",
	"origin":            "origin",
}

// severityCodes maps folded free-text severity onto its numeric code.
var severityCodes = map[string]int{
	"baixa": SeverityCodeLow, "low": SeverityCodeLow,
	"media": SeverityCodeMedium, "medium": SeverityCodeMedium,
	"alta": SeverityCodeHigh, "high": SeverityCodeHigh,
}

// SeverityCode maps a free-text severity to 1/2/3, defaulting to 0.
func SeverityCode(severity string) int {
	return severityCodes[FoldHeader(severity)]
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"02/01/2006 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a raw timestamp value. The zero time and false
// are returned when no layout matches.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// CoerceNumeric converts a raw cell to a float. Sensor error markers
// ("ERR") and empty cells become NaN; unit suffixes like "55C" are
// stripped before parsing. The bool reports whether stripping changed
// the value.
func CoerceNumeric(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return math.NaN(), false
	}
	if strings.Contains(strings.ToLower(s), "err") {
		return math.NaN(), true
	}
	stripped := nonNumericRe.ReplaceAllString(s, "")
	coerced := stripped != s
	v, err := strconv.ParseFloat(stripped, 64)
	if err != nil {
		return math.NaN(), coerced
	}
	return v, coerced
}

// fold applies header folding and the dataset rename map to a table.
func fold(tbl *table.Table, renames map[string]string) *table.Table {
	headers := make([]string, len(tbl.Headers))
	for i, h := range tbl.Headers {
		folded := FoldHeader(h)
		if canonical, ok := renames[folded]; ok {
			folded = canonical
		}
		headers[i] = folded
	}
	return &table.Table{Headers: headers, Rows: tbl.Rows}
}

func missingColumns(tbl *table.Table, expected []string) []string {
	var missing []string
	for _, col := range expected {
		if tbl.Index(col) < 0 {
			missing = append(missing, col)
		}
	}
	return missing
}

type rowReader struct {
	tbl     *table.Table
	indexes map[string]int
}

func newRowReader(tbl *table.Table) *rowReader {
	idx := make(map[string]int, len(tbl.Headers))
	for i, h := range tbl.Headers {
		idx[h] = i
	}
	return &rowReader{tbl: tbl, indexes: idx}
}

func (r *rowReader) cell(row []string, col string) string {
	i, ok := r.indexes[col]
	if !ok {
		return ""
	}
	return row[i]
}

// Telemetry normalizes a raw telemetry table.
func (n *Normalizer) Telemetry(raw *table.Table) ([]TelemetryRecord, *Stats) {
	stats := &Stats{Dataset: DatasetTelemetry, InitialRows: raw.Len()}
	tbl := fold(raw, telemetryRenames)
	stats.MissingColumns = missingColumns(tbl, TelemetryColumns)
	rd := newRowReader(tbl)

	records := make([]TelemetryRecord, 0, tbl.Len())
	for _, row := range tbl.Rows {
		ts, ok := ParseTimestamp(rd.cell(row, "timestamp"))
		if !ok {
			stats.DroppedTimestamps++
			continue
		}
		rec := TelemetryRecord{
			Timestamp:   ts,
			EquipmentID: strings.TrimSpace(rd.cell(row, "equipment_id")),
		}
		rec.PressureMPa = n.numeric(rd.cell(row, "pressure_mpa"), stats)
		rec.HumidityPct = n.numeric(rd.cell(row, "humidity_pct"), stats)
		rec.DieTempC = n.numeric(rd.cell(row, "die_temp_c"), stats)
		rec.CycleTimeS = n.numeric(rd.cell(row, "cycle_time_s"), stats)
		if flag := n.numeric(rd.cell(row, "defect_flag"), stats); flag == 1 {
			rec.Defect = true
		}
		records = append(records, rec)
	}
	stats.FinalRows = len(records)
	n.logStats(stats)
	return records, stats
}

// Production normalizes a raw production table. The shift column is
// derived from the timestamp hour when absent.
func (n *Normalizer) Production(raw *table.Table) ([]ProductionRecord, *Stats) {
	stats := &Stats{Dataset: DatasetProduction, InitialRows: raw.Len()}
	tbl := fold(raw, productionRenames)
	stats.MissingColumns = missingColumns(tbl, ProductionColumns)
	rd := newRowReader(tbl)

	records := make([]ProductionRecord, 0, tbl.Len())
	for _, row := range tbl.Rows {
		ts, ok := ParseTimestamp(rd.cell(row, "timestamp"))
		if !ok {
			stats.DroppedTimestamps++
			continue
		}
		rec := ProductionRecord{
			Timestamp:      ts,
			EquipmentID:    strings.TrimSpace(rd.cell(row, "equipment_id")),
			PiecesMade:     n.integer(rd.cell(row, "pieces_made"), stats),
			PiecesScrapped: n.integer(rd.cell(row, "pieces_scrapped"), stats),
			Shift:          strings.TrimSpace(rd.cell(row, "shift")),
			EnergyKWh:      n.numeric(rd.cell(row, "energy_kwh"), stats),
		}
		if rec.Shift == "" {
			rec.Shift = ShiftForHour(ts.Hour())
		}
		records = append(records, rec)
	}
	stats.FinalRows = len(records)
	n.logStats(stats)
	return records, stats
}

// Events normalizes a raw events table, deriving severity_code from the
// free-text severity when the code column is absent or empty.
func (n *Normalizer) Events(raw *table.Table) ([]EventRecord, *Stats) {
	stats := &Stats{Dataset: DatasetEvents, InitialRows: raw.Len()}
	tbl := fold(raw, eventRenames)
	stats.MissingColumns = missingColumns(tbl, EventColumns)
	rd := newRowReader(tbl)

	records := make([]EventRecord, 0, tbl.Len())
	for _, row := range tbl.Rows {
		ts, ok := ParseTimestamp(rd.cell(row, "timestamp"))
		if !ok {
			stats.DroppedTimestamps++
			continue
		}
		rec := EventRecord{
			EventID:     strings.TrimSpace(rd.cell(row, "event_id")),
			Timestamp:   ts,
			EquipmentID: strings.TrimSpace(rd.cell(row, "equipment_id")),
			EventType:   strings.TrimSpace(rd.cell(row, "event_type")),
			Severity:    strings.TrimSpace(rd.cell(row, "severity")),
			Origin:      strings.TrimSpace(rd.cell(row, "origin")),
		}
		if code := n.integer(rd.cell(row, "severity_code"), stats); code > 0 {
			rec.SeverityCode = code
		} else {
			rec.SeverityCode = SeverityCode(rec.Severity)
		}
		if d := n.numeric(rd.cell(row, "duration_min"), stats); !math.IsNaN(d) && d >= 0 {
			rec.DurationMin = d
		}
		records = append(records, rec)
	}
	sortEventsByTime(records)
	stats.FinalRows = len(records)
	n.logStats(stats)
	return records, stats
}

func (n *Normalizer) numeric(raw string, stats *Stats) float64 {
	v, coerced := CoerceNumeric(raw)
	if coerced {
		stats.CoercedValues++
	}
	return v
}

func (n *Normalizer) integer(raw string, stats *Stats) int {
	v := n.numeric(raw, stats)
	if math.IsNaN(v) {
		return 0
	}
	return int(v)
}

func (n *Normalizer) logStats(stats *Stats) {
	fields := []zap.Field{
		zap.String("dataset", stats.Dataset),
		zap.Int("rows", stats.FinalRows),
	}
	if stats.DroppedTimestamps > 0 {
		fields = append(fields, zap.Int("dropped_timestamps", stats.DroppedTimestamps))
	}
	if stats.CoercedValues > 0 {
		fields = append(fields, zap.Int("coerced_values", stats.CoercedValues))
	}
	if len(stats.MissingColumns) > 0 {
		fields = append(fields, zap.Strings("missing_columns", stats.MissingColumns))
		n.logger.Warn("schema mismatch after normalization", fields...)
		return
	}
	n.logger.Info("dataset normalized", fields...)
}

func sortEventsByTime(records []EventRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
}
