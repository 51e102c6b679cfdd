package quality

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/ecodata/plantpulse/internal/schema"
	"github.com/ecodata/plantpulse/internal/stats"
)

// Range is an inclusive physical validity range.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Contains reports whether v lies inside the range. NaN never does.
func (r Range) Contains(v float64) bool {
	return !math.IsNaN(v) && v >= r.Min && v <= r.Max
}

// Config holds validation thresholds. Defaults mirror the plant's
// commissioning limits.
type Config struct {
	Pressure        Range   `yaml:"pressure"`
	Humidity        Range   `yaml:"humidity"`
	DieTemp         Range   `yaml:"die_temp"`
	CycleTime       Range   `yaml:"cycle_time"`
	IQRMultiplier   float64 `yaml:"iqr_multiplier"`
	ZScoreThreshold float64 `yaml:"zscore_threshold"`
}

// DefaultConfig returns the standard plant limits.
func DefaultConfig() Config {
	return Config{
		Pressure:        Range{Min: 8, Max: 18},
		Humidity:        Range{Min: 8, Max: 18},
		DieTemp:         Range{Min: 40, Max: 80},
		CycleTime:       Range{Min: 4, Max: 10},
		IQRMultiplier:   1.5,
		ZScoreThreshold: 3.0,
	}
}

// Validator filters datasets to valid rows and reports on data quality.
type Validator struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewValidator creates a validator. Zero thresholds fall back to the
// defaults.
func NewValidator(cfg Config, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.IQRMultiplier == 0 {
		cfg.IQRMultiplier = 1.5
	}
	if cfg.ZScoreThreshold == 0 {
		cfg.ZScoreThreshold = 3.0
	}
	return &Validator{cfg: cfg, logger: logger, now: time.Now}
}

// telemetry metric accessors keep the column loop explicit instead of
// probing field names at each call site.
type telemetryMetric struct {
	column string
	rng    func(cfg Config) Range
	get    func(*schema.TelemetryRecord) float64
	set    func(*schema.TelemetryRecord, float64)
}

var telemetryMetrics = []telemetryMetric{
	{
		column: "pressure_mpa",
		rng:    func(c Config) Range { return c.Pressure },
		get:    func(r *schema.TelemetryRecord) float64 { return r.PressureMPa },
		set:    func(r *schema.TelemetryRecord, v float64) { r.PressureMPa = v },
	},
	{
		column: "humidity_pct",
		rng:    func(c Config) Range { return c.Humidity },
		get:    func(r *schema.TelemetryRecord) float64 { return r.HumidityPct },
		set:    func(r *schema.TelemetryRecord, v float64) { r.HumidityPct = v },
	},
	{
		column: "die_temp_c",
		rng:    func(c Config) Range { return c.DieTemp },
		get:    func(r *schema.TelemetryRecord) float64 { return r.DieTempC },
		set:    func(r *schema.TelemetryRecord, v float64) { r.DieTempC = v },
	},
	{
		column: "cycle_time_s",
		rng:    func(c Config) Range { return c.CycleTime },
		get:    func(r *schema.TelemetryRecord) float64 { return r.CycleTimeS },
		set:    func(r *schema.TelemetryRecord, v float64) { r.CycleTimeS = v },
	},
}

// Telemetry filters telemetry to physically valid rows, winsorizes
// outliers and returns the quality report. Checks for columns the input
// never had are skipped, not failed.
func (v *Validator) Telemetry(records []schema.TelemetryRecord, norm *schema.Stats) ([]schema.TelemetryRecord, *Report) {
	missing := columnSet(norm.MissingColumns)
	initial := len(records)

	valid := make([]schema.TelemetryRecord, 0, len(records))
	for i := range records {
		ok := true
		for _, m := range telemetryMetrics {
			if missing[m.column] {
				continue
			}
			if !m.rng(v.cfg).Contains(m.get(&records[i])) {
				ok = false
				break
			}
		}
		if ok {
			valid = append(valid, records[i])
		}
	}
	removed := initial - len(valid)
	if removed > 0 {
		v.logger.Warn("telemetry rows outside physical limits removed",
			zap.Int("removed", removed), zap.Int("kept", len(valid)))
	}

	report := v.newReport(schema.DatasetTelemetry, norm, initial, len(valid), removed)

	for _, m := range telemetryMetrics {
		if missing[m.column] {
			continue
		}
		values := make([]float64, len(valid))
		for i := range valid {
			values[i] = m.get(&valid[i])
		}
		counts := v.outlierCounts(values)
		if counts.IQR > 0 {
			counts.Winsorized = winsorize(valid, values, m.set)
			v.logger.Warn("outliers winsorized",
				zap.String("column", m.column),
				zap.Int("detected", counts.IQR),
				zap.Int("clipped", counts.Winsorized))
		}
		report.Outliers[m.column] = counts
		report.Completeness[m.column] = completenessOf(values)
	}
	report.Completeness["equipment_id"] = stringCompleteness(len(valid), func(i int) bool {
		return valid[i].EquipmentID == ""
	})
	report.Duplicates = duplicatesOf(len(valid), func(i int) string {
		return fmt.Sprint(valid[i])
	})
	return valid, report
}

// Production enforces the business rules pieces >= 0, scrap >= 0 and
// scrap <= pieces, then reports on the surviving rows.
func (v *Validator) Production(records []schema.ProductionRecord, norm *schema.Stats) ([]schema.ProductionRecord, *Report) {
	initial := len(records)

	valid := make([]schema.ProductionRecord, 0, len(records))
	for _, r := range records {
		if r.PiecesMade < 0 || r.PiecesScrapped < 0 || r.PiecesScrapped > r.PiecesMade {
			continue
		}
		valid = append(valid, r)
	}
	removed := initial - len(valid)
	if removed > 0 {
		v.logger.Warn("production rows violating business rules removed",
			zap.Int("removed", removed))
	}

	report := v.newReport(schema.DatasetProduction, norm, initial, len(valid), removed)

	energy := make([]float64, len(valid))
	for i := range valid {
		energy[i] = valid[i].EnergyKWh
	}
	report.Completeness["energy_kwh"] = completenessOf(energy)
	report.Completeness["shift"] = stringCompleteness(len(valid), func(i int) bool {
		return valid[i].Shift == ""
	})
	report.Outliers["energy_kwh"] = v.outlierCounts(energy)
	report.Duplicates = duplicatesOf(len(valid), func(i int) string {
		return fmt.Sprint(valid[i])
	})
	return valid, report
}

// Events keeps rows with non-negative durations and reports severity
// completeness and duplicate events.
func (v *Validator) Events(records []schema.EventRecord, norm *schema.Stats) ([]schema.EventRecord, *Report) {
	initial := len(records)

	valid := make([]schema.EventRecord, 0, len(records))
	for _, r := range records {
		if r.DurationMin < 0 {
			continue
		}
		valid = append(valid, r)
	}
	removed := initial - len(valid)

	report := v.newReport(schema.DatasetEvents, norm, initial, len(valid), removed)

	durations := make([]float64, len(valid))
	for i := range valid {
		durations[i] = valid[i].DurationMin
	}
	report.Completeness["duration_min"] = completenessOf(durations)
	report.Completeness["severity"] = stringCompleteness(len(valid), func(i int) bool {
		return valid[i].SeverityCode == schema.SeverityCodeUnknown
	})
	report.Outliers["duration_min"] = v.outlierCounts(durations)
	report.Duplicates = duplicatesOf(len(valid), func(i int) string {
		return fmt.Sprint(valid[i])
	})
	return valid, report
}

func (v *Validator) newReport(dataset string, norm *schema.Stats, initial, final, removed int) *Report {
	r := &Report{
		Dataset:        dataset,
		GeneratedAt:    v.now(),
		TotalRecords:   final,
		SchemaOK:       len(norm.MissingColumns) == 0,
		MissingColumns: norm.MissingColumns,
		Completeness:   make(map[string]ColumnCompleteness),
		Outliers:       make(map[string]OutlierCounts),
		Processing: ProcessingStats{
			InitialRecords:    norm.InitialRows,
			FinalRecords:      final,
			RemovedInvalid:    removed,
			DroppedTimestamps: norm.DroppedTimestamps,
			CoercedValues:     norm.CoercedValues,
		},
	}
	if initial > 0 {
		r.Processing.RemovalRatePct = float64(removed) / float64(initial) * 100
	}
	return r
}

func (v *Validator) outlierCounts(values []float64) OutlierCounts {
	var counts OutlierCounts
	lower, upper := stats.IQRBounds(values, v.cfg.IQRMultiplier)
	for _, val := range values {
		if math.IsNaN(val) {
			continue
		}
		if val < lower || val > upper {
			counts.IQR++
		}
	}
	for _, z := range stats.ZScores(values) {
		if !math.IsNaN(z) && math.Abs(z) > v.cfg.ZScoreThreshold {
			counts.ZScore++
		}
	}
	return counts
}

// winsorize clips the metric to its 1st/99th percentiles in place and
// returns how many values changed.
func winsorize(records []schema.TelemetryRecord, values []float64, set func(*schema.TelemetryRecord, float64)) int {
	lower := stats.Quantile(values, 0.01)
	upper := stats.Quantile(values, 0.99)
	var clipped int
	for i, val := range values {
		c := stats.Clip(val, lower, upper)
		if c != val && !math.IsNaN(val) {
			set(&records[i], c)
			clipped++
		}
	}
	return clipped
}

func completenessOf(values []float64) ColumnCompleteness {
	n := len(values)
	var nulls int
	for _, v := range values {
		if math.IsNaN(v) {
			nulls++
		}
	}
	return buildCompleteness(n, nulls)
}

func stringCompleteness(n int, isNull func(i int) bool) ColumnCompleteness {
	var nulls int
	for i := 0; i < n; i++ {
		if isNull(i) {
			nulls++
		}
	}
	return buildCompleteness(n, nulls)
}

func buildCompleteness(n, nulls int) ColumnCompleteness {
	c := ColumnCompleteness{NullCount: nulls}
	if n > 0 {
		c.NullPct = float64(nulls) / float64(n) * 100
		c.Completeness = float64(n-nulls) / float64(n)
	}
	return c
}

func duplicatesOf(n int, key func(i int) string) DuplicateStats {
	seen := make(map[string]bool, n)
	var dups int
	for i := 0; i < n; i++ {
		k := key(i)
		if seen[k] {
			dups++
		}
		seen[k] = true
	}
	d := DuplicateStats{Count: dups}
	if n > 0 {
		d.Pct = float64(dups) / float64(n) * 100
	}
	return d
}

func columnSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
