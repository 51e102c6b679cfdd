package alerting

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/ecodata/plantpulse/internal/kpi"
	"github.com/ecodata/plantpulse/internal/quality"
	"github.com/ecodata/plantpulse/internal/stats"
)

// Config tunes the detection rules.
type Config struct {
	// Window is the rolling window for control limits.
	Window int `yaml:"window"`
	// Sigma is the control-limit multiplier k in mean ± k·std.
	Sigma float64 `yaml:"sigma"`
	// Persistence is how many consecutive deviating samples make a run.
	Persistence int `yaml:"persistence"`
	// TrendWindow is how many trailing points the trend rule correlates.
	TrendWindow int `yaml:"trend_window"`
	// TrendThreshold is the |Pearson r| above which a trend fires.
	TrendThreshold float64 `yaml:"trend_threshold"`
	// Cooldown suppresses repeat alerts per (equipment, metric, rule).
	Cooldown time.Duration `yaml:"cooldown"`

	// Hard safety bounds, tighter than the physical plausibility ranges.
	SafetyPressureMPa quality.Range `yaml:"safety_pressure_mpa"`
	SafetyDieTempC    quality.Range `yaml:"safety_die_temp_c"`
	SafetyHumidityPct quality.Range `yaml:"safety_humidity_pct"`
}

// DefaultConfig returns the standard detection parameters.
func DefaultConfig() Config {
	return Config{
		Window:            30,
		Sigma:             3,
		Persistence:       3,
		TrendWindow:       7,
		TrendThreshold:    0.7,
		Cooldown:          15 * time.Minute,
		SafetyPressureMPa: quality.Range{Min: 10, Max: 16},
		SafetyDieTempC:    quality.Range{Min: 50, Max: 70},
		SafetyHumidityPct: quality.Range{Min: 9, Max: 15},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.Sigma <= 0 {
		c.Sigma = d.Sigma
	}
	if c.Persistence <= 0 {
		c.Persistence = d.Persistence
	}
	if c.TrendWindow <= 0 {
		c.TrendWindow = d.TrendWindow
	}
	if c.TrendThreshold <= 0 {
		c.TrendThreshold = d.TrendThreshold
	}
	if c.Cooldown <= 0 {
		c.Cooldown = d.Cooldown
	}
	empty := quality.Range{}
	if c.SafetyPressureMPa == empty {
		c.SafetyPressureMPa = d.SafetyPressureMPa
	}
	if c.SafetyDieTempC == empty {
		c.SafetyDieTempC = d.SafetyDieTempC
	}
	if c.SafetyHumidityPct == empty {
		c.SafetyHumidityPct = d.SafetyHumidityPct
	}
	return c
}

// Engine evaluates aggregated telemetry against the detection rules.
type Engine struct {
	cfg    Config
	store  CooldownStore
	logger *zap.Logger
}

// NewEngine creates a detection engine backed by the given cooldown
// store. A nil store disables suppression.
func NewEngine(cfg Config, store CooldownStore, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg.withDefaults(), store: store, logger: logger}
}

type metricSeries struct {
	name   string
	get    func(kpi.Sample) float64
	safety quality.Range
}

func (e *Engine) metrics() []metricSeries {
	return []metricSeries{
		{"pressure_mpa", func(s kpi.Sample) float64 { return s.PressureMPa }, e.cfg.SafetyPressureMPa},
		{"die_temp_c", func(s kpi.Sample) float64 { return s.DieTempC }, e.cfg.SafetyDieTempC},
		{"humidity_pct", func(s kpi.Sample) float64 { return s.HumidityPct }, e.cfg.SafetyHumidityPct},
	}
}

// Evaluate runs all rules over the samples and returns the alerts that
// survived the cooldown. Samples must be ordered by equipment then
// period, as AggregateTelemetry produces them.
func (e *Engine) Evaluate(ctx context.Context, samples []kpi.Sample) ([]Alert, error) {
	var alerts []Alert
	for start := 0; start < len(samples); {
		end := start
		for end < len(samples) && samples[end].EquipmentID == samples[start].EquipmentID {
			end++
		}
		machine := samples[start:end]
		for _, m := range e.metrics() {
			out, err := e.evaluateMetric(ctx, machine, m)
			if err != nil {
				return nil, err
			}
			alerts = append(alerts, out...)
		}
		start = end
	}
	for _, a := range alerts {
		e.logger.Warn("alert raised",
			zap.String("equipment", a.EquipmentID),
			zap.String("metric", a.Metric),
			zap.String("type", a.Type),
			zap.String("severity", a.Severity),
			zap.Float64("value", a.Value),
		)
	}
	return alerts, nil
}

func (e *Engine) evaluateMetric(ctx context.Context, machine []kpi.Sample, m metricSeries) ([]Alert, error) {
	values := make([]float64, len(machine))
	for i, s := range machine {
		values[i] = m.get(s)
	}

	var alerts []Alert
	control, err := e.controlRule(ctx, machine, m, values)
	if err != nil {
		return nil, err
	}
	alerts = append(alerts, control...)

	trend, err := e.trendRule(ctx, machine, m, values)
	if err != nil {
		return nil, err
	}
	alerts = append(alerts, trend...)

	safety, err := e.safetyRule(ctx, machine, m, values)
	if err != nil {
		return nil, err
	}
	alerts = append(alerts, safety...)
	return alerts, nil
}

// controlRule finds runs of consecutive samples beyond mean ± k·std of
// the rolling window. A run of at least Persistence samples raises one
// OUT_OF_CONTROL alert reporting the run's last sample; an isolated
// extreme sample beyond twice the band raises a SPIKE alert.
func (e *Engine) controlRule(ctx context.Context, machine []kpi.Sample, m metricSeries, values []float64) ([]Alert, error) {
	fullStd := stats.Std(values)

	type point struct {
		limits Limits
		dev    bool
		spike  bool
	}
	points := make([]point, len(values))
	for i, v := range values {
		// Limits come from the samples preceding i so a deviating
		// sample cannot widen its own band.
		mean, std := stats.RollingMeanStd(values[:i], e.cfg.Window)
		if math.IsNaN(std) || std == 0 {
			std = fullStd
		}
		if math.IsNaN(v) || math.IsNaN(mean) || math.IsNaN(std) || std == 0 {
			continue
		}
		band := e.cfg.Sigma * std
		points[i].limits = Limits{Mean: mean, Std: std, UCL: mean + band, LCL: mean - band}
		dist := math.Abs(v - mean)
		points[i].dev = dist > band
		points[i].spike = dist > 2*band
	}

	var alerts []Alert
	runLen := 0
	flush := func(endIdx int) error {
		defer func() { runLen = 0 }()
		if runLen >= e.cfg.Persistence {
			last := endIdx
			a, ok, err := e.gated(ctx, machine[last], m.name, "out_of_control", func(s kpi.Sample) Alert {
				al := newAlert(s.Period, s.EquipmentID, m.name, values[last], TypeOutOfControl, SeverityHigh,
					fmt.Sprintf("%s out of control for %d consecutive samples", m.name, runLen))
				lim := points[last].limits
				al.Limits = &lim
				return al
			})
			if err != nil {
				return err
			}
			if ok {
				alerts = append(alerts, a)
			}
			return nil
		}
		if runLen == 1 && points[endIdx].spike {
			a, ok, err := e.gated(ctx, machine[endIdx], m.name, "spike", func(s kpi.Sample) Alert {
				al := newAlert(s.Period, s.EquipmentID, m.name, values[endIdx], TypeSpike, SeverityHigh,
					fmt.Sprintf("%s spiked far outside control limits", m.name))
				lim := points[endIdx].limits
				al.Limits = &lim
				return al
			})
			if err != nil {
				return err
			}
			if ok {
				alerts = append(alerts, a)
			}
		}
		return nil
	}

	for i := range points {
		if points[i].dev {
			runLen++
			continue
		}
		if runLen > 0 {
			if err := flush(i - 1); err != nil {
				return nil, err
			}
		}
	}
	if runLen > 0 {
		if err := flush(len(points) - 1); err != nil {
			return nil, err
		}
	}
	return alerts, nil
}

// trendRule correlates the trailing TrendWindow points against their
// index; a strong correlation means the metric is trending.
func (e *Engine) trendRule(ctx context.Context, machine []kpi.Sample, m metricSeries, values []float64) ([]Alert, error) {
	n := e.cfg.TrendWindow
	if len(values) < n {
		return nil, nil
	}
	tail := values[len(values)-n:]
	idx := make([]float64, n)
	for i := range idx {
		idx[i] = float64(i)
	}
	r := stats.Pearson(idx, tail)
	if math.IsNaN(r) || math.Abs(r) <= e.cfg.TrendThreshold {
		return nil, nil
	}

	direction := "upward"
	if r < 0 {
		direction = "downward"
	}
	last := len(machine) - 1
	a, ok, err := e.gated(ctx, machine[last], m.name, "trend", func(s kpi.Sample) Alert {
		return newAlert(s.Period, s.EquipmentID, m.name, values[last], TypeTrend, SeverityMedium,
			fmt.Sprintf("%s %s trend over last %d samples (r=%.2f)", m.name, direction, n, r))
	})
	if err != nil || !ok {
		return nil, err
	}
	return []Alert{a}, nil
}

// safetyRule raises a critical alert for every sample outside the hard
// safety bounds.
func (e *Engine) safetyRule(ctx context.Context, machine []kpi.Sample, m metricSeries, values []float64) ([]Alert, error) {
	var alerts []Alert
	for i, v := range values {
		if math.IsNaN(v) || m.safety.Contains(v) {
			continue
		}
		i := i
		a, ok, err := e.gated(ctx, machine[i], m.name, "safety", func(s kpi.Sample) Alert {
			return newAlert(s.Period, s.EquipmentID, m.name, values[i], TypeAnomaly, SeverityCritical,
				fmt.Sprintf("%s %.2f outside safety limits [%.1f, %.1f]", m.name, values[i], m.safety.Min, m.safety.Max))
		})
		if err != nil {
			return nil, err
		}
		if ok {
			alerts = append(alerts, a)
		}
	}
	return alerts, nil
}

// gated builds the alert only if the (equipment, metric, rule) key is
// cold in the cooldown store.
func (e *Engine) gated(ctx context.Context, s kpi.Sample, metric, rule string, build func(kpi.Sample) Alert) (Alert, bool, error) {
	if e.store != nil {
		key := s.EquipmentID + "|" + metric + "|" + rule
		ok, err := e.store.Allow(ctx, key)
		if err != nil {
			return Alert{}, false, err
		}
		if !ok {
			return Alert{}, false, nil
		}
	}
	return build(s), true, nil
}
