// Package kpi derives the plant's operating indicators from validated
// silver datasets: production summaries, OEE, energy cost, scrap by
// shift, stoppage Pareto and maintenance metrics.
package kpi

import (
	"math"
	"time"

	"github.com/ecodata/plantpulse/internal/period"
	"github.com/ecodata/plantpulse/internal/schema"
)

// Config holds the plant parameters the formulas depend on.
type Config struct {
	// NominalCapacityPerHour is the rated output of one machine.
	NominalCapacityPerHour int `yaml:"nominal_capacity_per_hour"`
	// SampleInterval is the duration one production record covers.
	// The OEE formulas use it instead of assuming hourly rows.
	SampleInterval time.Duration `yaml:"sample_interval"`
	// EnergyCostPerKWh prices energy consumption.
	EnergyCostPerKWh float64 `yaml:"energy_cost_per_kwh"`
	// ParetoTopN caps the stoppage Pareto length.
	ParetoTopN int `yaml:"pareto_top_n"`
}

// DefaultConfig returns the standard plant parameters.
func DefaultConfig() Config {
	return Config{
		NominalCapacityPerHour: 1000,
		SampleInterval:         time.Hour,
		EnergyCostPerKWh:       0.75,
		ParetoTopN:             5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.NominalCapacityPerHour == 0 {
		c.NominalCapacityPerHour = d.NominalCapacityPerHour
	}
	if c.SampleInterval == 0 {
		c.SampleInterval = d.SampleInterval
	}
	if c.EnergyCostPerKWh == 0 {
		c.EnergyCostPerKWh = d.EnergyCostPerKWh
	}
	if c.ParetoTopN == 0 {
		c.ParetoTopN = d.ParetoTopN
	}
	return c
}

// Aggregator computes KPIs over a selected window.
type Aggregator struct {
	cfg Config
}

// NewAggregator creates an aggregator.
func NewAggregator(cfg Config) *Aggregator {
	return &Aggregator{cfg: cfg.withDefaults()}
}

// Summary is the headline KPI block for a window.
type Summary struct {
	Pieces      int     `json:"pieces"`
	Scrap       int     `json:"scrap"`
	Defects     int     `json:"defects"`
	AvgDieTempC float64 `json:"avg_die_temp_c"`
	PeriodLabel string  `json:"period_label"`
}

// Summarize computes the headline KPIs for the window. Average die
// temperature is NaN when no telemetry falls inside the window.
func (a *Aggregator) Summarize(production []schema.ProductionRecord, telemetry []schema.TelemetryRecord, w period.Window) Summary {
	s := Summary{AvgDieTempC: math.NaN(), PeriodLabel: w.Label}

	for _, r := range production {
		if !w.Contains(r.Timestamp) {
			continue
		}
		s.Pieces += r.PiecesMade
		s.Scrap += r.PiecesScrapped
	}

	var tempSum float64
	var tempN int
	for _, r := range telemetry {
		if !w.Contains(r.Timestamp) {
			continue
		}
		if r.Defect {
			s.Defects++
		}
		if !math.IsNaN(r.DieTempC) {
			tempSum += r.DieTempC
			tempN++
		}
	}
	if tempN > 0 {
		s.AvgDieTempC = tempSum / float64(tempN)
	}
	return s
}

// EnergyCost is the energy spend for a window.
type EnergyCost struct {
	TotalKWh     float64 `json:"total_kwh"`
	TotalCost    float64 `json:"total_cost"`
	CostPerPiece float64 `json:"cost_per_piece"`
}

// Energy computes energy cost for the window. Zeroes when the frame
// has no energy data or no pieces were made.
func (a *Aggregator) Energy(production []schema.ProductionRecord, w period.Window) EnergyCost {
	var cost EnergyCost
	var pieces int
	for _, r := range production {
		if !w.Contains(r.Timestamp) {
			continue
		}
		if !math.IsNaN(r.EnergyKWh) {
			cost.TotalKWh += r.EnergyKWh
		}
		pieces += r.PiecesMade
	}
	cost.TotalCost = cost.TotalKWh * a.cfg.EnergyCostPerKWh
	if pieces > 0 {
		cost.CostPerPiece = cost.TotalCost / float64(pieces)
	}
	return cost
}

func round(v float64, decimals int) float64 {
	if math.IsNaN(v) {
		return v
	}
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}
