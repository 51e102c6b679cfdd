// Package period chooses the analysis window for KPI reporting. The
// heuristic avoids windows that happen to contain near-zero production
// (batch boundaries, idle Sundays), which would otherwise make the
// plant look stopped.
package period

import (
	"fmt"
	"time"

	"github.com/ecodata/plantpulse/internal/schema"
)

// Selection modes.
const (
	ModeAuto      = "auto"
	ModeYesterday = "yesterday"
	ModeRolling24 = "rolling_24h"
)

// Window is a resolved analysis period.
type Window struct {
	Start time.Time
	End   time.Time
	Label string
}

// Contains reports whether ts falls inside the window (inclusive).
func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && !ts.After(w.End)
}

// Config tunes the auto heuristic.
type Config struct {
	Mode             string       `yaml:"mode"`
	MinDailyPieces   int          `yaml:"min_daily_pieces"`
	LowActivityDay   time.Weekday `yaml:"low_activity_day"`
	MaxLookbackDays  int          `yaml:"max_lookback_days"`
}

// DefaultConfig returns the standard heuristic parameters.
func DefaultConfig() Config {
	return Config{
		Mode:            ModeAuto,
		MinDailyPieces:  500,
		LowActivityDay:  time.Sunday,
		MaxLookbackDays: 7,
	}
}

// Selector resolves analysis windows. The clock is injectable so the
// yesterday mode and tests are deterministic.
type Selector struct {
	cfg Config
	now func() time.Time
}

// NewSelector creates a selector with the real clock.
func NewSelector(cfg Config) *Selector {
	return NewSelectorAt(cfg, time.Now)
}

// NewSelectorAt creates a selector with an explicit clock.
func NewSelectorAt(cfg Config, now func() time.Time) *Selector {
	if cfg.MinDailyPieces == 0 {
		cfg.MinDailyPieces = 500
	}
	if cfg.MaxLookbackDays == 0 {
		cfg.MaxLookbackDays = 7
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeAuto
	}
	return &Selector{cfg: cfg, now: now}
}

// Select resolves the window for the given production frame using the
// mode from the configuration. The bool is false when the frame is
// empty and no window exists.
func (s *Selector) Select(production []schema.ProductionRecord) (Window, bool) {
	return s.SelectMode(production, s.cfg.Mode)
}

// SelectMode resolves the window for an explicit mode.
func (s *Selector) SelectMode(production []schema.ProductionRecord, mode string) (Window, bool) {
	if len(production) == 0 {
		return Window{Label: "No Data"}, false
	}

	switch mode {
	case ModeRolling24:
		end := maxTimestamp(production)
		return Window{Start: end.Add(-24 * time.Hour), End: end, Label: "Last 24 Hours"}, true

	case ModeYesterday:
		yesterday := dayStart(s.now().AddDate(0, 0, -1))
		return dayWindow(yesterday, fmt.Sprintf("Yesterday (%s)", yesterday.Format("02/01"))), true

	default:
		return s.selectAuto(production), true
	}
}

func (s *Selector) selectAuto(production []schema.ProductionRecord) Window {
	latestProductive := time.Time{}
	for _, r := range production {
		if r.PiecesMade > 0 && r.Timestamp.After(latestProductive) {
			latestProductive = r.Timestamp
		}
	}
	if latestProductive.IsZero() {
		// nothing was ever produced: report over everything we have
		return Window{
			Start: minTimestamp(production),
			End:   maxTimestamp(production),
			Label: "Full History",
		}
	}

	latestDay := dayStart(latestProductive)
	total := piecesOnDay(production, latestDay)

	if total >= s.cfg.MinDailyPieces && latestDay.Weekday() != s.cfg.LowActivityDay {
		return dayWindow(latestDay, fmt.Sprintf("Today (%s)", latestDay.Format("02/01")))
	}

	// thin or idle day: walk back to the last day that actually produced
	ref := latestDay.AddDate(0, 0, -1)
	for attempt := 0; attempt < s.cfg.MaxLookbackDays; attempt++ {
		if piecesOnDay(production, ref) > 0 {
			return dayWindow(ref, fmt.Sprintf("Previous Close (%s)", ref.Format("02/01")))
		}
		ref = ref.AddDate(0, 0, -1)
	}

	return Window{
		Start: minTimestamp(production),
		End:   maxTimestamp(production),
		Label: "Full History",
	}
}

func piecesOnDay(production []schema.ProductionRecord, day time.Time) int {
	next := day.AddDate(0, 0, 1)
	var total int
	for _, r := range production {
		if !r.Timestamp.Before(day) && r.Timestamp.Before(next) {
			total += r.PiecesMade
		}
	}
	return total
}

func dayWindow(day time.Time, label string) Window {
	return Window{
		Start: day,
		End:   day.AddDate(0, 0, 1).Add(-time.Second),
		Label: label,
	}
}

func dayStart(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
}

func minTimestamp(records []schema.ProductionRecord) time.Time {
	min := records[0].Timestamp
	for _, r := range records[1:] {
		if r.Timestamp.Before(min) {
			min = r.Timestamp
		}
	}
	return min
}

func maxTimestamp(records []schema.ProductionRecord) time.Time {
	max := records[0].Timestamp
	for _, r := range records[1:] {
		if r.Timestamp.After(max) {
			max = r.Timestamp
		}
	}
	return max
}
