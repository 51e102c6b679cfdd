package kpi

import (
	"time"

	"github.com/ecodata/plantpulse/internal/period"
	"github.com/ecodata/plantpulse/internal/schema"
)

// Maintenance holds the repair metrics for a window.
type Maintenance struct {
	MTTRMin  float64 `json:"mttr_min"`
	MTBFMin  float64 `json:"mtbf_min"`
	Failures int     `json:"failures"`
}

// ComputeMaintenance derives MTTR and MTBF from failure events (events
// with positive downtime) inside the window.
//
//	MTTR = total downtime / failures
//	MTBF = (event span - total downtime) / failures
//
// Both are zero when no event qualifies or the span is degenerate
// (all failures share one timestamp).
func (a *Aggregator) ComputeMaintenance(events []schema.EventRecord, w period.Window) Maintenance {
	var m Maintenance
	var downtime float64
	var first, last time.Time

	for _, e := range events {
		if !w.Contains(e.Timestamp) || e.DurationMin <= 0 {
			continue
		}
		if m.Failures == 0 || e.Timestamp.Before(first) {
			first = e.Timestamp
		}
		if m.Failures == 0 || e.Timestamp.After(last) {
			last = e.Timestamp
		}
		downtime += e.DurationMin
		m.Failures++
	}
	if m.Failures == 0 {
		return m
	}

	spanMin := last.Sub(first).Minutes()
	if spanMin <= 0 {
		return Maintenance{Failures: m.Failures}
	}

	m.MTTRMin = downtime / float64(m.Failures)
	m.MTBFMin = (spanMin - downtime) / float64(m.Failures)
	if m.MTBFMin < 0 {
		m.MTBFMin = 0
	}
	return m
}
