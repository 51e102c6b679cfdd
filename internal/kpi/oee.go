package kpi

import (
	"github.com/ecodata/plantpulse/internal/period"
	"github.com/ecodata/plantpulse/internal/schema"
)

// OEE is the Overall Equipment Effectiveness breakdown. Components are
// clamped to be non-negative but deliberately NOT capped at 1: noisy
// inputs can legitimately push Performance above nominal capacity and
// callers must tolerate that.
type OEE struct {
	Availability float64 `json:"availability"`
	Performance  float64 `json:"performance"`
	Quality      float64 `json:"quality"`
	OEE          float64 `json:"oee"`
}

// ComputeOEE derives OEE over the window.
//
//	Quality      = good pieces / total pieces
//	Availability = producing records / scheduled records
//	Performance  = total pieces / (scheduled records × capacity per record)
//
// Scheduled time is records × the configured sample interval, not a
// row-count hours proxy, so non-hourly inputs stay correct.
func (a *Aggregator) ComputeOEE(production []schema.ProductionRecord, w period.Window) OEE {
	var scheduled, producing, pieces, scrap int
	for _, r := range production {
		if !w.Contains(r.Timestamp) {
			continue
		}
		scheduled++
		if r.PiecesMade > 0 {
			producing++
		}
		pieces += r.PiecesMade
		scrap += r.PiecesScrapped
	}
	if scheduled == 0 {
		return OEE{}
	}

	var o OEE
	if pieces > 0 {
		o.Quality = float64(pieces-scrap) / float64(pieces)
	}
	o.Availability = float64(producing) / float64(scheduled)

	capacityPerRecord := float64(a.cfg.NominalCapacityPerHour) * a.cfg.SampleInterval.Hours()
	if theoretical := float64(scheduled) * capacityPerRecord; theoretical > 0 {
		o.Performance = float64(pieces) / theoretical
	}

	o.Quality = clampNonNegative(o.Quality)
	o.Availability = clampNonNegative(o.Availability)
	o.Performance = clampNonNegative(o.Performance)
	o.OEE = o.Availability * o.Performance * o.Quality
	return o
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
