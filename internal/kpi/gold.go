package kpi

import (
	"math"
	"sort"
	"time"

	"github.com/ecodata/plantpulse/internal/schema"
)

// DailyKPIs is one gold-layer row: the business aggregate for a day.
type DailyKPIs struct {
	Date         time.Time `json:"date"`
	Pieces       int       `json:"pieces"`
	Scrap        int       `json:"scrap"`
	GoodPieces   int       `json:"good_pieces"`
	EnergyKWh    float64   `json:"energy_kwh"`
	Availability float64   `json:"availability"`
	Performance  float64   `json:"performance"`
	Quality      float64   `json:"quality"`
	OEE          float64   `json:"oee"`
	KWhPerPiece  float64   `json:"kwh_per_piece"`
}

// DailyGold aggregates validated production into one row per calendar
// day, values rounded to four decimals. KWhPerPiece is NaN for days
// without production.
func (a *Aggregator) DailyGold(production []schema.ProductionRecord) []DailyKPIs {
	type acc struct {
		pieces, scrap, producing, records int
		kwh                               float64
	}
	days := make(map[time.Time]*acc)
	for _, r := range production {
		day := time.Date(r.Timestamp.Year(), r.Timestamp.Month(), r.Timestamp.Day(), 0, 0, 0, 0, r.Timestamp.Location())
		d, ok := days[day]
		if !ok {
			d = &acc{}
			days[day] = d
		}
		d.records++
		d.pieces += r.PiecesMade
		d.scrap += r.PiecesScrapped
		if r.PiecesMade > 0 {
			d.producing++
		}
		if !math.IsNaN(r.EnergyKWh) {
			d.kwh += r.EnergyKWh
		}
	}

	// A gold day is scheduled wall-to-wall: 24h of sample slots.
	slotsPerDay := float64(24) / a.cfg.SampleInterval.Hours()
	capacityPerSlot := float64(a.cfg.NominalCapacityPerHour) * a.cfg.SampleInterval.Hours()

	rows := make([]DailyKPIs, 0, len(days))
	for day, d := range days {
		row := DailyKPIs{
			Date:        day,
			Pieces:      d.pieces,
			Scrap:       d.scrap,
			GoodPieces:  d.pieces - d.scrap,
			EnergyKWh:   round(d.kwh, 4),
			KWhPerPiece: math.NaN(),
		}
		if d.pieces > 0 {
			row.Quality = float64(row.GoodPieces) / float64(d.pieces)
			row.KWhPerPiece = round(d.kwh/float64(d.pieces), 4)
		}
		if slotsPerDay > 0 {
			row.Availability = float64(d.producing) / slotsPerDay
			row.Performance = float64(d.pieces) / (slotsPerDay * capacityPerSlot)
		}
		row.Availability = round(clampNonNegative(row.Availability), 4)
		row.Performance = round(clampNonNegative(row.Performance), 4)
		row.Quality = round(clampNonNegative(row.Quality), 4)
		row.OEE = round(row.Availability*row.Performance*row.Quality, 4)
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	return rows
}
