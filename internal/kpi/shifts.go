package kpi

import (
	"sort"

	"github.com/ecodata/plantpulse/internal/period"
	"github.com/ecodata/plantpulse/internal/schema"
)

// ShiftRefuse is scrap performance for one shift.
type ShiftRefuse struct {
	Shift    string  `json:"shift"`
	Pieces   int     `json:"pieces"`
	Scrap    int     `json:"scrap"`
	ScrapPct float64 `json:"scrap_pct"`
}

// RefuseByShift groups scrap by shift, worst first. ScrapPct is
// scrap/production×100 rounded to one decimal, zero for shifts with no
// production.
func (a *Aggregator) RefuseByShift(production []schema.ProductionRecord, w period.Window) []ShiftRefuse {
	byShift := make(map[string]*ShiftRefuse)
	for _, r := range production {
		if !w.Contains(r.Timestamp) {
			continue
		}
		row, ok := byShift[r.Shift]
		if !ok {
			row = &ShiftRefuse{Shift: r.Shift}
			byShift[r.Shift] = row
		}
		row.Pieces += r.PiecesMade
		row.Scrap += r.PiecesScrapped
	}

	rows := make([]ShiftRefuse, 0, len(byShift))
	for _, row := range byShift {
		if row.Pieces > 0 {
			row.ScrapPct = round(float64(row.Scrap)/float64(row.Pieces)*100, 1)
		}
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ScrapPct != rows[j].ScrapPct {
			return rows[i].ScrapPct > rows[j].ScrapPct
		}
		return rows[i].Shift < rows[j].Shift
	})
	return rows
}
