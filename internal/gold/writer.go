// Package gold persists the daily KPI aggregates: a CSV snapshot plus
// an optional PostgreSQL sink for downstream reporting.
package gold

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/ecodata/plantpulse/internal/kpi"
	"github.com/ecodata/plantpulse/internal/table"
)

// FileName is the gold layer's CSV artifact.
const FileName = "kpis_daily_gold.csv"

const dateLayout = "2006-01-02"

// Columns is the gold CSV header.
var Columns = []string{
	"date", "pieces", "scrap", "good_pieces", "energy_kwh",
	"availability", "performance", "quality", "oee", "kwh_per_piece",
}

// Writer persists gold rows under one directory.
type Writer struct {
	dir    string
	logger *zap.Logger
}

// NewWriter creates a gold writer rooted at dir.
func NewWriter(dir string, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{dir: dir, logger: logger}
}

// Write persists the daily rows to kpis_daily_gold.csv.
func (w *Writer) Write(rows []kpi.DailyKPIs) error {
	path := filepath.Join(w.dir, FileName)
	if err := Table(rows).WriteCSV(path); err != nil {
		return fmt.Errorf("gold: write %s: %w", path, err)
	}
	w.logger.Info("gold written", zap.String("path", path), zap.Int("days", len(rows)))
	return nil
}

// Table serializes daily rows to the canonical gold table.
func Table(rows []kpi.DailyKPIs) *table.Table {
	t := &table.Table{Headers: Columns}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			r.Date.Format(dateLayout),
			strconv.Itoa(r.Pieces),
			strconv.Itoa(r.Scrap),
			strconv.Itoa(r.GoodPieces),
			formatFloat(r.EnergyKWh),
			formatFloat(r.Availability),
			formatFloat(r.Performance),
			formatFloat(r.Quality),
			formatFloat(r.OEE),
			formatFloat(r.KWhPerPiece),
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
