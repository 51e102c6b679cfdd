package api

import (
	"encoding/json"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ecodata/plantpulse/internal/kpi"
	"github.com/ecodata/plantpulse/internal/pipeline"
)

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if !s.state.Ready() {
		s.respond(w, http.StatusServiceUnavailable, map[string]string{"status": "waiting for first pipeline run"})
		return
	}
	s.respond(w, http.StatusOK, map[string]string{"status": "ready"})
}

// kpisResponse is the headline block. AvgDieTempC and CostPerPiece may
// have no defined value for the window and serialize as null then.
type kpisResponse struct {
	ExecutedAt  time.Time      `json:"executed_at"`
	PeriodLabel string         `json:"period_label"`
	PeriodStart time.Time      `json:"period_start"`
	PeriodEnd   time.Time      `json:"period_end"`
	Pieces      int            `json:"pieces"`
	Scrap       int            `json:"scrap"`
	Defects     int            `json:"defects"`
	AvgDieTempC *float64       `json:"avg_die_temp_c"`
	Energy      kpi.EnergyCost `json:"energy"`
	Gold        []goldRow      `json:"daily"`
}

type goldRow struct {
	Date         string   `json:"date"`
	Pieces       int      `json:"pieces"`
	Scrap        int      `json:"scrap"`
	GoodPieces   int      `json:"good_pieces"`
	EnergyKWh    float64  `json:"energy_kwh"`
	Availability float64  `json:"availability"`
	Performance  float64  `json:"performance"`
	Quality      float64  `json:"quality"`
	OEE          float64  `json:"oee"`
	KWhPerPiece  *float64 `json:"kwh_per_piece"`
}

func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	res, ok := s.latest(w)
	if !ok {
		return
	}
	daily := make([]goldRow, 0, len(res.Gold))
	for _, d := range res.Gold {
		daily = append(daily, goldRow{
			Date:         d.Date.Format("2006-01-02"),
			Pieces:       d.Pieces,
			Scrap:        d.Scrap,
			GoodPieces:   d.GoodPieces,
			EnergyKWh:    d.EnergyKWh,
			Availability: d.Availability,
			Performance:  d.Performance,
			Quality:      d.Quality,
			OEE:          d.OEE,
			KWhPerPiece:  nullable(d.KWhPerPiece),
		})
	}
	s.respond(w, http.StatusOK, kpisResponse{
		ExecutedAt:  res.ExecutedAt,
		PeriodLabel: res.Window.Label,
		PeriodStart: res.Window.Start,
		PeriodEnd:   res.Window.End,
		Pieces:      res.Summary.Pieces,
		Scrap:       res.Summary.Scrap,
		Defects:     res.Summary.Defects,
		AvgDieTempC: nullable(res.Summary.AvgDieTempC),
		Energy:      res.Energy,
		Gold:        daily,
	})
}

func (s *Server) handleOEE(w http.ResponseWriter, r *http.Request) {
	if res, ok := s.latest(w); ok {
		s.respond(w, http.StatusOK, res.OEE)
	}
}

func (s *Server) handleShifts(w http.ResponseWriter, r *http.Request) {
	if res, ok := s.latest(w); ok {
		s.respond(w, http.StatusOK, res.Shifts)
	}
}

func (s *Server) handlePareto(w http.ResponseWriter, r *http.Request) {
	if res, ok := s.latest(w); ok {
		s.respond(w, http.StatusOK, res.Pareto)
	}
}

func (s *Server) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	if res, ok := s.latest(w); ok {
		s.respond(w, http.StatusOK, res.Maintenance)
	}
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if res, ok := s.latest(w); ok {
		s.respond(w, http.StatusOK, res.Alerts)
	}
}

func (s *Server) handleQuality(w http.ResponseWriter, r *http.Request) {
	if res, ok := s.latest(w); ok {
		s.respond(w, http.StatusOK, res.Quality)
	}
}

// statusRow is one machine's latest aggregated sample with sensor
// means nulled when no cycle carried the reading.
type statusRow struct {
	EquipmentID string    `json:"equipment_id"`
	Period      time.Time `json:"period"`
	Cycles      int       `json:"cycles"`
	Defects     int       `json:"defects"`
	PressureMPa *float64  `json:"pressure_mpa"`
	HumidityPct *float64  `json:"humidity_pct"`
	DieTempC    *float64  `json:"die_temp_c"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	res, ok := s.latest(w)
	if !ok {
		return
	}
	status := make(map[string]statusRow, len(res.Status))
	for id, sample := range res.Status {
		status[id] = statusRow{
			EquipmentID: sample.EquipmentID,
			Period:      sample.Period,
			Cycles:      sample.Cycles,
			Defects:     sample.Defects,
			PressureMPa: nullable(sample.PressureMPa),
			HumidityPct: nullable(sample.HumidityPct),
			DieTempC:    nullable(sample.DieTempC),
		}
	}
	s.respond(w, http.StatusOK, map[string]any{
		"machines":     status,
		"defect_rates": res.DefectRates,
	})
}

// latest fetches the newest run or answers 503 before the first one.
func (s *Server) latest(w http.ResponseWriter) (*pipeline.Result, bool) {
	res := s.state.Result()
	if res == nil {
		s.respond(w, http.StatusServiceUnavailable, map[string]string{"error": "no pipeline run yet"})
		return nil, false
	}
	return res, true
}

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}

// nullable maps NaN to a JSON null.
func nullable(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
