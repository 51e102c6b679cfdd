package api

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecodata/plantpulse/internal/alerting"
	"github.com/ecodata/plantpulse/internal/config"
	"github.com/ecodata/plantpulse/internal/kpi"
	"github.com/ecodata/plantpulse/internal/period"
	"github.com/ecodata/plantpulse/internal/pipeline"
	"github.com/ecodata/plantpulse/internal/quality"
)

func testServer(t *testing.T, state *State) *Server {
	t.Helper()
	cfg := config.Default().Server
	return New(cfg, state, prometheus.NewRegistry(), nil)
}

func fakeResult() *pipeline.Result {
	start := time.Date(2024, 11, 19, 0, 0, 0, 0, time.UTC)
	return &pipeline.Result{
		ExecutedAt: start.Add(18 * time.Hour),
		Window:     period.Window{Start: start, End: start.AddDate(0, 0, 1).Add(-time.Second), Label: "Today (19/11)"},
		Summary: kpi.Summary{
			Pieces: 10800, Scrap: 240, Defects: 3,
			AvgDieTempC: math.NaN(), // no telemetry in the window
			PeriodLabel: "Today (19/11)",
		},
		OEE:    kpi.OEE{Availability: 0.5, Performance: 0.45, Quality: 0.978, OEE: 0.22},
		Shifts: []kpi.ShiftRefuse{{Shift: "A", Pieces: 10800, Scrap: 240, ScrapPct: 2.2}},
		Pareto: []kpi.ParetoEntry{{EventType: "troca de molde", Count: 1, DowntimeMin: 120}},
		Alerts: []alerting.Alert{{ID: "a1", Type: alerting.TypeTrend, Severity: alerting.SeverityMedium}},
		Status: map[string]kpi.Sample{
			"M1": {EquipmentID: "M1", Period: start, Cycles: 4, PressureMPa: 12.1, HumidityPct: math.NaN(), DieTempC: 60.2},
		},
		Gold: []kpi.DailyKPIs{
			{Date: start, Pieces: 10800, Scrap: 240, GoodPieces: 10560, KWhPerPiece: math.NaN()},
		},
		Quality: &quality.RunReport{ExecutedAt: start, Status: "success"},
	}
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "10.0.0.1:51234"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	state := NewState()
	s := testServer(t, state)

	t.Run("healthz always up", func(t *testing.T) {
		rec := get(t, s, "/healthz")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("readyz waits for first run", func(t *testing.T) {
		rec := get(t, s, "/readyz")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		state.SetResult(fakeResult())
		rec = get(t, s, "/readyz")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestServer_Endpoints(t *testing.T) {
	state := NewState()
	s := testServer(t, state)

	t.Run("503 before first run", func(t *testing.T) {
		rec := get(t, s, "/v1/kpis")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	state.SetResult(fakeResult())

	t.Run("kpis serializes nan as null", func(t *testing.T) {
		rec := get(t, s, "/v1/kpis")
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			PeriodLabel string   `json:"period_label"`
			Pieces      int      `json:"pieces"`
			AvgDieTempC *float64 `json:"avg_die_temp_c"`
			Daily       []struct {
				KWhPerPiece *float64 `json:"kwh_per_piece"`
			} `json:"daily"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "Today (19/11)", body.PeriodLabel)
		assert.Equal(t, 10800, body.Pieces)
		assert.Nil(t, body.AvgDieTempC)
		require.Len(t, body.Daily, 1)
		assert.Nil(t, body.Daily[0].KWhPerPiece)
	})

	t.Run("oee", func(t *testing.T) {
		rec := get(t, s, "/v1/oee")
		require.Equal(t, http.StatusOK, rec.Code)
		var oee kpi.OEE
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &oee))
		assert.InDelta(t, 0.22, oee.OEE, 1e-9)
	})

	t.Run("shifts", func(t *testing.T) {
		rec := get(t, s, "/v1/shifts")
		require.Equal(t, http.StatusOK, rec.Code)
		var shifts []kpi.ShiftRefuse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &shifts))
		require.Len(t, shifts, 1)
		assert.Equal(t, "A", shifts[0].Shift)
	})

	t.Run("pareto", func(t *testing.T) {
		rec := get(t, s, "/v1/pareto")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("maintenance", func(t *testing.T) {
		rec := get(t, s, "/v1/maintenance")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("alerts", func(t *testing.T) {
		rec := get(t, s, "/v1/alerts")
		require.Equal(t, http.StatusOK, rec.Code)
		var alerts []alerting.Alert
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &alerts))
		require.Len(t, alerts, 1)
		assert.Equal(t, alerting.TypeTrend, alerts[0].Type)
	})

	t.Run("quality", func(t *testing.T) {
		rec := get(t, s, "/v1/quality")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "success")
	})

	t.Run("status nulls missing sensor means", func(t *testing.T) {
		rec := get(t, s, "/v1/status")
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Machines map[string]struct {
				PressureMPa *float64 `json:"pressure_mpa"`
				HumidityPct *float64 `json:"humidity_pct"`
			} `json:"machines"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		m1, ok := body.Machines["M1"]
		require.True(t, ok)
		require.NotNil(t, m1.PressureMPa)
		assert.InDelta(t, 12.1, *m1.PressureMPa, 1e-9)
		assert.Nil(t, m1.HumidityPct)
	})

	t.Run("metrics endpoint", func(t *testing.T) {
		rec := get(t, s, "/metrics")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "plantpulse_http_requests_total")
	})
}

func TestServer_RateLimit(t *testing.T) {
	state := NewState()
	state.SetResult(fakeResult())
	cfg := config.Default().Server
	cfg.RateLimitPerSecond = 1
	cfg.RateLimitBurst = 2
	s := New(cfg, state, prometheus.NewRegistry(), nil)

	codes := make(map[int]int)
	for i := 0; i < 5; i++ {
		rec := get(t, s, "/v1/oee")
		codes[rec.Code]++
	}
	assert.Equal(t, 2, codes[http.StatusOK])
	assert.Equal(t, 3, codes[http.StatusTooManyRequests])

	t.Run("health endpoints bypass the limiter", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			rec := get(t, s, "/healthz")
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	})
}
