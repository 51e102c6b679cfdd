package kpi

import (
	"sort"
	"time"

	"github.com/ecodata/plantpulse/internal/schema"
	"github.com/ecodata/plantpulse/internal/stats"
)

// Sample is telemetry bucketed per (equipment, period floor). It feeds
// the alert engine and the machine status views.
type Sample struct {
	EquipmentID string    `json:"equipment_id"`
	Period      time.Time `json:"period"`
	Cycles      int       `json:"cycles"`
	Defects     int       `json:"defects"`
	PressureMPa float64   `json:"pressure_mpa"`
	HumidityPct float64   `json:"humidity_pct"`
	DieTempC    float64   `json:"die_temp_c"`
}

// AggregateTelemetry buckets telemetry per equipment and period floor,
// averaging the sensor metrics and summing defects. The result is
// ordered by equipment then period.
func AggregateTelemetry(telemetry []schema.TelemetryRecord, bucket time.Duration) []Sample {
	if bucket <= 0 {
		bucket = time.Minute
	}

	type acc struct {
		sample   Sample
		pressure []float64
		humidity []float64
		temp     []float64
	}
	byKey := make(map[string]*acc)
	for _, r := range telemetry {
		p := r.Timestamp.Truncate(bucket)
		key := r.EquipmentID + "\x00" + p.Format(time.RFC3339)
		a, ok := byKey[key]
		if !ok {
			a = &acc{sample: Sample{EquipmentID: r.EquipmentID, Period: p}}
			byKey[key] = a
		}
		a.sample.Cycles++
		if r.Defect {
			a.sample.Defects++
		}
		a.pressure = append(a.pressure, r.PressureMPa)
		a.humidity = append(a.humidity, r.HumidityPct)
		a.temp = append(a.temp, r.DieTempC)
	}

	samples := make([]Sample, 0, len(byKey))
	for _, a := range byKey {
		a.sample.PressureMPa = stats.Mean(a.pressure)
		a.sample.HumidityPct = stats.Mean(a.humidity)
		a.sample.DieTempC = stats.Mean(a.temp)
		samples = append(samples, a.sample)
	}
	sort.Slice(samples, func(i, j int) bool {
		if samples[i].EquipmentID != samples[j].EquipmentID {
			return samples[i].EquipmentID < samples[j].EquipmentID
		}
		return samples[i].Period.Before(samples[j].Period)
	})
	return samples
}

// LatestStatus returns the most recent sample per machine.
func LatestStatus(samples []Sample) map[string]Sample {
	latest := make(map[string]Sample)
	for _, s := range samples {
		if cur, ok := latest[s.EquipmentID]; !ok || s.Period.After(cur.Period) {
			latest[s.EquipmentID] = s
		}
	}
	return latest
}

// DefectRate is the defect fraction for one machine.
type DefectRate struct {
	EquipmentID string  `json:"equipment_id"`
	Cycles      int     `json:"cycles"`
	Defects     int     `json:"defects"`
	Rate        float64 `json:"rate"`
}

// DefectRates computes the defect fraction per machine over all
// telemetry cycles, ordered worst first.
func DefectRates(telemetry []schema.TelemetryRecord) []DefectRate {
	byMachine := make(map[string]*DefectRate)
	for _, r := range telemetry {
		d, ok := byMachine[r.EquipmentID]
		if !ok {
			d = &DefectRate{EquipmentID: r.EquipmentID}
			byMachine[r.EquipmentID] = d
		}
		d.Cycles++
		if r.Defect {
			d.Defects++
		}
	}
	rates := make([]DefectRate, 0, len(byMachine))
	for _, d := range byMachine {
		if d.Cycles > 0 {
			d.Rate = float64(d.Defects) / float64(d.Cycles)
		}
		rates = append(rates, *d)
	}
	sort.Slice(rates, func(i, j int) bool {
		if rates[i].Rate != rates[j].Rate {
			return rates[i].Rate > rates[j].Rate
		}
		return rates[i].EquipmentID < rates[j].EquipmentID
	})
	return rates
}
