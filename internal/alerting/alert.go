// Package alerting watches aggregated telemetry for statistical and
// safety deviations and fans resulting alerts out to notification
// channels.
package alerting

import (
	"time"

	"github.com/google/uuid"
)

// Alert types
const (
	TypeOutOfControl = "OUT_OF_CONTROL"
	TypeTrend        = "TREND"
	TypeSpike        = "SPIKE"
	TypeDrift        = "DRIFT"
	TypeAnomaly      = "ANOMALY"
)

// Alert severities
const (
	SeverityLow      = "LOW"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// Limits are the control limits in force when an alert fired.
type Limits struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	UCL  float64 `json:"ucl"`
	LCL  float64 `json:"lcl"`
}

// Alert is one detected deviation.
type Alert struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	EquipmentID string    `json:"equipment_id"`
	Metric      string    `json:"metric"`
	Value       float64   `json:"value"`
	Type        string    `json:"type"`
	Severity    string    `json:"severity"`
	Message     string    `json:"message"`
	Limits      *Limits   `json:"limits,omitempty"`
}

func newAlert(ts time.Time, equipment, metric string, value float64, typ, severity, message string) Alert {
	return Alert{
		ID:          uuid.NewString(),
		Timestamp:   ts,
		EquipmentID: equipment,
		Metric:      metric,
		Value:       value,
		Type:        typ,
		Severity:    severity,
		Message:     message,
	}
}
