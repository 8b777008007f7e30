package classifier

import (
	"github.com/solar-surv/coldwatch/internal/config"
	"github.com/solar-surv/coldwatch/internal/domain/telemetry"
)

// Thresholds are the safety limits a reading is classified against.
type Thresholds struct {
	// Hot is the temperature in °C above which AlertTooHot fires.
	Hot float64
	// Cold is the temperature in °C below which AlertTooCold fires.
	Cold float64
	// BatteryLow is the voltage below which AlertBatteryLow fires.
	BatteryLow float64
}

// FromConfig converts configured threshold settings into classifier thresholds.
func FromConfig(t config.Thresholds) Thresholds {
	return Thresholds{
		Hot:        t.Hot,
		Cold:       t.Cold,
		BatteryLow: t.BatteryLow,
	}
}

// Default returns the standard vaccine cold-chain thresholds.
func Default() Thresholds {
	return Thresholds{
		Hot:        config.DefaultHotThreshold,
		Cold:       config.DefaultColdThreshold,
		BatteryLow: config.DefaultBatteryLowThreshold,
	}
}

// Classify maps a reading plus the previous device state to a new state.
//
// Rules apply in priority order, first match wins:
// emergency button > too hot > too cold > battery low > none.
//
// AlertSince is reset to the reading timestamp only when the computed alert
// differs from the previous state's (or there is no previous state);
// otherwise it is carried forward so consumers can tell alert onset from
// alert continuation. PreviousAlert always carries the prior ActiveAlert.
func Classify(t Thresholds, prev *telemetry.DeviceState, r telemetry.Reading) telemetry.DeviceState {
	kind := kindOf(t, r)

	state := telemetry.DeviceState{
		DeviceID:      r.DeviceID,
		LastReading:   r,
		ActiveAlert:   kind,
		AlertSince:    r.Timestamp,
		PreviousAlert: telemetry.AlertNone,
	}

	if prev == nil {
		return state
	}

	state.PreviousAlert = prev.ActiveAlert
	if prev.ActiveAlert == kind {
		state.AlertSince = prev.AlertSince
	}

	return state
}

// kindOf evaluates the threshold rules for a single reading.
func kindOf(t Thresholds, r telemetry.Reading) telemetry.AlertKind {
	switch {
	case r.EmergencyPressed:
		return telemetry.AlertEmergency
	case r.Temperature > t.Hot:
		return telemetry.AlertTooHot
	case r.Temperature < t.Cold:
		return telemetry.AlertTooCold
	case r.BatteryVoltage < t.BatteryLow:
		return telemetry.AlertBatteryLow
	default:
		return telemetry.AlertNone
	}
}
