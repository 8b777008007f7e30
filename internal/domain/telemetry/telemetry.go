package telemetry

import "errors"

// AlertKind classifies a device state against the safety thresholds.
// The numeric values are part of the wire contract with dashboard clients
// and must not be reordered.
type AlertKind int

const (
	// AlertNone means the reading is within all safety limits.
	AlertNone AlertKind = iota
	// AlertTooHot means the temperature exceeded the hot threshold.
	AlertTooHot
	// AlertTooCold means the temperature fell below the cold threshold.
	AlertTooCold
	// AlertBatteryLow means the battery voltage fell below the low threshold.
	AlertBatteryLow
	// AlertEmergency means the manual emergency button was pressed.
	AlertEmergency
)

// String returns a human-readable name for the alert kind.
func (k AlertKind) String() string {
	switch k {
	case AlertNone:
		return "none"
	case AlertTooHot:
		return "too_hot"
	case AlertTooCold:
		return "too_cold"
	case AlertBatteryLow:
		return "battery_low"
	case AlertEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

var (
	// ErrMissingDeviceID is returned for readings without a usable device identity.
	ErrMissingDeviceID = errors.New("reading has no device id")
	// ErrMissingTimestamp is returned for readings without a producer timestamp.
	ErrMissingTimestamp = errors.New("reading has no timestamp")
)

// Reading is one timestamped sensor sample from a device, immutable once
// produced. Timestamps are producer-assigned epoch milliseconds.
type Reading struct {
	// DeviceID is the stable identity of the reporting sensor node.
	DeviceID int64 `json:"deviceId"`
	// Timestamp is when the sample was taken, in milliseconds since epoch.
	Timestamp int64 `json:"timestamp"`
	// Temperature is the measured temperature in °C.
	Temperature float64 `json:"temperature"`
	// BatteryVoltage is the measured battery level in volts.
	BatteryVoltage float64 `json:"batteryVoltage"`
	// EmergencyPressed reports an edge-triggered manual alarm press.
	EmergencyPressed bool `json:"emergencyPressed"`
}

// Validate checks the structural fields a reading cannot be processed without.
// Out-of-range measurement values are not rejected; sensor noise is expected
// and classified normally.
func (r Reading) Validate() error {
	if r.DeviceID <= 0 {
		return ErrMissingDeviceID
	}

	if r.Timestamp <= 0 {
		return ErrMissingTimestamp
	}

	return nil
}

// DeviceState is the latest known state of one device plus its derived alert
// classification. Only the ingestion loop produces new states.
type DeviceState struct {
	// DeviceID is the device this state belongs to.
	DeviceID int64
	// LastReading is the most recent reading received from the device.
	LastReading Reading
	// ActiveAlert is the single alert currently surfaced for the device.
	ActiveAlert AlertKind
	// AlertSince is the timestamp (epoch ms) the current ActiveAlert began.
	// It is carried forward unchanged while ActiveAlert stays the same.
	AlertSince int64
	// PreviousAlert is the ActiveAlert of the prior state, letting consumers
	// distinguish alert onset from alert continuation.
	PreviousAlert AlertKind
}

// Transitioned reports whether this state entered a different alert than the
// one before it.
func (s DeviceState) Transitioned() bool {
	return s.ActiveAlert != s.PreviousAlert
}

// Frame is the serialized device-state update delivered to subscribers.
// Field names and alert codes match the dashboard wire contract.
type Frame struct {
	DeviceID         int64   `json:"deviceId"`
	Timestamp        int64   `json:"timestamp"`
	Temperature      float64 `json:"temperature"`
	BatteryVoltage   float64 `json:"batteryVoltage"`
	EmergencyPressed bool    `json:"emergencyPressed"`
	AlertActive      bool    `json:"alertActive"`
	AlertType        int     `json:"alertType"`
}

// Frame converts the state to its wire representation.
func (s DeviceState) Frame() Frame {
	return Frame{
		DeviceID:         s.DeviceID,
		Timestamp:        s.LastReading.Timestamp,
		Temperature:      s.LastReading.Temperature,
		BatteryVoltage:   s.LastReading.BatteryVoltage,
		EmergencyPressed: s.LastReading.EmergencyPressed,
		AlertActive:      s.ActiveAlert != AlertNone,
		AlertType:        int(s.ActiveAlert),
	}
}
