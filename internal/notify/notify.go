package notify

import (
	"context"
	"fmt"

	"github.com/solar-surv/coldwatch/internal/classifier"
	"github.com/solar-surv/coldwatch/internal/domain/telemetry"
	"github.com/solar-surv/coldwatch/internal/logger"
)

// Sink delivers a single human-readable alert message. The SMS modem (or any
// other delivery mechanism) lives behind this seam.
type Sink interface {
	Notify(ctx context.Context, message string) error
}

// Notifier is a fan-out subscriber that fires the sink exactly once per
// transition into a non-none alert. Steady-state alert readings and
// recoveries produce no sink calls.
type Notifier struct {
	ctx        context.Context //nolint:containedctx // Carries the logger into bus-driven Send calls.
	sink       Sink
	thresholds classifier.Thresholds
}

// NewNotifier creates a notifier delivering through the given sink.
// The context is used for logging and sink calls triggered by the bus.
func NewNotifier(ctx context.Context, sink Sink, thresholds classifier.Thresholds) *Notifier {
	return &Notifier{
		ctx:        ctx,
		sink:       sink,
		thresholds: thresholds,
	}
}

// Send implements the fan-out subscriber contract. Sink failures are logged
// and swallowed: a broken notification channel must not unsubscribe the
// notifier or affect ingestion.
func (n *Notifier) Send(state telemetry.DeviceState) error {
	if state.ActiveAlert == telemetry.AlertNone || !state.Transitioned() {
		return nil
	}

	message := n.Message(state)
	if err := n.sink.Notify(n.ctx, message); err != nil {
		logger.ErrorKV(n.ctx, "Notification delivery failed",
			"device_id", state.DeviceID, "error", err)
	}

	return nil
}

// Message renders the alert text for a state, following the wording the
// clinic staff see on their phones.
func (n *Notifier) Message(state telemetry.DeviceState) string {
	r := state.LastReading

	switch state.ActiveAlert {
	case telemetry.AlertTooHot:
		return fmt.Sprintf("VACCINE ALERT: device %d temperature %.1f°C is TOO HOT! Safe range: %.0f-%.0f°C",
			state.DeviceID, r.Temperature, n.thresholds.Cold, n.thresholds.Hot)
	case telemetry.AlertTooCold:
		return fmt.Sprintf("VACCINE ALERT: device %d temperature %.1f°C is TOO COLD! Safe range: %.0f-%.0f°C",
			state.DeviceID, r.Temperature, n.thresholds.Cold, n.thresholds.Hot)
	case telemetry.AlertBatteryLow:
		return fmt.Sprintf("BATTERY LOW: device %d at %.1fV - device may shut down",
			state.DeviceID, r.BatteryVoltage)
	case telemetry.AlertEmergency:
		return fmt.Sprintf("EMERGENCY ALERT: device %d manual emergency button pressed! Immediate attention required!",
			state.DeviceID)
	case telemetry.AlertNone:
		return ""
	default:
		return ""
	}
}

// LogSink writes alert messages to the log. It stands in for the SMS modem in
// development and demo setups.
type LogSink struct{}

// Notify implements Sink.
func (LogSink) Notify(ctx context.Context, message string) error {
	logger.Warnf(ctx, "ALERT NOTIFICATION: %s", message)

	return nil
}
