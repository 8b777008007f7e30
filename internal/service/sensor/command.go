package sensor

import (
	"context"
	"fmt"
	"time"

	"github.com/solar-surv/coldwatch/internal/config"
	"github.com/solar-surv/coldwatch/internal/domain/telemetry"
	"github.com/solar-surv/coldwatch/internal/logger"
	mqtttransport "github.com/solar-surv/coldwatch/internal/transport/mqtt"
)

// Scenario cycle: ten normal readings, ten too-hot, ten too-cold, repeating.
// The values mirror the field demo units.
const (
	scenarioPeriod = 30

	normalTemperature = 4.2
	hotTemperature    = 9.1
	coldTemperature   = 1.5

	initialBattery = 3.8
	batteryDecay   = 0.001
)

// Options controls the simulated sensor node.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// DeviceID is the identity the simulated node reports as.
	DeviceID int64
	// Interval is the reporting cadence.
	Interval time.Duration
	// Emergency makes the node press its emergency button on the first reading.
	Emergency bool
}

// Run publishes simulated readings until the context is canceled.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "coldwatch-sensor")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	clientID := fmt.Sprintf("coldwatch-sensor-%d", opts.DeviceID)

	broker, err := mqtttransport.Connect(ctx, settings.BrokerURL, clientID, settings.Timeout)
	if err != nil {
		return fmt.Errorf("connect broker: %w", err)
	}

	defer broker.Close()

	publisher := mqtttransport.NewPublisher(broker, settings.TopicPrefix)

	logger.InfoKV(ctx, "Sensor node started",
		"device_id", opts.DeviceID,
		"interval", opts.Interval,
		"broker", settings.BrokerURL)

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	var (
		battery   = initialBattery
		emergency = opts.Emergency
	)

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Sensor node stopped")

			return nil
		case now := <-ticker.C:
			reading := telemetry.Reading{
				DeviceID:         opts.DeviceID,
				Timestamp:        now.UnixMilli(),
				Temperature:      scenarioTemperature(now),
				BatteryVoltage:   battery,
				EmergencyPressed: emergency,
			}

			if err := publisher.PublishReading(reading); err != nil {
				logger.WarnKV(ctx, "Failed to publish reading", "error", err)

				continue
			}

			logger.DebugKV(ctx, "Reading published",
				"device_id", reading.DeviceID,
				"temperature", reading.Temperature,
				"battery", reading.BatteryVoltage)

			battery -= batteryDecay
			// The button is edge-triggered: report it once, then release.
			emergency = false
		}
	}
}

// scenarioTemperature walks the demo cycle based on wall-clock seconds.
func scenarioTemperature(now time.Time) float64 {
	switch phase := now.Unix() % scenarioPeriod; {
	case phase < 10:
		return normalTemperature
	case phase < 20:
		return hotTemperature
	default:
		return coldTemperature
	}
}
