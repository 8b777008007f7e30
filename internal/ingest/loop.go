package ingest

import (
	"context"
	"sync/atomic"

	"github.com/solar-surv/coldwatch/internal/classifier"
	"github.com/solar-surv/coldwatch/internal/domain/telemetry"
	"github.com/solar-surv/coldwatch/internal/fanout"
	"github.com/solar-surv/coldwatch/internal/logger"
	"github.com/solar-surv/coldwatch/internal/registry"
)

// Publisher is the fan-out seam the loop publishes classified states to.
type Publisher interface {
	Publish(state telemetry.DeviceState)
}

// Loop drains readings from a transport, classifies them and fans the
// resulting states out. A single Run goroutine preserves per-device ordering
// end to end: the transport delivers in arrival order, and every reading is
// applied to the registry and published before the next one is taken.
type Loop struct {
	registry   *registry.Registry
	bus        Publisher
	thresholds classifier.Thresholds

	processed atomic.Uint64
	dropped   atomic.Uint64
}

var _ Publisher = (*fanout.Bus)(nil)

// NewLoop creates an ingestion loop writing into the given registry and
// publishing to the given bus.
func NewLoop(reg *registry.Registry, bus Publisher, thresholds classifier.Thresholds) *Loop {
	return &Loop{
		registry:   reg,
		bus:        bus,
		thresholds: thresholds,
	}
}

// Run consumes readings until the channel closes (transport shut down) or the
// context is canceled. Malformed readings are dropped and logged; nothing the
// transport delivers can stop the loop.
func (l *Loop) Run(ctx context.Context, readings <-chan telemetry.Reading) {
	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Ingestion stopped: context canceled")

			return
		case reading, ok := <-readings:
			if !ok {
				logger.Info(ctx, "Ingestion stopped: transport closed")

				return
			}

			l.process(ctx, reading)
		}
	}
}

// process applies a single reading: validate, classify against the previous
// state, store, publish.
func (l *Loop) process(ctx context.Context, reading telemetry.Reading) {
	if err := reading.Validate(); err != nil {
		l.dropped.Add(1)
		logger.WarnKV(ctx, "Dropping malformed reading",
			"device_id", reading.DeviceID, "error", err)

		return
	}

	var prev *telemetry.DeviceState
	if previous, ok := l.registry.Get(reading.DeviceID); ok {
		prev = &previous
	}

	state := classifier.Classify(l.thresholds, prev, reading)
	l.registry.Upsert(state)
	l.bus.Publish(state)
	l.processed.Add(1)

	logger.DebugKV(ctx, "Reading processed",
		"device_id", state.DeviceID,
		"temperature", reading.Temperature,
		"battery", reading.BatteryVoltage,
		"alert", state.ActiveAlert.String())
}

// ReadingsProcessed returns the number of readings successfully ingested.
func (l *Loop) ReadingsProcessed() uint64 {
	return l.processed.Load()
}

// ReadingsDropped returns the number of readings rejected by validation.
func (l *Loop) ReadingsDropped() uint64 {
	return l.dropped.Load()
}
