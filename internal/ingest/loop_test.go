package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/solar-surv/coldwatch/internal/classifier"
	"github.com/solar-surv/coldwatch/internal/domain/telemetry"
	"github.com/solar-surv/coldwatch/internal/registry"
)

// recordingBus captures published states synchronously.
type recordingBus struct {
	mu     sync.Mutex
	states []telemetry.DeviceState
}

func (b *recordingBus) Publish(state telemetry.DeviceState) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.states = append(b.states, state)
}

func (b *recordingBus) snapshot() []telemetry.DeviceState {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]telemetry.DeviceState(nil), b.states...)
}

// runLoop feeds the readings through a loop and waits for it to finish.
func runLoop(t *testing.T, readings []telemetry.Reading) (*registry.Registry, *recordingBus, *Loop) {
	t.Helper()

	reg := registry.New()
	bus := new(recordingBus)
	loop := NewLoop(reg, bus, classifier.Default())

	ch := make(chan telemetry.Reading, len(readings))
	for _, r := range readings {
		ch <- r
	}
	close(ch)

	done := make(chan struct{})

	go func() {
		defer close(done)
		loop.Run(context.Background(), ch)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ingestion loop did not finish")
	}

	return reg, bus, loop
}

// TestRunClassifiesAndPublishes verifies the reading flows through
// classification into the registry and out to the bus.
func TestRunClassifiesAndPublishes(t *testing.T) {
	t.Parallel()

	reg, bus, loop := runLoop(t, []telemetry.Reading{
		{DeviceID: 1, Timestamp: 1000, Temperature: 9.1, BatteryVoltage: 3.7},
	})

	state, ok := reg.Get(1)
	require.True(t, ok)
	require.Equal(t, telemetry.AlertTooHot, state.ActiveAlert)

	published := bus.snapshot()
	require.Len(t, published, 1)
	require.Equal(t, state, published[0])
	require.Equal(t, uint64(1), loop.ReadingsProcessed())
}

// TestRunPerDeviceOrdering verifies same-device readings are processed and
// published in arrival order, with hysteresis applied across them.
func TestRunPerDeviceOrdering(t *testing.T) {
	t.Parallel()

	_, bus, _ := runLoop(t, []telemetry.Reading{
		{DeviceID: 1, Timestamp: 1000, Temperature: 9.1, BatteryVoltage: 3.7},
		{DeviceID: 2, Timestamp: 1500, Temperature: 4.0, BatteryVoltage: 3.8},
		{DeviceID: 1, Timestamp: 2000, Temperature: 9.3, BatteryVoltage: 3.7},
		{DeviceID: 1, Timestamp: 3000, Temperature: 5.0, BatteryVoltage: 3.7},
	})

	published := bus.snapshot()
	require.Len(t, published, 4)

	var deviceOne []telemetry.DeviceState
	for _, s := range published {
		if s.DeviceID == 1 {
			deviceOne = append(deviceOne, s)
		}
	}

	require.Len(t, deviceOne, 3)
	require.Equal(t, telemetry.AlertTooHot, deviceOne[0].ActiveAlert)
	require.Equal(t, telemetry.AlertTooHot, deviceOne[1].ActiveAlert)
	// Steady-state alert keeps its onset timestamp.
	require.Equal(t, int64(1000), deviceOne[1].AlertSince)
	require.False(t, deviceOne[1].Transitioned())
	// Recovery is a transition.
	require.Equal(t, telemetry.AlertNone, deviceOne[2].ActiveAlert)
	require.True(t, deviceOne[2].Transitioned())
}

// TestRunDropsMalformed verifies malformed readings are counted and skipped
// without stopping the loop.
func TestRunDropsMalformed(t *testing.T) {
	t.Parallel()

	reg, bus, loop := runLoop(t, []telemetry.Reading{
		{DeviceID: 0, Timestamp: 1000, Temperature: 4.0, BatteryVoltage: 3.8},
		{DeviceID: 2, Timestamp: 0, Temperature: 4.0, BatteryVoltage: 3.8},
		{DeviceID: 3, Timestamp: 3000, Temperature: 4.0, BatteryVoltage: 3.8},
	})

	require.Equal(t, uint64(2), loop.ReadingsDropped())
	require.Equal(t, uint64(1), loop.ReadingsProcessed())
	require.Equal(t, 1, reg.Len())
	require.Len(t, bus.snapshot(), 1)
}

// TestRunContextCancel verifies the loop exits when the context is canceled
// even though the transport channel stays open.
func TestRunContextCancel(t *testing.T) {
	t.Parallel()

	loop := NewLoop(registry.New(), new(recordingBus), classifier.Default())

	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan telemetry.Reading)

	done := make(chan struct{})

	go func() {
		defer close(done)
		loop.Run(ctx, ch)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ingestion loop ignored cancellation")
	}
}
