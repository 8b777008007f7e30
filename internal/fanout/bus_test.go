package fanout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/solar-surv/coldwatch/internal/domain/telemetry"
)

// collector records every delivered state.
type collector struct {
	mu     sync.Mutex
	states []telemetry.DeviceState
}

func (c *collector) Send(state telemetry.DeviceState) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.states = append(c.states, state)

	return nil
}

func (c *collector) snapshot() []telemetry.DeviceState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]telemetry.DeviceState(nil), c.states...)
}

// failing always reports a dead connection.
type failing struct{}

func (failing) Send(telemetry.DeviceState) error {
	return errors.New("connection reset")
}

// stalled blocks every Send until released, signalling each attempt.
type stalled struct {
	started chan struct{}
	release chan struct{}
	collector
}

func (s *stalled) Send(state telemetry.DeviceState) error {
	s.started <- struct{}{}
	<-s.release

	return s.collector.Send(state)
}

func state(deviceID, ts int64) telemetry.DeviceState {
	return telemetry.DeviceState{
		DeviceID: deviceID,
		LastReading: telemetry.Reading{
			DeviceID:  deviceID,
			Timestamp: ts,
		},
		AlertSince: ts,
	}
}

// TestPublishDelivers verifies frames reach a subscriber in publish order.
func TestPublishDelivers(t *testing.T) {
	t.Parallel()

	bus := NewBus(8)
	defer bus.Close()

	sub := new(collector)
	bus.Subscribe(context.Background(), sub)

	for ts := int64(1); ts <= 3; ts++ {
		bus.Publish(state(1, ts))
	}

	require.Eventually(t, func() bool {
		return len(sub.snapshot()) == 3
	}, time.Second, 5*time.Millisecond)

	got := sub.snapshot()
	for i, s := range got {
		require.Equal(t, int64(i+1), s.LastReading.Timestamp)
	}
}

// TestFailingSubscriberIsolated verifies a subscriber whose sends fail is
// unsubscribed automatically and does not disturb a healthy peer.
func TestFailingSubscriberIsolated(t *testing.T) {
	t.Parallel()

	bus := NewBus(8)
	defer bus.Close()

	healthy := new(collector)
	bus.Subscribe(context.Background(), failing{})
	bus.Subscribe(context.Background(), healthy)

	require.Equal(t, 2, bus.SubscriberCount())

	bus.Publish(state(1, 1000))

	// The failing subscriber disappears within one publish cycle.
	require.Eventually(t, func() bool {
		return bus.SubscriberCount() == 1
	}, time.Second, 5*time.Millisecond)

	// The healthy one still gets everything.
	bus.Publish(state(1, 2000))

	require.Eventually(t, func() bool {
		return len(healthy.snapshot()) == 2
	}, time.Second, 5*time.Millisecond)
}

// TestDropOldest verifies a stalled subscriber loses its oldest pending
// frames, keeps the newest, and never blocks the publisher.
func TestDropOldest(t *testing.T) {
	t.Parallel()

	bus := NewBus(2)
	defer bus.Close()

	sub := &stalled{
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
	bus.Subscribe(context.Background(), sub)

	// First frame is picked up by the delivery goroutine and stalls in Send.
	bus.Publish(state(1, 1))
	<-sub.started

	// Fill the queue, then overflow it: 2 and 3 are pending, 4 and 5 evict them.
	for ts := int64(2); ts <= 5; ts++ {
		bus.Publish(state(1, ts))
	}

	require.Equal(t, uint64(2), bus.Dropped())

	close(sub.release)
	for i := 0; i < 2; i++ {
		<-sub.started
	}

	require.Eventually(t, func() bool {
		return len(sub.snapshot()) == 3
	}, time.Second, 5*time.Millisecond)

	got := sub.snapshot()
	require.Equal(t, int64(1), got[0].LastReading.Timestamp)
	require.Equal(t, int64(4), got[1].LastReading.Timestamp)
	require.Equal(t, int64(5), got[2].LastReading.Timestamp)
}

// TestUnsubscribeDuringSend verifies unsubscribing while a send is in flight
// stops delivery without further sends.
func TestUnsubscribeDuringSend(t *testing.T) {
	t.Parallel()

	bus := NewBus(8)
	defer bus.Close()

	sub := &stalled{
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
	handle := bus.Subscribe(context.Background(), sub)

	bus.Publish(state(1, 1))
	<-sub.started

	// Queue another frame, then unsubscribe while the first send is blocked.
	bus.Publish(state(1, 2))
	bus.Unsubscribe(handle)
	close(sub.release)

	// Only the in-flight send completes; the queued frame is never delivered.
	require.Eventually(t, func() bool {
		return len(sub.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	require.Len(t, sub.snapshot(), 1)
	require.Zero(t, bus.SubscriberCount())

	// Unsubscribing again is a no-op.
	bus.Unsubscribe(handle)
}

// TestClose removes all subscribers.
func TestClose(t *testing.T) {
	t.Parallel()

	bus := NewBus(8)
	bus.Subscribe(context.Background(), new(collector))
	bus.Subscribe(context.Background(), new(collector))

	bus.Close()
	require.Zero(t, bus.SubscriberCount())

	// Publishing after close is harmless.
	bus.Publish(state(1, 1))
}
