package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solar-surv/coldwatch/internal/classifier"
	"github.com/solar-surv/coldwatch/internal/domain/telemetry"
)

// memorySink records delivered messages and can be told to fail.
type memorySink struct {
	mu       sync.Mutex
	messages []string
	fail     bool
}

func (s *memorySink) Notify(_ context.Context, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail {
		return errors.New("modem unavailable")
	}

	s.messages = append(s.messages, message)

	return nil
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.messages)
}

func hotState(ts int64, prev telemetry.AlertKind) telemetry.DeviceState {
	return telemetry.DeviceState{
		DeviceID: 1,
		LastReading: telemetry.Reading{
			DeviceID:    1,
			Timestamp:   ts,
			Temperature: 9.1,
		},
		ActiveAlert:   telemetry.AlertTooHot,
		AlertSince:    ts,
		PreviousAlert: prev,
	}
}

// TestNotifierFiresOncePerTransition verifies the edge-triggered policy: one
// notification on alert onset, none on continuation or recovery.
func TestNotifierFiresOncePerTransition(t *testing.T) {
	t.Parallel()

	sink := new(memorySink)
	n := NewNotifier(context.Background(), sink, classifier.Default())

	// Onset fires.
	require.NoError(t, n.Send(hotState(1000, telemetry.AlertNone)))
	require.Equal(t, 1, sink.count())

	// Continuation does not.
	require.NoError(t, n.Send(hotState(2000, telemetry.AlertTooHot)))
	require.Equal(t, 1, sink.count())

	// Recovery to none does not.
	recovered := telemetry.DeviceState{
		DeviceID:      1,
		ActiveAlert:   telemetry.AlertNone,
		PreviousAlert: telemetry.AlertTooHot,
	}
	require.NoError(t, n.Send(recovered))
	require.Equal(t, 1, sink.count())

	// A different alert kind is a fresh transition.
	emergency := telemetry.DeviceState{
		DeviceID:      1,
		LastReading:   telemetry.Reading{DeviceID: 1, Timestamp: 3000, EmergencyPressed: true},
		ActiveAlert:   telemetry.AlertEmergency,
		PreviousAlert: telemetry.AlertNone,
	}
	require.NoError(t, n.Send(emergency))
	require.Equal(t, 2, sink.count())
}

// TestNotifierSwallowsSinkErrors verifies a failing sink does not surface an
// error to the bus (which would unsubscribe the notifier).
func TestNotifierSwallowsSinkErrors(t *testing.T) {
	t.Parallel()

	sink := &memorySink{fail: true}
	n := NewNotifier(context.Background(), sink, classifier.Default())

	require.NoError(t, n.Send(hotState(1000, telemetry.AlertNone)))
	require.Zero(t, sink.count())
}

// TestMessageWording pins the alert texts for each kind.
func TestMessageWording(t *testing.T) {
	t.Parallel()

	n := NewNotifier(context.Background(), new(memorySink), classifier.Default())

	hot := n.Message(hotState(1000, telemetry.AlertNone))
	require.Contains(t, hot, "TOO HOT")
	require.Contains(t, hot, "9.1")
	require.Contains(t, hot, "2-8")

	cold := n.Message(telemetry.DeviceState{
		DeviceID:    2,
		LastReading: telemetry.Reading{DeviceID: 2, Temperature: 1.5},
		ActiveAlert: telemetry.AlertTooCold,
	})
	require.Contains(t, cold, "TOO COLD")
	require.Contains(t, cold, "1.5")

	battery := n.Message(telemetry.DeviceState{
		DeviceID:    3,
		LastReading: telemetry.Reading{DeviceID: 3, BatteryVoltage: 3.1},
		ActiveAlert: telemetry.AlertBatteryLow,
	})
	require.Contains(t, battery, "BATTERY LOW")
	require.Contains(t, battery, "3.1V")

	emergency := n.Message(telemetry.DeviceState{
		DeviceID:    4,
		ActiveAlert: telemetry.AlertEmergency,
	})
	require.Contains(t, emergency, "EMERGENCY")

	require.Empty(t, n.Message(telemetry.DeviceState{ActiveAlert: telemetry.AlertNone}))
}
