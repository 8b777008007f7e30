package mqtt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solar-surv/coldwatch/internal/domain/telemetry"
)

// TestReadingTopic pins the topic layout sensors and monitor agree on.
func TestReadingTopic(t *testing.T) {
	t.Parallel()

	require.Equal(t, "coldwatch/readings/7", ReadingTopic("coldwatch", 7))
	require.Equal(t, "coldwatch/readings/#", readingWildcard("coldwatch"))
}

// TestHandleMessage verifies JSON decoding into the readings channel and
// rejection of malformed payloads.
func TestHandleMessage(t *testing.T) {
	t.Parallel()

	s := &Source{
		readings: make(chan telemetry.Reading, 1),
		done:     make(chan struct{}),
	}

	payload := []byte(`{"deviceId":1,"timestamp":1700000000000,"temperature":9.1,"batteryVoltage":3.7,"emergencyPressed":false}`)
	require.NoError(t, s.handleMessage("coldwatch/readings/1", payload))

	reading := <-s.readings
	require.Equal(t, int64(1), reading.DeviceID)
	require.InDelta(t, 9.1, reading.Temperature, 0)

	// Malformed JSON is reported, not delivered.
	require.Error(t, s.handleMessage("coldwatch/readings/1", []byte("{broken")))
	require.Empty(t, s.readings)

	// After close, messages are ignored.
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	require.NoError(t, s.handleMessage("coldwatch/readings/1", payload))
	require.Empty(t, s.readings)
}
