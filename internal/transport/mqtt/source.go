package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/solar-surv/coldwatch/internal/domain/telemetry"
)

// ReadingTopic returns the topic a device publishes its readings on.
func ReadingTopic(prefix string, deviceID int64) string {
	return fmt.Sprintf("%s/readings/%d", prefix, deviceID)
}

// readingWildcard matches the readings of every device under the prefix.
func readingWildcard(prefix string) string {
	return prefix + "/readings/#"
}

// Source turns broker messages into a channel of readings for the ingestion
// loop. Message order per topic is preserved by the broker and by paho's
// ordered dispatch, so per-device arrival order survives into the channel.
type Source struct {
	client *Client
	topic  string

	readings chan telemetry.Reading

	// mu guards closed; wg tracks in-flight handler sends so the channel can
	// be closed safely after Close.
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	done   chan struct{}
}

// NewSource subscribes to the readings topic tree under the given prefix and
// starts feeding decoded readings into a channel of the given buffer size.
func NewSource(client *Client, prefix string, buffer int) (*Source, error) {
	s := &Source{
		client:   client,
		topic:    readingWildcard(prefix),
		readings: make(chan telemetry.Reading, buffer),
		done:     make(chan struct{}),
	}

	if err := client.Subscribe(s.topic, s.handleMessage); err != nil {
		return nil, fmt.Errorf("subscribe readings: %w", err)
	}

	return s, nil
}

// Readings returns the channel of decoded readings. It is closed by Close,
// signalling the ingestion loop to terminate cleanly.
func (s *Source) Readings() <-chan telemetry.Reading {
	return s.readings
}

// Close unsubscribes from the broker, waits for in-flight messages and closes
// the readings channel.
func (s *Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()

		return nil
	}

	s.closed = true
	s.mu.Unlock()

	err := s.client.Unsubscribe(s.topic)

	close(s.done)
	s.wg.Wait()
	close(s.readings)

	return err
}

// handleMessage decodes one broker message. Malformed payloads are reported
// as errors (logged by the client wrapper) and skipped; structural validation
// is the ingestion loop's job.
func (s *Source) handleMessage(topic string, payload []byte) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()

		return nil
	}

	s.wg.Add(1)
	s.mu.RUnlock()

	defer s.wg.Done()

	var reading telemetry.Reading
	if err := json.Unmarshal(payload, &reading); err != nil {
		return fmt.Errorf("decode reading on %s: %w", topic, err)
	}

	select {
	case s.readings <- reading:
	case <-s.done:
	}

	return nil
}
