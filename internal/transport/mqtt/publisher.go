package mqtt

import (
	"encoding/json"
	"fmt"

	"github.com/solar-surv/coldwatch/internal/domain/telemetry"
)

// Publisher sends readings to the broker the way a sensor node does. It is
// used by the simulated sensor binary and by integration-style tests.
type Publisher struct {
	client *Client
	prefix string
}

// NewPublisher creates a reading publisher under the given topic prefix.
func NewPublisher(client *Client, prefix string) *Publisher {
	return &Publisher{
		client: client,
		prefix: prefix,
	}
}

// PublishReading serializes the reading and publishes it on the device's topic.
func (p *Publisher) PublishReading(reading telemetry.Reading) error {
	payload, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("encode reading: %w", err)
	}

	return p.client.Publish(ReadingTopic(p.prefix, reading.DeviceID), payload)
}
