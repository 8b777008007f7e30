package monitor

import (
	"context"
	"fmt"

	"github.com/solar-surv/coldwatch/internal/api"
	"github.com/solar-surv/coldwatch/internal/classifier"
	"github.com/solar-surv/coldwatch/internal/config"
	"github.com/solar-surv/coldwatch/internal/fanout"
	"github.com/solar-surv/coldwatch/internal/ingest"
	"github.com/solar-surv/coldwatch/internal/logger"
	"github.com/solar-surv/coldwatch/internal/notify"
	"github.com/solar-surv/coldwatch/internal/registry"
	mqtttransport "github.com/solar-surv/coldwatch/internal/transport/mqtt"
)

// mqttClientID identifies the monitor on the broker.
const mqttClientID = "coldwatch-monitor"

// Options controls the coldwatch-monitor process and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the HTTP server.
	ListenAddress string
	// BrokerURL provides an optional broker override.
	BrokerURL string
}

// Run starts the monitor and blocks until the context is canceled.
//
// It wires the pipeline described by the settings: MQTT reading source →
// ingestion loop → registry + fan-out bus → { websocket dashboards, alert
// notifier }.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "coldwatch-monitor")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if opts.ListenAddress != "" {
		settings.ListenAddress = opts.ListenAddress
	}

	if opts.BrokerURL != "" {
		settings.BrokerURL = opts.BrokerURL
	}

	thresholds := classifier.FromConfig(settings.Thresholds)

	reg := registry.New()
	bus := fanout.NewBus(settings.QueueCapacity)

	defer bus.Close()

	// The notifier rides the same bus as the dashboards: alert transitions
	// reach it as ordinary state updates.
	notifier := notify.NewNotifier(ctx, notify.LogSink{}, thresholds)
	bus.Subscribe(ctx, notifier)

	broker, err := mqtttransport.Connect(ctx, settings.BrokerURL, mqttClientID, settings.Timeout)
	if err != nil {
		return fmt.Errorf("connect broker: %w", err)
	}

	defer broker.Close()

	source, err := mqtttransport.NewSource(broker, settings.TopicPrefix, settings.QueueCapacity)
	if err != nil {
		return fmt.Errorf("open reading source: %w", err)
	}

	loop := ingest.NewLoop(reg, bus, thresholds)

	// Ingestion done channel is closed when the loop exits so shutdown blocks
	// until the last reading is fully applied.
	ingestDone := make(chan struct{})

	go func() {
		defer close(ingestDone)
		loop.Run(logger.WithName(ctx, "ingest"), source.Readings())
	}()

	logger.InfoKV(ctx, "Monitor started",
		"listen_address", settings.ListenAddress,
		"broker", settings.BrokerURL,
		"hot_threshold", settings.Thresholds.Hot,
		"cold_threshold", settings.Thresholds.Cold,
		"battery_threshold", settings.Thresholds.BatteryLow)

	server := api.NewServer(settings.ListenAddress, reg, bus, loop)

	serveErr := server.Run(ctx)

	if err := source.Close(); err != nil {
		logger.WarnKV(ctx, "Reading source close failed", "error", err)
	}

	<-ingestDone
	logger.Info(ctx, "Monitor stopped")

	return serveErr
}
