package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters shared by the coldwatch binaries.
type Config struct {
	// ListenAddress is the HTTP address the monitor serves dashboards and status on.
	ListenAddress string `yaml:"listen_addr"`
	// BrokerURL is the MQTT broker readings are received from (e.g. tcp://host:1883).
	BrokerURL string `yaml:"broker_url"`
	// TopicPrefix is the root of the MQTT topic tree (readings arrive on
	// <prefix>/readings/<device-id>).
	TopicPrefix string `yaml:"topic_prefix"`
	// QueueCapacity is the per-subscriber pending-frame queue size.
	QueueCapacity int `yaml:"queue_capacity"`
	// Timeout is the duration for network operations (broker connect, shutdown).
	Timeout time.Duration `yaml:"timeout"`
	// Thresholds are the safety limits readings are classified against.
	Thresholds Thresholds `yaml:"thresholds"`
}

// Thresholds are the configurable safety limits for vaccine storage.
type Thresholds struct {
	// Hot is the temperature in °C above which a too-hot alert fires.
	Hot float64 `yaml:"hot_celsius"`
	// Cold is the temperature in °C below which a too-cold alert fires.
	Cold float64 `yaml:"cold_celsius"`
	// BatteryLow is the voltage below which a battery-low alert fires.
	BatteryLow float64 `yaml:"battery_low_volts"`
}

const (
	// DefaultConfigFilename is the default filename for monitor settings.
	DefaultConfigFilename = "coldwatch-settings.yaml"

	// DefaultListenAddress is the default HTTP listen address.
	DefaultListenAddress = ":8080"

	// DefaultBrokerURL is the default MQTT broker address.
	DefaultBrokerURL = "tcp://localhost:1883"

	// DefaultTopicPrefix is the default MQTT topic root.
	DefaultTopicPrefix = "coldwatch"

	// DefaultQueueCapacity is the default per-subscriber queue size.
	DefaultQueueCapacity = 64

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

// Vaccine cold-chain safe range (WHO 2-8°C) and the battery cutoff of the
// sensor hardware.
const (
	DefaultHotThreshold        = 8.0
	DefaultColdThreshold       = 2.0
	DefaultBatteryLowThreshold = 3.3
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errListenAddressRequired is returned when the listen address is missing.
	errListenAddressRequired = errors.New("listen address must be provided")
	// errThresholdOrder is returned when the hot threshold does not exceed the cold one.
	errThresholdOrder = errors.New("hot threshold must be greater than cold threshold")
	// errBatteryThreshold is returned when the battery threshold is not positive.
	errBatteryThreshold = errors.New("battery low threshold must be positive")
)

// Default returns a configuration filled with the default values.
func Default() *Config {
	return &Config{
		ListenAddress: DefaultListenAddress,
		BrokerURL:     DefaultBrokerURL,
		TopicPrefix:   DefaultTopicPrefix,
		QueueCapacity: DefaultQueueCapacity,
		Timeout:       DefaultTimeout,
		Thresholds: Thresholds{
			Hot:        DefaultHotThreshold,
			Cold:       DefaultColdThreshold,
			BatteryLow: DefaultBatteryLowThreshold,
		},
	}
}

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and formatting,
// filling in defaults for optional fields that are unset.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ListenAddress == "" {
		return errListenAddressRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}

	if cfg.BrokerURL == "" {
		cfg.BrokerURL = DefaultBrokerURL
	}

	if _, err := url.Parse(cfg.BrokerURL); err != nil {
		return fmt.Errorf("invalid broker URL: %w", err)
	}

	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}

	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = DefaultQueueCapacity
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if err := validateThresholds(&cfg.Thresholds); err != nil {
		return err
	}

	return nil
}

// validateThresholds fills zero-valued thresholds with defaults and checks
// their relative ordering.
func validateThresholds(t *Thresholds) error {
	if t.Hot == 0 && t.Cold == 0 {
		t.Hot = DefaultHotThreshold
		t.Cold = DefaultColdThreshold
	}

	if t.BatteryLow == 0 {
		t.BatteryLow = DefaultBatteryLowThreshold
	}

	if t.Hot <= t.Cold {
		return errThresholdOrder
	}

	if t.BatteryLow <= 0 {
		return errBatteryThreshold
	}

	return nil
}
