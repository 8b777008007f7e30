package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/solar-surv/coldwatch/internal/config"
	"github.com/solar-surv/coldwatch/internal/logger"
	"github.com/solar-surv/coldwatch/internal/service/sensor"
	"github.com/solar-surv/coldwatch/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// deviceID the simulated node reports as.
	deviceID int64
	// interval between readings.
	interval time.Duration
	// emergency presses the emergency button on the first reading.
	emergency bool
	// logLevel sets the minimum log level.
	logLevel string

	// rootCmd represents the base command for running the simulated sensor.
	rootCmd = &cobra.Command{
		Use:   "coldwatch-sensor",
		Short: "Run a simulated cold-chain sensor node.",
		Long: `Publishes simulated temperature and battery readings to the MQTT broker
the way the field hardware does, cycling through normal, too-hot and too-cold
phases. Useful for demos and for exercising a running monitor.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}

			options := &sensor.Options{
				ConfigPath: configPath,
				DeviceID:   deviceID,
				Interval:   interval,
				Emergency:  emergency,
			}

			return sensor.Run(ctx, options)
		},
	}
)

// Execute runs the coldwatch-sensor CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().Int64VarP(&deviceID, "device-id", "d", 1, "device id to report as")
	rootCmd.Flags().DurationVarP(&interval, "interval", "i", 5*time.Second, "reporting interval")
	rootCmd.Flags().BoolVarP(&emergency, "emergency", "e", false, "press the emergency button on the first reading")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "info", "minimum log level (debug, info, warn, error)")
}
