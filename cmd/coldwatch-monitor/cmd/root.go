package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/solar-surv/coldwatch/internal/config"
	"github.com/solar-surv/coldwatch/internal/logger"
	"github.com/solar-surv/coldwatch/internal/service/monitor"
	"github.com/solar-surv/coldwatch/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// brokerURL overrides the MQTT broker from configuration.
	brokerURL string
	// logLevel sets the minimum log level.
	logLevel string

	// rootCmd represents the base command for running the monitor.
	rootCmd = &cobra.Command{
		Use:   "coldwatch-monitor [listen-address]",
		Short: "Run the cold-chain monitoring server.",
		Long: `Starts the coldwatch monitor that ingests sensor readings from the MQTT
broker, classifies them against the configured safety thresholds and fans the
resulting device states out to connected dashboards and the alert notifier.

The HTTP listen address can be provided as an argument to override the
configuration (e.g. :9090, 0.0.0.0:8080). GET /status reports device and
subscriber counts, GET /ws serves dashboard subscriptions.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &monitor.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				BrokerURL:     brokerURL,
			}

			return monitor.Run(ctx, options)
		},
	}
)

// Execute runs the coldwatch-monitor CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&brokerURL, "broker", "b", "", "MQTT broker URL override (e.g. tcp://localhost:1883)")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "info", "minimum log level (debug, info, warn, error)")
}
