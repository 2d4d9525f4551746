package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-relay/internal/config"
	"github.com/oshokin/alarm-relay/internal/service/relay"
	"github.com/oshokin/alarm-relay/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// logLevel overrides the log level from the configuration file.
	logLevel string

	// rootCmd represents the base command for relaying alarms.
	rootCmd = &cobra.Command{
		Use:   "alarm-relay",
		Short: "Relay Zabbix triggers to a Telegram chat.",
		Long: `Long-running service that polls Zabbix for problem and resolved triggers
and relays them to a Telegram chat.

Each new problem is posted once as an alert. Continuing problems get reminders
as replies to the alert, and the resolution is posted as a reply too.
Alerts about memory, CPU or disk usage can be followed by a chart of the item.

Settings are loaded from a YAML file; see the validate subcommand.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			relayOptions := &relay.Options{
				ConfigPath: configPath,
				LogLevel:   logLevel,
			}

			return relay.Run(ctx, relayOptions)
		},
	}
)

// Execute runs the alarm-relay CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(newValidateCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Persistent flags are shared with the validate subcommand.
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "log level override (debug, info, warn, error)")
}
