package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-relay/internal/config"
)

// newValidateCommand builds the `validate` subcommand.
func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file.",
		Long:  "Load the configuration file, fill in defaults and print a summary of the effective settings without contacting Zabbix or Telegram.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			printSummary(cmd.OutOrStdout(), configPath, cfg)

			return nil
		},
	}
}

// printSummary writes the effective settings. Secrets are left out.
func printSummary(w io.Writer, path string, cfg *config.Config) {
	mode := fmt.Sprintf("min severity %d", cfg.Zabbix.MinSeverity)
	if cfg.Zabbix.UseTriggerFilters {
		mode = fmt.Sprintf("%d trigger filters", len(cfg.Zabbix.TriggerFilters))
	}

	_, _ = fmt.Fprintf(w, "Configuration %s is valid.\n", path)
	_, _ = fmt.Fprintf(w, "  zabbix api:       %s (%s)\n", cfg.Zabbix.APIURL, mode)
	_, _ = fmt.Fprintf(w, "  telegram chat:    %s\n", cfg.Telegram.ChatID)
	_, _ = fmt.Fprintf(w, "  poll interval:    %s\n", cfg.PollInterval)
	_, _ = fmt.Fprintf(w, "  reminders:        %t every %s\n", cfg.Alarms.RemindersEnabled(), cfg.Alarms.ReminderThreshold)
	_, _ = fmt.Fprintf(w, "  orphan/restart:   %t/%t\n", cfg.Alarms.OrphanResolutionsEnabled(), cfg.Alarms.RestartResolutionsEnabled())
	_, _ = fmt.Fprintf(w, "  retention:        %s, cleanup every %s\n", cfg.Alarms.RetentionPeriod, cfg.Alarms.CleanupInterval)
	_, _ = fmt.Fprintf(w, "  graphs:           %t (%d profiles)\n", cfg.Graphs.IsEnabled(), len(cfg.Graphs.Profiles))
}
