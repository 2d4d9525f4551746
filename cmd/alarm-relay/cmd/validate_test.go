package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/alarm-relay/internal/config"
)

func TestPrintSummary(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Zabbix: config.Zabbix{
			APIURL:            "https://zabbix.local/zabbix/api_jsonrpc.php",
			User:              "relay",
			Password:          "secret",
			UseTriggerFilters: true,
			TriggerFilters:    []string{"a", "b"},
		},
		Telegram: config.Telegram{BotToken: "1:abc", ChatID: "-100"},
		Alarms:   config.Alarms{SendRestartResolutions: config.Bool(false)},
	}
	require.NoError(t, config.Validate(cfg))

	var out bytes.Buffer
	printSummary(&out, "settings.yaml", cfg)

	text := out.String()
	require.Contains(t, text, "Configuration settings.yaml is valid.")
	require.Contains(t, text, "2 trigger filters")
	require.Contains(t, text, "every "+time.Hour.String())
	require.Contains(t, text, "true/false")
	require.Contains(t, text, "graphs:           true (3 profiles)")
	require.NotContains(t, text, "secret")
	require.NotContains(t, text, "1:abc")
}
