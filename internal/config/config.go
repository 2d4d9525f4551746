package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every setting of the alarm relay.
type Config struct {
	// Zabbix configures the trigger source.
	Zabbix Zabbix `yaml:"zabbix"`
	// Telegram configures the notification transport.
	Telegram Telegram `yaml:"telegram"`
	// Alarms configures the lifecycle policy and state retention.
	Alarms Alarms `yaml:"alarms"`
	// Graphs configures chart replies to new alerts.
	Graphs Graphs `yaml:"graphs"`
	// PollInterval is the pause between poll cycles.
	PollInterval time.Duration `yaml:"poll_interval"`
	// MetricsAddress is the listen address of the Prometheus endpoint, empty disables it.
	MetricsAddress string `yaml:"metrics_address"`
	// HealthAddress is the listen address of the gRPC health service, empty disables it.
	HealthAddress string `yaml:"health_address"`
	// LogLevel is the minimum log level.
	LogLevel string `yaml:"log_level"`
}

// Zabbix holds the monitoring backend connection settings.
type Zabbix struct {
	// APIURL is the JSON-RPC endpoint, e.g. https://zabbix.local/zabbix/api_jsonrpc.php.
	APIURL string `yaml:"api_url"`
	// WebURL is the frontend root used for chart downloads, e.g. https://zabbix.local/zabbix.
	WebURL string `yaml:"web_url"`
	// User is the API and frontend user name.
	User string `yaml:"user"`
	// Password is the API and frontend password.
	Password string `yaml:"password"`
	// Timeout bounds each HTTP request.
	Timeout time.Duration `yaml:"timeout"`
	// MaxLoginRetries is the number of login attempts per session refresh.
	MaxLoginRetries int `yaml:"max_login_retries"`
	// LoginRetryDelay is the pause between login attempts.
	LoginRetryDelay time.Duration `yaml:"login_retry_delay"`
	// LoginRetryInterval is the pause before the next cycle after all login attempts failed.
	LoginRetryInterval time.Duration `yaml:"login_retry_interval"`
	// UseTriggerFilters switches from severity filtering to description filters.
	UseTriggerFilters bool `yaml:"use_trigger_filters"`
	// TriggerFilters are exact trigger descriptions queried one by one.
	TriggerFilters []string `yaml:"trigger_filters"`
	// MinSeverity is the lowest trigger priority reported in severity mode.
	MinSeverity int `yaml:"min_severity"`
	// UseDurationThreshold delays problems until they last DurationThreshold.
	UseDurationThreshold bool `yaml:"use_duration_threshold"`
	// DurationThreshold is the minimum problem age before it is reported.
	DurationThreshold time.Duration `yaml:"duration_threshold"`
}

// Telegram holds the chat transport settings.
type Telegram struct {
	// BotToken is the bot API token.
	BotToken string `yaml:"bot_token"`
	// ChatID is the destination chat.
	ChatID string `yaml:"chat_id"`
	// APIBase overrides the Bot API root URL.
	APIBase string `yaml:"api_base"`
	// Timeout bounds each HTTP request.
	Timeout time.Duration `yaml:"timeout"`
	// MaxRateLimitWait caps the total time one send may wait on rate limits.
	MaxRateLimitWait time.Duration `yaml:"max_rate_limit_wait"`
}

// Alarms holds the lifecycle policy.
type Alarms struct {
	// SendReminders enables reminders for continuing problems. Defaults to true.
	SendReminders *bool `yaml:"send_reminders"`
	// ReminderThreshold is the minimum interval between reminders.
	ReminderThreshold time.Duration `yaml:"reminder_threshold"`
	// SendOrphanResolutions reports resolutions of alarms that were never alerted.
	// Defaults to true.
	SendOrphanResolutions *bool `yaml:"send_orphan_resolutions"`
	// SendRestartResolutions reports restart-related orphan resolutions.
	// Defaults to true.
	SendRestartResolutions *bool `yaml:"send_restart_resolutions"`
	// RestartKeywords classify a trigger description as restart related.
	RestartKeywords []string `yaml:"restart_keywords"`
	// RetentionPeriod is how long a record survives after its last send.
	RetentionPeriod time.Duration `yaml:"retention_period"`
	// CleanupInterval is how often expired records are evicted.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// Graphs holds chart attachment settings.
type Graphs struct {
	// Enabled turns chart replies on. Defaults to true.
	Enabled *bool `yaml:"enabled"`
	// Width is the chart width in pixels.
	Width int `yaml:"width"`
	// Height is the chart height in pixels.
	Height int `yaml:"height"`
	// Period is the time range shown on the chart.
	Period time.Duration `yaml:"period"`
	// Timeout bounds all chart work for a single alert.
	Timeout time.Duration `yaml:"timeout"`
	// Profiles map trigger keywords to chart items.
	Profiles []GraphProfile `yaml:"profiles"`
}

// GraphProfile selects a chart item for triggers matching any keyword.
type GraphProfile struct {
	// Name labels the profile in logs.
	Name string `yaml:"name"`
	// Keywords are matched case-insensitively against the trigger description.
	Keywords []string `yaml:"keywords"`
	// Item is searched among the host items by name.
	Item string `yaml:"item"`
	// ItemMarker, used when Item is empty, limits the best-match search to
	// items whose name contains it.
	ItemMarker string `yaml:"item_marker"`
}

// RemindersEnabled reports whether reminders are sent, true when unset.
func (a *Alarms) RemindersEnabled() bool {
	return boolOr(a.SendReminders, true)
}

// OrphanResolutionsEnabled reports whether untracked resolutions are sent, true when unset.
func (a *Alarms) OrphanResolutionsEnabled() bool {
	return boolOr(a.SendOrphanResolutions, true)
}

// RestartResolutionsEnabled reports whether restart resolutions are sent, true when unset.
func (a *Alarms) RestartResolutionsEnabled() bool {
	return boolOr(a.SendRestartResolutions, true)
}

// IsEnabled reports whether charts are attached, true when unset.
func (g *Graphs) IsEnabled() bool {
	return boolOr(g.Enabled, true)
}

// Bool returns a pointer to v for the optional switches.
func Bool(v bool) *bool {
	return &v
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}

	return *p
}

const (
	// DefaultConfigFilename is the default filename for relay settings.
	DefaultConfigFilename = "alarm-relay-settings.yaml"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 10 * time.Second

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// DefaultPollInterval is the default pause between poll cycles.
	DefaultPollInterval = time.Minute

	// DefaultTelegramAPIBase is the public Bot API root.
	DefaultTelegramAPIBase = "https://api.telegram.org"

	// DefaultMaxRateLimitWait caps the rate-limit waiting of a single send.
	DefaultMaxRateLimitWait = 5 * time.Minute

	// DefaultReminderThreshold is the default interval between reminders.
	DefaultReminderThreshold = time.Hour

	// DefaultRetentionPeriod is how long records are kept after their last send.
	DefaultRetentionPeriod = 7 * 24 * time.Hour

	// DefaultCleanupInterval is how often retention cleanup runs.
	DefaultCleanupInterval = time.Hour

	// MaxSeverity is the highest trigger priority.
	MaxSeverity = 5

	defaultMaxLoginRetries    = 3
	defaultLoginRetryDelay    = 10 * time.Second
	defaultLoginRetryInterval = 5 * time.Minute
	defaultGraphWidth         = 900
	defaultGraphHeight        = 200
	defaultGraphPeriod        = time.Hour
	defaultGraphTimeout       = 30 * time.Second
	defaultRestartKeyword     = "restart"
	apiEndpoint               = "api_jsonrpc.php"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errAPIURLRequired is returned when the Zabbix API URL is missing.
	errAPIURLRequired = errors.New("zabbix api_url must be provided")
	// errWebURLRequired is returned when graphs are enabled without a frontend URL.
	errWebURLRequired = errors.New("zabbix web_url must be provided when graphs are enabled")
	// errCredentialsRequired is returned when the Zabbix user or password is missing.
	errCredentialsRequired = errors.New("zabbix user and password must be provided")
	// errBotTokenRequired is returned when the Telegram bot token is missing.
	errBotTokenRequired = errors.New("telegram bot_token must be provided")
	// errChatIDRequired is returned when the Telegram chat is missing.
	errChatIDRequired = errors.New("telegram chat_id must be provided")
	// errFiltersRequired is returned when filter mode is on but no filters are listed.
	errFiltersRequired = errors.New("trigger_filters must not be empty when use_trigger_filters is set")
	// errNegativeSeverity is returned for a negative min_severity.
	errNegativeSeverity = errors.New("min_severity must not be negative")
)

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

	// Credentials live in this file.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills in defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.Zabbix.WebURL == "" {
		cfg.Zabbix.WebURL = frontendURL(cfg.Zabbix.APIURL)
	}

	if err := validateZabbix(&cfg.Zabbix, cfg.Graphs.IsEnabled()); err != nil {
		return err
	}

	if err := validateTelegram(&cfg.Telegram); err != nil {
		return err
	}

	applyAlarmDefaults(&cfg.Alarms)
	applyGraphDefaults(&cfg.Graphs)

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	return nil
}

func validateZabbix(z *Zabbix, graphsEnabled bool) error {
	if z.APIURL == "" {
		return errAPIURLRequired
	}

	if _, err := url.ParseRequestURI(z.APIURL); err != nil {
		return fmt.Errorf("invalid zabbix api_url: %w", err)
	}

	if z.User == "" || z.Password == "" {
		return errCredentialsRequired
	}

	if graphsEnabled && z.WebURL == "" {
		return errWebURLRequired
	}

	if z.WebURL != "" {
		if _, err := url.ParseRequestURI(z.WebURL); err != nil {
			return fmt.Errorf("invalid zabbix web_url: %w", err)
		}
	}

	if z.UseTriggerFilters && len(z.TriggerFilters) == 0 {
		return errFiltersRequired
	}

	if z.MinSeverity < 0 {
		return errNegativeSeverity
	}

	if z.Timeout <= 0 {
		z.Timeout = DefaultTimeout
	}

	if z.MaxLoginRetries <= 0 {
		z.MaxLoginRetries = defaultMaxLoginRetries
	}

	if z.LoginRetryDelay <= 0 {
		z.LoginRetryDelay = defaultLoginRetryDelay
	}

	if z.LoginRetryInterval <= 0 {
		z.LoginRetryInterval = defaultLoginRetryInterval
	}

	return nil
}

func validateTelegram(t *Telegram) error {
	if t.BotToken == "" {
		return errBotTokenRequired
	}

	if t.ChatID == "" {
		return errChatIDRequired
	}

	if t.APIBase == "" {
		t.APIBase = DefaultTelegramAPIBase
	}

	if _, err := url.ParseRequestURI(t.APIBase); err != nil {
		return fmt.Errorf("invalid telegram api_base: %w", err)
	}

	if t.Timeout <= 0 {
		t.Timeout = DefaultTimeout
	}

	if t.MaxRateLimitWait <= 0 {
		t.MaxRateLimitWait = DefaultMaxRateLimitWait
	}

	return nil
}

// frontendURL derives the web root from an API URL ending in api_jsonrpc.php.
func frontendURL(apiURL string) string {
	root, found := strings.CutSuffix(apiURL, "/"+apiEndpoint)
	if !found {
		return ""
	}

	return root
}

func applyAlarmDefaults(a *Alarms) {
	a.SendReminders = Bool(a.RemindersEnabled())
	a.SendOrphanResolutions = Bool(a.OrphanResolutionsEnabled())
	a.SendRestartResolutions = Bool(a.RestartResolutionsEnabled())

	if a.ReminderThreshold <= 0 {
		a.ReminderThreshold = DefaultReminderThreshold
	}

	if len(a.RestartKeywords) == 0 {
		a.RestartKeywords = []string{defaultRestartKeyword}
	}

	if a.RetentionPeriod <= 0 {
		a.RetentionPeriod = DefaultRetentionPeriod
	}

	if a.CleanupInterval <= 0 {
		a.CleanupInterval = DefaultCleanupInterval
	}
}

func applyGraphDefaults(g *Graphs) {
	g.Enabled = Bool(g.IsEnabled())

	if g.Width <= 0 {
		g.Width = defaultGraphWidth
	}

	if g.Height <= 0 {
		g.Height = defaultGraphHeight
	}

	if g.Period <= 0 {
		g.Period = defaultGraphPeriod
	}

	if g.Timeout <= 0 {
		g.Timeout = defaultGraphTimeout
	}

	if len(g.Profiles) == 0 {
		g.Profiles = DefaultGraphProfiles()
	}
}

// DefaultGraphProfiles returns the memory, CPU and disk chart profiles.
func DefaultGraphProfiles() []GraphProfile {
	return []GraphProfile{
		{
			Name:     "memory",
			Keywords: []string{"memory usage", "ram", "out of memory"},
			Item:     "Memory Usage(%)",
		},
		{
			Name:     "cpu",
			Keywords: []string{"processor", "cpu usage", "process"},
			Item:     "CPU Utilization(Percent)",
		},
		{
			Name:       "disk",
			Keywords:   []string{"space", "datastore", "lun"},
			ItemMarker: "percentage",
		},
	}
}
