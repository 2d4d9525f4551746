package relay

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	healthapi "github.com/oshokin/alarm-relay/internal/api/grpc/health"
	"github.com/oshokin/alarm-relay/internal/config"
	domain "github.com/oshokin/alarm-relay/internal/domain/alarm"
	"github.com/oshokin/alarm-relay/internal/graph"
	"github.com/oshokin/alarm-relay/internal/logger"
	"github.com/oshokin/alarm-relay/internal/metrics"
	"github.com/oshokin/alarm-relay/internal/repository/alarms"
	"github.com/oshokin/alarm-relay/internal/service/lifecycle"
	"github.com/oshokin/alarm-relay/internal/telegram"
	"github.com/oshokin/alarm-relay/internal/version"
	"github.com/oshokin/alarm-relay/internal/zabbix"
)

// Options controls the relay process.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// LogLevel overrides the log level from the configuration file.
	LogLevel string
}

// startupMessage is posted to the chat when the loop starts.
const startupMessage = "alarm-relay started."

// Run loads the configuration, starts the metrics and health listeners and
// polls Zabbix until ctx is canceled.
//
//nolint:funlen // Wiring reads best top to bottom.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "alarm-relay")

	// Load settings from configuration file.
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	// Command line level overrides config.
	if err = applyLogLevel(ctx, cfg.LogLevel, opts.LogLevel); err != nil {
		return err
	}

	// Telegram transport for alarms and error reports.
	chat, err := telegram.New(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
		telegram.WithAPIBase(cfg.Telegram.APIBase),
		telegram.WithHTTPClient(&http.Client{Timeout: cfg.Telegram.Timeout}),
		telegram.WithMaxRateLimitWait(cfg.Telegram.MaxRateLimitWait),
	)
	if err != nil {
		return fmt.Errorf("create telegram client: %w", err)
	}

	// Zabbix API session, logged in lazily by the first cycle.
	session := zabbix.NewSession(
		zabbix.NewClient(cfg.Zabbix.APIURL, &http.Client{Timeout: cfg.Zabbix.Timeout}),
		cfg.Zabbix.User,
		cfg.Zabbix.Password,
		zabbix.WithLoginRetries(cfg.Zabbix.MaxLoginRetries, cfg.Zabbix.LoginRetryDelay),
	)

	repo := alarms.NewMemoryRepository()
	engine := lifecycle.New(repo, chat, session, policyFromConfig(&cfg.Alarms, cfg.Graphs.IsEnabled()),
		lifecycle.WithGraphAttacher(newGraphAttacher(cfg, session, chat)))

	// Metrics registry with the relay collectors and the Go runtime ones.
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	relayMetrics := metrics.New(registry, repo)

	health := healthapi.New()

	// Listeners are opened before polling so a bad address fails fast.
	ctx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup

	// Servers stop on cancel, which runs first.
	defer wg.Wait()
	defer cancel()

	if err = startListeners(ctx, &wg, cfg, registry, health); err != nil {
		return err
	}

	p := &poller{
		source:   session,
		engine:   engine,
		repo:     repo,
		reporter: lifecycle.NewChatReporter(chat),
		metrics:  relayMetrics,
		health:   health,
		filters:  filtersFromConfig(&cfg.Zabbix),
		schedule: schedule{
			pollInterval:       cfg.PollInterval,
			loginRetryInterval: cfg.Zabbix.LoginRetryInterval,
			cleanupInterval:    cfg.Alarms.CleanupInterval,
			retention:          cfg.Alarms.RetentionPeriod,
		},
		startedAt:   time.Now(),
		lastCleanup: time.Now(),
		now:         time.Now,
	}

	if cfg.Zabbix.UseDurationThreshold {
		p.schedule.durationThreshold = cfg.Zabbix.DurationThreshold
	}

	logger.InfoKV(ctx, "Relay started",
		"version", version.Short(),
		"api_url", cfg.Zabbix.APIURL,
		"filters", len(p.filters),
		"interval", cfg.PollInterval.String())

	if _, err = chat.Send(ctx, startupMessage, domain.KindInfo, 0); err != nil {
		logger.ErrorKV(ctx, "Failed to send startup message", "error", err)
	}

	loop(ctx, p)

	return nil
}

// loop runs cycles back to back with the pause each cycle asks for.
func loop(ctx context.Context, p *poller) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")

			return
		case <-timer.C:
			timer.Reset(p.runCycle(ctx))
		}
	}
}

func applyLogLevel(ctx context.Context, configured, override string) error {
	text := configured
	if override != "" {
		text = override
	}

	level, ok := logger.ParseLogLevel(text)
	if !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, text)
	}

	logger.SetLevel(level)
	logger.DebugKV(ctx, "Log level set", "level", level.String())

	return nil
}

func policyFromConfig(a *config.Alarms, graphsEnabled bool) lifecycle.Policy {
	return lifecycle.Policy{
		SendReminders:          a.RemindersEnabled(),
		ReminderThreshold:      a.ReminderThreshold,
		SendOrphanResolutions:  a.OrphanResolutionsEnabled(),
		SendRestartResolutions: a.RestartResolutionsEnabled(),
		AttachGraphs:           graphsEnabled,
		IsRestart:              lifecycle.RestartKeywords(a.RestartKeywords...),
	}
}

// newGraphAttacher returns nil when charts are disabled.
func newGraphAttacher(cfg *config.Config, session *zabbix.Session, chat *telegram.Client) lifecycle.GraphAttacher {
	if !cfg.Graphs.IsEnabled() {
		return nil
	}

	profiles := make([]graph.Profile, 0, len(cfg.Graphs.Profiles))
	for _, p := range cfg.Graphs.Profiles {
		profiles = append(profiles, graph.Profile{
			Name:       p.Name,
			Keywords:   p.Keywords,
			Item:       p.Item,
			ItemMarker: p.ItemMarker,
		})
	}

	web := zabbix.NewWebSession(cfg.Zabbix.WebURL, cfg.Zabbix.User, cfg.Zabbix.Password, cfg.Zabbix.Timeout)

	return graph.New(session, web, chat, profiles, zabbix.ChartOptions{
		Width:  cfg.Graphs.Width,
		Height: cfg.Graphs.Height,
		Period: cfg.Graphs.Period,
	}, cfg.Graphs.Timeout)
}

// filtersFromConfig returns one filter per configured description, or a single severity filter.
func filtersFromConfig(z *config.Zabbix) []zabbix.Filter {
	if !z.UseTriggerFilters {
		return []zabbix.Filter{{MinSeverity: z.MinSeverity}}
	}

	filters := make([]zabbix.Filter, 0, len(z.TriggerFilters))
	for _, description := range z.TriggerFilters {
		filters = append(filters, zabbix.Filter{Description: description})
	}

	return filters
}

// startListeners serves metrics and health on their configured addresses until ctx is done.
func startListeners(
	ctx context.Context,
	wg *sync.WaitGroup,
	cfg *config.Config,
	registry *prometheus.Registry,
	health *healthapi.Server,
) error {
	lc := net.ListenConfig{}

	var metricsLis, healthLis net.Listener

	if cfg.MetricsAddress != "" {
		lis, err := lc.Listen(ctx, "tcp", cfg.MetricsAddress)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", cfg.MetricsAddress, err)
		}

		metricsLis = lis
	}

	if cfg.HealthAddress != "" {
		lis, err := lc.Listen(ctx, "tcp", cfg.HealthAddress)
		if err != nil {
			if metricsLis != nil {
				_ = metricsLis.Close()
			}

			return fmt.Errorf("listen on %s: %w", cfg.HealthAddress, err)
		}

		healthLis = lis
	}

	// Servers start only once every listener is open.
	if metricsLis != nil {
		wg.Go(func() {
			if err := metrics.Serve(ctx, metricsLis, registry); err != nil {
				logger.ErrorKV(ctx, "Metrics server failed", "error", err)
			}
		})
	}

	if healthLis != nil {
		wg.Go(func() {
			if err := health.Serve(ctx, healthLis); err != nil {
				logger.ErrorKV(ctx, "Health server failed", "error", err)
			}
		})
	}

	return nil
}
