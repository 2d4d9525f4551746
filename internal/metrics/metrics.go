package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	domain "github.com/oshokin/alarm-relay/internal/domain/alarm"
)

const (
	metricPrefix = "alarm_relay_"

	// ResultSuccess labels a poll cycle that finished without errors.
	ResultSuccess = "success"
	// ResultError labels a poll cycle that was cut short by an error.
	ResultError = "error"
	// ResultLoginFailed labels a poll cycle skipped because login failed.
	ResultLoginFailed = "login_failed"
)

// StatusCounter reports how many alarms are tracked per status.
type StatusCounter interface {
	CountByStatus() map[domain.Status]int
}

// Metrics bundles the relay collectors.
type Metrics struct {
	// TriggersTotal counts processed trigger observations by state and outcome.
	TriggersTotal *prometheus.CounterVec
	// CyclesTotal counts poll cycles by result.
	CyclesTotal *prometheus.CounterVec
	// CycleDuration observes how long poll cycles take.
	CycleDuration prometheus.Histogram
	// EvictionsTotal counts records removed by retention cleanup.
	EvictionsTotal prometheus.Counter
}

// New constructs the collectors and registers them, together with a gauge
// of the alarms tracked by store, on reg.
func New(reg prometheus.Registerer, store StatusCounter) *Metrics {
	m := &Metrics{
		TriggersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "triggers_total",
				Help: "Total processed trigger observations by state and outcome",
			},
			[]string{"state", "outcome"},
		),
		CyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "poll_cycles_total",
				Help: "Total poll cycles by result",
			},
			[]string{"result"},
		),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "poll_cycle_duration_seconds",
			Help:    "Poll cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		EvictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "evictions_total",
			Help: "Total alarm records evicted by retention cleanup",
		}),
	}

	reg.MustRegister(
		m.TriggersTotal,
		m.CyclesTotal,
		m.CycleDuration,
		m.EvictionsTotal,
		newTrackedCollector(store),
	)

	return m
}

// ObserveTrigger counts one processed observation.
func (m *Metrics) ObserveTrigger(state domain.TriggerState, outcome string) {
	m.TriggersTotal.WithLabelValues(state.String(), outcome).Inc()
}

// ObserveCycle counts one poll cycle and records its duration.
func (m *Metrics) ObserveCycle(result string, took time.Duration) {
	m.CyclesTotal.WithLabelValues(result).Inc()
	m.CycleDuration.Observe(took.Seconds())
}

// ObserveEvictions adds n evicted records.
func (m *Metrics) ObserveEvictions(n int) {
	if n > 0 {
		m.EvictionsTotal.Add(float64(n))
	}
}

// trackedCollector reads the store on every scrape.
type trackedCollector struct {
	store StatusCounter
	desc  *prometheus.Desc
}

func newTrackedCollector(store StatusCounter) *trackedCollector {
	return &trackedCollector{
		store: store,
		desc: prometheus.NewDesc(
			metricPrefix+"tracked_alarms",
			"Alarm records currently held by status",
			[]string{"status"},
			nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *trackedCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect implements prometheus.Collector.
func (c *trackedCollector) Collect(ch chan<- prometheus.Metric) {
	counts := c.store.CountByStatus()

	for _, status := range []domain.Status{domain.StatusProblem, domain.StatusResolved} {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(counts[status]), status.String())
	}
}
