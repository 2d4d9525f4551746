package relay

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/alarm-relay/internal/config"
	domain "github.com/oshokin/alarm-relay/internal/domain/alarm"
	"github.com/oshokin/alarm-relay/internal/metrics"
	"github.com/oshokin/alarm-relay/internal/repository/alarms"
	"github.com/oshokin/alarm-relay/internal/service/lifecycle"
	"github.com/oshokin/alarm-relay/internal/zabbix"
)

type query struct {
	state  domain.TriggerState
	filter zabbix.Filter
}

type fakeSource struct {
	loginErr error
	fetchErr error
	// skipErr is returned alongside the triggers, like a fetch that dropped some objects.
	skipErr  error
	problems []domain.Trigger
	resolved []domain.Trigger
	queries  []query
	logins   int
}

func (f *fakeSource) Token(context.Context) (string, error) {
	f.logins++

	return "token", f.loginErr
}

func (f *fakeSource) Triggers(_ context.Context, state domain.TriggerState, filter zabbix.Filter) ([]domain.Trigger, error) {
	f.queries = append(f.queries, query{state: state, filter: filter})

	if f.fetchErr != nil {
		return nil, f.fetchErr
	}

	if state == domain.TriggerProblem {
		return f.problems, f.skipErr
	}

	return f.resolved, nil
}

type fakeEngine struct {
	calls []string
	// panicOn makes ProcessProblem panic for that trigger.
	panicOn string
}

func (f *fakeEngine) ProcessProblem(_ context.Context, trigger *domain.Trigger, _ time.Time) lifecycle.Outcome {
	if trigger.ID == f.panicOn {
		panic("broken trigger " + trigger.ID)
	}

	f.calls = append(f.calls, "problem:"+trigger.ID)

	return lifecycle.OutcomeAlerted
}

func (f *fakeEngine) ProcessResolved(_ context.Context, trigger *domain.Trigger, _ time.Time) lifecycle.Outcome {
	f.calls = append(f.calls, "resolved:"+trigger.ID)

	return lifecycle.OutcomeResolved
}

type fakeReporter struct {
	errs []error
}

func (f *fakeReporter) Report(_ context.Context, err error) {
	f.errs = append(f.errs, err)
}

type fakeHealth struct {
	serving []bool
}

func (f *fakeHealth) SetServing(serving bool) {
	f.serving = append(f.serving, serving)
}

type fixture struct {
	poller   *poller
	source   *fakeSource
	engine   *fakeEngine
	reporter *fakeReporter
	health   *fakeHealth
	repo     *alarms.MemoryRepository
	metrics  *metrics.Metrics
	now      time.Time
}

var startedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newFixture(filters ...zabbix.Filter) *fixture {
	if len(filters) == 0 {
		filters = []zabbix.Filter{{MinSeverity: 3}}
	}

	f := &fixture{
		source:   &fakeSource{},
		engine:   &fakeEngine{},
		reporter: &fakeReporter{},
		health:   &fakeHealth{},
		repo:     alarms.NewMemoryRepository(),
		now:      startedAt.Add(10 * time.Minute),
	}

	f.metrics = metrics.New(prometheus.NewRegistry(), f.repo)
	f.poller = &poller{
		source:   f.source,
		engine:   f.engine,
		repo:     f.repo,
		reporter: f.reporter,
		metrics:  f.metrics,
		health:   f.health,
		filters:  filters,
		schedule: schedule{
			pollInterval:       time.Minute,
			loginRetryInterval: 5 * time.Minute,
			cleanupInterval:    time.Hour,
			retention:          24 * time.Hour,
		},
		startedAt:   startedAt,
		lastCleanup: startedAt,
		now:         func() time.Time { return f.now },
	}

	return f
}

func triggers(ids ...string) []domain.Trigger {
	out := make([]domain.Trigger, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Trigger{ID: id, Host: &domain.Host{ID: "10", Name: "web01"}})
	}

	return out
}

// TestCycle_ProblemsBeforeResolutions verifies the order of queries and processing.
func TestCycle_ProblemsBeforeResolutions(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.source.problems = triggers("1", "2")
	f.source.resolved = triggers("3")

	wait := f.poller.runCycle(context.Background())

	require.Equal(t, time.Minute, wait)
	require.Equal(t, []string{"problem:1", "problem:2", "resolved:3"}, f.engine.calls)
	require.Equal(t, []query{
		{state: domain.TriggerProblem, filter: zabbix.Filter{MinSeverity: 3, Since: startedAt}},
		{state: domain.TriggerOK, filter: zabbix.Filter{MinSeverity: 3, Since: startedAt}},
	}, f.source.queries)
	require.Equal(t, []bool{true}, f.health.serving)
	require.Empty(t, f.reporter.errs)

	require.InDelta(t, 2, testutil.ToFloat64(f.metrics.TriggersTotal.WithLabelValues("PROBLEM", "alerted")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(f.metrics.TriggersTotal.WithLabelValues("RESOLVED", "resolved")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(f.metrics.CyclesTotal.WithLabelValues(metrics.ResultSuccess)), 0)
}

// TestCycle_FiltersInOrder verifies each description filter gets its own problem and resolved query.
func TestCycle_FiltersInOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(zabbix.Filter{Description: "a"}, zabbix.Filter{Description: "b"})

	f.poller.runCycle(context.Background())

	require.Len(t, f.source.queries, 4)
	require.Equal(t, "a", f.source.queries[0].filter.Description)
	require.Equal(t, domain.TriggerProblem, f.source.queries[0].state)
	require.Equal(t, "a", f.source.queries[1].filter.Description)
	require.Equal(t, domain.TriggerOK, f.source.queries[1].state)
	require.Equal(t, "b", f.source.queries[2].filter.Description)
	require.Equal(t, "b", f.source.queries[3].filter.Description)
}

// TestCycle_DurationThreshold verifies only problem queries get an upper bound.
func TestCycle_DurationThreshold(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.poller.schedule.durationThreshold = 5 * time.Minute

	f.poller.runCycle(context.Background())

	require.Len(t, f.source.queries, 2)
	require.Equal(t, f.now.Add(-5*time.Minute), f.source.queries[0].filter.Till)
	require.True(t, f.source.queries[1].filter.Till.IsZero())
}

// TestCycle_LoginFailure verifies a failed login skips the cycle and waits the login interval.
func TestCycle_LoginFailure(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.source.loginErr = zabbix.ErrLoginFailed

	wait := f.poller.runCycle(context.Background())

	require.Equal(t, 5*time.Minute, wait)
	require.Empty(t, f.source.queries)
	require.Len(t, f.reporter.errs, 1)
	require.ErrorIs(t, f.reporter.errs[0], zabbix.ErrLoginFailed)
	require.Equal(t, []bool{false}, f.health.serving)
	require.InDelta(t, 1, testutil.ToFloat64(f.metrics.CyclesTotal.WithLabelValues(metrics.ResultLoginFailed)), 0)
}

// TestCycle_FetchFailure verifies a query error aborts the cycle and is reported.
func TestCycle_FetchFailure(t *testing.T) {
	t.Parallel()

	errBackend := errors.New("backend down")

	f := newFixture(zabbix.Filter{Description: "a"}, zabbix.Filter{Description: "b"})
	f.source.fetchErr = errBackend

	wait := f.poller.runCycle(context.Background())

	require.Equal(t, time.Minute, wait)
	require.Len(t, f.source.queries, 1)
	require.Empty(t, f.engine.calls)
	require.Len(t, f.reporter.errs, 1)
	require.ErrorIs(t, f.reporter.errs[0], errBackend)
	require.Equal(t, []bool{false}, f.health.serving)
}

// TestCycle_SkippedTriggers verifies undecodable triggers are reported
// without dropping the rest of the fetch.
func TestCycle_SkippedTriggers(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.source.problems = triggers("1")
	f.source.resolved = triggers("3")
	f.source.skipErr = fmt.Errorf("skipped PROBLEM triggers: %w", zabbix.ErrInvalidTrigger)

	wait := f.poller.runCycle(context.Background())

	require.Equal(t, time.Minute, wait)
	require.Equal(t, []string{"problem:1", "resolved:3"}, f.engine.calls)
	require.Len(t, f.reporter.errs, 1)
	require.ErrorIs(t, f.reporter.errs[0], zabbix.ErrInvalidTrigger)
	require.Equal(t, []bool{true}, f.health.serving)
	require.InDelta(t, 1, testutil.ToFloat64(f.metrics.CyclesTotal.WithLabelValues(metrics.ResultSuccess)), 0)
}

// TestCycle_Panic verifies a panicking cycle is reported and the loop keeps its interval.
func TestCycle_Panic(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.source.problems = triggers("1", "2")
	f.engine.panicOn = "2"

	var wait time.Duration

	require.NotPanics(t, func() {
		wait = f.poller.runCycle(context.Background())
	})

	require.Equal(t, time.Minute, wait)
	require.Equal(t, []string{"problem:1"}, f.engine.calls)
	require.Len(t, f.reporter.errs, 1)
	require.ErrorContains(t, f.reporter.errs[0], "broken trigger 2")
	require.Equal(t, []bool{false}, f.health.serving)
	require.InDelta(t, 1, testutil.ToFloat64(f.metrics.CyclesTotal.WithLabelValues(metrics.ResultError)), 0)
}

// TestCycle_Canceled verifies shutdown is not reported as a failure.
func TestCycle_Canceled(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.source.fetchErr = context.Canceled

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f.poller.runCycle(ctx)

	require.Empty(t, f.reporter.errs)
	require.Empty(t, f.health.serving)
}

// TestCycle_Cleanup verifies eviction runs once per cleanup interval.
func TestCycle_Cleanup(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.repo.Put(domain.NewProblem("old", 1, startedAt.Add(-48*time.Hour), domain.Context{}))
	f.repo.Put(domain.NewProblem("fresh", 2, startedAt, domain.Context{}))

	// Within the interval nothing is evicted.
	f.poller.runCycle(context.Background())
	require.Equal(t, 2, f.repo.Len())

	f.now = startedAt.Add(2 * time.Hour)
	f.poller.runCycle(context.Background())

	_, ok := f.repo.Get("old")
	require.False(t, ok)
	require.Equal(t, 1, f.repo.Len())
	require.InDelta(t, 1, testutil.ToFloat64(f.metrics.EvictionsTotal), 0)
	require.Equal(t, f.now, f.poller.lastCleanup)
}

func TestFiltersFromConfig(t *testing.T) {
	t.Parallel()

	require.Equal(t, []zabbix.Filter{{MinSeverity: 4}},
		filtersFromConfig(&config.Zabbix{MinSeverity: 4, TriggerFilters: []string{"ignored"}}))

	require.Equal(t, []zabbix.Filter{{Description: "a"}, {Description: "b"}},
		filtersFromConfig(&config.Zabbix{UseTriggerFilters: true, TriggerFilters: []string{"a", "b"}}))
}

func TestPolicyFromConfig(t *testing.T) {
	t.Parallel()

	policy := policyFromConfig(&config.Alarms{
		ReminderThreshold:      time.Hour,
		SendRestartResolutions: config.Bool(false),
		RestartKeywords:        []string{"reboot"},
	}, true)

	// Unset switches are on.
	require.True(t, policy.SendReminders)
	require.True(t, policy.SendOrphanResolutions)
	require.False(t, policy.SendRestartResolutions)
	require.True(t, policy.AttachGraphs)
	require.Equal(t, time.Hour, policy.ReminderThreshold)
	require.True(t, policy.IsRestart(&domain.Trigger{Description: "Host REBOOTED"}))
	require.False(t, policy.IsRestart(&domain.Trigger{Description: "Host restarted"}))
}

func TestApplyLogLevel(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, applyLogLevel(context.Background(), "info", "loud"), errUnknownLogLevel)
	require.ErrorIs(t, applyLogLevel(context.Background(), "loud", ""), errUnknownLogLevel)
}
