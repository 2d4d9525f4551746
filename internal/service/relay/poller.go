package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/oshokin/alarm-relay/internal/domain/alarm"
	"github.com/oshokin/alarm-relay/internal/logger"
	"github.com/oshokin/alarm-relay/internal/metrics"
	"github.com/oshokin/alarm-relay/internal/repository/alarms"
	"github.com/oshokin/alarm-relay/internal/service/lifecycle"
	"github.com/oshokin/alarm-relay/internal/zabbix"
)

// TriggerSource is the part of the Zabbix session the loop needs.
type TriggerSource interface {
	Token(ctx context.Context) (string, error)
	Triggers(ctx context.Context, state domain.TriggerState, filter zabbix.Filter) ([]domain.Trigger, error)
}

// Processor applies trigger observations to the alarm state.
type Processor interface {
	ProcessProblem(ctx context.Context, trigger *domain.Trigger, now time.Time) lifecycle.Outcome
	ProcessResolved(ctx context.Context, trigger *domain.Trigger, now time.Time) lifecycle.Outcome
}

// HealthSetter publishes the loop health.
type HealthSetter interface {
	SetServing(serving bool)
}

// schedule holds the loop timing.
type schedule struct {
	// pollInterval is the pause between cycles.
	pollInterval time.Duration
	// loginRetryInterval is the pause after a cycle skipped by a failed login.
	loginRetryInterval time.Duration
	// cleanupInterval is how often retention cleanup runs.
	cleanupInterval time.Duration
	// retention is how long records survive after their last send.
	retention time.Duration
	// durationThreshold, when positive, delays problems until they last that long.
	durationThreshold time.Duration
}

// poller runs single poll cycles. It owns the store on behalf of the engine,
// so cycles must not overlap.
type poller struct {
	source   TriggerSource
	engine   Processor
	repo     alarms.Repository
	reporter lifecycle.Reporter
	metrics  *metrics.Metrics
	health   HealthSetter
	// filters are queried in order each cycle.
	filters  []zabbix.Filter
	schedule schedule
	// startedAt bounds every query; older changes belong to a previous run.
	startedAt   time.Time
	lastCleanup time.Time
	now         func() time.Time
}

type cycleError struct {
	result string
	err    error
}

func (e *cycleError) Error() string { return e.err.Error() }

func (e *cycleError) Unwrap() error { return e.err }

// runCycle runs one cycle, records it and returns the pause before the next one.
// A panicking cycle is reported like a failed one.
func (p *poller) runCycle(ctx context.Context) (next time.Duration) {
	started := p.now()

	defer func() {
		r := recover()
		if r == nil {
			return
		}

		p.metrics.ObserveCycle(metrics.ResultError, p.now().Sub(started))
		p.health.SetServing(false)
		p.reporter.Report(ctx, fmt.Errorf("poll cycle panicked: %v", r))

		next = p.schedule.pollInterval
	}()

	err := p.cycle(ctx, started)

	result := metrics.ResultSuccess
	if err != nil {
		result = err.result
	}

	p.metrics.ObserveCycle(result, p.now().Sub(started))

	if err == nil {
		p.health.SetServing(true)
		logger.InfoKV(ctx, "Cycle completed", "tracked_alarms", p.repo.Len(), "next_in", p.schedule.pollInterval)

		return p.schedule.pollInterval
	}

	// A canceled cycle is shutdown, not a failure worth reporting.
	if ctx.Err() != nil {
		return 0
	}

	p.health.SetServing(false)
	p.reporter.Report(ctx, err)

	if result == metrics.ResultLoginFailed {
		logger.InfoKV(ctx, "Waiting before the next login", "next_in", p.schedule.loginRetryInterval)

		return p.schedule.loginRetryInterval
	}

	logger.InfoKV(ctx, "Cycle failed", "next_in", p.schedule.pollInterval)

	return p.schedule.pollInterval
}

// cycle cleans up, makes sure the session is usable, and processes every filter.
func (p *poller) cycle(ctx context.Context, now time.Time) *cycleError {
	p.maybeCleanup(ctx, now)

	if _, err := p.source.Token(ctx); err != nil {
		return &cycleError{result: metrics.ResultLoginFailed, err: fmt.Errorf("login to zabbix: %w", err)}
	}

	for _, filter := range p.filters {
		if err := p.processFilter(ctx, filter, now); err != nil {
			return &cycleError{result: metrics.ResultError, err: err}
		}
	}

	return nil
}

// processFilter handles every problem trigger, then every resolved trigger, of one filter.
func (p *poller) processFilter(ctx context.Context, filter zabbix.Filter, now time.Time) error {
	filter.Since = p.startedAt

	problemFilter := filter
	if p.schedule.durationThreshold > 0 {
		problemFilter.Till = now.Add(-p.schedule.durationThreshold)
	}

	problems, err := p.source.Triggers(ctx, domain.TriggerProblem, problemFilter)
	if err = p.reportSkipped(ctx, err); err != nil {
		return err
	}

	for i := range problems {
		p.observe(domain.TriggerProblem, p.engine.ProcessProblem(ctx, &problems[i], now))
	}

	resolved, err := p.source.Triggers(ctx, domain.TriggerOK, filter)
	if err = p.reportSkipped(ctx, err); err != nil {
		return err
	}

	for i := range resolved {
		p.observe(domain.TriggerOK, p.engine.ProcessResolved(ctx, &resolved[i], now))
	}

	return nil
}

// reportSkipped reports triggers dropped from a fetch and returns any other error.
func (p *poller) reportSkipped(ctx context.Context, err error) error {
	if err == nil || !errors.Is(err, zabbix.ErrInvalidTrigger) {
		return err
	}

	p.reporter.Report(ctx, err)

	return nil
}

func (p *poller) observe(state domain.TriggerState, outcome lifecycle.Outcome) {
	p.metrics.ObserveTrigger(state, outcome.String())
}

// maybeCleanup evicts expired records once per cleanup interval.
func (p *poller) maybeCleanup(ctx context.Context, now time.Time) {
	if now.Sub(p.lastCleanup) <= p.schedule.cleanupInterval {
		return
	}

	p.lastCleanup = now

	removed := p.repo.RemoveOlderThan(p.schedule.retention, now)
	p.metrics.ObserveEvictions(removed)

	if removed > 0 {
		logger.InfoKV(ctx, "Evicted expired alarms", "removed", removed, "retention", p.schedule.retention)
	}
}
