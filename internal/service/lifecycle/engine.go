package lifecycle

import (
	"context"
	"fmt"
	"time"

	domain "github.com/oshokin/alarm-relay/internal/domain/alarm"
	"github.com/oshokin/alarm-relay/internal/logger"
	"github.com/oshokin/alarm-relay/internal/repository/alarms"
)

// UnknownHostAddress replaces a host address that could not be resolved.
const UnknownHostAddress = "N/A"

// Engine applies trigger observations to the alarm store.
// It is not safe for concurrent use: observations must be fed one at a time.
type Engine struct {
	// repo is the alarm state store.
	repo alarms.Repository
	// notifier delivers alerts, reminders and resolutions.
	notifier Notifier
	// enricher resolves host addresses.
	enricher Enricher
	// graphs attaches charts to new alerts, may be nil.
	graphs GraphAttacher
	// reporter surfaces errors.
	reporter Reporter
	// policy holds the configured switches.
	policy Policy
}

// Option configures the engine.
type Option func(*Engine)

// WithGraphAttacher enables chart replies for new alerts when the policy allows it.
func WithGraphAttacher(graphs GraphAttacher) Option {
	return func(e *Engine) {
		e.graphs = graphs
	}
}

// WithReporter replaces the default ChatReporter.
func WithReporter(reporter Reporter) Option {
	return func(e *Engine) {
		if reporter != nil {
			e.reporter = reporter
		}
	}
}

// New creates an engine over repo.
func New(repo alarms.Repository, notifier Notifier, enricher Enricher, policy Policy, opts ...Option) *Engine {
	if policy.IsRestart == nil {
		policy.IsRestart = RestartKeywords(DefaultRestartKeyword)
	}

	e := &Engine{
		repo:     repo,
		notifier: notifier,
		enricher: enricher,
		reporter: NewChatReporter(notifier),
		policy:   policy,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// ProcessProblem handles a trigger that is currently active.
func (e *Engine) ProcessProblem(ctx context.Context, trigger *domain.Trigger, now time.Time) Outcome {
	ctx = logger.WithKV(ctx, "trigger_id", trigger.ID)

	if err := trigger.Validate(); err != nil {
		e.reporter.Report(ctx, err)

		return OutcomeInvalid
	}

	record, ok := e.repo.Get(trigger.ID)
	if !ok || record.Status() == domain.StatusResolved {
		return e.alert(ctx, trigger, now)
	}

	return e.remind(ctx, record, now)
}

// ProcessResolved handles a trigger whose condition has cleared.
func (e *Engine) ProcessResolved(ctx context.Context, trigger *domain.Trigger, now time.Time) Outcome {
	ctx = logger.WithKV(ctx, "trigger_id", trigger.ID)

	if err := trigger.Validate(); err != nil {
		e.reporter.Report(ctx, err)

		return OutcomeInvalid
	}

	record, ok := e.repo.Get(trigger.ID)

	switch {
	case !ok:
		return e.resolveOrphan(ctx, trigger, now)
	case record.Status() == domain.StatusProblem:
		return e.resolve(ctx, trigger, record, now)
	default:
		logger.DebugKV(ctx, "Skipping already sent resolution")

		return OutcomeDuplicate
	}
}

// alert starts a new problem episode.
func (e *Engine) alert(ctx context.Context, trigger *domain.Trigger, now time.Time) Outcome {
	address := e.hostAddress(ctx, trigger.Host)
	text := fmt.Sprintf(
		"Alarm Triggered at %s - Host '%s' (%s): %s",
		domain.FormatTime(trigger.LastChange),
		trigger.Host.Name,
		address,
		trigger.Description,
	)

	alertRef, err := e.notifier.Send(ctx, text, domain.KindAlert, 0)
	if err != nil {
		e.reporter.Report(ctx, fmt.Errorf("send problem alert for trigger %s: %w", trigger.ID, err))

		return OutcomeAlertFailed
	}

	e.repo.Put(domain.NewProblem(trigger.ID, alertRef, now, domain.Context{HostAddress: address}))
	logger.InfoKV(ctx, "Sent problem alert", "message_id", alertRef, "text", text)

	if e.policy.AttachGraphs && e.graphs != nil {
		if err = e.graphs.Attach(ctx, trigger, alertRef); err != nil {
			e.reporter.Report(ctx, fmt.Errorf("attach graphs for trigger %s: %w", trigger.ID, err))
		}
	}

	return OutcomeAlerted
}

// remind handles a continuing problem.
func (e *Engine) remind(ctx context.Context, record *domain.Record, now time.Time) Outcome {
	problem := record.Problem()
	if !e.policy.reminderDue(problem, now) {
		logger.DebugKV(ctx, "Skipping already sent alert")

		return OutcomeDuplicate
	}

	// The reminder reports the age of the original alert, not of the last reminder.
	text := "Problem Continues for " + domain.FormatDuration(now.Sub(problem.AlertedAt))

	if _, err := e.notifier.Send(ctx, text, domain.KindReminder, problem.AlertRef); err != nil {
		e.reporter.Report(ctx, fmt.Errorf("send problem reminder for trigger %s: %w", record.ID, err))

		return OutcomeReminderFailed
	}

	problem.RemindedAt = now
	e.repo.Put(record)
	logger.InfoKV(ctx, "Sent problem reminder", "reply_to", problem.AlertRef, "text", text)

	return OutcomeReminded
}

// resolve closes a tracked problem episode with a reply to its alert.
func (e *Engine) resolve(ctx context.Context, trigger *domain.Trigger, record *domain.Record, now time.Time) Outcome {
	address := record.Context.HostAddress
	if address == "" {
		address = e.hostAddress(ctx, trigger.Host)
		record.Context.HostAddress = address
	}

	text := resolvedText(trigger, address)
	replyTo := record.NotificationRef()

	resolutionRef, err := e.notifier.Send(ctx, text, domain.KindResolved, replyTo)
	if err != nil {
		e.reporter.Report(ctx, fmt.Errorf("send resolution for trigger %s: %w", trigger.ID, err))

		return OutcomeResolveFailed
	}

	record.Resolve(resolutionRef, now)
	e.repo.Put(record)
	logger.InfoKV(ctx, "Sent resolution as a reply", "reply_to", replyTo, "message_id", resolutionRef, "text", text)

	return OutcomeResolved
}

// resolveOrphan handles a resolution with no tracked alarm.
func (e *Engine) resolveOrphan(ctx context.Context, trigger *domain.Trigger, now time.Time) Outcome {
	if !e.policy.SendOrphanResolutions {
		logger.DebugKV(ctx, "Orphan resolution not sent due to configuration")

		return OutcomeOrphanDropped
	}

	if !e.policy.SendRestartResolutions && e.policy.IsRestart(trigger) {
		logger.DebugKV(ctx, "Restart resolution not sent due to configuration")

		return OutcomeRestartDropped
	}

	address := e.hostAddress(ctx, trigger.Host)
	text := resolvedText(trigger, address)

	resolutionRef, err := e.notifier.Send(ctx, text, domain.KindResolved, 0)
	if err != nil {
		e.reporter.Report(ctx, fmt.Errorf("send orphan resolution for trigger %s: %w", trigger.ID, err))

		return OutcomeOrphanFailed
	}

	e.repo.Put(domain.NewResolved(trigger.ID, resolutionRef, now, domain.Context{HostAddress: address}))
	logger.InfoKV(ctx, "Sent resolution as new message", "message_id", resolutionRef, "text", text)

	return OutcomeOrphanResolved
}

// hostAddress resolves the host address, falling back to UnknownHostAddress.
func (e *Engine) hostAddress(ctx context.Context, host *domain.Host) string {
	if e.enricher == nil {
		return UnknownHostAddress
	}

	address, err := e.enricher.HostAddress(ctx, host.ID)
	if err != nil {
		e.reporter.Report(ctx, fmt.Errorf("resolve address of host %s: %w", host.ID, err))

		return UnknownHostAddress
	}

	if address == "" {
		return UnknownHostAddress
	}

	return address
}

func resolvedText(trigger *domain.Trigger, address string) string {
	return fmt.Sprintf(
		"Problem Resolved at %s - Host '%s' (%s): %s",
		domain.FormatTime(trigger.LastChange),
		trigger.Host.Name,
		address,
		trigger.Description,
	)
}
