package lifecycle

import (
	"time"

	domain "github.com/oshokin/alarm-relay/internal/domain/alarm"
)

// DefaultRestartKeyword marks a trigger description as restart related.
const DefaultRestartKeyword = "restart"

// Policy holds the switches the engine consults on each transition.
type Policy struct {
	// SendReminders enables reminders for continuing problems.
	SendReminders bool
	// ReminderThreshold is the minimum time between an alert or reminder and the next reminder.
	ReminderThreshold time.Duration
	// SendOrphanResolutions allows resolutions for alarms with no tracked alert.
	SendOrphanResolutions bool
	// SendRestartResolutions allows orphan resolutions classified as restart related.
	SendRestartResolutions bool
	// AttachGraphs posts charts as replies to new alerts.
	AttachGraphs bool
	// IsRestart classifies a trigger as restart related.
	// Nil means a case-insensitive match of DefaultRestartKeyword in the description.
	IsRestart func(trigger *domain.Trigger) bool
}

// RestartKeywords returns a classifier matching any of keywords in the trigger description.
func RestartKeywords(keywords ...string) func(trigger *domain.Trigger) bool {
	match := domain.KeywordMatcher(keywords...)

	return func(trigger *domain.Trigger) bool {
		return match(trigger.Description)
	}
}

func (p *Policy) reminderDue(problem *domain.Problem, now time.Time) bool {
	return p.SendReminders && now.Sub(problem.RemindedAt) > p.ReminderThreshold
}
