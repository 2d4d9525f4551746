package lifecycle

// Outcome is what the engine did with one observation.
type Outcome int

const (
	// OutcomeInvalid means the trigger failed validation and was skipped.
	OutcomeInvalid Outcome = iota
	// OutcomeAlerted means a new episode started with a delivered alert.
	OutcomeAlerted
	// OutcomeAlertFailed means the alert could not be delivered.
	OutcomeAlertFailed
	// OutcomeReminded means a reminder was delivered.
	OutcomeReminded
	// OutcomeReminderFailed means the reminder could not be delivered.
	OutcomeReminderFailed
	// OutcomeDuplicate means the observation needed no notification.
	OutcomeDuplicate
	// OutcomeResolved means a resolution was delivered as a reply to the alert.
	OutcomeResolved
	// OutcomeResolveFailed means the resolution could not be delivered.
	OutcomeResolveFailed
	// OutcomeOrphanResolved means a standalone resolution was delivered for an untracked alarm.
	OutcomeOrphanResolved
	// OutcomeOrphanFailed means the standalone resolution could not be delivered.
	OutcomeOrphanFailed
	// OutcomeOrphanDropped means orphan resolutions are disabled.
	OutcomeOrphanDropped
	// OutcomeRestartDropped means a restart-related orphan resolution was suppressed.
	OutcomeRestartDropped
)

//nolint:gochecknoglobals // Read-only lookup table.
var outcomeNames = [...]string{
	OutcomeInvalid:        "invalid",
	OutcomeAlerted:        "alerted",
	OutcomeAlertFailed:    "alert_failed",
	OutcomeReminded:       "reminded",
	OutcomeReminderFailed: "reminder_failed",
	OutcomeDuplicate:      "duplicate",
	OutcomeResolved:       "resolved",
	OutcomeResolveFailed:  "resolve_failed",
	OutcomeOrphanResolved: "orphan_resolved",
	OutcomeOrphanFailed:   "orphan_failed",
	OutcomeOrphanDropped:  "orphan_dropped",
	OutcomeRestartDropped: "restart_dropped",
}

// String returns the snake_case outcome name used as a metric label.
func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return "unknown"
	}

	return outcomeNames[o]
}

// Failed reports whether a notification was attempted and not delivered.
func (o Outcome) Failed() bool {
	switch o {
	case OutcomeAlertFailed, OutcomeReminderFailed, OutcomeResolveFailed, OutcomeOrphanFailed:
		return true
	default:
		return false
	}
}
