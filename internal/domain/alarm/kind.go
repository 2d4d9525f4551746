package alarm

// Kind classifies an outbound chat message.
type Kind int

const (
	// KindInfo is a service status message.
	KindInfo Kind = iota
	// KindAlert announces a new problem episode.
	KindAlert
	// KindReminder repeats an unresolved problem.
	KindReminder
	// KindResolved announces the end of a problem.
	KindResolved
	// KindError is a diagnostic about the relay itself.
	KindError
)

// String returns the uppercase kind name used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindAlert:
		return "ALERT"
	case KindReminder:
		return "REMINDER"
	case KindResolved:
		return "RESOLVED"
	case KindError:
		return "ERROR"
	default:
		return "INFO"
	}
}
