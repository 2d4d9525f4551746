package alarm

import "time"

// TriggerState selects which triggers the source reports.
type TriggerState int

const (
	// TriggerOK matches triggers whose condition has cleared.
	TriggerOK TriggerState = iota
	// TriggerProblem matches triggers whose condition is active.
	TriggerProblem
)

// String returns the human-readable name of the state.
func (s TriggerState) String() string {
	if s == TriggerProblem {
		return "PROBLEM"
	}

	return "RESOLVED"
}

// Host identifies the monitored machine a trigger belongs to.
type Host struct {
	// ID is the backend host identifier.
	ID string
	// Name is the technical host name.
	Name string
}

// Trigger is a single trigger observation taken during a poll cycle.
type Trigger struct {
	// ID is the stable trigger identifier, used as the alarm key.
	ID string
	// Description is the expanded trigger description.
	Description string
	// Priority is the backend severity, 0 (not classified) to 5 (disaster).
	Priority int
	// LastChange is when the trigger last changed state.
	LastChange time.Time
	// Host is the first host of the trigger; nil when the backend returned none.
	Host *Host
}

// Validate checks the fields the lifecycle engine needs.
func (t *Trigger) Validate() error {
	if t.Host == nil || t.Host.ID == "" || t.Host.Name == "" {
		return &ValidationError{TriggerID: t.ID, Err: ErrMissingHost}
	}

	return nil
}
