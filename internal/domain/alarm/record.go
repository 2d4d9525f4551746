package alarm

import "time"

// Status is the notification status of an alarm.
type Status int

const (
	// StatusProblem means an alert was sent and no resolution yet.
	StatusProblem Status = iota + 1
	// StatusResolved means the resolution was sent.
	StatusResolved
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusProblem:
		return "problem"
	case StatusResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// MessageID references a message delivered to the chat.
type MessageID int64

// Context holds enrichment data cached to avoid repeated lookups.
type Context struct {
	// HostAddress is the resolved agent interface address.
	HostAddress string
}

// Phase is either *Problem or *Resolved.
type Phase interface {
	status() Status
	lastSentAt() time.Time
	ref() MessageID
	clone() Phase
}

// Problem is the phase of an alarm whose alert was delivered.
type Problem struct {
	// AlertRef is the delivered alert, the reply anchor for reminders and the resolution.
	AlertRef MessageID
	// AlertedAt is when the alert was delivered.
	AlertedAt time.Time
	// RemindedAt is when the last reminder was delivered, AlertedAt before the first one.
	RemindedAt time.Time
}

func (p *Problem) status() Status {
	return StatusProblem
}

func (p *Problem) lastSentAt() time.Time {
	return p.AlertedAt
}

func (p *Problem) ref() MessageID {
	return p.AlertRef
}

//nolint:ireturn // Phase is a closed sum type.
func (p *Problem) clone() Phase {
	cloned := *p

	return &cloned
}

// Resolved is the phase of an alarm whose resolution was delivered.
type Resolved struct {
	// ResolutionRef is the delivered resolution message.
	ResolutionRef MessageID
	// ResolvedAt is when the resolution was delivered.
	ResolvedAt time.Time
}

func (r *Resolved) status() Status {
	return StatusResolved
}

func (r *Resolved) lastSentAt() time.Time {
	return r.ResolvedAt
}

func (r *Resolved) ref() MessageID {
	return r.ResolutionRef
}

//nolint:ireturn // Phase is a closed sum type.
func (r *Resolved) clone() Phase {
	cloned := *r

	return &cloned
}

// Record is the last known notification state of one alarm.
type Record struct {
	// ID is the alarm identifier (the trigger ID).
	ID string
	// Context is cached enrichment data.
	Context Context
	// Phase is the current lifecycle phase.
	Phase Phase
}

// NewProblem starts a problem episode from a delivered alert.
func NewProblem(id string, alertRef MessageID, sentAt time.Time, rc Context) *Record {
	return &Record{
		ID:      id,
		Context: rc,
		Phase: &Problem{
			AlertRef:   alertRef,
			AlertedAt:  sentAt,
			RemindedAt: sentAt,
		},
	}
}

// NewResolved builds a record from a delivered resolution.
func NewResolved(id string, resolutionRef MessageID, sentAt time.Time, rc Context) *Record {
	return &Record{
		ID:      id,
		Context: rc,
		Phase: &Resolved{
			ResolutionRef: resolutionRef,
			ResolvedAt:    sentAt,
		},
	}
}

// Status returns the status of the current phase.
func (r *Record) Status() Status {
	if r == nil || r.Phase == nil {
		return 0
	}

	return r.Phase.status()
}

// LastSentAt returns when the last alert or resolution was delivered.
// Reminders do not move it.
func (r *Record) LastSentAt() time.Time {
	return r.Phase.lastSentAt()
}

// NotificationRef returns the message later notifications reply to.
func (r *Record) NotificationRef() MessageID {
	return r.Phase.ref()
}

// Problem returns the problem phase, or nil when the alarm is resolved.
func (r *Record) Problem() *Problem {
	p, _ := r.Phase.(*Problem)

	return p
}

// Resolve moves a problem record into the resolved phase.
func (r *Record) Resolve(resolutionRef MessageID, sentAt time.Time) {
	r.Phase = &Resolved{
		ResolutionRef: resolutionRef,
		ResolvedAt:    sentAt,
	}
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	cloned := *r
	if r.Phase != nil {
		cloned.Phase = r.Phase.clone()
	}

	return &cloned
}
