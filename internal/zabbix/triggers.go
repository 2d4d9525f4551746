package zabbix

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	domain "github.com/oshokin/alarm-relay/internal/domain/alarm"
	"github.com/oshokin/alarm-relay/internal/logger"
)

// MaxSeverity is the highest trigger priority.
const MaxSeverity = 5

// Filter narrows a trigger query.
type Filter struct {
	// Description matches the trigger description exactly. When empty,
	// the query selects priorities from MinSeverity to MaxSeverity.
	Description string
	// MinSeverity is the lowest priority returned in severity mode.
	MinSeverity int
	// Since drops triggers that last changed before it.
	Since time.Time
	// Till, when set, drops triggers that changed after it.
	Till time.Time
}

// String describes the filter for logs.
func (f Filter) String() string {
	if f.Description != "" {
		return "description " + strconv.Quote(f.Description)
	}

	return "min severity " + strconv.Itoa(f.MinSeverity)
}

type triggerHost struct {
	HostID string `json:"hostid"`
	Host   string `json:"host"`
}

type triggerObject struct {
	TriggerID   string        `json:"triggerid"`
	Description string        `json:"description"`
	Priority    string        `json:"priority"`
	LastChange  string        `json:"lastchange"`
	Hosts       []triggerHost `json:"hosts"`
}

// Triggers returns monitored, enabled triggers in the given state, newest first.
// Objects that cannot be decoded are skipped: the remaining triggers are
// returned together with an error wrapping ErrInvalidTrigger for each of them.
func (s *Session) Triggers(ctx context.Context, state domain.TriggerState, filter Filter) ([]domain.Trigger, error) {
	params := triggerParams(ctx, state, filter)

	var objects []triggerObject
	if err := s.Call(ctx, "trigger.get", params, &objects); err != nil {
		return nil, fmt.Errorf("fetch %s triggers with %s: %w", state, filter, err)
	}

	var (
		triggers = make([]domain.Trigger, 0, len(objects))
		skipped  []error
	)

	for i := range objects {
		trigger, err := objects[i].toDomain()
		if err != nil {
			skipped = append(skipped, err)

			continue
		}

		triggers = append(triggers, trigger)
	}

	logger.InfoKV(ctx, "Fetched triggers",
		"state", state,
		"filter", filter.String(),
		"count", len(triggers),
		"skipped", len(skipped))

	if len(skipped) > 0 {
		return triggers, fmt.Errorf("skipped %s triggers with %s: %w", state, filter, errors.Join(skipped...))
	}

	return triggers, nil
}

func triggerParams(ctx context.Context, state domain.TriggerState, f Filter) map[string]any {
	match := map[string]any{
		"value": strconv.Itoa(int(state)),
	}

	if f.Description != "" {
		match["description"] = f.Description
	} else {
		match["priority"] = Priorities(ctx, f.MinSeverity)
	}

	params := map[string]any{
		"output":            []string{"description", "priority", "triggerid", "lastchange"},
		"expandDescription": true,
		"selectHosts":       []string{"host", "hostid"},
		"sortfield":         "lastchange",
		"sortorder":         "DESC",
		"monitored":         true,
		"active":            true,
		"filter":            match,
	}

	if !f.Since.IsZero() {
		params["lastChangeSince"] = f.Since.Unix()
	}

	if !f.Till.IsZero() {
		params["lastChangeTill"] = f.Till.Unix()
	}

	return params
}

// Priorities lists the priorities from minSeverity to MaxSeverity.
// A minimum above MaxSeverity is lowered to it with a warning.
func Priorities(ctx context.Context, minSeverity int) []int {
	if minSeverity > MaxSeverity {
		logger.WarnKV(ctx, "Minimum severity is above the maximum, using the maximum",
			"min_severity", minSeverity,
			"max_severity", MaxSeverity)

		minSeverity = MaxSeverity
	}

	minSeverity = max(minSeverity, 0)

	priorities := make([]int, 0, MaxSeverity-minSeverity+1)
	for p := minSeverity; p <= MaxSeverity; p++ {
		priorities = append(priorities, p)
	}

	return priorities
}

func (o *triggerObject) toDomain() (domain.Trigger, error) {
	priority, err := strconv.Atoi(o.Priority)
	if err != nil {
		return domain.Trigger{}, fmt.Errorf("%w %s: priority %q: %w", ErrInvalidTrigger, o.TriggerID, o.Priority, err)
	}

	lastChange, err := strconv.ParseInt(o.LastChange, 10, 64)
	if err != nil {
		return domain.Trigger{}, fmt.Errorf("%w %s: lastchange %q: %w", ErrInvalidTrigger, o.TriggerID, o.LastChange, err)
	}

	trigger := domain.Trigger{
		ID:          o.TriggerID,
		Description: o.Description,
		Priority:    priority,
		LastChange:  time.Unix(lastChange, 0),
	}

	if len(o.Hosts) > 0 {
		trigger.Host = &domain.Host{
			ID:   o.Hosts[0].HostID,
			Name: o.Hosts[0].Host,
		}
	}

	return trigger, nil
}
