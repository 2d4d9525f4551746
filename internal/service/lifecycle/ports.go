package lifecycle

import (
	"context"

	domain "github.com/oshokin/alarm-relay/internal/domain/alarm"
)

// Notifier delivers chat messages. A zero replyTo sends a standalone message.
type Notifier interface {
	Send(ctx context.Context, text string, kind domain.Kind, replyTo domain.MessageID) (domain.MessageID, error)
}

// Enricher resolves extra host data from the trigger source.
type Enricher interface {
	HostAddress(ctx context.Context, hostID string) (string, error)
}

// GraphAttacher posts charts related to a trigger as replies to an alert.
type GraphAttacher interface {
	Attach(ctx context.Context, trigger *domain.Trigger, replyTo domain.MessageID) error
}
