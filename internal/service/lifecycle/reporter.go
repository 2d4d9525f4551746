package lifecycle

import (
	"context"

	domain "github.com/oshokin/alarm-relay/internal/domain/alarm"
	"github.com/oshokin/alarm-relay/internal/logger"
)

// Reporter surfaces relay errors to operators.
type Reporter interface {
	Report(ctx context.Context, err error)
}

// ChatReporter logs errors and posts them to the chat as KindError messages,
// so alarms and relay health show up in one stream.
type ChatReporter struct {
	// notifier delivers the diagnostic message.
	notifier Notifier
}

// NewChatReporter creates a reporter posting through notifier.
func NewChatReporter(notifier Notifier) *ChatReporter {
	return &ChatReporter{
		notifier: notifier,
	}
}

// Report logs err and sends it to the chat. A failed diagnostic send is only logged.
func (r *ChatReporter) Report(ctx context.Context, err error) {
	if err == nil {
		return
	}

	logger.ErrorKV(ctx, "Relay error", "error", err)

	if r.notifier == nil {
		return
	}

	if _, sendErr := r.notifier.Send(ctx, err.Error(), domain.KindError, 0); sendErr != nil {
		logger.ErrorKV(ctx, "Failed to deliver error report", "error", sendErr)
	}
}
