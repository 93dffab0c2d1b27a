package notify

import (
	"context"

	"go.uber.org/multierr"
)

// Notifier is the downstream hook for engine events: service status
// changes, incident creation, incident resolution. A realtime
// transport (websocket hub, chat webhook) implements this and relays.
type Notifier interface {
	Send(ctx context.Context, title, text string) error
}

// Multi fans an event out to several notifiers and reports every
// failure, not just the first.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, title, text string) error {
	var err error
	for _, n := range m {
		if n == nil {
			continue
		}
		err = multierr.Append(err, n.Send(ctx, title, text))
	}
	return err
}

// Func adapts a function to the Notifier interface; handy in tests and
// for in-process subscribers.
type Func func(ctx context.Context, title, text string) error

func (f Func) Send(ctx context.Context, title, text string) error {
	return f(ctx, title, text)
}
