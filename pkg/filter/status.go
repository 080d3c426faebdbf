package filter

import "context"

// StatusEvent is the advisory progress notification sent to the host.
// Fire-and-forget: delivery is never required for correctness.
type StatusEvent struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Done        bool   `json:"done"`
}

// Notifier receives status events. Implementations must not block the hook.
type Notifier interface {
	Notify(ctx context.Context, event StatusEvent)
}

// NoopNotifier discards every event
type NoopNotifier struct{}

func (NoopNotifier) Notify(ctx context.Context, event StatusEvent) {}

// NotifierFunc adapts a function to the Notifier interface
type NotifierFunc func(ctx context.Context, event StatusEvent)

func (fn NotifierFunc) Notify(ctx context.Context, event StatusEvent) {
	fn(ctx, event)
}
