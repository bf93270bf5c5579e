package notify

import "context"

// Notifier carries notifications to whatever tray the platform offers.
type Notifier interface {
	Show(ctx context.Context, n Notification) error
}

// Func adapts a function to the Notifier interface.
type Func func(ctx context.Context, n Notification) error

func (f Func) Show(ctx context.Context, n Notification) error { return f(ctx, n) }

// Discard drops every notification. Useful in tests and when the page runs
// without notification permission.
var Discard Notifier = Func(func(context.Context, Notification) error { return nil })
