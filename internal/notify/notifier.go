// Package notify pushes operator alerts for auction engine problems to chat
// channels. Alerts are best-effort; a failed delivery is logged and dropped.
package notify

import (
	"context"
	"log/slog"
)

// Sender delivers a single notification to one destination.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans a notification out to every configured sender, filtered by
// event name.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	log     *slog.Logger
}

// NewNotifier creates a Notifier that dispatches the listed event names to
// the given senders. An empty events list means every event is dispatched.
func NewNotifier(senders []Sender, events []string, log *slog.Logger) *Notifier {
	ev := make(map[string]bool, len(events))
	for _, e := range events {
		ev[e] = true
	}
	return &Notifier{senders: senders, events: ev, log: log}
}

// Enabled reports whether the event name passes the filter.
func (n *Notifier) Enabled(event string) bool {
	if len(n.events) == 0 {
		return true
	}
	return n.events[event]
}

// Notify sends the message through every sender. Delivery failures are
// logged per sender and never propagated to the caller.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) {
	if !n.Enabled(event) {
		return
	}
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.log.Warn("notification delivery failed",
				"sender", s.Name(), "event", event, "error", err)
		}
	}
}
