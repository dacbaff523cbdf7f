// Package notify delivers domain events after a transaction commits.
//
// Delivery is best effort: the service logs Notify errors and never
// returns them to the caller.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Event types emitted by the service.
const (
	TaskStatusChanged    = "task.status_changed"
	TaskAssigned         = "task.assigned"
	TaskBlocked          = "task.blocked"
	TaskUnblocked        = "task.unblocked"
	ProjectStatusChanged = "project.status_changed"
	BillingTriggered     = "billing.triggered"
	BillingInvoiced      = "billing.invoiced"
)

// Event is one notification.
type Event struct {
	Time    time.Time      `json:"time"`
	Type    string         `json:"type"`
	Actor   string         `json:"actor,omitempty"`
	Subject string         `json:"subject"`
	Message string         `json:"msg"`
	Data    map[string]any `json:"data,omitempty"`
}

// Notifier receives committed events.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

// LogNotifier writes events to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs at info level.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, e Event) error {
	n.logger.InfoContext(ctx, e.Message,
		slog.String("event", e.Type),
		slog.String("subject", e.Subject),
		slog.String("actor", e.Actor),
		slog.Any("data", e.Data),
	)
	return nil
}

// Multi fans an event out to several notifiers and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
