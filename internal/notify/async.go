package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Async delivers events on a background goroutine so slow sinks never hold
// up a request. Events are dropped (and logged) when the buffer is full.
type Async struct {
	next   Notifier
	logger *slog.Logger
	queue  chan Event
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewAsync starts the delivery goroutine. Close drains and stops it.
func NewAsync(next Notifier, buffer int, logger *slog.Logger) *Async {
	if buffer <= 0 {
		buffer = 64
	}
	a := &Async{next: next, logger: logger, queue: make(chan Event, buffer)}
	a.wg.Add(1)
	go a.run()
	return a
}

func (a *Async) run() {
	defer a.wg.Done()
	for e := range a.queue {
		if err := a.next.Notify(context.Background(), e); err != nil {
			a.logger.Warn("notification failed", slog.String("event", e.Type), slog.Any("error", err))
		}
	}
}

// Notify enqueues e without blocking. Events sent after Close are dropped.
func (a *Async) Notify(_ context.Context, e Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil
	}
	select {
	case a.queue <- e:
	default:
		a.logger.Warn("notification dropped, queue full", slog.String("event", e.Type), slog.String("subject", e.Subject))
	}
	return nil
}

// Close stops accepting events and waits for the queue to drain.
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	a.wg.Wait()
}
