// Package service implements the agencyops operations on top of the store.
//
// Every operation runs in exactly one store transaction. Sequencing,
// dependency and billing rules are delegated to their packages; the
// service only composes them, records telemetry and publishes events once
// the transaction has committed.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/HendryAvila/agencyops/internal/deps"
	"github.com/HendryAvila/agencyops/internal/estimate"
	"github.com/HendryAvila/agencyops/internal/notify"
	"github.com/HendryAvila/agencyops/internal/store"
	"github.com/HendryAvila/agencyops/internal/telemetry"
	"github.com/HendryAvila/agencyops/internal/workflow"
)

// ErrInvalidArgument marks requests rejected before touching the store.
var ErrInvalidArgument = errors.New("invalid argument")

// SystemActor is recorded when the context carries no actor.
const SystemActor = "system"

// Options configures a Service. Store is required.
type Options struct {
	Store           *store.Store
	Notifier        notify.Notifier
	Logger          *slog.Logger
	UnblockPolicy   workflow.UnblockPolicy
	DefaultEstimate estimate.Kind
}

// Service exposes the operations used by the MCP tools and the CLI.
type Service struct {
	store    *store.Store
	deps     *deps.Manager
	notifier notify.Notifier
	logger   *slog.Logger
	rec      *telemetry.Recorder
	kind     estimate.Kind
	now      func() time.Time
}

// New builds a Service. Missing collaborators fall back to no-ops.
func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var n notify.Notifier = notify.Nop{}
	if opts.Notifier != nil {
		n = opts.Notifier
	}
	kind := opts.DefaultEstimate
	if kind == "" {
		kind = estimate.KindMid
	}
	return &Service{
		store:    opts.Store,
		deps:     deps.NewManager(opts.UnblockPolicy),
		notifier: n,
		logger:   logger.With(slog.String("component", "service")),
		rec:      telemetry.NewRecorder("service"),
		kind:     kind,
		now:      time.Now,
	}
}

// UnblockPolicy returns the policy applied when a task loses its last
// active blocker.
func (s *Service) UnblockPolicy() workflow.UnblockPolicy { return s.deps.Policy() }

// ─── Actor ───────────────────────────────────────────────────────────────────

type actorKey struct{}

// WithActor attaches the already authenticated caller to ctx. The actor is
// stamped on billing changes, time entries and events.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

// ActorFrom returns the actor carried by ctx, or SystemActor.
func ActorFrom(ctx context.Context) string {
	if id, ok := ctx.Value(actorKey{}).(string); ok && id != "" {
		return id
	}
	return SystemActor
}

// ─── Transactions and events ─────────────────────────────────────────────────

// outbox collects the events of one operation until its commit.
type outbox struct {
	actor  string
	stamp  string
	at     time.Time
	events []notify.Event
}

func (o *outbox) add(typ, subject, msg string, data map[string]any) {
	o.events = append(o.events, notify.Event{
		Time:    o.at,
		Type:    typ,
		Actor:   o.actor,
		Subject: subject,
		Message: msg,
		Data:    data,
	})
}

// statusChanges turns forced flips made by the dependency manager into
// blocked/unblocked events.
func (o *outbox) statusChanges(cause string, changes ...deps.StatusChange) {
	for _, c := range changes {
		typ, msg := notify.TaskUnblocked, "task unblocked"
		if c.To == workflow.TaskBlocked {
			typ, msg = notify.TaskBlocked, "task blocked"
		}
		o.add(typ, c.TaskID, msg, map[string]any{"from": string(c.From), "to": string(c.To), "cause": cause})
	}
}

// run executes fn inside one store transaction under a telemetry span and
// publishes the collected events after commit.
func (s *Service) run(ctx context.Context, op string, fn func(ctx context.Context, tx *store.Tx, ob *outbox) error) (err error) {
	actor := ActorFrom(ctx)
	ctx, end := s.rec.Start(ctx, op, attribute.String("agencyops.actor", actor))
	defer func() { end(err) }()

	at := s.now()
	ob := &outbox{actor: actor, stamp: store.FormatTime(at), at: at}
	err = s.store.RunInTx(ctx, func(tx *store.Tx) error {
		return fn(ctx, tx, ob)
	})
	if err != nil {
		s.logger.DebugContext(ctx, "operation failed", slog.String("op", op), slog.Any("error", err))
		return err
	}
	s.publish(ctx, ob.events)
	return nil
}

func (s *Service) publish(ctx context.Context, events []notify.Event) {
	for _, e := range events {
		if err := s.notifier.Notify(ctx, e); err != nil {
			s.logger.WarnContext(ctx, "notification failed",
				slog.String("event", e.Type),
				slog.String("subject", e.Subject),
				slog.Any("error", err),
			)
		}
	}
}
