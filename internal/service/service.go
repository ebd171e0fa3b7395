// Package service orchestrates the job, task, user and auth operations.
// Every multi-write operation runs inside one store transaction after the
// authorization engine has allowed it; activity events are published only
// after the commit.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/iliyamo/tradeflow/internal/apperr"
	"github.com/iliyamo/tradeflow/internal/authz"
	"github.com/iliyamo/tradeflow/internal/model"
	"github.com/iliyamo/tradeflow/internal/queue"
	"github.com/iliyamo/tradeflow/internal/repository"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   string
	Role model.PlatformRole
}

// Publisher delivers activity events to downstream consumers.
type Publisher interface {
	PublishActivity(ctx context.Context, ev queue.ActivityEvent) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishActivity(context.Context, queue.ActivityEvent) error { return nil }

// Options are shared by every service constructor.
type Options struct {
	Timeout time.Duration // per-operation store deadline; 0 means 5s
	Logger  *slog.Logger
	Events  Publisher
}

func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// base carries the collaborators every service needs.
type base struct {
	store   *repository.Store
	engine  *authz.Engine
	timeout time.Duration
	log     *slog.Logger
	events  Publisher
	now     func() time.Time
}

func newBase(store *repository.Store, engine *authz.Engine, opts Options) base {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Events == nil {
		opts.Events = NopPublisher{}
	}
	if engine == nil {
		engine = authz.NewEngine()
	}
	return base{
		store:   store,
		engine:  engine,
		timeout: opts.Timeout,
		log:     ResolveLogger(opts.Logger),
		events:  opts.Events,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (b *base) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.timeout)
}

// fail converts err into an *apperr.Error and logs it. Typed errors pass
// through unchanged; anything else, including a deadline or a failed
// commit, becomes an infrastructure failure.
func (b *base) fail(op string, err error, attrs ...any) error {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.Infrastructure(op, err)
	}
	args := append([]any{"op", op, "kind", ae.Kind.String(), "error", ae.Error()}, attrs...)
	if ae.Kind == apperr.KindInfrastructure {
		b.log.Error("operation failed", args...)
	} else {
		b.log.Info("operation rejected", args...)
	}
	return ae
}

// publish emits ev after a successful commit. Failures are logged only.
func (b *base) publish(ctx context.Context, ev queue.ActivityEvent) {
	ev.OccurredAt = b.now()
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	defer cancel()
	if err := b.events.PublishActivity(pctx, ev); err != nil {
		b.log.Warn("activity publish failed",
			"event", ev.Type,
			"job_id", ev.JobID,
			"error", err.Error(),
		)
	}
}

// loadJob fetches the job and authorizes action on it for actor.
func (b *base) loadJob(ctx context.Context, tx *repository.Store, op, jobID string, action authz.Action, actor Actor) (*model.Job, error) {
	job, err := tx.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, storeErr(op, "job", err)
	}
	if _, err := b.engine.Authorize(ctx, tx, authz.Request{Action: action, ActorID: actor.ID, JobID: jobID}); err != nil {
		return nil, err
	}
	return job, nil
}

// storeErr maps a repository error onto the taxonomy. what names the
// entity for NotFound and AlreadyExists messages.
func storeErr(op, what string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound(op, what+" not found")
	case errors.Is(err, repository.ErrDuplicate):
		return apperr.AlreadyExists(op, what+" already exists")
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}
	return apperr.Infrastructure(op, err)
}

// validDates enforces start <= due.
func validDates(op string, start, due time.Time) error {
	if due.Before(start) {
		return apperr.InvalidState(op, "dueDate must not be before startDate")
	}
	return nil
}

// transition validates a status change against the state machine.
func transition(op string, from, to model.Status) error {
	if !to.Valid() {
		return apperr.InvalidState(op, "unknown status "+string(to))
	}
	if from.Terminal() && to != from {
		return apperr.InvalidState(op, "status "+string(from)+" is final")
	}
	if !from.CanTransitionTo(to) {
		return apperr.InvalidState(op, "cannot move from "+string(from)+" to "+string(to))
	}
	return nil
}
