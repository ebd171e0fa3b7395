// Package authz decides whether an actor may perform an action on a job,
// task, participant or user. Decide is a pure function over Facts; Engine
// loads those facts from the store and turns a denial into a typed error.
package authz

import (
	"context"
	"errors"

	"github.com/iliyamo/tradeflow/internal/apperr"
	"github.com/iliyamo/tradeflow/internal/model"
	"github.com/iliyamo/tradeflow/internal/repository"
)

// Action is a closed set of guarded operations.
type Action uint8

const (
	ActionCreateJob Action = iota + 1
	ActionReadJob
	ActionUpdateJob
	ActionDeleteJob
	ActionAddParticipant
	ActionRemoveParticipant
	ActionCreateTask
	ActionReadTask
	ActionUpdateTask
	ActionDeleteTask
	ActionReassignTask
	ActionUpdateUser
	ActionDeleteUser
)

var actionNames = map[Action]string{
	ActionCreateJob:         "job.create",
	ActionReadJob:           "job.read",
	ActionUpdateJob:         "job.update",
	ActionDeleteJob:         "job.delete",
	ActionAddParticipant:    "participant.add",
	ActionRemoveParticipant: "participant.remove",
	ActionCreateTask:        "task.create",
	ActionReadTask:          "task.read",
	ActionUpdateTask:        "task.update",
	ActionDeleteTask:        "task.delete",
	ActionReassignTask:      "task.reassign",
	ActionUpdateUser:        "user.update",
	ActionDeleteUser:        "user.delete",
}

func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return "unknown"
}

// Facts is everything a decision may depend on. Membership rows are nil
// when the user never participated in the job.
type Facts struct {
	ActorID       string
	ActorPlatform model.PlatformRole
	Actor         *model.JobParticipant // actor's row in the job
	Target        *model.JobParticipant // target user's row in the job
	TargetRole    model.ParticipantRole // role requested by AddParticipant
	Task          *model.Task           // task being updated
	SubjectUserID string                // user being updated or deleted
}

// Decision is the outcome of Decide. Reason is ReasonNone when Allowed.
type Decision struct {
	Allowed bool
	Reason  apperr.Reason
}

func allow() Decision { return Decision{Allowed: true} }

func deny(r apperr.Reason) Decision { return Decision{Reason: r} }

func active(p *model.JobParticipant) bool { return p != nil && p.Active() }

// requireRole allows an active participant holding one of roles.
func requireRole(p *model.JobParticipant, roles ...model.ParticipantRole) Decision {
	if !active(p) {
		return deny(apperr.ReasonNotParticipant)
	}
	for _, r := range roles {
		if p.Role == r {
			return allow()
		}
	}
	return deny(apperr.ReasonInsufficientRole)
}

// Decide applies the permission table. It has no side effects.
func Decide(a Action, f Facts) Decision {
	switch a {
	case ActionCreateJob:
		if f.ActorID == "" {
			return deny(apperr.ReasonNotParticipant)
		}
		return allow()

	case ActionReadJob, ActionReadTask:
		if !active(f.Actor) {
			return deny(apperr.ReasonNotParticipant)
		}
		return allow()

	case ActionUpdateJob, ActionDeleteJob, ActionDeleteTask:
		return requireRole(f.Actor, model.RoleManager)

	case ActionAddParticipant:
		if d := requireRole(f.Actor, model.RoleManager); !d.Allowed {
			return d
		}
		// a job has exactly one manager, its creator
		if f.TargetRole == model.RoleManager || !f.TargetRole.Valid() {
			return deny(apperr.ReasonTargetInvalid)
		}
		if active(f.Target) {
			return deny(apperr.ReasonAlreadyParticipant)
		}
		return allow()

	case ActionRemoveParticipant:
		if f.Target != nil && f.Target.Role == model.RoleManager {
			return deny(apperr.ReasonManagerIrremovable)
		}
		return requireRole(f.Actor, model.RoleManager)

	case ActionCreateTask:
		return requireRole(f.Actor, model.RoleManager, model.RoleCoordinator)

	case ActionUpdateTask:
		d := requireRole(f.Actor, model.RoleManager, model.RoleCoordinator)
		if !d.Allowed && active(f.Actor) && f.Task != nil && f.Task.AssignedTo(f.ActorID) {
			return allow()
		}
		return d

	case ActionReassignTask:
		if !active(f.Target) {
			return deny(apperr.ReasonTargetInvalid)
		}
		return allow()

	case ActionUpdateUser:
		if f.ActorID != "" && f.ActorID == f.SubjectUserID {
			return allow()
		}
		if f.ActorPlatform == model.PlatformRoleProjectManager {
			return allow()
		}
		return deny(apperr.ReasonInsufficientRole)

	case ActionDeleteUser:
		if f.ActorPlatform == model.PlatformRoleProjectManager {
			return allow()
		}
		return deny(apperr.ReasonInsufficientRole)
	}
	return deny(apperr.ReasonInsufficientRole)
}

// Request names the actor, the action and the resource ids whose rows the
// Engine must load before deciding.
type Request struct {
	Action        Action
	ActorID       string
	ActorPlatform model.PlatformRole
	JobID         string
	TargetUserID  string
	TargetRole    model.ParticipantRole
	Task          *model.Task
	SubjectUserID string
}

// Engine loads Facts through a (usually transaction-bound) store and
// applies Decide.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// Authorize returns the loaded facts and nil when req is allowed. A denial
// is an Unauthorized error carrying the reason, except that a rejected
// reassignment fails with InvalidAssignee and re-adding an active
// participant with AlreadyExists.
func (e *Engine) Authorize(ctx context.Context, tx *repository.Store, req Request) (Facts, error) {
	op := req.Action.String()
	f := Facts{
		ActorID:       req.ActorID,
		ActorPlatform: req.ActorPlatform,
		TargetRole:    req.TargetRole,
		Task:          req.Task,
		SubjectUserID: req.SubjectUserID,
	}

	var err error
	if req.JobID != "" && req.ActorID != "" && req.Action != ActionReassignTask {
		if f.Actor, err = findMembership(ctx, tx, req.JobID, req.ActorID); err != nil {
			return f, apperr.Infrastructure(op, err)
		}
	}
	if req.JobID != "" && req.TargetUserID != "" {
		if f.Target, err = findMembership(ctx, tx, req.JobID, req.TargetUserID); err != nil {
			return f, apperr.Infrastructure(op, err)
		}
	}

	d := Decide(req.Action, f)
	if d.Allowed {
		return f, nil
	}
	switch {
	case req.Action == ActionReassignTask:
		return f, apperr.InvalidAssignee(op)
	case d.Reason == apperr.ReasonAlreadyParticipant:
		return f, apperr.AlreadyParticipant(op)
	}
	return f, apperr.Unauthorized(op, d.Reason)
}

func findMembership(ctx context.Context, tx *repository.Store, jobID, userID string) (*model.JobParticipant, error) {
	p, err := tx.Participants.Find(ctx, jobID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return p, err
}
