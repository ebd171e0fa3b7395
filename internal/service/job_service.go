package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/tradeflow/internal/apperr"
	"github.com/iliyamo/tradeflow/internal/authz"
	"github.com/iliyamo/tradeflow/internal/model"
	"github.com/iliyamo/tradeflow/internal/queue"
	"github.com/iliyamo/tradeflow/internal/repository"
)

// JobService owns the job and participant lifecycle.
type JobService struct{ base }

func NewJobService(store *repository.Store, engine *authz.Engine, opts Options) *JobService {
	return &JobService{base: newBase(store, engine, opts)}
}

// CreateJobInput is a shape-validated create request. ClientID defaults to
// the actor.
type CreateJobInput struct {
	Title          string
	Description    string
	StartDate      time.Time
	DueDate        time.Time
	EstimatedHours *float64
	Budget         *float64
	Location       *string
	ClientID       string
}

// JobPatch lists the fields a manager may change. Nil fields are kept.
type JobPatch struct {
	Title          *string
	Description    *string
	Status         *model.Status
	StartDate      *time.Time
	DueDate        *time.Time
	EstimatedHours *float64
	Budget         *float64
	Location       *string
}

// CreateJob persists the job and its manager participant in one
// transaction; the actor becomes the manager.
func (s *JobService) CreateJob(ctx context.Context, actor Actor, in CreateJobInput) (*model.Job, error) {
	const op = "job.create"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if d := authz.Decide(authz.ActionCreateJob, authz.Facts{ActorID: actor.ID}); !d.Allowed {
		return nil, s.fail(op, apperr.Unauthorized(op, d.Reason))
	}
	if err := validDates(op, in.StartDate, in.DueDate); err != nil {
		return nil, s.fail(op, err)
	}
	clientID := in.ClientID
	if clientID == "" {
		clientID = actor.ID
	}

	job := &model.Job{
		Title:          in.Title,
		Description:    in.Description,
		Status:         model.StatusPending,
		StartDate:      in.StartDate.UTC(),
		DueDate:        in.DueDate.UTC(),
		EstimatedHours: in.EstimatedHours,
		Budget:         in.Budget,
		Location:       in.Location,
		CreatedByID:    actor.ID,
		ClientID:       clientID,
	}
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if clientID != actor.ID {
			if _, err := tx.Users.GetByID(ctx, clientID); err != nil {
				return storeErr(op, "client", err)
			}
		}
		if err := tx.Jobs.Create(ctx, job); err != nil {
			return storeErr(op, "job", err)
		}
		manager := &model.JobParticipant{JobID: job.ID, UserID: actor.ID, Role: model.RoleManager}
		return storeErr(op, "participant", tx.Participants.Create(ctx, manager))
	})
	if err != nil {
		return nil, s.fail(op, err, "actor_id", actor.ID)
	}

	s.publish(ctx, queue.ActivityEvent{
		Type:    queue.EventJobCreated,
		JobID:   job.ID,
		ActorID: actor.ID,
		Role:    string(model.RoleManager),
		Status:  string(job.Status),
	})
	return job, nil
}

// ListJobs returns the jobs the actor actively participates in.
func (s *JobService) ListJobs(ctx context.Context, actor Actor) ([]model.Job, error) {
	const op = "job.list"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	jobs, err := s.store.Jobs.ListForParticipant(ctx, actor.ID)
	if err != nil {
		return nil, s.fail(op, storeErr(op, "job", err), "actor_id", actor.ID)
	}
	return jobs, nil
}

// GetJob returns the job with its active participants and its tasks.
func (s *JobService) GetJob(ctx context.Context, actor Actor, jobID string) (*model.JobDetail, error) {
	const op = "job.read"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var detail model.JobDetail
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		job, err := s.loadJob(ctx, tx, op, jobID, authz.ActionReadJob, actor)
		if err != nil {
			return err
		}
		detail.Job = *job
		if detail.Participants, err = tx.Participants.ListActive(ctx, jobID); err != nil {
			return storeErr(op, "participant", err)
		}
		if detail.Tasks, err = tx.Tasks.ListByJob(ctx, jobID); err != nil {
			return storeErr(op, "task", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(op, err, "job_id", jobID, "actor_id", actor.ID)
	}
	return &detail, nil
}

// UpdateJob applies patch field by field. A status change must follow the
// state machine and the merged dates must stay ordered.
func (s *JobService) UpdateJob(ctx context.Context, actor Actor, jobID string, patch JobPatch) (*model.Job, error) {
	const op = "job.update"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var job *model.Job
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		if job, err = s.loadJob(ctx, tx, op, jobID, authz.ActionUpdateJob, actor); err != nil {
			return err
		}
		if patch.Status != nil {
			if err := transition(op, job.Status, *patch.Status); err != nil {
				return err
			}
			job.Status = *patch.Status
		}
		if patch.Title != nil {
			job.Title = *patch.Title
		}
		if patch.Description != nil {
			job.Description = *patch.Description
		}
		if patch.StartDate != nil {
			job.StartDate = patch.StartDate.UTC()
		}
		if patch.DueDate != nil {
			job.DueDate = patch.DueDate.UTC()
		}
		if patch.EstimatedHours != nil {
			job.EstimatedHours = patch.EstimatedHours
		}
		if patch.Budget != nil {
			job.Budget = patch.Budget
		}
		if patch.Location != nil {
			job.Location = patch.Location
		}
		if err := validDates(op, job.StartDate, job.DueDate); err != nil {
			return err
		}
		return storeErr(op, "job", tx.Jobs.Save(ctx, job))
	})
	if err != nil {
		return nil, s.fail(op, err, "job_id", jobID, "actor_id", actor.ID)
	}

	s.publish(ctx, queue.ActivityEvent{
		Type:    queue.EventJobUpdated,
		JobID:   job.ID,
		ActorID: actor.ID,
		Status:  string(job.Status),
	})
	return job, nil
}

// DeleteJob removes the job together with its tasks and participants.
func (s *JobService) DeleteJob(ctx context.Context, actor Actor, jobID string) error {
	const op = "job.delete"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := s.loadJob(ctx, tx, op, jobID, authz.ActionDeleteJob, actor); err != nil {
			return err
		}
		return storeErr(op, "job", tx.Jobs.DeleteCascade(ctx, jobID))
	})
	if err != nil {
		return s.fail(op, err, "job_id", jobID, "actor_id", actor.ID)
	}

	s.publish(ctx, queue.ActivityEvent{Type: queue.EventJobDeleted, JobID: jobID, ActorID: actor.ID})
	return nil
}

// AddParticipant gives userID the role in the job. A former participant's
// row is reactivated with the new role; otherwise a row is inserted. When
// two calls race for the same pair the loser fails with AlreadyExists.
func (s *JobService) AddParticipant(ctx context.Context, actor Actor, jobID, userID string, role model.ParticipantRole) (*model.JobParticipant, error) {
	const op = "participant.add"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out *model.JobParticipant
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := tx.Jobs.GetByID(ctx, jobID); err != nil {
			return storeErr(op, "job", err)
		}
		if _, err := tx.Users.GetByID(ctx, userID); err != nil {
			return storeErr(op, "user", err)
		}
		facts, err := s.engine.Authorize(ctx, tx, authz.Request{
			Action:       authz.ActionAddParticipant,
			ActorID:      actor.ID,
			JobID:        jobID,
			TargetUserID: userID,
			TargetRole:   role,
		})
		if err != nil {
			return err
		}

		if facts.Target != nil {
			err = tx.Participants.Reactivate(ctx, facts.Target.ID, role)
		} else {
			err = tx.Participants.Create(ctx, &model.JobParticipant{JobID: jobID, UserID: userID, Role: role})
		}
		if errors.Is(err, repository.ErrDuplicate) || errors.Is(err, repository.ErrConflict) {
			return apperr.AlreadyParticipant(op)
		}
		if err != nil {
			return storeErr(op, "participant", err)
		}
		out, err = tx.Participants.Find(ctx, jobID, userID)
		return storeErr(op, "participant", err)
	})
	if err != nil {
		return nil, s.fail(op, err, "job_id", jobID, "user_id", userID, "actor_id", actor.ID)
	}

	s.publish(ctx, queue.ActivityEvent{
		Type:      queue.EventParticipantAdded,
		JobID:     jobID,
		ActorID:   actor.ID,
		SubjectID: userID,
		Role:      string(role),
	})
	return out, nil
}

// RemoveParticipant deactivates userID's participation. The manager can
// never be removed. Removing an already inactive participant succeeds
// without change.
func (s *JobService) RemoveParticipant(ctx context.Context, actor Actor, jobID, userID string) error {
	const op = "participant.remove"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	changed := false
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := tx.Jobs.GetByID(ctx, jobID); err != nil {
			return storeErr(op, "job", err)
		}
		facts, err := s.engine.Authorize(ctx, tx, authz.Request{
			Action:       authz.ActionRemoveParticipant,
			ActorID:      actor.ID,
			JobID:        jobID,
			TargetUserID: userID,
		})
		if err != nil {
			return err
		}
		if facts.Target == nil {
			return apperr.NotFound(op, "participant not found")
		}
		if !facts.Target.Active() {
			return nil
		}
		changed = true
		return storeErr(op, "participant", tx.Participants.Deactivate(ctx, jobID, userID))
	})
	if err != nil {
		return s.fail(op, err, "job_id", jobID, "user_id", userID, "actor_id", actor.ID)
	}

	if changed {
		s.publish(ctx, queue.ActivityEvent{
			Type:      queue.EventParticipantRemoved,
			JobID:     jobID,
			ActorID:   actor.ID,
			SubjectID: userID,
		})
	}
	return nil
}

// ListParticipants returns the job's active participants.
func (s *JobService) ListParticipants(ctx context.Context, actor Actor, jobID string) ([]model.JobParticipant, error) {
	const op = "participant.list"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out []model.JobParticipant
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := s.loadJob(ctx, tx, op, jobID, authz.ActionReadJob, actor); err != nil {
			return err
		}
		var err error
		out, err = tx.Participants.ListActive(ctx, jobID)
		return storeErr(op, "participant", err)
	})
	if err != nil {
		return nil, s.fail(op, err, "job_id", jobID, "actor_id", actor.ID)
	}
	return out, nil
}
