package service

import (
	"context"
	"time"

	"github.com/iliyamo/tradeflow/internal/authz"
	"github.com/iliyamo/tradeflow/internal/model"
	"github.com/iliyamo/tradeflow/internal/queue"
	"github.com/iliyamo/tradeflow/internal/repository"
)

// TaskService owns the task lifecycle inside a job.
type TaskService struct{ base }

func NewTaskService(store *repository.Store, engine *authz.Engine, opts Options) *TaskService {
	return &TaskService{base: newBase(store, engine, opts)}
}

type CreateTaskInput struct {
	Title          string
	Description    string
	DueDate        time.Time
	EstimatedHours *float64
	AssignedToID   *string
}

// TaskPatch lists the fields that may change on a task. AssignedToID set
// to an empty string clears the assignment.
type TaskPatch struct {
	Title          *string
	Description    *string
	Status         *model.Status
	DueDate        *time.Time
	EstimatedHours *float64
	AssignedToID   *string
}

// CreateTask adds a pending task to the job. An assignee must be an active
// participant of the job.
func (s *TaskService) CreateTask(ctx context.Context, actor Actor, jobID string, in CreateTaskInput) (*model.Task, error) {
	const op = "task.create"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	task := &model.Task{
		JobID:          jobID,
		Title:          in.Title,
		Description:    in.Description,
		Status:         model.StatusPending,
		DueDate:        in.DueDate.UTC(),
		EstimatedHours: in.EstimatedHours,
		CreatedByID:    actor.ID,
	}
	if in.AssignedToID != nil && *in.AssignedToID != "" {
		task.AssignedToID = in.AssignedToID
	}

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := s.loadJob(ctx, tx, op, jobID, authz.ActionCreateTask, actor); err != nil {
			return err
		}
		if task.AssignedToID != nil {
			if err := s.checkAssignee(ctx, tx, jobID, *task.AssignedToID); err != nil {
				return err
			}
		}
		return storeErr(op, "task", tx.Tasks.Create(ctx, task))
	})
	if err != nil {
		return nil, s.fail(op, err, "job_id", jobID, "actor_id", actor.ID)
	}

	s.publish(ctx, taskEvent(queue.EventTaskCreated, task, actor))
	return task, nil
}

// ListJobTasks returns every task of the job.
func (s *TaskService) ListJobTasks(ctx context.Context, actor Actor, jobID string) ([]model.Task, error) {
	const op = "task.list"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var tasks []model.Task
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := s.loadJob(ctx, tx, op, jobID, authz.ActionReadTask, actor); err != nil {
			return err
		}
		var err error
		tasks, err = tx.Tasks.ListByJob(ctx, jobID)
		return storeErr(op, "task", err)
	})
	if err != nil {
		return nil, s.fail(op, err, "job_id", jobID, "actor_id", actor.ID)
	}
	return tasks, nil
}

// GetTask returns one task to an active participant of its job.
func (s *TaskService) GetTask(ctx context.Context, actor Actor, taskID string) (*model.Task, error) {
	const op = "task.read"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var task *model.Task
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		task, err = s.loadTask(ctx, tx, op, taskID, authz.ActionReadTask, actor)
		return err
	})
	if err != nil {
		return nil, s.fail(op, err, "task_id", taskID, "actor_id", actor.ID)
	}
	return task, nil
}

// UpdateTask applies patch. Managers, coordinators and the current
// assignee may update; a new assignee is re-validated against the job's
// active participants.
func (s *TaskService) UpdateTask(ctx context.Context, actor Actor, taskID string, patch TaskPatch) (*model.Task, error) {
	const op = "task.update"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var task *model.Task
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		if task, err = s.loadTask(ctx, tx, op, taskID, authz.ActionUpdateTask, actor); err != nil {
			return err
		}
		if patch.Status != nil {
			if err := transition(op, task.Status, *patch.Status); err != nil {
				return err
			}
			task.Status = *patch.Status
		}
		if patch.AssignedToID != nil {
			switch next := *patch.AssignedToID; {
			case next == "":
				task.AssignedToID = nil
			case !task.AssignedTo(next):
				if err := s.checkAssignee(ctx, tx, task.JobID, next); err != nil {
					return err
				}
				task.AssignedToID = &next
			}
		}
		if patch.Title != nil {
			task.Title = *patch.Title
		}
		if patch.Description != nil {
			task.Description = *patch.Description
		}
		if patch.DueDate != nil {
			task.DueDate = patch.DueDate.UTC()
		}
		if patch.EstimatedHours != nil {
			task.EstimatedHours = patch.EstimatedHours
		}
		return storeErr(op, "task", tx.Tasks.Save(ctx, task))
	})
	if err != nil {
		return nil, s.fail(op, err, "task_id", taskID, "actor_id", actor.ID)
	}

	s.publish(ctx, taskEvent(queue.EventTaskUpdated, task, actor))
	return task, nil
}

// DeleteTask hard-deletes the task. Only the job manager may do so.
func (s *TaskService) DeleteTask(ctx context.Context, actor Actor, taskID string) error {
	const op = "task.delete"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var task *model.Task
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		if task, err = s.loadTask(ctx, tx, op, taskID, authz.ActionDeleteTask, actor); err != nil {
			return err
		}
		return storeErr(op, "task", tx.Tasks.Delete(ctx, taskID))
	})
	if err != nil {
		return s.fail(op, err, "task_id", taskID, "actor_id", actor.ID)
	}

	s.publish(ctx, taskEvent(queue.EventTaskDeleted, task, actor))
	return nil
}

func (s *TaskService) loadTask(ctx context.Context, tx *repository.Store, op, taskID string, action authz.Action, actor Actor) (*model.Task, error) {
	task, err := tx.Tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, storeErr(op, "task", err)
	}
	_, err = s.engine.Authorize(ctx, tx, authz.Request{
		Action:  action,
		ActorID: actor.ID,
		JobID:   task.JobID,
		Task:    task,
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// checkAssignee fails with InvalidAssignee unless userID is an active
// participant of the job.
func (s *TaskService) checkAssignee(ctx context.Context, tx *repository.Store, jobID, userID string) error {
	_, err := s.engine.Authorize(ctx, tx, authz.Request{
		Action:       authz.ActionReassignTask,
		JobID:        jobID,
		TargetUserID: userID,
	})
	return err
}

func taskEvent(t queue.EventType, task *model.Task, actor Actor) queue.ActivityEvent {
	ev := queue.ActivityEvent{
		Type:    t,
		JobID:   task.JobID,
		TaskID:  task.ID,
		ActorID: actor.ID,
		Status:  string(task.Status),
	}
	if task.AssignedToID != nil {
		ev.SubjectID = *task.AssignedToID
	}
	return ev
}
