package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iliyamo/tradeflow/internal/model"
)

type TaskRepo struct{ db *gorm.DB }

func NewTaskRepo(db *gorm.DB) *TaskRepo { return &TaskRepo{db: db} }

// Create inserts t, assigning its ID.
func (r *TaskRepo) Create(ctx context.Context, t *model.Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return translate("create task", r.db.WithContext(ctx).Create(t).Error)
}

// GetByID fetches a task by id.
func (r *TaskRepo) GetByID(ctx context.Context, id string) (*model.Task, error) {
	var t model.Task
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, translate("get task", err)
	}
	return &t, nil
}

// ListByJob returns the tasks of a job ordered by due date.
func (r *TaskRepo) ListByJob(ctx context.Context, jobID string) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("due_date asc, created_at asc").
		Find(&tasks).Error
	return tasks, translate("list tasks", err)
}

// Save writes the mutable columns of t. job_id and created_by_id are
// never rewritten.
func (r *TaskRepo) Save(ctx context.Context, t *model.Task) error {
	t.UpdatedAt = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&model.Task{}).Where("id = ?", t.ID).Updates(map[string]any{
		"title":           t.Title,
		"description":     t.Description,
		"status":          t.Status,
		"due_date":        t.DueDate,
		"estimated_hours": t.EstimatedHours,
		"assigned_to_id":  t.AssignedToID,
		"updated_at":      t.UpdatedAt,
	})
	if res.Error != nil {
		return translate("save task", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete hard-deletes a task.
func (r *TaskRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&model.Task{}, "id = ?", id)
	if res.Error != nil {
		return translate("delete task", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearAssignee unassigns every task currently assigned to userID.
func (r *TaskRepo) ClearAssignee(ctx context.Context, userID string) error {
	err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("assigned_to_id = ?", userID).
		Updates(map[string]any{"assigned_to_id": nil, "updated_at": time.Now().UTC()}).Error
	return translate("clear assignee", err)
}
