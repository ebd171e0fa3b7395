package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iliyamo/tradeflow/internal/model"
)

// JobRepo provides persistence for jobs. Deleting a job cascades to its
// tasks and participants; callers run DeleteCascade inside a transaction.
type JobRepo struct{ db *gorm.DB }

func NewJobRepo(db *gorm.DB) *JobRepo { return &JobRepo{db: db} }

// Create inserts j, assigning its ID.
func (r *JobRepo) Create(ctx context.Context, j *model.Job) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	return translate("create job", r.db.WithContext(ctx).Create(j).Error)
}

// GetByID fetches a job by id.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	var j model.Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, translate("get job", err)
	}
	return &j, nil
}

// ListForParticipant returns the jobs in which userID is an active
// participant, newest first.
func (r *JobRepo) ListForParticipant(ctx context.Context, userID string) ([]model.Job, error) {
	var jobs []model.Job
	err := r.db.WithContext(ctx).
		Joins("JOIN job_participants jp ON jp.job_id = jobs.id").
		Where("jp.user_id = ? AND jp.status = ?", userID, model.MembershipActive).
		Order("jobs.created_at desc").
		Find(&jobs).Error
	return jobs, translate("list jobs", err)
}

// Save writes the mutable columns of j. Relationship columns (created_by_id,
// client_id) are never rewritten.
func (r *JobRepo) Save(ctx context.Context, j *model.Job) error {
	j.UpdatedAt = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&model.Job{}).Where("id = ?", j.ID).Updates(map[string]any{
		"title":           j.Title,
		"description":     j.Description,
		"status":          j.Status,
		"start_date":      j.StartDate,
		"due_date":        j.DueDate,
		"estimated_hours": j.EstimatedHours,
		"budget":          j.Budget,
		"location":        j.Location,
		"updated_at":      j.UpdatedAt,
	})
	if res.Error != nil {
		return translate("save job", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCascade removes the job's tasks, its participant rows and finally
// the job itself.
func (r *JobRepo) DeleteCascade(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("job_id = ?", id).Delete(&model.Task{}).Error; err != nil {
		return translate("delete job tasks", err)
	}
	if err := db.Where("job_id = ?", id).Delete(&model.JobParticipant{}).Error; err != nil {
		return translate("delete job participants", err)
	}
	res := db.Delete(&model.Job{}, "id = ?", id)
	if res.Error != nil {
		return translate("delete job", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
