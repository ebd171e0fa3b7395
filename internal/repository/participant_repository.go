package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iliyamo/tradeflow/internal/model"
)

// ParticipantRepo persists job_participants rows. The unique index on
// (job_id, user_id) serialises concurrent inserts for the same pair; the
// loser receives ErrDuplicate.
type ParticipantRepo struct{ db *gorm.DB }

func NewParticipantRepo(db *gorm.DB) *ParticipantRepo { return &ParticipantRepo{db: db} }

// Create inserts p, assigning its ID and JoinedAt when unset.
func (r *ParticipantRepo) Create(ctx context.Context, p *model.JobParticipant) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.JoinedAt.IsZero() {
		p.JoinedAt = time.Now().UTC()
	}
	if p.Status == "" {
		p.Status = model.MembershipActive
	}
	err := r.db.WithContext(ctx).Create(p).Error
	if err != nil && isSerializationFailure(err) {
		// a concurrent insert of the same pair won
		return ErrDuplicate
	}
	return translate("create participant", err)
}

// Find returns the row for (jobID, userID) regardless of its status.
func (r *ParticipantRepo) Find(ctx context.Context, jobID, userID string) (*model.JobParticipant, error) {
	var p model.JobParticipant
	err := r.db.WithContext(ctx).First(&p, "job_id = ? AND user_id = ?", jobID, userID).Error
	if err != nil {
		return nil, translate("find participant", err)
	}
	return &p, nil
}

// ListActive returns the active participants of a job in join order.
func (r *ParticipantRepo) ListActive(ctx context.Context, jobID string) ([]model.JobParticipant, error) {
	var out []model.JobParticipant
	err := r.db.WithContext(ctx).
		Where("job_id = ? AND status = ?", jobID, model.MembershipActive).
		Order("joined_at asc").
		Find(&out).Error
	return out, translate("list participants", err)
}

// Reactivate flips an existing row back to active with a new role.
func (r *ParticipantRepo) Reactivate(ctx context.Context, id string, role model.ParticipantRole) error {
	res := r.db.WithContext(ctx).Model(&model.JobParticipant{}).
		Where("id = ? AND status = ?", id, model.MembershipInactive).
		Updates(map[string]any{
			"role":      role,
			"status":    model.MembershipActive,
			"joined_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return translate("reactivate participant", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// Deactivate soft-deletes the (jobID, userID) row.
func (r *ParticipantRepo) Deactivate(ctx context.Context, jobID, userID string) error {
	res := r.db.WithContext(ctx).Model(&model.JobParticipant{}).
		Where("job_id = ? AND user_id = ?", jobID, userID).
		Update("status", model.MembershipInactive)
	if res.Error != nil {
		return translate("deactivate participant", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateAllForUser soft-deletes every participation of userID.
func (r *ParticipantRepo) DeactivateAllForUser(ctx context.Context, userID string) error {
	err := r.db.WithContext(ctx).Model(&model.JobParticipant{}).
		Where("user_id = ? AND status = ?", userID, model.MembershipActive).
		Update("status", model.MembershipInactive).Error
	return translate("deactivate user participations", err)
}

// CountActiveWithRole counts the active rows of userID holding role.
func (r *ParticipantRepo) CountActiveWithRole(ctx context.Context, userID string, role model.ParticipantRole) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.JobParticipant{}).
		Where("user_id = ? AND role = ? AND status = ?", userID, role, model.MembershipActive).
		Count(&n).Error
	return n, translate("count participations", err)
}

// CountActiveManagers counts the active managers of a job.
func (r *ParticipantRepo) CountActiveManagers(ctx context.Context, jobID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.JobParticipant{}).
		Where("job_id = ? AND role = ? AND status = ?", jobID, model.RoleManager, model.MembershipActive).
		Count(&n).Error
	return n, translate("count managers", err)
}
