package model

import "time"

// ParticipantRole is the role a user holds inside one job.
type ParticipantRole string

const (
	RoleManager     ParticipantRole = "manager"
	RoleCoordinator ParticipantRole = "coordinator"
	RoleWorker      ParticipantRole = "worker"
	RoleClient      ParticipantRole = "client"
)

// Valid reports whether r is one of the four declared participant roles.
func (r ParticipantRole) Valid() bool {
	switch r {
	case RoleManager, RoleCoordinator, RoleWorker, RoleClient:
		return true
	}
	return false
}

// MembershipStatus records whether a participant row currently grants access.
// Inactive rows are kept as history and can be reactivated.
type MembershipStatus string

const (
	MembershipActive   MembershipStatus = "active"
	MembershipInactive MembershipStatus = "inactive"
)

// Job represents a row of the `jobs` table. StartDate never exceeds DueDate.
type Job struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	Title          string    `gorm:"size:200;not null" json:"title"`
	Description    string    `gorm:"type:text;not null" json:"description"`
	Status         Status    `gorm:"type:varchar(20);not null;default:pending" json:"status"`
	StartDate      time.Time `gorm:"not null" json:"startDate"`
	DueDate        time.Time `gorm:"not null" json:"dueDate"`
	EstimatedHours *float64  `json:"estimatedHours,omitempty"`
	Budget         *float64  `json:"budget,omitempty"`
	Location       *string   `gorm:"type:text" json:"location,omitempty"`
	CreatedByID    string    `gorm:"size:36;not null;index" json:"createdById"`
	ClientID       string    `gorm:"size:36;not null;index" json:"clientId"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// JobParticipant is the join between a user and a job. (JobID, UserID) is
// unique; rows are deactivated rather than deleted.
type JobParticipant struct {
	ID       string           `gorm:"primaryKey;size:36" json:"id"`
	JobID    string           `gorm:"size:36;not null;uniqueIndex:idx_participant_job_user" json:"jobId"`
	UserID   string           `gorm:"size:36;not null;uniqueIndex:idx_participant_job_user;index" json:"userId"`
	Role     ParticipantRole  `gorm:"type:varchar(20);not null;default:worker" json:"role"`
	Status   MembershipStatus `gorm:"type:varchar(10);not null;default:active" json:"status"`
	JoinedAt time.Time        `gorm:"not null" json:"joinedAt"`
}

// Active reports whether the participant currently belongs to the job.
func (p JobParticipant) Active() bool { return p.Status == MembershipActive }

// JobDetail is a job together with its active participants and its tasks,
// each loaded by an explicit query.
type JobDetail struct {
	Job
	Participants []JobParticipant `json:"participants"`
	Tasks        []Task           `json:"tasks"`
}
