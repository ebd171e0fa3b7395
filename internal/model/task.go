package model

import "time"

// Task represents a row of the `tasks` table. AssignedToID, when set, named
// an active participant of the same job at the time it was assigned.
type Task struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	JobID          string    `gorm:"size:36;not null;index" json:"jobId"`
	Title          string    `gorm:"size:200;not null" json:"title"`
	Description    string    `gorm:"type:text;not null" json:"description"`
	Status         Status    `gorm:"type:varchar(20);not null;default:pending" json:"status"`
	DueDate        time.Time `gorm:"not null" json:"dueDate"`
	EstimatedHours *float64  `json:"estimatedHours,omitempty"`
	AssignedToID   *string   `gorm:"size:36;index" json:"assignedToId,omitempty"`
	CreatedByID    string    `gorm:"size:36;not null" json:"createdById"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// AssignedTo reports whether userID is the current assignee.
func (t Task) AssignedTo(userID string) bool {
	return t.AssignedToID != nil && *t.AssignedToID == userID
}
