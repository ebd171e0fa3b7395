// Package queue defines the activity event payload and moves it over
// RabbitMQ: a publisher used by the services and a consumer run by the
// worker command.
package queue

import "time"

// ActivityQueue is the durable queue carrying ActivityEvent messages.
const ActivityQueue = "jobs.activity"

// EventType names what happened.
type EventType string

const (
	EventJobCreated         EventType = "job.created"
	EventJobUpdated         EventType = "job.updated"
	EventJobDeleted         EventType = "job.deleted"
	EventParticipantAdded   EventType = "participant.added"
	EventParticipantRemoved EventType = "participant.removed"
	EventTaskCreated        EventType = "task.created"
	EventTaskUpdated        EventType = "task.updated"
	EventTaskDeleted        EventType = "task.deleted"
)

// ActivityEvent is published after a job, participant or task change has
// been committed. It carries enough for consumers to log or notify without
// querying the primary database.
type ActivityEvent struct {
	Type       EventType `json:"type"`
	JobID      string    `json:"job_id"`
	TaskID     string    `json:"task_id,omitempty"`
	ActorID    string    `json:"actor_id"`
	SubjectID  string    `json:"subject_id,omitempty"` // participant or assignee user id
	Role       string    `json:"role,omitempty"`
	Status     string    `json:"status,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
