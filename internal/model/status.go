package model

// Status is the lifecycle state shared by jobs and tasks.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// transitions lists the outgoing edges of every non-terminal status.
var transitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

// Valid reports whether s is one of the four declared statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s has no outgoing transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo reports whether moving from s to next is an edge of the
// state machine. Setting the current status again is not a transition and
// is accepted for non-terminal and terminal states alike.
func (s Status) CanTransitionTo(next Status) bool {
	if !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	for _, to := range transitions[s] {
		if to == next {
			return true
		}
	}
	return false
}
