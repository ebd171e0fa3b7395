package authz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tradeflow/internal/apperr"
	"github.com/iliyamo/tradeflow/internal/database/dbtest"
	"github.com/iliyamo/tradeflow/internal/model"
)

func member(role model.ParticipantRole) *model.JobParticipant {
	return &model.JobParticipant{Role: role, Status: model.MembershipActive}
}

func former(role model.ParticipantRole) *model.JobParticipant {
	return &model.JobParticipant{Role: role, Status: model.MembershipInactive}
}

func TestDecide(t *testing.T) {
	assignee := "u-assignee"
	task := &model.Task{AssignedToID: &assignee}

	tests := []struct {
		name   string
		action Action
		facts  Facts
		want   apperr.Reason
		allow  bool
	}{
		{"create job any user", ActionCreateJob, Facts{ActorID: "u"}, apperr.ReasonNone, true},
		{"create job anonymous", ActionCreateJob, Facts{}, apperr.ReasonNotParticipant, false},

		{"read job worker", ActionReadJob, Facts{Actor: member(model.RoleWorker)}, apperr.ReasonNone, true},
		{"read job client", ActionReadJob, Facts{Actor: member(model.RoleClient)}, apperr.ReasonNone, true},
		{"read job outsider", ActionReadJob, Facts{}, apperr.ReasonNotParticipant, false},
		{"read job removed", ActionReadJob, Facts{Actor: former(model.RoleWorker)}, apperr.ReasonNotParticipant, false},
		{"read task outsider", ActionReadTask, Facts{}, apperr.ReasonNotParticipant, false},

		{"update job manager", ActionUpdateJob, Facts{Actor: member(model.RoleManager)}, apperr.ReasonNone, true},
		{"update job coordinator", ActionUpdateJob, Facts{Actor: member(model.RoleCoordinator)}, apperr.ReasonInsufficientRole, false},
		{"delete job worker", ActionDeleteJob, Facts{Actor: member(model.RoleWorker)}, apperr.ReasonInsufficientRole, false},
		{"delete job outsider", ActionDeleteJob, Facts{}, apperr.ReasonNotParticipant, false},

		{"add participant", ActionAddParticipant, Facts{Actor: member(model.RoleManager), TargetRole: model.RoleWorker}, apperr.ReasonNone, true},
		{"re-add former", ActionAddParticipant, Facts{Actor: member(model.RoleManager), Target: former(model.RoleWorker), TargetRole: model.RoleClient}, apperr.ReasonNone, true},
		{"add already active", ActionAddParticipant, Facts{Actor: member(model.RoleManager), Target: member(model.RoleWorker), TargetRole: model.RoleWorker}, apperr.ReasonAlreadyParticipant, false},
		{"add second manager", ActionAddParticipant, Facts{Actor: member(model.RoleManager), TargetRole: model.RoleManager}, apperr.ReasonTargetInvalid, false},
		{"add by coordinator", ActionAddParticipant, Facts{Actor: member(model.RoleCoordinator), TargetRole: model.RoleWorker}, apperr.ReasonInsufficientRole, false},

		{"remove worker", ActionRemoveParticipant, Facts{Actor: member(model.RoleManager), Target: member(model.RoleWorker)}, apperr.ReasonNone, true},
		{"remove manager by manager", ActionRemoveParticipant, Facts{Actor: member(model.RoleManager), Target: member(model.RoleManager)}, apperr.ReasonManagerIrremovable, false},
		{"remove manager by outsider", ActionRemoveParticipant, Facts{Target: member(model.RoleManager)}, apperr.ReasonManagerIrremovable, false},
		{"remove by worker", ActionRemoveParticipant, Facts{Actor: member(model.RoleWorker), Target: member(model.RoleClient)}, apperr.ReasonInsufficientRole, false},

		{"create task coordinator", ActionCreateTask, Facts{Actor: member(model.RoleCoordinator)}, apperr.ReasonNone, true},
		{"create task worker", ActionCreateTask, Facts{Actor: member(model.RoleWorker)}, apperr.ReasonInsufficientRole, false},

		{"update task coordinator", ActionUpdateTask, Facts{Actor: member(model.RoleCoordinator), Task: task}, apperr.ReasonNone, true},
		{"update task assignee", ActionUpdateTask, Facts{ActorID: assignee, Actor: member(model.RoleWorker), Task: task}, apperr.ReasonNone, true},
		{"update task other worker", ActionUpdateTask, Facts{ActorID: "u-other", Actor: member(model.RoleWorker), Task: task}, apperr.ReasonInsufficientRole, false},
		{"update task removed assignee", ActionUpdateTask, Facts{ActorID: assignee, Actor: former(model.RoleWorker), Task: task}, apperr.ReasonNotParticipant, false},

		{"delete task manager", ActionDeleteTask, Facts{Actor: member(model.RoleManager)}, apperr.ReasonNone, true},
		{"delete task coordinator", ActionDeleteTask, Facts{Actor: member(model.RoleCoordinator)}, apperr.ReasonInsufficientRole, false},

		{"reassign to member", ActionReassignTask, Facts{Target: member(model.RoleClient)}, apperr.ReasonNone, true},
		{"reassign to former", ActionReassignTask, Facts{Target: former(model.RoleWorker)}, apperr.ReasonTargetInvalid, false},
		{"reassign to outsider", ActionReassignTask, Facts{}, apperr.ReasonTargetInvalid, false},

		{"update self", ActionUpdateUser, Facts{ActorID: "u", SubjectUserID: "u"}, apperr.ReasonNone, true},
		{"update other as pm", ActionUpdateUser, Facts{ActorID: "u", ActorPlatform: model.PlatformRoleProjectManager, SubjectUserID: "v"}, apperr.ReasonNone, true},
		{"update other", ActionUpdateUser, Facts{ActorID: "u", ActorPlatform: model.PlatformRoleContractor, SubjectUserID: "v"}, apperr.ReasonInsufficientRole, false},
		{"delete user as pm", ActionDeleteUser, Facts{ActorPlatform: model.PlatformRoleProjectManager}, apperr.ReasonNone, true},
		{"delete self", ActionDeleteUser, Facts{ActorID: "u", SubjectUserID: "u", ActorPlatform: model.PlatformRoleTradesperson}, apperr.ReasonInsufficientRole, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.action, tt.facts)
			assert.Equal(t, tt.allow, d.Allowed)
			assert.Equal(t, tt.want, d.Reason)
		})
	}
}

func TestEngineLoadsMembership(t *testing.T) {
	store := dbtest.New(t)
	ctx := context.Background()

	mgr := &model.User{Email: "m@x.com", PasswordHash: "x"}
	wrk := &model.User{Email: "w@x.com", PasswordHash: "x"}
	require.NoError(t, store.Users.Create(ctx, mgr))
	require.NoError(t, store.Users.Create(ctx, wrk))
	now := time.Now().UTC()
	job := &model.Job{Title: "Roof", Description: "Fix roof", Status: model.StatusPending, StartDate: now, DueDate: now, CreatedByID: mgr.ID, ClientID: mgr.ID}
	require.NoError(t, store.Jobs.Create(ctx, job))
	require.NoError(t, store.Participants.Create(ctx, &model.JobParticipant{JobID: job.ID, UserID: mgr.ID, Role: model.RoleManager}))
	require.NoError(t, store.Participants.Create(ctx, &model.JobParticipant{JobID: job.ID, UserID: wrk.ID, Role: model.RoleWorker}))

	eng := NewEngine()

	facts, err := eng.Authorize(ctx, store, Request{Action: ActionDeleteJob, ActorID: mgr.ID, JobID: job.ID})
	require.NoError(t, err)
	assert.Equal(t, model.RoleManager, facts.Actor.Role)

	_, err = eng.Authorize(ctx, store, Request{Action: ActionDeleteJob, ActorID: wrk.ID, JobID: job.ID})
	assert.ErrorIs(t, err, &apperr.Error{Kind: apperr.KindUnauthorized, Reason: apperr.ReasonInsufficientRole})

	_, err = eng.Authorize(ctx, store, Request{Action: ActionRemoveParticipant, ActorID: wrk.ID, JobID: job.ID, TargetUserID: mgr.ID})
	assert.ErrorIs(t, err, &apperr.Error{Kind: apperr.KindUnauthorized, Reason: apperr.ReasonManagerIrremovable})

	_, err = eng.Authorize(ctx, store, Request{Action: ActionAddParticipant, ActorID: mgr.ID, JobID: job.ID, TargetUserID: wrk.ID, TargetRole: model.RoleClient})
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)
	assert.Equal(t, apperr.ReasonAlreadyParticipant, apperr.ReasonOf(err))

	_, err = eng.Authorize(ctx, store, Request{Action: ActionReassignTask, ActorID: mgr.ID, JobID: job.ID, TargetUserID: "stranger"})
	assert.ErrorIs(t, err, apperr.ErrInvalidAssignee)

	_, err = eng.Authorize(ctx, store, Request{Action: ActionReadJob, ActorID: "stranger", JobID: job.ID})
	assert.ErrorIs(t, err, &apperr.Error{Kind: apperr.KindUnauthorized, Reason: apperr.ReasonNotParticipant})
}
