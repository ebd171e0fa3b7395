package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/tradeflow/internal/apperr"
	"github.com/iliyamo/tradeflow/internal/auth"
	"github.com/iliyamo/tradeflow/internal/authz"
	"github.com/iliyamo/tradeflow/internal/database/dbtest"
	"github.com/iliyamo/tradeflow/internal/model"
	"github.com/iliyamo/tradeflow/internal/queue"
	"github.com/iliyamo/tradeflow/internal/repository"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.ActivityEvent
	err    error
}

func (p *recordingPublisher) PublishActivity(_ context.Context, ev queue.ActivityEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []queue.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]queue.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	store  *repository.Store
	events *recordingPublisher
	auth   *AuthService
	users  *UserService
	jobs   *JobService
	tasks  *TaskService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := dbtest.New(t)
	issuer := auth.NewIssuer(store, auth.Options{Secret: "test-secret", BcryptCost: bcrypt.MinCost})
	engine := authz.NewEngine()
	events := &recordingPublisher{}
	opts := Options{
		Timeout: 5 * time.Second,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Events:  events,
	}
	return &fixture{
		store:  store,
		events: events,
		auth:   NewAuthService(store, issuer, opts),
		users:  NewUserService(store, issuer, engine, opts),
		jobs:   NewJobService(store, engine, opts),
		tasks:  NewTaskService(store, engine, opts),
	}
}

func (f *fixture) register(t *testing.T, email string, role model.PlatformRole) Actor {
	t.Helper()
	u, _, err := f.auth.Register(context.Background(), RegisterInput{
		Email:    email,
		Password: "longenough1",
		Role:     role,
	})
	require.NoError(t, err)
	return Actor{ID: u.ID, Role: u.Role}
}

func (f *fixture) job(t *testing.T, owner Actor) *model.Job {
	t.Helper()
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	j, err := f.jobs.CreateJob(context.Background(), owner, CreateJobInput{
		Title:       "Bathroom refit",
		Description: "Strip and retile",
		StartDate:   start,
		DueDate:     start.Add(14 * 24 * time.Hour),
	})
	require.NoError(t, err)
	return j
}

func (f *fixture) activeManagers(t *testing.T, jobID string) int64 {
	t.Helper()
	n, err := f.store.Participants.CountActiveManagers(context.Background(), jobID)
	require.NoError(t, err)
	return n
}

func kindIs(t *testing.T, err error, k apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, k, apperr.KindOf(err), "error: %v", err)
}

func ptr[T any](v T) *T { return &v }

func TestCreateJobSeedsManager(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "a@x.com", "")

	j := f.job(t, a)
	assert.Equal(t, model.StatusPending, j.Status)
	assert.Equal(t, a.ID, j.CreatedByID)
	assert.Equal(t, a.ID, j.ClientID)

	ps, err := f.jobs.ListParticipants(ctx, a, j.ID)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, a.ID, ps[0].UserID)
	assert.Equal(t, model.RoleManager, ps[0].Role)
	assert.Equal(t, []queue.EventType{queue.EventJobCreated}, f.events.types())
}

func TestCreateJobDateOrdering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "a@x.com", "")
	d1 := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

	_, err := f.jobs.CreateJob(ctx, a, CreateJobInput{Title: "t", Description: "d", StartDate: d1, DueDate: d1.Add(-time.Hour)})
	kindIs(t, err, apperr.KindInvalidState)

	j, err := f.jobs.CreateJob(ctx, a, CreateJobInput{Title: "t", Description: "d", StartDate: d1, DueDate: d1})
	require.NoError(t, err)
	assert.True(t, j.StartDate.Equal(j.DueDate))
}

func TestCreateJobUnknownClientRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "a@x.com", "")
	d := time.Now().UTC()

	_, err := f.jobs.CreateJob(ctx, a, CreateJobInput{Title: "t", Description: "d", StartDate: d, DueDate: d, ClientID: "nobody"})
	kindIs(t, err, apperr.KindNotFound)

	jobs, err := f.jobs.ListJobs(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.Empty(t, f.events.types())
}

func TestManagerIsIrremovable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "a@x.com", "")
	b := f.register(t, "b@x.com", "")
	c := f.register(t, "c@x.com", model.PlatformRoleProjectManager)
	j := f.job(t, a)
	_, err := f.jobs.AddParticipant(ctx, a, j.ID, b.ID, model.RoleCoordinator)
	require.NoError(t, err)

	for _, actor := range []Actor{a, b, c} {
		err := f.jobs.RemoveParticipant(ctx, actor, j.ID, a.ID)
		kindIs(t, err, apperr.KindUnauthorized)
		assert.Equal(t, apperr.ReasonManagerIrremovable, apperr.ReasonOf(err))
	}
	assert.EqualValues(t, 1, f.activeManagers(t, j.ID))
}

func TestAddParticipantRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "a@x.com", "")
	b := f.register(t, "b@x.com", "")
	c := f.register(t, "c@x.com", "")
	j := f.job(t, a)

	_, err := f.jobs.AddParticipant(ctx, a, j.ID, b.ID, model.RoleManager)
	kindIs(t, err, apperr.KindUnauthorized)
	assert.Equal(t, apperr.ReasonTargetInvalid, apperr.ReasonOf(err))

	p, err := f.jobs.AddParticipant(ctx, a, j.ID, b.ID, model.RoleWorker)
	require.NoError(t, err)
	assert.True(t, p.Active())

	_, err = f.jobs.AddParticipant(ctx, a, j.ID, b.ID, model.RoleClient)
	kindIs(t, err, apperr.KindAlreadyExists)
	assert.Equal(t, apperr.ReasonAlreadyParticipant, apperr.ReasonOf(err))

	_, err = f.jobs.AddParticipant(ctx, b, j.ID, c.ID, model.RoleWorker)
	kindIs(t, err, apperr.KindUnauthorized)
	assert.Equal(t, apperr.ReasonInsufficientRole, apperr.ReasonOf(err))

	_, err = f.jobs.AddParticipant(ctx, c, j.ID, c.ID, model.RoleWorker)
	assert.Equal(t, apperr.ReasonNotParticipant, apperr.ReasonOf(err))

	_, err = f.jobs.AddParticipant(ctx, a, j.ID, "ghost", model.RoleWorker)
	kindIs(t, err, apperr.KindNotFound)
	_, err = f.jobs.AddParticipant(ctx, a, "ghost-job", b.ID, model.RoleWorker)
	kindIs(t, err, apperr.KindNotFound)

	assert.EqualValues(t, 1, f.activeManagers(t, j.ID))
}

func TestRemoveAndReactivateParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "a@x.com", "")
	b := f.register(t, "b@x.com", "")
	j := f.job(t, a)

	first, err := f.jobs.AddParticipant(ctx, a, j.ID, b.ID, model.RoleWorker)
	require.NoError(t, err)
	require.NoError(t, f.jobs.RemoveParticipant(ctx, a, j.ID, b.ID))
	require.NoError(t, f.jobs.RemoveParticipant(ctx, a, j.ID, b.ID), "removal is idempotent")

	_, err = f.jobs.GetJob(ctx, b, j.ID)
	kindIs(t, err, apperr.KindUnauthorized)

	again, err := f.jobs.AddParticipant(ctx, a, j.ID, b.ID, model.RoleCoordinator)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID, "row is reused")
	assert.Equal(t, model.RoleCoordinator, again.Role)

	err = f.jobs.RemoveParticipant(ctx, a, j.ID, "never-joined")
	kindIs(t, err, apperr.KindNotFound)

	assert.Equal(t, []queue.EventType{
		queue.EventJobCreated,
		queue.EventParticipantAdded,
		queue.EventParticipantRemoved,
		queue.EventParticipantAdded,
	}, f.events.types())
}

func TestConcurrentAddParticipantHasOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "a@x.com", "")
	b := f.register(t, "b@x.com", "")
	j := f.job(t, a)

	const n = 6
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.jobs.AddParticipant(ctx, a, j.ID, b.ID, model.RoleWorker)
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.Equal(t, apperr.KindAlreadyExists, apperr.KindOf(err))
		assert.Equal(t, apperr.ReasonAlreadyParticipant, apperr.ReasonOf(err))
	}
	assert.Equal(t, 1, wins)
}

func TestStatusTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "a@x.com", "")

	tests := []struct {
		path []model.Status
		last model.Status
		ok   bool
	}{
		{nil, model.StatusCancelled, true},
		{[]model.Status{model.StatusInProgress}, model.StatusCompleted, true},
		{[]model.Status{model.StatusInProgress, model.StatusCompleted}, model.StatusPending, false},
		{[]model.Status{model.StatusCancelled}, model.StatusInProgress, false},
		{nil, model.Status("archived"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.last), func(t *testing.T) {
			j := f.job(t, a)
			for _, st := range tt.path {
				_, err := f.jobs.UpdateJob(ctx, a, j.ID, JobPatch{Status: ptr(st)})
				require.NoError(t, err)
			}
			_, err := f.jobs.UpdateJob(ctx, a, j.ID, JobPatch{Status: ptr(tt.last)})
			if tt.ok {
				assert.NoError(t, err)
			} else {
				kindIs(t, err, apperr.KindInvalidState)
			}
		})
	}
}

func TestTaskStatusTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "a@x.com", "")
	j := f.job(t, a)

	tests := []struct {
		name string
		path []model.Status
		last model.Status
		ok   bool
	}{
		{"pending to in_progress", nil, model.StatusInProgress, true},
		{"in_progress to completed", []model.Status{model.StatusInProgress}, model.StatusCompleted, true},
		{"completed to pending", []model.Status{model.StatusInProgress, model.StatusCompleted}, model.StatusPending, false},
		{"cancelled to in_progress", []model.Status{model.StatusCancelled}, model.StatusInProgress, false},
		{"pending to completed", nil, model.StatusCompleted, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task, err := f.tasks.CreateTask(ctx, a, j.ID, CreateTaskInput{
				Title:       tt.name,
				Description: "step",
				DueDate:     time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
			})
			require.NoError(t, err)
			for _, st := range tt.path {
				_, err := f.tasks.UpdateTask(ctx, a, task.ID, TaskPatch{Status: ptr(st)})
				require.NoError(t, err)
			}
			_, err = f.tasks.UpdateTask(ctx, a, task.ID, TaskPatch{Status: ptr(tt.last)})
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			kindIs(t, err, apperr.KindInvalidState)
			if len(tt.path) > 0 && tt.path[len(tt.path)-1].Terminal() {
				assert.Contains(t, err.Error(), "is final")
			}

			got, err := f.tasks.GetTask(ctx, a, task.ID)
			require.NoError(t, err)
			if len(tt.path) > 0 {
				assert.Equal(t, tt.path[len(tt.path)-1], got.Status)
			} else {
				assert.Equal(t, model.StatusPending, got.Status)
			}
		})
	}
}

func TestUpdateJobRevalidatesDates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "a@x.com", "")
	j := f.job(t, a)

	_, err := f.jobs.UpdateJob(ctx, a, j.ID, JobPatch{DueDate: ptr(j.StartDate.Add(-time.Minute))})
	kindIs(t, err, apperr.KindInvalidState)

	got, err := f.jobs.UpdateJob(ctx, a, j.ID, JobPatch{Title: ptr("Wet room"), Budget: ptr(1500.0)})
	require.NoError(t, err)
	assert.Equal(t, "Wet room", got.Title)
	assert.Equal(t, 1500.0, *got.Budget)
	assert.Equal(t, a.ID, got.CreatedByID)
}

// A registers and creates J, adds B as worker; B cannot delete J, A can,
// after which J is gone.
func TestScenarioDeleteJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "a@x.com", "")
	b := f.register(t, "b@x.com", "")
	j := f.job(t, a)
	_, err := f.jobs.AddParticipant(ctx, a, j.ID, b.ID, model.RoleWorker)
	require.NoError(t, err)
	task, err := f.tasks.CreateTask(ctx, a, j.ID, CreateTaskInput{Title: "t", Description: "d", DueDate: j.DueDate, AssignedToID: &b.ID})
	require.NoError(t, err)

	err = f.jobs.DeleteJob(ctx, b, j.ID)
	kindIs(t, err, apperr.KindUnauthorized)

	require.NoError(t, f.jobs.DeleteJob(ctx, a, j.ID))
	_, err = f.jobs.GetJob(ctx, a, j.ID)
	kindIs(t, err, apperr.KindNotFound)
	_, err = f.tasks.GetTask(ctx, a, task.ID)
	kindIs(t, err, apperr.KindNotFound)
	_, err = f.store.Participants.Find(ctx, j.ID, b.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

// A creates T assigned to B; B moves it to in_progress; C, an outsider,
// cannot read it.
func TestScenarioAssigneeUpdatesTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "a@x.com", "")
	b := f.register(t, "b@x.com", "")
	c := f.register(t, "c@x.com", "")
	j := f.job(t, a)
	_, err := f.jobs.AddParticipant(ctx, a, j.ID, b.ID, model.RoleWorker)
	require.NoError(t, err)

	task, err := f.tasks.CreateTask(ctx, a, j.ID, CreateTaskInput{Title: "Tile", Description: "Tile floor", DueDate: j.DueDate, AssignedToID: &b.ID})
	require.NoError(t, err)

	got, err := f.tasks.UpdateTask(ctx, b, task.ID, TaskPatch{Status: ptr(model.StatusInProgress)})
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, got.Status)

	_, err = f.tasks.GetTask(ctx, c, task.ID)
	require.Error(t, err)
	k := apperr.KindOf(err)
	assert.True(t, k == apperr.KindUnauthorized || k == apperr.KindNotFound)
}

func TestTaskAssignmentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "a@x.com", "")
	b := f.register(t, "b@x.com", "")
	c := f.register(t, "c@x.com", "")
	j := f.job(t, a)
	_, err := f.jobs.AddParticipant(ctx, a, j.ID, b.ID, model.RoleWorker)
	require.NoError(t, err)

	_, err = f.tasks.CreateTask(ctx, a, j.ID, CreateTaskInput{Title: "t", Description: "d", DueDate: j.DueDate, AssignedToID: &c.ID})
	kindIs(t, err, apperr.KindInvalidAssignee)

	task, err := f.tasks.CreateTask(ctx, a, j.ID, CreateTaskInput{Title: "t", Description: "d", DueDate: j.DueDate})
	require.NoError(t, err)
	assert.Nil(t, task.AssignedToID)

	_, err = f.tasks.UpdateTask(ctx, a, task.ID, TaskPatch{AssignedToID: &c.ID})
	kindIs(t, err, apperr.KindInvalidAssignee)

	got, err := f.tasks.UpdateTask(ctx, a, task.ID, TaskPatch{AssignedToID: &b.ID})
	require.NoError(t, err)
	assert.True(t, got.AssignedTo(b.ID))

	// removal does not retroactively clear the assignment
	require.NoError(t, f.jobs.RemoveParticipant(ctx, a, j.ID, b.ID))
	got, err = f.tasks.GetTask(ctx, a, task.ID)
	require.NoError(t, err)
	assert.True(t, got.AssignedTo(b.ID))

	// and the removed assignee loses update rights
	_, err = f.tasks.UpdateTask(ctx, b, task.ID, TaskPatch{Title: ptr("x")})
	kindIs(t, err, apperr.KindUnauthorized)

	got, err = f.tasks.UpdateTask(ctx, a, task.ID, TaskPatch{AssignedToID: ptr("")})
	require.NoError(t, err)
	assert.Nil(t, got.AssignedToID)
}

func TestTaskPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "a@x.com", "")
	coord := f.register(t, "coord@x.com", "")
	w := f.register(t, "w@x.com", "")
	j := f.job(t, a)
	_, err := f.jobs.AddParticipant(ctx, a, j.ID, coord.ID, model.RoleCoordinator)
	require.NoError(t, err)
	_, err = f.jobs.AddParticipant(ctx, a, j.ID, w.ID, model.RoleWorker)
	require.NoError(t, err)

	_, err = f.tasks.CreateTask(ctx, w, j.ID, CreateTaskInput{Title: "t", Description: "d", DueDate: j.DueDate})
	kindIs(t, err, apperr.KindUnauthorized)

	task, err := f.tasks.CreateTask(ctx, coord, j.ID, CreateTaskInput{Title: "t", Description: "d", DueDate: j.DueDate})
	require.NoError(t, err)
	assert.Equal(t, coord.ID, task.CreatedByID)

	_, err = f.tasks.UpdateTask(ctx, w, task.ID, TaskPatch{Title: ptr("mine now")})
	kindIs(t, err, apperr.KindUnauthorized)

	tasks, err := f.tasks.ListJobTasks(ctx, w, j.ID)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	err = f.tasks.DeleteTask(ctx, coord, task.ID)
	kindIs(t, err, apperr.KindUnauthorized)
	require.NoError(t, f.tasks.DeleteTask(ctx, a, task.ID))
	_, err = f.tasks.GetTask(ctx, a, task.ID)
	kindIs(t, err, apperr.KindNotFound)
}

func TestGetJobDetail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "a@x.com", "")
	b := f.register(t, "b@x.com", "")
	j := f.job(t, a)
	_, err := f.jobs.AddParticipant(ctx, a, j.ID, b.ID, model.RoleClient)
	require.NoError(t, err)
	_, err = f.tasks.CreateTask(ctx, a, j.ID, CreateTaskInput{Title: "t", Description: "d", DueDate: j.DueDate})
	require.NoError(t, err)

	d, err := f.jobs.GetJob(ctx, b, j.ID)
	require.NoError(t, err)
	assert.Equal(t, j.ID, d.ID)
	assert.Len(t, d.Participants, 2)
	assert.Len(t, d.Tasks, 1)

	jobs, err := f.jobs.ListJobs(ctx, b)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, j.ID, jobs[0].ID)
}

func TestLoginScenarios(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "a@x.com", "")

	for _i := 0; _i < 3; _i++ {
		_, _, err := f.auth.Login(ctx, "a@x.com", "wrongpassword")
		kindIs(t, err, apperr.KindInvalidCredentials)
	}
	_, _, err := f.auth.Login(ctx, "nobody@x.com", "longenough1")
	kindIs(t, err, apperr.KindInvalidCredentials)

	u, pair, err := f.auth.Login(ctx, " A@X.com ", "longenough1")
	require.NoError(t, err)
	assert.Equal(t, a.ID, u.ID)

	actor, err := f.auth.Authenticate(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, a, actor)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@x.com", "")

	_, _, err := f.auth.Register(context.Background(), RegisterInput{Email: "A@x.com", Password: "longenough1"})
	kindIs(t, err, apperr.KindAlreadyExists)
}

func TestRefreshAndLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, pair, err := f.auth.Register(ctx, RegisterInput{Email: "a@x.com", Password: "longenough1"})
	require.NoError(t, err)

	_, next, err := f.auth.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	_, _, err = f.auth.Refresh(ctx, pair.RefreshToken)
	kindIs(t, err, apperr.KindInvalidToken)

	require.NoError(t, f.auth.Logout(ctx, next.RefreshToken))
	require.NoError(t, f.auth.Logout(ctx, next.RefreshToken))
	_, _, err = f.auth.Refresh(ctx, next.RefreshToken)
	kindIs(t, err, apperr.KindInvalidToken)
}

func TestLogoutAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "a@x.com", "")
	_, p1, err := f.auth.Login(ctx, "a@x.com", "longenough1")
	require.NoError(t, err)
	_, p2, err := f.auth.Login(ctx, "a@x.com", "longenough1")
	require.NoError(t, err)

	require.NoError(t, f.auth.LogoutAll(ctx, a))
	for _, raw := range []string{p1.RefreshToken, p2.RefreshToken} {
		_, _, err := f.auth.Refresh(ctx, raw)
		kindIs(t, err, apperr.KindInvalidToken)
	}
}

func TestOverlongMultibytePasswordIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	long := strings.Repeat("é", 40)

	_, _, err := f.auth.Register(ctx, RegisterInput{Email: "p@x.com", Password: long})
	kindIs(t, err, apperr.KindInvalidState)
	_, err = f.store.Users.GetByEmail(ctx, "p@x.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	a := f.register(t, "a@x.com", "")
	_, err = f.users.UpdateUser(ctx, a, a.ID, UserPatch{Password: &long})
	kindIs(t, err, apperr.KindInvalidState)
	_, _, err = f.auth.Login(ctx, "a@x.com", "longenough1")
	require.NoError(t, err)
}

func TestUpdateUserAllowList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "a@x.com", "")
	b := f.register(t, "b@x.com", "")
	pm := f.register(t, "pm@x.com", model.PlatformRoleProjectManager)

	_, err := f.users.UpdateUser(ctx, b, a.ID, UserPatch{FirstName: ptr("Mallory")})
	kindIs(t, err, apperr.KindUnauthorized)

	u, err := f.users.UpdateUser(ctx, a, a.ID, UserPatch{FirstName: ptr("Ada"), Password: ptr("newpassword1")})
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.FirstName)
	assert.Equal(t, model.PlatformRoleTradesperson, u.Role)

	_, _, err = f.auth.Login(ctx, "a@x.com", "longenough1")
	kindIs(t, err, apperr.KindInvalidCredentials)
	_, _, err = f.auth.Login(ctx, "a@x.com", "newpassword1")
	require.NoError(t, err)

	u, err = f.users.UpdateUser(ctx, pm, a.ID, UserPatch{Specialization: ptr("tiler")})
	require.NoError(t, err)
	assert.Equal(t, "tiler", *u.Specialization)

	_, err = f.users.UpdateUser(ctx, pm, "ghost", UserPatch{FirstName: ptr("x")})
	kindIs(t, err, apperr.KindNotFound)
}

func TestDeleteUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "a@x.com", "")
	b := f.register(t, "b@x.com", "")
	pm := f.register(t, "pm@x.com", model.PlatformRoleProjectManager)
	j := f.job(t, a)
	_, err := f.jobs.AddParticipant(ctx, a, j.ID, b.ID, model.RoleWorker)
	require.NoError(t, err)
	task, err := f.tasks.CreateTask(ctx, a, j.ID, CreateTaskInput{Title: "t", Description: "d", DueDate: j.DueDate, AssignedToID: &b.ID})
	require.NoError(t, err)

	err = f.users.DeleteUser(ctx, a, b.ID)
	kindIs(t, err, apperr.KindUnauthorized)

	err = f.users.DeleteUser(ctx, pm, a.ID)
	kindIs(t, err, apperr.KindInvalidState)

	require.NoError(t, f.users.DeleteUser(ctx, pm, b.ID))
	_, err = f.users.GetUser(ctx, pm, b.ID)
	kindIs(t, err, apperr.KindNotFound)

	got, err := f.tasks.GetTask(ctx, a, task.ID)
	require.NoError(t, err)
	assert.Nil(t, got.AssignedToID)
	ps, err := f.jobs.ListParticipants(ctx, a, j.ID)
	require.NoError(t, err)
	assert.Len(t, ps, 1)
	assert.EqualValues(t, 1, f.activeManagers(t, j.ID))
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("broker down")
	a := f.register(t, "a@x.com", "")

	j := f.job(t, a)
	assert.NotEmpty(t, j.ID)
}

func TestCancelledContextIsInfrastructure(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, "a@x.com", "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := time.Now().UTC()
	_, err := f.jobs.CreateJob(ctx, a, CreateJobInput{Title: "t", Description: "d", StartDate: d, DueDate: d})
	kindIs(t, err, apperr.KindInfrastructure)

	jobs, err := f.jobs.ListJobs(context.Background(), a)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}
