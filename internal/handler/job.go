package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tradeflow/internal/model"
	"github.com/iliyamo/tradeflow/internal/service"
)

// JobHandler serves jobs, their participants and their tasks.
type JobHandler struct {
	Jobs  *service.JobService
	Tasks *service.TaskService
}

func NewJobHandler(jobs *service.JobService, tasks *service.TaskService) *JobHandler {
	if jobs == nil || tasks == nil {
		panic("nil service passed to NewJobHandler")
	}
	return &JobHandler{Jobs: jobs, Tasks: tasks}
}

// ----- DTOs -----

type createJobReq struct {
	Title          string    `json:"title" validate:"required,max=200"`
	Description    string    `json:"description" validate:"required"`
	StartDate      time.Time `json:"startDate" validate:"required"`
	DueDate        time.Time `json:"dueDate" validate:"required"`
	EstimatedHours *float64  `json:"estimatedHours" validate:"omitempty,gt=0"`
	Budget         *float64  `json:"budget" validate:"omitempty,gt=0"`
	Location       *string   `json:"location" validate:"omitempty,max=500"`
	ClientID       string    `json:"clientId" validate:"omitempty,uuid"`
}

type updateJobReq struct {
	Title          *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description    *string    `json:"description" validate:"omitempty,min=1"`
	Status         *string    `json:"status" validate:"omitempty,oneof=pending in_progress completed cancelled"`
	StartDate      *time.Time `json:"startDate"`
	DueDate        *time.Time `json:"dueDate"`
	EstimatedHours *float64   `json:"estimatedHours" validate:"omitempty,gt=0"`
	Budget         *float64   `json:"budget" validate:"omitempty,gt=0"`
	Location       *string    `json:"location" validate:"omitempty,max=500"`
}

type addParticipantReq struct {
	UserID string `json:"userId" validate:"required,uuid"`
	Role   string `json:"role" validate:"required,oneof=manager coordinator worker client"`
}

func (h *JobHandler) Create(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req createJobReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	job, err := h.Jobs.CreateJob(c.Request().Context(), actor, service.CreateJobInput{
		Title:          req.Title,
		Description:    req.Description,
		StartDate:      req.StartDate,
		DueDate:        req.DueDate,
		EstimatedHours: req.EstimatedHours,
		Budget:         req.Budget,
		Location:       req.Location,
		ClientID:       req.ClientID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, job)
}

func (h *JobHandler) List(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	jobs, err := h.Jobs.ListJobs(c.Request().Context(), actor)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": jobs})
}

func (h *JobHandler) Get(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	detail, err := h.Jobs.GetJob(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}

// Update applies a partial update; absent fields stay unchanged.
func (h *JobHandler) Update(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req updateJobReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	patch := service.JobPatch{
		Title:          req.Title,
		Description:    req.Description,
		StartDate:      req.StartDate,
		DueDate:        req.DueDate,
		EstimatedHours: req.EstimatedHours,
		Budget:         req.Budget,
		Location:       req.Location,
	}
	if req.Status != nil {
		st := model.Status(*req.Status)
		patch.Status = &st
	}
	job, err := h.Jobs.UpdateJob(c.Request().Context(), actor, c.Param("id"), patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, job)
}

func (h *JobHandler) Delete(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	if err := h.Jobs.DeleteJob(c.Request().Context(), actor, c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *JobHandler) ListParticipants(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	ps, err := h.Jobs.ListParticipants(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": ps})
}

// AddParticipant adds a user to the job, or reactivates a former one.
func (h *JobHandler) AddParticipant(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req addParticipantReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	p, err := h.Jobs.AddParticipant(c.Request().Context(), actor, c.Param("id"), req.UserID, model.ParticipantRole(req.Role))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *JobHandler) RemoveParticipant(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	if err := h.Jobs.RemoveParticipant(c.Request().Context(), actor, c.Param("id"), c.Param("userId")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
