package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tradeflow/internal/model"
	"github.com/iliyamo/tradeflow/internal/service"
)

type createTaskReq struct {
	Title          string    `json:"title" validate:"required,max=200"`
	Description    string    `json:"description" validate:"required"`
	DueDate        time.Time `json:"dueDate" validate:"required"`
	EstimatedHours *float64  `json:"estimatedHours" validate:"omitempty,gt=0"`
	AssignedToID   *string   `json:"assignedToId" validate:"omitempty,uuid"`
}

// An empty assignedToId unassigns the task.
type updateTaskReq struct {
	Title          *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description    *string    `json:"description" validate:"omitempty,min=1"`
	Status         *string    `json:"status" validate:"omitempty,oneof=pending in_progress completed cancelled"`
	DueDate        *time.Time `json:"dueDate"`
	EstimatedHours *float64   `json:"estimatedHours" validate:"omitempty,gt=0"`
	AssignedToID   *string    `json:"assignedToId" validate:"omitempty,uuid|len=0"`
}

func (h *JobHandler) CreateTask(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req createTaskReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	task, err := h.Tasks.CreateTask(c.Request().Context(), actor, c.Param("id"), service.CreateTaskInput{
		Title:          req.Title,
		Description:    req.Description,
		DueDate:        req.DueDate,
		EstimatedHours: req.EstimatedHours,
		AssignedToID:   req.AssignedToID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, task)
}

func (h *JobHandler) ListTasks(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	tasks, err := h.Tasks.ListJobTasks(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": tasks})
}

func (h *JobHandler) GetTask(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	task, err := h.Tasks.GetTask(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *JobHandler) UpdateTask(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req updateTaskReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	patch := service.TaskPatch{
		Title:          req.Title,
		Description:    req.Description,
		DueDate:        req.DueDate,
		EstimatedHours: req.EstimatedHours,
		AssignedToID:   req.AssignedToID,
	}
	if req.Status != nil {
		st := model.Status(*req.Status)
		patch.Status = &st
	}
	task, err := h.Tasks.UpdateTask(c.Request().Context(), actor, c.Param("id"), patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *JobHandler) DeleteTask(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	if err := h.Tasks.DeleteTask(c.Request().Context(), actor, c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
