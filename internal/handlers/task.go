package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tracker/internal/auth"
	"tracker/internal/models"
	"tracker/internal/repository"
)

// ListTasks handles GET /api/tasks?col_id=
func (h *Handler) ListTasks(c *gin.Context) {
	tasks, err := h.tasks.ListTasks(c.Request.Context(), c.Query("col_id"))
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Failed to fetch tasks", err)
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	c.JSON(http.StatusOK, tasks)
}

// GetTask handles GET /api/tasks/:taskId
func (h *Handler) GetTask(c *gin.Context) {
	task, err := h.tasks.GetTask(c.Request.Context(), c.Param("taskId"))
	if errors.Is(err, repository.ErrNotFound) {
		h.handleError(c, http.StatusNotFound, "Task not found", nil)
		return
	}
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Failed to fetch task", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// CreateTask handles POST /api/tasks
func (h *Handler) CreateTask(c *gin.Context) {
	var request models.CreateTaskRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.handleError(c, http.StatusBadRequest, "name is required", err)
		return
	}

	task := models.Task{
		CollectionID: request.CollectionID,
		Name:         request.Name,
		Description:  request.Description,
		Status:       request.Status,
		Priority:     request.Priority,
		Progress:     request.Progress,
		Deadline:     request.Deadline,
		ParentTaskID: request.ParentTaskID,
		CreatedBy:    auth.UserID(c),
	}
	if err := h.tasks.CreateTask(c.Request.Context(), &task); err != nil {
		h.handleError(c, http.StatusBadRequest, "Failed to create task", err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// UpdateTask handles PATCH /api/tasks/:taskId
func (h *Handler) UpdateTask(c *gin.Context) {
	var request models.UpdateTaskRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid input", err)
		return
	}

	task, err := h.tasks.UpdateTask(c.Request.Context(), c.Param("taskId"), request)
	if errors.Is(err, repository.ErrNotFound) {
		h.handleError(c, http.StatusNotFound, "Task not found", nil)
		return
	}
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Failed to update task", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// DeleteTask handles DELETE /api/tasks/:taskId. Its assignments and
// reminders go with it.
func (h *Handler) DeleteTask(c *gin.Context) {
	err := h.tasks.DeleteTask(c.Request.Context(), c.Param("taskId"))
	if errors.Is(err, repository.ErrNotFound) {
		h.handleError(c, http.StatusNotFound, "Task not found", nil)
		return
	}
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Failed to delete task", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
