package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tracker/internal/auth"
	"tracker/internal/models"
	"tracker/internal/repository"
	"tracker/internal/utils"
)

// ListReminders handles GET /api/tasks/reminders?task_id=
func (h *Handler) ListReminders(c *gin.Context) {
	taskID := c.Query("task_id")
	if taskID == "" {
		h.handleError(c, http.StatusBadRequest, "task_id is required", nil)
		return
	}

	reminders, err := h.reminders.ListForTask(c.Request.Context(), taskID)
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Failed to fetch reminders", err)
		return
	}
	if reminders == nil {
		reminders = []models.Reminder{}
	}
	c.JSON(http.StatusOK, reminders)
}

// CreateReminder handles POST /api/tasks/reminders
func (h *Handler) CreateReminder(c *gin.Context) {
	var request models.CreateReminderRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.handleError(c, http.StatusBadRequest, "task_id and due_at are required", err)
		return
	}

	reminder := models.Reminder{
		TaskID:    request.TaskID,
		DueAt:     request.DueAt.UTC(),
		Details:   request.Details,
		CreatedBy: auth.UserID(c),
	}
	if err := reminder.SetRecipients(request.RecipientUserIDs); err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid recipient_user_ids", err)
		return
	}

	if err := h.reminders.CreateReminder(c.Request.Context(), &reminder); err != nil {
		h.handleError(c, http.StatusBadRequest, "Failed to create reminder", err)
		return
	}
	c.JSON(http.StatusCreated, reminder)
}

// UpdateReminder handles PATCH /api/tasks/reminders/:reminderId
func (h *Handler) UpdateReminder(c *gin.Context) {
	var request models.UpdateReminderRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid input", err)
		return
	}

	reminder, err := h.reminders.UpdateReminder(c.Request.Context(), c.Param("reminderId"), request)
	if errors.Is(err, repository.ErrNotFound) {
		h.handleError(c, http.StatusNotFound, "Reminder not found", nil)
		return
	}
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Failed to update reminder", err)
		return
	}
	c.JSON(http.StatusOK, reminder)
}

// DeleteReminder handles DELETE /api/tasks/reminders/:reminderId
func (h *Handler) DeleteReminder(c *gin.Context) {
	err := h.reminders.DeleteReminder(c.Request.Context(), c.Param("reminderId"))
	if errors.Is(err, repository.ErrNotFound) {
		h.handleError(c, http.StatusNotFound, "Reminder not found", nil)
		return
	}
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Failed to delete reminder", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// NextReminders handles GET /api/tasks/reminders/next?task_ids=a,b
func (h *Handler) NextReminders(c *gin.Context) {
	taskIDs := utils.SplitList(c.Query("task_ids"))
	if len(taskIDs) == 0 {
		c.JSON(http.StatusOK, gin.H{})
		return
	}

	next, err := h.reminders.NextForTasks(c.Request.Context(), taskIDs)
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Failed to fetch reminders", err)
		return
	}
	c.JSON(http.StatusOK, next)
}
