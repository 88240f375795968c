package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tracker/internal/models"
	"tracker/internal/repository"
)

// ListAssignees handles GET /api/tasks/assignees?task_id=
func (h *Handler) ListAssignees(c *gin.Context) {
	taskID := c.Query("task_id")
	if taskID == "" {
		h.handleError(c, http.StatusBadRequest, "task_id is required", nil)
		return
	}

	rows, err := h.assignments.ListAssignments(c.Request.Context(), taskID)
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Failed to fetch assignees", err)
		return
	}
	if rows == nil {
		rows = []models.Assignment{}
	}
	c.JSON(http.StatusOK, rows)
}

// AddAssignee handles POST /api/tasks/assignees
func (h *Handler) AddAssignee(c *gin.Context) {
	var request models.AssignRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.handleError(c, http.StatusBadRequest, "task_id and user_id are required", err)
		return
	}

	assignment := models.Assignment{TaskID: request.TaskID, UserID: request.UserID, Role: request.Role}
	if err := h.assignments.Assign(c.Request.Context(), &assignment); err != nil {
		h.handleError(c, http.StatusBadRequest, "Failed to assign user", err)
		return
	}
	c.JSON(http.StatusCreated, assignment)
}

// RemoveAssignee handles DELETE /api/tasks/assignees/:userId?task_id=
func (h *Handler) RemoveAssignee(c *gin.Context) {
	taskID := c.Query("task_id")
	if taskID == "" {
		h.handleError(c, http.StatusBadRequest, "task_id is required", nil)
		return
	}

	err := h.assignments.Unassign(c.Request.Context(), taskID, c.Param("userId"))
	if errors.Is(err, repository.ErrNotFound) {
		h.handleError(c, http.StatusNotFound, "Assignment not found", nil)
		return
	}
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Failed to remove assignee", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
