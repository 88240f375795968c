package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tracker/internal/auth"
	"tracker/internal/models"
	"tracker/internal/repository"
)

// GetMyProfile handles GET /api/profiles/me
func (h *Handler) GetMyProfile(c *gin.Context) {
	profile, err := h.profiles.GetProfile(c.Request.Context(), auth.UserID(c))
	if errors.Is(err, repository.ErrNotFound) {
		h.handleError(c, http.StatusNotFound, "Profile not found", nil)
		return
	}
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Failed to fetch profile", err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UpdateMyProfile handles PATCH /api/profiles/me. The profile is created on
// first use, which is how a user's email becomes visible to reminders.
func (h *Handler) UpdateMyProfile(c *gin.Context) {
	var request models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid input", err)
		return
	}

	profile, err := h.profiles.SaveProfile(c.Request.Context(), auth.UserID(c), request, h.now())
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Failed to update profile", err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
