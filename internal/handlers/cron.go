package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tracker/internal/utils"
)

// SendReminders runs one sweep. The cron secret is checked by middleware
// before this handler is reached.
func (h *Handler) SendReminders(c *gin.Context) {
	result, err := h.sweeper.Run(c.Request.Context())
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, err.Error(), err)
		return
	}

	h.log.Info("cron sweep",
		zap.String("caller_ip", utils.GetRealClientIP(c)),
		zap.Int("processed", result.Processed))
	c.JSON(http.StatusOK, result)
}
