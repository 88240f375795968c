package handlers

import (
	"net/http"
	"slices"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tracker/internal/auth"
	"tracker/internal/logging"
)

// RouterOptions configures NewRouter
type RouterOptions struct {
	CronSecret  string
	CORSOrigins []string
	Logger      *zap.Logger
	HTTPMetrics *HTTPMetrics
	// MetricsHandler serves /metrics when set
	MetricsHandler http.Handler
}

// NewRouter mounts every route on a new gin engine
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), logging.Middleware(opts.Logger))
	if opts.HTTPMetrics != nil {
		router.Use(opts.HTTPMetrics.Middleware())
	}

	router.GET("/", HomeHandler)
	router.GET("/health", HealthHandler)
	if opts.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}

	api := router.Group("/api")
	api.Use(cors.New(corsConfig(opts.CORSOrigins)))

	// Scheduler routes (shared secret)
	api.POST("/cron/send-reminders", auth.CronSecretMiddleware(opts.CronSecret), h.SendReminders)

	// Task routes (caller identity required)
	tasks := api.Group("/tasks")
	tasks.Use(auth.RequireUser())
	{
		tasks.GET("", h.ListTasks)
		tasks.POST("", h.CreateTask)

		tasks.GET("/reminders", h.ListReminders)
		tasks.POST("/reminders", h.CreateReminder)
		tasks.GET("/reminders/next", h.NextReminders)
		tasks.PATCH("/reminders/:reminderId", h.UpdateReminder)
		tasks.DELETE("/reminders/:reminderId", h.DeleteReminder)

		tasks.GET("/assignees", h.ListAssignees)
		tasks.POST("/assignees", h.AddAssignee)
		tasks.DELETE("/assignees/:userId", h.RemoveAssignee)

		tasks.GET("/:taskId", h.GetTask)
		tasks.PATCH("/:taskId", h.UpdateTask)
		tasks.DELETE("/:taskId", h.DeleteTask)
	}

	profiles := api.Group("/profiles")
	profiles.Use(auth.RequireUser())
	{
		profiles.GET("/me", h.GetMyProfile)
		profiles.PATCH("/me", h.UpdateMyProfile)
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-User-Id", auth.CronSecretHeader}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
