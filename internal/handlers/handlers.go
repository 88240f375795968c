package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tracker/internal/models"
	"tracker/internal/services"
)

// ReminderAPI is the reminder storage used by the CRUD routes
type ReminderAPI interface {
	ListForTask(ctx context.Context, taskID string) ([]models.Reminder, error)
	CreateReminder(ctx context.Context, r *models.Reminder) error
	UpdateReminder(ctx context.Context, id string, req models.UpdateReminderRequest) (*models.Reminder, error)
	DeleteReminder(ctx context.Context, id string) error
	NextForTasks(ctx context.Context, taskIDs []string) (map[string]models.NextReminder, error)
}

// AssignmentAPI is the assignment storage used by the assignee routes
type AssignmentAPI interface {
	ListAssignments(ctx context.Context, taskID string) ([]models.Assignment, error)
	Assign(ctx context.Context, a *models.Assignment) error
	Unassign(ctx context.Context, taskID, userID string) error
}

// TaskAPI is the task storage used by the task routes
type TaskAPI interface {
	ListTasks(ctx context.Context, collectionID string) ([]models.Task, error)
	GetTask(ctx context.Context, id string) (*models.Task, error)
	CreateTask(ctx context.Context, t *models.Task) error
	UpdateTask(ctx context.Context, id string, req models.UpdateTaskRequest) (*models.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// ProfileAPI is the profile storage used by the /profiles/me routes
type ProfileAPI interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	SaveProfile(ctx context.Context, id string, req models.UpdateProfileRequest, now time.Time) (*models.Profile, error)
}

// Stores groups the storage the routes depend on. The gorm repository
// satisfies every field.
type Stores struct {
	Reminders   ReminderAPI
	Assignments AssignmentAPI
	Tasks       TaskAPI
	Profiles    ProfileAPI
}

// SweepRunner runs one reminder sweep
type SweepRunner interface {
	Run(ctx context.Context) (services.SweepResult, error)
}

// Handler holds the dependencies of every route
type Handler struct {
	reminders   ReminderAPI
	assignments AssignmentAPI
	tasks       TaskAPI
	profiles    ProfileAPI
	sweeper     SweepRunner
	log         *zap.Logger
	now         func() time.Time
}

// New creates a Handler. log may be nil.
func New(stores Stores, sweeper SweepRunner, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		reminders:   stores.Reminders,
		assignments: stores.Assignments,
		tasks:       stores.Tasks,
		profiles:    stores.Profiles,
		sweeper:     sweeper,
		log:         log.Named("http"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// handleError provides a consistent way to handle and log errors
func (h *Handler) handleError(c *gin.Context, status int, message string, err error) {
	if err != nil {
		h.log.Warn(message, zap.String("path", c.FullPath()), zap.Int("status", status), zap.Error(err))
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": message})
}

// HomeHandler handles requests to the root path "/"
func HomeHandler(c *gin.Context) {
	c.String(http.StatusOK, "Tracker API")
}

// HealthHandler is a simple health check endpoint
func HealthHandler(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}
