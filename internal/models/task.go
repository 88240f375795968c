package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Task is the unit of work reminders point at. The sweep only reads it.
type Task struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	CollectionID *string    `gorm:"column:col_id;size:36;index" json:"col_id"`
	Name         string     `gorm:"size:255;not null" json:"name"`
	Description  *string    `gorm:"type:text" json:"description"`
	Status       string     `gorm:"size:20;not null;default:pending" json:"status"`
	Priority     string     `gorm:"size:20;not null;default:medium" json:"priority"`
	Progress     int        `gorm:"not null;default:0" json:"progress"`
	Deadline     *time.Time `json:"deadline"`
	ParentTaskID *string    `gorm:"size:36" json:"parent_task_id"`
	CreatedBy    string     `gorm:"size:36;index" json:"created_by"`
	CreatedAt    time.Time  `gorm:"not null" json:"created_at"`
}

// Assignment links one user to one task
type Assignment struct {
	TaskID    string    `gorm:"primaryKey;size:36" json:"task_id"`
	UserID    string    `gorm:"primaryKey;size:36;index" json:"user_id"`
	Role      string    `gorm:"size:20;not null;default:assignee" json:"role"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// Profile holds per-user contact info. Email may be missing.
type Profile struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	Email     *string    `gorm:"size:255" json:"email"`
	FirstName *string    `gorm:"size:255" json:"first_name"`
	LastName  *string    `gorm:"size:255" json:"last_name"`
	AvatarURL *string    `gorm:"size:1024" json:"avatar_url"`
	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// TableName specifies the table name for the Task model
func (Task) TableName() string {
	return "tasks"
}

// BeforeCreate assigns an id and fills the defaults of a new task
func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = "pending"
	}
	if t.Priority == "" {
		t.Priority = "medium"
	}
	return nil
}

// TableName specifies the table name for the Assignment model
func (Assignment) TableName() string {
	return "user_tasks"
}

// TableName specifies the table name for the Profile model
func (Profile) TableName() string {
	return "profiles"
}

// AssignRequest represents the data needed to assign a user to a task
type AssignRequest struct {
	TaskID string `json:"task_id" binding:"required"`
	UserID string `json:"user_id" binding:"required"`
	Role   string `json:"role"`
}

// CreateTaskRequest represents the data needed to create a task
type CreateTaskRequest struct {
	CollectionID *string    `json:"col_id"`
	Name         string     `json:"name" binding:"required"`
	Description  *string    `json:"description"`
	Status       string     `json:"status"`
	Priority     string     `json:"priority"`
	Progress     int        `json:"progress" binding:"min=0,max=100"`
	Deadline     *time.Time `json:"deadline"`
	ParentTaskID *string    `json:"parent_task_id"`
}

// UpdateTaskRequest is a partial task edit; nil fields are left alone
type UpdateTaskRequest struct {
	CollectionID *string    `json:"col_id"`
	Name         *string    `json:"name" binding:"omitempty,min=1"`
	Description  *string    `json:"description"`
	Status       *string    `json:"status"`
	Priority     *string    `json:"priority"`
	Progress     *int       `json:"progress" binding:"omitempty,min=0,max=100"`
	Deadline     *time.Time `json:"deadline"`
	ParentTaskID *string    `json:"parent_task_id"`
}

// UpdateProfileRequest is the caller's own profile edit
type UpdateProfileRequest struct {
	Email     *string `json:"email" binding:"omitempty,email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	AvatarURL *string `json:"avatar_url"`
}
