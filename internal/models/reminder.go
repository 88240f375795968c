package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Reminder schedules a notification about a task. SentAt moves from nil to
// a timestamp exactly once and is never cleared.
type Reminder struct {
	ID               string         `gorm:"primaryKey;size:36" json:"id"`
	TaskID           string         `gorm:"size:36;not null;index" json:"task_id"`
	DueAt            time.Time      `gorm:"not null;index" json:"due_at"`
	Details          *string        `gorm:"type:text" json:"details"`
	CreatedBy        string         `gorm:"size:36" json:"created_by"`
	RecipientUserIDs datatypes.JSON `gorm:"column:recipient_user_ids" json:"recipient_user_ids"`
	ClaimedAt        *time.Time     `json:"-"`
	SentAt           *time.Time     `gorm:"index" json:"sent_at"`
	CreatedAt        time.Time      `gorm:"not null" json:"created_at"`
}

// TableName specifies the table name for the Reminder model
func (Reminder) TableName() string {
	return "reminders"
}

// BeforeCreate assigns an id and normalises timestamps to UTC
func (r *Reminder) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	r.DueAt = r.DueAt.UTC()
	return nil
}

// Pending reports whether the reminder still awaits delivery
func (r *Reminder) Pending() bool {
	return r.SentAt == nil
}

// Recipients decodes the explicit recipient allow-list. A nil result means
// no restriction.
func (r *Reminder) Recipients() ([]string, error) {
	if len(r.RecipientUserIDs) == 0 || string(r.RecipientUserIDs) == "null" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal(r.RecipientUserIDs, &ids); err != nil {
		return nil, fmt.Errorf("decode recipient_user_ids for reminder %s: %w", r.ID, err)
	}
	return ids, nil
}

// SetRecipients stores a de-duplicated allow-list; an empty list clears it.
func (r *Reminder) SetRecipients(ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		r.RecipientUserIDs = nil
		return nil
	}
	raw, err := json.Marshal(unique)
	if err != nil {
		return err
	}
	r.RecipientUserIDs = datatypes.JSON(raw)
	return nil
}

// CreateReminderRequest represents the data needed to schedule a reminder
type CreateReminderRequest struct {
	TaskID           string     `json:"task_id" binding:"required"`
	DueAt            *time.Time `json:"due_at" binding:"required"`
	Details          *string    `json:"details"`
	RecipientUserIDs []string   `json:"recipient_user_ids"`
}

// UpdateReminderRequest carries a partial reminder edit
type UpdateReminderRequest struct {
	DueAt            *time.Time `json:"due_at"`
	Details          *string    `json:"details"`
	RecipientUserIDs *[]string  `json:"recipient_user_ids"`
}

// NextReminder is the earliest pending reminder of a task
type NextReminder struct {
	ID     string    `json:"id"`
	TaskID string    `json:"task_id"`
	DueAt  time.Time `json:"due_at"`
}
