// Package repository is the gorm-backed persistence layer for reminders
// and the task/assignment/profile data they are resolved against.
package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"tracker/internal/models"
)

var (
	// ErrNotFound is returned when a row addressed by id does not exist
	ErrNotFound = errors.New("repository: not found")
	// ErrNotPending is returned by MarkSent when the reminder was already sent or removed
	ErrNotPending = errors.New("repository: reminder is not pending")
)

// ReminderStore is what the sweep needs from reminder storage.
type ReminderStore interface {
	// FetchDue returns unsent reminders with since <= due_at <= until, oldest first.
	FetchDue(ctx context.Context, since, until time.Time, limit int) ([]models.Reminder, error)
	// Claim atomically takes ownership of a pending reminder for ttl. It
	// reports false when the reminder is sent, gone, or claimed by someone else.
	Claim(ctx context.Context, id string, now time.Time, ttl time.Duration) (bool, error)
	// Release drops a claim so a later sweep may retry.
	Release(ctx context.Context, id string) error
	// MarkSent records delivery. It only ever moves sent_at from null to a value.
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
}

// Directory reads the data recipient resolution depends on.
type Directory interface {
	GetTask(ctx context.Context, id string) (*models.Task, error)
	AssigneeIDs(ctx context.Context, taskID string) ([]string, error)
	Emails(ctx context.Context, userIDs []string) ([]string, error)
}

// Options are schema capabilities resolved once at startup
type Options struct {
	RecipientsColumn bool
}

// Store implements ReminderStore and Directory on gorm
type Store struct {
	db   *gorm.DB
	opts Options
}

var (
	_ ReminderStore = (*Store)(nil)
	_ Directory     = (*Store)(nil)
)

// New creates a Store
func New(db *gorm.DB, opts Options) *Store {
	return &Store{db: db, opts: opts}
}

// reminderColumns lists the columns read from reminders, honouring the
// recipient column capability.
func (s *Store) reminderColumns() []string {
	cols := []string{"id", "task_id", "due_at", "details", "created_by", "claimed_at", "sent_at", "created_at"}
	if s.opts.RecipientsColumn {
		cols = append(cols, "recipient_user_ids")
	}
	return cols
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
