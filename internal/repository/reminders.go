package repository

import (
	"context"
	"fmt"
	"time"

	"tracker/internal/models"
)

// FetchDue implements ReminderStore
func (s *Store) FetchDue(ctx context.Context, since, until time.Time, limit int) ([]models.Reminder, error) {
	var reminders []models.Reminder
	err := s.db.WithContext(ctx).
		Select(s.reminderColumns()).
		Where("due_at >= ?", since.UTC()).
		Where("due_at <= ?", until.UTC()).
		Where("sent_at IS NULL").
		Order("due_at asc").
		Limit(limit).
		Find(&reminders).Error
	if err != nil {
		return nil, fmt.Errorf("fetch due reminders: %w", err)
	}
	return reminders, nil
}

// Claim implements ReminderStore
func (s *Store) Claim(ctx context.Context, id string, now time.Time, ttl time.Duration) (bool, error) {
	now = now.UTC()
	res := s.db.WithContext(ctx).
		Model(&models.Reminder{}).
		Where("id = ? AND sent_at IS NULL AND (claimed_at IS NULL OR claimed_at < ?)", id, now.Add(-ttl)).
		Update("claimed_at", now)
	if res.Error != nil {
		return false, fmt.Errorf("claim reminder %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Release implements ReminderStore
func (s *Store) Release(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).
		Model(&models.Reminder{}).
		Where("id = ? AND sent_at IS NULL", id).
		Update("claimed_at", nil).Error
	if err != nil {
		return fmt.Errorf("release reminder %s: %w", id, err)
	}
	return nil
}

// MarkSent implements ReminderStore
func (s *Store) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&models.Reminder{}).
		Where("id = ? AND sent_at IS NULL", id).
		Update("sent_at", sentAt.UTC())
	if res.Error != nil {
		return fmt.Errorf("mark reminder %s sent: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotPending
	}
	return nil
}

// ListForTask returns every reminder of a task, earliest first
func (s *Store) ListForTask(ctx context.Context, taskID string) ([]models.Reminder, error) {
	var reminders []models.Reminder
	err := s.db.WithContext(ctx).
		Select(s.reminderColumns()).
		Where("task_id = ?", taskID).
		Order("due_at asc").
		Find(&reminders).Error
	if err != nil {
		return nil, fmt.Errorf("list reminders for task %s: %w", taskID, err)
	}
	return reminders, nil
}

// GetReminder loads one reminder
func (s *Store) GetReminder(ctx context.Context, id string) (*models.Reminder, error) {
	var r models.Reminder
	if err := s.db.WithContext(ctx).Select(s.reminderColumns()).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

// CreateReminder inserts a reminder. The recipient list is dropped when the
// schema has no column for it.
func (s *Store) CreateReminder(ctx context.Context, r *models.Reminder) error {
	q := s.db.WithContext(ctx)
	if !s.opts.RecipientsColumn {
		r.RecipientUserIDs = nil
		q = q.Omit("recipient_user_ids")
	}
	if err := q.Create(r).Error; err != nil {
		return fmt.Errorf("create reminder: %w", err)
	}
	return nil
}

// UpdateReminder applies a partial edit. sent_at is never touched here.
func (s *Store) UpdateReminder(ctx context.Context, id string, req models.UpdateReminderRequest) (*models.Reminder, error) {
	updates := map[string]interface{}{}
	if req.DueAt != nil {
		updates["due_at"] = req.DueAt.UTC()
	}
	if req.Details != nil {
		updates["details"] = *req.Details
	}
	if req.RecipientUserIDs != nil && s.opts.RecipientsColumn {
		var tmp models.Reminder
		if err := tmp.SetRecipients(*req.RecipientUserIDs); err != nil {
			return nil, err
		}
		updates["recipient_user_ids"] = tmp.RecipientUserIDs
	}

	if len(updates) > 0 {
		res := s.db.WithContext(ctx).Model(&models.Reminder{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, fmt.Errorf("update reminder %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return s.GetReminder(ctx, id)
}

// DeleteReminder removes a reminder
func (s *Store) DeleteReminder(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Reminder{})
	if res.Error != nil {
		return fmt.Errorf("delete reminder %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// NextForTasks maps each task id to its earliest pending reminder.
// Tasks without one are absent from the map.
func (s *Store) NextForTasks(ctx context.Context, taskIDs []string) (map[string]models.NextReminder, error) {
	next := make(map[string]models.NextReminder)
	if len(taskIDs) == 0 {
		return next, nil
	}

	var rows []models.Reminder
	err := s.db.WithContext(ctx).
		Select("id", "task_id", "due_at").
		Where("task_id IN ?", taskIDs).
		Where("sent_at IS NULL").
		Order("due_at asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("next reminders: %w", err)
	}

	for _, r := range rows {
		if _, ok := next[r.TaskID]; !ok {
			next[r.TaskID] = models.NextReminder{ID: r.ID, TaskID: r.TaskID, DueAt: r.DueAt}
		}
	}
	return next, nil
}
