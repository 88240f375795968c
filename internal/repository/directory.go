package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tracker/internal/models"
)

// GetTask implements Directory
func (s *Store) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return &task, nil
}

// AssigneeIDs implements Directory
func (s *Store) AssigneeIDs(ctx context.Context, taskID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Distinct().
		Where("task_id = ?", taskID).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list assignees of task %s: %w", taskID, err)
	}
	return ids, nil
}

// Emails implements Directory. Users with no email on file are skipped.
func (s *Store) Emails(ctx context.Context, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var emails []string
	err := s.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id IN ?", userIDs).
		Where("email IS NOT NULL AND email <> ''").
		Pluck("email", &emails).Error
	if err != nil {
		return nil, fmt.Errorf("load profile emails: %w", err)
	}
	return emails, nil
}

// ListAssignments returns the assignment rows of a task
func (s *Store) ListAssignments(ctx context.Context, taskID string) ([]models.Assignment, error) {
	var rows []models.Assignment
	if err := s.db.WithContext(ctx).Where("task_id = ?", taskID).Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list assignments of task %s: %w", taskID, err)
	}
	return rows, nil
}

// Assign upserts an assignment; re-assigning only updates the role
func (s *Store) Assign(ctx context.Context, a *models.Assignment) error {
	if a.Role == "" {
		a.Role = "assignee"
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "task_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role"}),
	}).Create(a).Error
	if err != nil {
		return fmt.Errorf("assign user %s to task %s: %w", a.UserID, a.TaskID, err)
	}
	return nil
}

// Unassign removes a user from a task
func (s *Store) Unassign(ctx context.Context, taskID, userID string) error {
	res := s.db.WithContext(ctx).
		Where("task_id = ? AND user_id = ?", taskID, userID).
		Delete(&models.Assignment{})
	if res.Error != nil {
		return fmt.Errorf("unassign user %s from task %s: %w", userID, taskID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
