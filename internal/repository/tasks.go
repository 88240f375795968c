package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"tracker/internal/models"
)

// ListTasks returns tasks newest first, optionally limited to one collection
func (s *Store) ListTasks(ctx context.Context, collectionID string) ([]models.Task, error) {
	q := s.db.WithContext(ctx).Order("created_at desc")
	if collectionID != "" {
		q = q.Where("col_id = ?", collectionID)
	}
	var tasks []models.Task
	if err := q.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// CreateTask inserts a task
func (s *Store) CreateTask(ctx context.Context, t *models.Task) error {
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// UpdateTask applies a partial edit
func (s *Store) UpdateTask(ctx context.Context, id string, req models.UpdateTaskRequest) (*models.Task, error) {
	updates := map[string]interface{}{}
	if req.CollectionID != nil {
		updates["col_id"] = *req.CollectionID
	}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.Priority != nil {
		updates["priority"] = *req.Priority
	}
	if req.Progress != nil {
		updates["progress"] = *req.Progress
	}
	if req.Deadline != nil {
		updates["deadline"] = req.Deadline.UTC()
	}
	if req.ParentTaskID != nil {
		updates["parent_task_id"] = *req.ParentTaskID
	}

	if len(updates) > 0 {
		res := s.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, fmt.Errorf("update task %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return s.GetTask(ctx, id)
}

// DeleteTask removes a task together with its assignments and reminders
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&models.Task{})
		if res.Error != nil {
			return fmt.Errorf("delete task %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Where("task_id = ?", id).Delete(&models.Assignment{}).Error; err != nil {
			return fmt.Errorf("delete assignments of task %s: %w", id, err)
		}
		if err := tx.Where("task_id = ?", id).Delete(&models.Reminder{}).Error; err != nil {
			return fmt.Errorf("delete reminders of task %s: %w", id, err)
		}
		return nil
	})
}

// GetProfile loads one profile
func (s *Store) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// SaveProfile creates the caller's profile on first use and applies the
// non-nil fields of req.
func (s *Store) SaveProfile(ctx context.Context, id string, req models.UpdateProfileRequest, now time.Time) (*models.Profile, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p := models.Profile{ID: id, CreatedAt: now}
		if err := tx.Where("id = ?", id).FirstOrCreate(&p).Error; err != nil {
			return fmt.Errorf("load profile %s: %w", id, err)
		}

		updates := map[string]interface{}{"updated_at": now}
		if req.Email != nil {
			updates["email"] = *req.Email
		}
		if req.FirstName != nil {
			updates["first_name"] = *req.FirstName
		}
		if req.LastName != nil {
			updates["last_name"] = *req.LastName
		}
		if req.AvatarURL != nil {
			updates["avatar_url"] = *req.AvatarURL
		}
		if err := tx.Model(&models.Profile{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("update profile %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetProfile(ctx, id)
}
