package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tracker/internal/models"
	"tracker/internal/repository"
)

// ErrResolve wraps every failure to build a reminder's recipient set
var ErrResolve = errors.New("resolve recipients")

// Resolution is the outcome of recipient resolution for one reminder
type Resolution struct {
	Emails   []string
	TaskName string
	// Fallback is set when the addresses came from the task creator
	Fallback bool
}

// RecipientResolver turns a reminder into deliverable addresses
type RecipientResolver struct {
	dir repository.Directory
}

// NewRecipientResolver creates a resolver reading from dir
func NewRecipientResolver(dir repository.Directory) *RecipientResolver {
	return &RecipientResolver{dir: dir}
}

// Resolve collects the emails of the task's assignees, narrowed to the
// reminder's recipient list when it has one. When nobody on that list has
// an address it falls back to the task creator, then to the reminder's own
// author. An empty result means there is nobody to notify.
func (r *RecipientResolver) Resolve(ctx context.Context, reminder models.Reminder) (Resolution, error) {
	var res Resolution

	task, err := r.dir.GetTask(ctx, reminder.TaskID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return res, fmt.Errorf("%w: load task: %w", ErrResolve, err)
	}
	if task != nil {
		res.TaskName = task.Name
	}

	assignees, err := r.dir.AssigneeIDs(ctx, reminder.TaskID)
	if err != nil {
		return res, fmt.Errorf("%w: load assignees: %w", ErrResolve, err)
	}
	targets := distinct(assignees)

	allow, err := reminder.Recipients()
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrResolve, err)
	}
	if len(allow) > 0 {
		targets = intersect(targets, allow)
	}

	if len(targets) > 0 {
		emails, err := r.dir.Emails(ctx, targets)
		if err != nil {
			return res, fmt.Errorf("%w: load assignee emails: %w", ErrResolve, err)
		}
		res.Emails = distinctAddresses(emails)
	}
	if len(res.Emails) > 0 {
		return res, nil
	}

	creator := reminder.CreatedBy
	if task != nil && task.CreatedBy != "" {
		creator = task.CreatedBy
	}
	if creator == "" {
		return res, nil
	}
	emails, err := r.dir.Emails(ctx, []string{creator})
	if err != nil {
		return res, fmt.Errorf("%w: load creator email: %w", ErrResolve, err)
	}
	res.Emails = distinctAddresses(emails)
	res.Fallback = len(res.Emails) > 0
	return res, nil
}

func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func intersect(ids, allow []string) []string {
	allowed := make(map[string]struct{}, len(allow))
	for _, id := range allow {
		allowed[id] = struct{}{}
	}
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := allowed[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// distinctAddresses trims and de-duplicates addresses case-insensitively,
// keeping the first spelling seen.
func distinctAddresses(emails []string) []string {
	seen := make(map[string]struct{}, len(emails))
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		key := strings.ToLower(e)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}
