package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"tracker/internal/models"
	"tracker/internal/repository"
)

// memStore is an in-memory ReminderStore with the same claim rules as the gorm store
type memStore struct {
	mu        sync.Mutex
	reminders map[string]*models.Reminder
	fetchErr  error
	markErr   map[string]error
	panicMark string
	marked    []string
	released  []string
}

func newMemStore(reminders ...models.Reminder) *memStore {
	s := &memStore{reminders: map[string]*models.Reminder{}, markErr: map[string]error{}}
	for i := range reminders {
		r := reminders[i]
		s.reminders[r.ID] = &r
	}
	return s
}

func (s *memStore) FetchDue(_ context.Context, since, until time.Time, limit int) ([]models.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	var out []models.Reminder
	for _, r := range s.reminders {
		if r.SentAt == nil && !r.DueAt.Before(since) && !r.DueAt.After(until) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) Claim(_ context.Context, id string, now time.Time, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok || r.SentAt != nil {
		return false, nil
	}
	if r.ClaimedAt != nil && !r.ClaimedAt.Before(now.Add(-ttl)) {
		return false, nil
	}
	claimed := now
	r.ClaimedAt = &claimed
	return true, nil
}

func (s *memStore) Release(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.reminders[id]; ok && r.SentAt == nil {
		r.ClaimedAt = nil
	}
	s.released = append(s.released, id)
	return nil
}

func (s *memStore) MarkSent(_ context.Context, id string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == s.panicMark {
		panic("lost connection mid-update")
	}
	if err := s.markErr[id]; err != nil {
		return err
	}
	r, ok := s.reminders[id]
	if !ok || r.SentAt != nil {
		return repository.ErrNotPending
	}
	r.SentAt = &sentAt
	s.marked = append(s.marked, id)
	return nil
}

func (s *memStore) get(id string) models.Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.reminders[id]
}

// memDirectory serves tasks, assignments and profiles from maps
type memDirectory struct {
	tasks     map[string]models.Task
	assignees map[string][]string
	emails    map[string]string

	taskErr   map[string]error
	panicTask string
}

func newMemDirectory() *memDirectory {
	return &memDirectory{
		tasks:     map[string]models.Task{},
		assignees: map[string][]string{},
		emails:    map[string]string{},
		taskErr:   map[string]error{},
	}
}

func (d *memDirectory) GetTask(_ context.Context, id string) (*models.Task, error) {
	if id == d.panicTask && id != "" {
		panic("corrupt task row")
	}
	if err := d.taskErr[id]; err != nil {
		return nil, err
	}
	t, ok := d.tasks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (d *memDirectory) AssigneeIDs(_ context.Context, taskID string) ([]string, error) {
	return d.assignees[taskID], nil
}

func (d *memDirectory) Emails(_ context.Context, userIDs []string) ([]string, error) {
	var out []string
	for _, id := range userIDs {
		if e, ok := d.emails[id]; ok && e != "" {
			out = append(out, e)
		}
	}
	return out, nil
}

// recordingNotifier records every message and fails for listed addresses
type recordingNotifier struct {
	mu     sync.Mutex
	sent   []Message
	failOn map[string]bool
	// err is returned for every message once recorded
	err error
}

func (n *recordingNotifier) Send(_ context.Context, msg Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	for _, to := range msg.To {
		if n.failOn[to] {
			return errors.New("provider rejected message")
		}
	}
	return n.err
}

func (n *recordingNotifier) calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func jsonIDs(ids ...string) []byte {
	var r models.Reminder
	if err := r.SetRecipients(ids); err != nil {
		panic(err)
	}
	return r.RecipientUserIDs
}
