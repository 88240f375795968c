package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tracker/internal/models"
	"tracker/internal/repository"
)

const dueTimeLayout = "Mon Jan 2, 2006 3:04 PM MST"

// SweepConfig tunes a Sweeper
type SweepConfig struct {
	Window     time.Duration
	BatchLimit int
	ClaimTTL   time.Duration
	SiteURL    string
}

// SweepResult summarises one sweep
type SweepResult struct {
	Processed int      `json:"processed"`
	IDs       []string `json:"ids,omitempty"`
}

// Sweeper delivers due reminders. It holds no state between runs; the
// reminder store is the only record of progress.
type Sweeper struct {
	store    repository.ReminderStore
	resolver *RecipientResolver
	notifier Notifier
	cfg      SweepConfig
	log      *zap.Logger
	metrics  *SweepMetrics
	now      func() time.Time
}

// NewSweeper wires a Sweeper. log and metrics may be nil.
func NewSweeper(store repository.ReminderStore, resolver *RecipientResolver, notifier Notifier, cfg SweepConfig, log *zap.Logger, metrics *SweepMetrics) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{
		store:    store,
		resolver: resolver,
		notifier: notifier,
		cfg:      cfg,
		log:      log.Named("sweeper"),
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the sweeper's time source
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Run performs one sweep over [now-window, now]. Only a failure to load the
// batch is returned; anything scoped to a single reminder is logged and the
// reminder stays pending.
func (s *Sweeper) Run(ctx context.Context) (SweepResult, error) {
	started := time.Now()
	window := DueWindow(s.now(), s.cfg.Window)

	reminders, err := s.store.FetchDue(ctx, window.Since, window.Until, s.cfg.BatchLimit)
	if err != nil {
		s.metrics.observeSweep("load_error", time.Since(started))
		return SweepResult{}, err
	}

	result := SweepResult{}
	seen := make(map[string]struct{}, len(reminders))
	for _, r := range reminders {
		if ctx.Err() != nil {
			s.log.Warn("sweep interrupted, remaining reminders stay pending",
				zap.Int("remaining", len(reminders)-len(seen)), zap.Error(ctx.Err()))
			break
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}

		if s.process(ctx, r) {
			result.Processed++
			result.IDs = append(result.IDs, r.ID)
		}
	}

	s.metrics.observeSweep("ok", time.Since(started))
	s.log.Info("sweep finished",
		zap.Time("since", window.Since),
		zap.Time("until", window.Until),
		zap.Int("due", len(reminders)),
		zap.Int("processed", result.Processed))
	return result, nil
}

// process handles one reminder and reports whether it was marked sent. A
// panic anywhere in here is logged and stays local to this reminder.
func (s *Sweeper) process(ctx context.Context, r models.Reminder) (sent bool) {
	log := s.log.With(zap.String("reminder_id", r.ID), zap.String("task_id", r.TaskID))
	defer func() {
		if p := recover(); p != nil {
			s.metrics.observeOutcome(OutcomeError)
			log.Error("reminder failed", zap.String("stage", "panic"), zap.Any("panic", p))
			sent = false
		}
	}()

	claimed, err := s.store.Claim(ctx, r.ID, s.now(), s.cfg.ClaimTTL)
	if err != nil {
		s.metrics.observeOutcome(OutcomeError)
		log.Error("reminder failed", zap.String("stage", "claim"), zap.Error(err))
		return false
	}
	if !claimed {
		s.metrics.observeOutcome(OutcomeSkippedClaimed)
		log.Debug("reminder claimed by another sweep")
		return false
	}

	// Once claimed, bookkeeping must finish even if the caller has gone away.
	storeCtx := context.WithoutCancel(ctx)

	outcome, err := s.deliver(ctx, r)
	if errors.Is(err, ErrPartialDelivery) {
		// Some recipients already have the email; a retry would send it to them again.
		log.Warn("reminder partially delivered", zap.Error(err))
		err = nil
	}
	if err != nil {
		s.metrics.observeOutcome(outcome)
		log.Error("reminder failed", zap.String("stage", outcomeStage(outcome)), zap.Error(err))
		s.release(storeCtx, log, r.ID)
		return false
	}

	if err := s.store.MarkSent(storeCtx, r.ID, s.now()); err != nil {
		// The claim is kept so the lease holds off a duplicate send.
		s.metrics.observeOutcome(OutcomeError)
		log.Error("reminder failed", zap.String("stage", "mark_sent"), zap.String("after", outcome), zap.Error(err))
		return false
	}
	s.metrics.observeOutcome(outcome)
	log.Info("reminder processed", zap.String("outcome", outcome))
	return true
}

// deliver resolves and sends one reminder. A panic is turned into an error
// so the claim is released.
func (s *Sweeper) deliver(ctx context.Context, r models.Reminder) (outcome string, err error) {
	defer func() {
		if p := recover(); p != nil {
			outcome, err = OutcomeError, fmt.Errorf("panic: %v", p)
		}
	}()

	res, err := s.resolver.Resolve(ctx, r)
	if err != nil {
		return OutcomeError, err
	}
	if len(res.Emails) == 0 {
		return OutcomeNoRecipient, nil
	}

	if err := s.notifier.Send(ctx, ComposeMessage(r, res, s.cfg.SiteURL)); err != nil {
		if errors.Is(err, ErrPartialDelivery) {
			return OutcomeSent, err
		}
		return OutcomeDeliveryFailed, err
	}
	return OutcomeSent, nil
}

func (s *Sweeper) release(ctx context.Context, log *zap.Logger, id string) {
	if err := s.store.Release(ctx, id); err != nil {
		log.Warn("failed to release claim", zap.Error(err))
	}
}

func outcomeStage(outcome string) string {
	if outcome == OutcomeDeliveryFailed {
		return "deliver"
	}
	return "resolve"
}

// ComposeMessage builds the reminder email
func ComposeMessage(r models.Reminder, res Resolution, siteURL string) Message {
	name := res.TaskName
	if name == "" {
		name = "Task"
	}
	taskLabel := res.TaskName
	if taskLabel == "" {
		taskLabel = r.TaskID
	}
	details := "You have a reminder."
	if r.Details != nil && *r.Details != "" {
		details = *r.Details
	}

	return Message{
		To:      res.Emails,
		Subject: "Reminder: " + name,
		Body: fmt.Sprintf("%s\n\nTask: %s\nDue at: %s\n\nOpen Tracker: %s/tasks",
			details, taskLabel, r.DueAt.UTC().Format(dueTimeLayout), siteURL),
	}
}
