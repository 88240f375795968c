package services

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type sweepRunner interface {
	Run(ctx context.Context) (SweepResult, error)
}

// ReminderWorker triggers sweeps on a fixed interval inside the server
// process. It is optional; an external scheduler calling the cron endpoint
// works the same way and both may run at once.
type ReminderWorker struct {
	sweeper  sweepRunner
	interval time.Duration
	log      *zap.Logger
}

// NewReminderWorker creates a worker that sweeps every interval
func NewReminderWorker(sweeper sweepRunner, interval time.Duration, log *zap.Logger) *ReminderWorker {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReminderWorker{
		sweeper:  sweeper,
		interval: interval,
		log:      log.Named("reminder_worker"),
	}
}

// Start runs the worker until ctx is cancelled. The returned channel is
// closed once the loop has exited.
func (w *ReminderWorker) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.run(ctx)
	}()
	return done
}

func (w *ReminderWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("reminder worker started", zap.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			w.log.Info("reminder worker stopped")
			return
		case <-ticker.C:
			result, err := w.sweeper.Run(ctx)
			if err != nil {
				w.log.Error("scheduled sweep failed", zap.Error(err))
				continue
			}
			if result.Processed > 0 {
				w.log.Info("scheduled sweep sent reminders", zap.Int("processed", result.Processed))
			}
		}
	}
}
