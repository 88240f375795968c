package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"tracker/internal/models"
)

var sweepNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type sweepFixture struct {
	store    *memStore
	dir      *memDirectory
	notifier *recordingNotifier
	logs     *observer.ObservedLogs
	metrics  *SweepMetrics
	sweeper  *Sweeper
}

func newSweepFixture(t *testing.T, reminders ...models.Reminder) *sweepFixture {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	f := &sweepFixture{
		store:    newMemStore(reminders...),
		dir:      newMemDirectory(),
		notifier: &recordingNotifier{failOn: map[string]bool{}},
		logs:     logs,
		metrics:  NewSweepMetrics(prometheus.NewRegistry()),
	}
	f.sweeper = NewSweeper(f.store, NewRecipientResolver(f.dir), f.notifier, SweepConfig{
		Window:     60 * time.Second,
		BatchLimit: 500,
		ClaimTTL:   5 * time.Minute,
		SiteURL:    "https://tracker.example.com",
	}, zap.New(core), f.metrics).WithClock(func() time.Time { return sweepNow })
	return f
}

func (f *sweepFixture) assign(taskID, name string, users map[string]string) {
	f.dir.tasks[taskID] = models.Task{ID: taskID, Name: name, CreatedBy: "owner-" + taskID}
	for id, email := range users {
		f.dir.assignees[taskID] = append(f.dir.assignees[taskID], id)
		f.dir.emails[id] = email
	}
}

func TestSweepEndToEnd(t *testing.T) {
	f := newSweepFixture(t, models.Reminder{ID: "r1", TaskID: "t1", DueAt: sweepNow})
	f.assign("t1", "Ship it", map[string]string{"a": "a@x.com"})

	result, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Processed: 1, IDs: []string{"r1"}}, result)

	require.Equal(t, 1, f.notifier.calls())
	msg := f.notifier.sent[0]
	assert.Equal(t, []string{"a@x.com"}, msg.To)
	assert.Equal(t, "Reminder: Ship it", msg.Subject)
	assert.Contains(t, msg.Body, "You have a reminder.")
	assert.Contains(t, msg.Body, "Task: Ship it")
	assert.Contains(t, msg.Body, "Due at: Sun Mar 1, 2026 9:00 AM UTC")
	assert.Contains(t, msg.Body, "Open Tracker: https://tracker.example.com/tasks")

	sent := f.store.get("r1").SentAt
	require.NotNil(t, sent)
	assert.True(t, sent.Equal(sweepNow))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.outcomes.WithLabelValues(OutcomeSent)))
}

func TestSweepEmptyBatch(t *testing.T) {
	f := newSweepFixture(t)

	result, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
	assert.Empty(t, result.IDs)
	assert.Equal(t, 0, f.notifier.calls())
}

func TestSweepWindowBounds(t *testing.T) {
	f := newSweepFixture(t,
		models.Reminder{ID: "at-since", TaskID: "t1", DueAt: sweepNow.Add(-60 * time.Second)},
		models.Reminder{ID: "at-until", TaskID: "t1", DueAt: sweepNow},
		models.Reminder{ID: "too-old", TaskID: "t1", DueAt: sweepNow.Add(-60*time.Second - time.Nanosecond)},
		models.Reminder{ID: "future", TaskID: "t1", DueAt: sweepNow.Add(time.Nanosecond)},
	)
	f.assign("t1", "Ship it", map[string]string{"a": "a@x.com"})

	result, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"at-since", "at-until"}, result.IDs)
	assert.Nil(t, f.store.get("too-old").SentAt)
	assert.Nil(t, f.store.get("future").SentAt)
}

func TestSweepFallbackToCreator(t *testing.T) {
	f := newSweepFixture(t, models.Reminder{ID: "r1", TaskID: "t1", DueAt: sweepNow})
	f.dir.tasks["t1"] = models.Task{ID: "t1", Name: "Ship it", CreatedBy: "owner"}
	f.dir.emails["owner"] = "owner@x.com"

	result, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	require.Equal(t, 1, f.notifier.calls())
	assert.Equal(t, []string{"owner@x.com"}, f.notifier.sent[0].To)
}

func TestSweepRecipientNarrowing(t *testing.T) {
	f := newSweepFixture(t, models.Reminder{ID: "r1", TaskID: "t1", DueAt: sweepNow, RecipientUserIDs: jsonIDs("B", "D")})
	f.assign("t1", "Ship it", map[string]string{"A": "a@x.com", "B": "b@x.com", "C": "c@x.com"})
	f.dir.emails["D"] = "d@x.com"

	_, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, f.notifier.calls())
	assert.Equal(t, []string{"b@x.com"}, f.notifier.sent[0].To)
}

func TestSweepNoTargetMarksSentWithoutSending(t *testing.T) {
	f := newSweepFixture(t, models.Reminder{ID: "r1", TaskID: "t1", DueAt: sweepNow, CreatedBy: "author"})
	f.dir.tasks["t1"] = models.Task{ID: "t1", Name: "Ship it", CreatedBy: "owner"}

	result, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Processed: 1, IDs: []string{"r1"}}, result)
	assert.Equal(t, 0, f.notifier.calls())
	assert.NotNil(t, f.store.get("r1").SentAt)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.outcomes.WithLabelValues(OutcomeNoRecipient)))
}

func TestSweepIsolatesFailingReminder(t *testing.T) {
	f := newSweepFixture(t,
		models.Reminder{ID: "r1", TaskID: "t1", DueAt: sweepNow.Add(-30 * time.Second)},
		models.Reminder{ID: "r2", TaskID: "t2", DueAt: sweepNow.Add(-20 * time.Second)},
		models.Reminder{ID: "r3", TaskID: "t3", DueAt: sweepNow.Add(-10 * time.Second)},
	)
	f.assign("t1", "One", map[string]string{"a": "a@x.com"})
	f.assign("t3", "Three", map[string]string{"c": "c@x.com"})
	f.dir.taskErr["t2"] = errors.New("connection reset by peer")

	result, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Processed: 2, IDs: []string{"r1", "r3"}}, result)
	assert.Nil(t, f.store.get("r2").SentAt)
	assert.Nil(t, f.store.get("r2").ClaimedAt, "claim is released so the next sweep retries")

	failures := f.logs.FilterMessage("reminder failed").FilterField(zap.String("reminder_id", "r2")).All()
	require.Len(t, failures, 1)
	assert.Equal(t, zapcore.ErrorLevel, failures[0].Level)
	assert.Equal(t, "resolve", failures[0].ContextMap()["stage"])
	assert.Contains(t, failures[0].ContextMap()["error"], "connection reset by peer")
}

func TestSweepRecoversFromPanic(t *testing.T) {
	f := newSweepFixture(t,
		models.Reminder{ID: "r1", TaskID: "t1", DueAt: sweepNow.Add(-30 * time.Second)},
		models.Reminder{ID: "r2", TaskID: "t2", DueAt: sweepNow.Add(-20 * time.Second)},
		models.Reminder{ID: "r3", TaskID: "t3", DueAt: sweepNow.Add(-10 * time.Second)},
	)
	f.assign("t1", "One", map[string]string{"a": "a@x.com"})
	f.assign("t3", "Three", map[string]string{"c": "c@x.com"})
	f.dir.panicTask = "t2"

	result, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, []string{"r1", "r3"}, result.IDs)
	assert.Equal(t, 1, f.logs.FilterMessage("reminder failed").FilterField(zap.String("reminder_id", "r2")).Len())
}

func TestSweepRecoversFromStorePanic(t *testing.T) {
	f := newSweepFixture(t,
		models.Reminder{ID: "r1", TaskID: "t1", DueAt: sweepNow.Add(-20 * time.Second)},
		models.Reminder{ID: "r2", TaskID: "t2", DueAt: sweepNow.Add(-10 * time.Second)},
	)
	f.assign("t1", "One", map[string]string{"a": "a@x.com"})
	f.assign("t2", "Two", map[string]string{"b": "b@x.com"})
	f.store.panicMark = "r1"

	result, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"r2"}, result.IDs)
	failed := f.logs.FilterMessage("reminder failed").FilterField(zap.String("stage", "panic"))
	require.Equal(t, 1, failed.Len())
	assert.Equal(t, "r1", failed.All()[0].ContextMap()["reminder_id"])
}

func TestSweepPartialDeliveryIsMarkedSent(t *testing.T) {
	f := newSweepFixture(t, models.Reminder{ID: "r1", TaskID: "t1", DueAt: sweepNow})
	f.assign("t1", "Ship it", map[string]string{"a": "a@x.com"})
	f.notifier.err = fmt.Errorf("%w: 1000 of 1200 recipients", ErrPartialDelivery)

	result, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, result.IDs)
	assert.NotNil(t, f.store.get("r1").SentAt)
	assert.Equal(t, 1, f.logs.FilterMessage("reminder partially delivered").Len())

	_, err = f.sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.notifier.calls())
}

func TestSweepDeliveryFailureLeavesPendingAndRetries(t *testing.T) {
	f := newSweepFixture(t, models.Reminder{ID: "x", TaskID: "t1", DueAt: sweepNow})
	f.assign("t1", "Ship it", map[string]string{"a": "a@x.com"})
	f.notifier.failOn["a@x.com"] = true

	result, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
	assert.Nil(t, f.store.get("x").SentAt)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.outcomes.WithLabelValues(OutcomeDeliveryFailed)))

	f.notifier.failOn["a@x.com"] = false
	result, err = f.sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, result.IDs)
	assert.Equal(t, 2, f.notifier.calls())
}

func TestSweepDisabledNotifierLeavesPending(t *testing.T) {
	f := newSweepFixture(t, models.Reminder{ID: "r1", TaskID: "t1", DueAt: sweepNow})
	f.assign("t1", "Ship it", map[string]string{"a": "a@x.com"})
	f.sweeper.notifier = DisabledNotifier{}

	result, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
	assert.Nil(t, f.store.get("r1").SentAt)
}

func TestSweepSkipsReminderClaimedElsewhere(t *testing.T) {
	claimed := sweepNow.Add(-time.Minute)
	f := newSweepFixture(t, models.Reminder{ID: "r1", TaskID: "t1", DueAt: sweepNow, ClaimedAt: &claimed})
	f.assign("t1", "Ship it", map[string]string{"a": "a@x.com"})

	result, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
	assert.Equal(t, 0, f.notifier.calls())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.outcomes.WithLabelValues(OutcomeSkippedClaimed)))
}

func TestOverlappingSweepsSendOnce(t *testing.T) {
	f := newSweepFixture(t, models.Reminder{ID: "r1", TaskID: "t1", DueAt: sweepNow})
	f.assign("t1", "Ship it", map[string]string{"a": "a@x.com"})
	second := NewSweeper(f.store, NewRecipientResolver(f.dir), f.notifier, f.sweeper.cfg, nil, nil).
		WithClock(func() time.Time { return sweepNow })

	// Both sweeps load the same snapshot before either of them processes it.
	due, err := f.store.FetchDue(context.Background(), sweepNow.Add(-time.Minute), sweepNow, 500)
	require.NoError(t, err)
	require.Len(t, due, 1)

	ok, err := f.store.Claim(context.Background(), "r1", sweepNow, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, second.process(context.Background(), due[0]))
	assert.Equal(t, 0, f.notifier.calls())
}

func TestSweepMarkSentFailureKeepsClaim(t *testing.T) {
	f := newSweepFixture(t, models.Reminder{ID: "r1", TaskID: "t1", DueAt: sweepNow})
	f.assign("t1", "Ship it", map[string]string{"a": "a@x.com"})
	f.store.markErr["r1"] = errors.New("write timeout")

	result, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
	assert.NotNil(t, f.store.get("r1").ClaimedAt)
	assert.Empty(t, f.store.released)

	// A rerun inside the lease must not send a second email.
	_, err = f.sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.notifier.calls())
}

func TestSweepLoadFailureIsFatal(t *testing.T) {
	f := newSweepFixture(t, models.Reminder{ID: "r1", TaskID: "t1", DueAt: sweepNow})
	f.store.fetchErr = errors.New("relation \"reminders\" does not exist")

	_, err := f.sweeper.Run(context.Background())
	assert.Error(t, err)
	assert.Empty(t, f.store.marked)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.sweeps.WithLabelValues("load_error")))
}

func TestSweepNeverMarksTwice(t *testing.T) {
	f := newSweepFixture(t, models.Reminder{ID: "r1", TaskID: "t1", DueAt: sweepNow})
	f.assign("t1", "Ship it", map[string]string{"a": "a@x.com"})

	_, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)
	result, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.Processed)
	assert.Equal(t, []string{"r1"}, f.store.marked)
}

func TestSweepStopsOnCancelledContext(t *testing.T) {
	f := newSweepFixture(t, models.Reminder{ID: "r1", TaskID: "t1", DueAt: sweepNow})
	f.assign("t1", "Ship it", map[string]string{"a": "a@x.com"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := f.sweeper.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
	assert.Nil(t, f.store.get("r1").SentAt)
}

func TestComposeMessageDefaults(t *testing.T) {
	details := "Bring the slides"
	r := models.Reminder{ID: "r1", TaskID: "t-42", DueAt: sweepNow, Details: &details}

	msg := ComposeMessage(r, Resolution{Emails: []string{"a@x.com"}}, "")
	assert.Equal(t, "Reminder: Task", msg.Subject)
	assert.Equal(t, "Bring the slides\n\nTask: t-42\nDue at: Sun Mar 1, 2026 9:00 AM UTC\n\nOpen Tracker: /tasks", msg.Body)
}
