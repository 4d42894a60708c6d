// Package tasklog records the lifecycle of every sync job run.
package tasklog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/apperr"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/logger"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/model"
)

// closeTimeout bounds the final write of a task whose context is gone.
const closeTimeout = 10 * time.Second

const maxErrorMessage = 2000

// Observer receives every closed task.
type Observer interface {
	ObserveTask(log *model.SyncTaskLog)
}

type Tracker struct {
	repo     Repository
	clock    clock.Clock
	logger   logger.ZapLogger
	observer Observer
}

func NewTracker(repo Repository, clk clock.Clock, observer Observer, log logger.ZapLogger) *Tracker {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Tracker{repo: repo, clock: clk, observer: observer, logger: log}
}

// Task is one running job. Counters are safe for concurrent use.
type Task struct {
	tracker *Tracker

	mu  sync.Mutex
	log model.SyncTaskLog
}

// Start inserts a running log for a job of type typ covering date.
func (t *Tracker) Start(ctx context.Context, typ model.TaskType, date time.Time) (*Task, error) {
	now := t.clock.Now().UTC()
	task := &Task{
		tracker: t,
		log: model.SyncTaskLog{
			TaskID:    model.NewTaskID(typ, date, now),
			TaskType:  typ,
			TaskDate:  model.DateOf(date),
			Status:    model.TaskRunning,
			StartTime: now,
			RunID:     uuid.NewString(),
		},
	}
	if err := t.repo.Insert(ctx, &task.log); err != nil {
		return nil, errors.Annotatef(err, "start %s task", typ)
	}
	t.logger.Info("Task started",
		zap.String("task_id", task.log.TaskID),
		zap.String("task_type", string(typ)),
		zap.String("task_date", model.FormatDate(date)),
	)
	return task, nil
}

func (k *Task) ID() string {
	return k.log.TaskID
}

func (k *Task) RunID() string {
	return k.log.RunID
}

// Record adds a processing summary to the task counters.
func (k *Task) Record(s *model.RunSummary) {
	if s == nil {
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.log.RecordsProcessed += int64(s.Processed)
	k.log.RecordsSuccess += int64(s.Persisted)
	k.log.RecordsFailed += int64(s.Failed)
}

// AddCalls adds HTTP attempts and retries made on behalf of the task.
func (k *Task) AddCalls(calls, retries int64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.log.APICallsCount += calls
	k.log.RetryCount += retries
}

// Snapshot returns a copy of the current log.
func (k *Task) Snapshot() model.SyncTaskLog {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.log
}

// Finish closes the task: success when runErr is nil, timeout when it came
// from a deadline, failed otherwise. The close is written even when ctx is
// already cancelled.
func (k *Task) Finish(ctx context.Context, runErr error) (model.SyncTaskLog, error) {
	t := k.tracker
	end := t.clock.Now().UTC()

	k.mu.Lock()
	k.log.Status = StatusFor(runErr)
	k.log.EndTime = &end
	duration := end.Sub(k.log.StartTime).Seconds()
	k.log.DurationSeconds = &duration
	if runErr != nil {
		msg := runErr.Error()
		if len(msg) > maxErrorMessage {
			msg = msg[:maxErrorMessage]
		}
		k.log.ErrorMessage = &msg
	}
	final := k.log
	k.mu.Unlock()

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	closed, err := t.repo.Close(closeCtx, &final)
	if err != nil {
		t.logger.Error("Closing task log failed", zap.String("task_id", final.TaskID), zap.Error(err))
		return final, errors.Annotatef(err, "close task %s", final.TaskID)
	}
	if !closed {
		t.logger.Warn("Task log was already closed", zap.String("task_id", final.TaskID))
	}

	fields := []zap.Field{
		zap.String("task_id", final.TaskID),
		zap.String("task_type", string(final.TaskType)),
		zap.String("status", string(final.Status)),
		zap.Float64("duration_seconds", duration),
		zap.Int64("records_processed", final.RecordsProcessed),
		zap.Int64("records_success", final.RecordsSuccess),
		zap.Int64("records_failed", final.RecordsFailed),
		zap.Int64("api_calls", final.APICallsCount),
		zap.Int64("retries", final.RetryCount),
	}
	if runErr != nil {
		t.logger.Error("Task metrics", append(fields, zap.Error(runErr))...)
	} else {
		t.logger.Info("Task metrics", fields...)
	}
	if t.observer != nil {
		t.observer.ObserveTask(&final)
	}
	return final, nil
}

func StatusFor(err error) model.TaskStatus {
	switch {
	case err == nil:
		return model.TaskSuccess
	case apperr.IsTimeout(err):
		return model.TaskTimeout
	default:
		return model.TaskFailed
	}
}

// SweepOverdue times out tasks that have been running longer than after.
func (t *Tracker) SweepOverdue(ctx context.Context, after time.Duration) (int64, error) {
	now := t.clock.Now().UTC()
	n, err := t.repo.CloseOverdue(ctx, now.Add(-after), now)
	if err != nil {
		return 0, errors.Annotate(err, "sweep overdue tasks")
	}
	if n > 0 {
		t.logger.Warn("Closed overdue tasks", zap.Int64("count", n), zap.Duration("after", after))
	}
	return n, nil
}

func (t *Tracker) Recent(ctx context.Context, limit int, typ model.TaskType) ([]model.SyncTaskLog, error) {
	return t.repo.Recent(ctx, limit, typ)
}

func (t *Tracker) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return t.repo.DeleteBefore(ctx, cutoff)
}
