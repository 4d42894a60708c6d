// Package syncjob packages every pipeline run as a job with a task log.
package syncjob

import (
	"context"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/analytics"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/inventory"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/inventorypoint"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/logger"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/model"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/sellfox"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/tasklog"
)

// minTaskLogDays is the shortest retention applied to task logs.
const minTaskLogDays = 60

type Options struct {
	JobTimeout          time.Duration
	MergeAfterAnalytics bool
	HistoryDays         int
	MaxHistoryDays      int
	ParallelWorkers     int
	KeepDays            int
	OverdueAfter        time.Duration
	Location            *time.Location
	Clock               clock.Clock
}

func (o Options) withDefaults() Options {
	if o.JobTimeout <= 0 {
		o.JobTimeout = 2 * time.Hour
	}
	if o.HistoryDays <= 0 {
		o.HistoryDays = 7
	}
	if o.MaxHistoryDays <= 0 {
		o.MaxHistoryDays = 30
	}
	if o.ParallelWorkers <= 0 {
		o.ParallelWorkers = 1
	}
	if o.KeepDays <= 0 {
		o.KeepDays = 90
	}
	if o.OverdueAfter <= 0 {
		o.OverdueAfter = 3 * time.Hour
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Clock == nil {
		o.Clock = clock.WallClock
	}
	return o
}

// Deps are the pipeline stages a Service drives.
type Deps struct {
	Scraper       analytics.Scraper
	Analytics     analytics.UseCase
	AnalyticsRepo analytics.Repository
	Inventory     inventory.UseCase
	InventoryRepo inventory.Repository
	Points        inventorypoint.UseCase
	PointRepo     inventorypoint.Repository
	Tracker       *tasklog.Tracker
}

type Service struct {
	deps   Deps
	opts   Options
	logger logger.ZapLogger
}

func NewService(deps Deps, opts Options, log logger.ZapLogger) *Service {
	return &Service{deps: deps, opts: opts.withDefaults(), logger: log}
}

// Today is the current date in the scheduler's time zone.
func (s *Service) Today() time.Time {
	return model.DateOf(s.opts.Clock.Now().In(s.opts.Location))
}

// jobFunc is one pipeline run; it records its counters on task.
type jobFunc func(ctx context.Context, task *tasklog.Task) error

// run wraps fn in a task log under the job deadline. HTTP calls made with
// the job context are counted into the log.
func (s *Service) run(ctx context.Context, typ model.TaskType, date time.Time, fn jobFunc) (model.SyncTaskLog, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.JobTimeout)
	defer cancel()

	task, err := s.deps.Tracker.Start(ctx, typ, date)
	if err != nil {
		return model.SyncTaskLog{}, err
	}

	stats := &sellfox.CallStats{}
	runErr := fn(sellfox.WithCallStats(ctx, stats), task)
	task.AddCalls(stats.Calls(), stats.Retries())

	final, err := task.Finish(ctx, runErr)
	if runErr != nil {
		return final, runErr
	}
	return final, err
}

// SyncAnalyticsByDate fetches, processes and stores one day of analytics,
// then rebuilds that day's inventory points when configured to.
func (s *Service) SyncAnalyticsByDate(ctx context.Context, date time.Time) (model.SyncTaskLog, error) {
	date = model.DateOf(date)
	return s.run(ctx, model.TaskProductAnalytics, date, func(ctx context.Context, task *tasklog.Task) error {
		summary, err := s.deps.Analytics.Process(ctx, date, s.deps.Scraper.FetchByDate(ctx, date))
		task.Record(summary)
		if err != nil {
			return err
		}
		if !s.opts.MergeAfterAnalytics {
			return nil
		}
		if _, err := s.deps.Points.Merge(ctx, date); err != nil {
			return errors.Annotate(err, "merge after analytics sync")
		}
		return nil
	})
}

// SyncAnalyticsHistory re-syncs the days ending yesterday, several at a
// time. Each day has its own task log; one failing day does not stop the
// others.
func (s *Service) SyncAnalyticsHistory(ctx context.Context, days int) ([]model.SyncTaskLog, error) {
	if days <= 0 {
		days = s.opts.HistoryDays
	}
	days = min(days, s.opts.MaxHistoryDays)
	today := s.Today()

	var (
		mu     sync.Mutex
		logs   = make([]model.SyncTaskLog, days)
		failed []string
	)
	var g errgroup.Group
	g.SetLimit(s.opts.ParallelWorkers)
	for i := range days {
		date := today.AddDate(0, 0, -(i + 1))
		g.Go(func() error {
			log, err := s.SyncAnalyticsByDate(ctx, date)
			logs[i] = log
			if err != nil {
				mu.Lock()
				failed = append(failed, model.FormatDate(date))
				mu.Unlock()
				s.logger.Error("History day failed", zap.String("date", model.FormatDate(date)), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failed) > 0 {
		return logs, errors.Errorf("%d of %d history days failed: %v", len(failed), days, failed)
	}
	return logs, ctx.Err()
}

func (s *Service) SyncFbaInventory(ctx context.Context) (model.SyncTaskLog, error) {
	today := s.Today()
	return s.run(ctx, model.TaskFbaInventory, today, func(ctx context.Context, task *tasklog.Task) error {
		summary, err := s.deps.Inventory.SyncFba(ctx, today)
		task.Record(summary)
		return err
	})
}

func (s *Service) SyncWarehouseInventory(ctx context.Context) (model.SyncTaskLog, error) {
	today := s.Today()
	return s.run(ctx, model.TaskInventoryDetails, today, func(ctx context.Context, task *tasklog.Task) error {
		summary, err := s.deps.Inventory.SyncWarehouse(ctx, today)
		task.Record(summary)
		return err
	})
}

// RunInventoryMerge rebuilds the inventory points of date. Rows the merger
// skipped count as failed records.
func (s *Service) RunInventoryMerge(ctx context.Context, date time.Time) (model.SyncTaskLog, error) {
	date = model.DateOf(date)
	return s.run(ctx, model.TaskInventoryMerge, date, func(ctx context.Context, task *tasklog.Task) error {
		stats, err := s.deps.Points.Merge(ctx, date)
		if stats != nil {
			task.Record(&model.RunSummary{
				Processed: stats.OriginalCount,
				Persisted: stats.OriginalCount - stats.SkippedRows,
				Failed:    stats.SkippedRows,
			})
		}
		return err
	})
}

// CleanupOldData deletes analytics, FBA snapshots and point history older
// than keepDays, and task logs older than max(keepDays, 60) days.
func (s *Service) CleanupOldData(ctx context.Context, keepDays int) (model.SyncTaskLog, error) {
	if keepDays <= 0 {
		keepDays = s.opts.KeepDays
	}
	today := s.Today()
	cutoff := today.AddDate(0, 0, -keepDays)
	logCutoff := today.AddDate(0, 0, -max(keepDays, minTaskLogDays))

	return s.run(ctx, model.TaskCleanup, today, func(ctx context.Context, task *tasklog.Task) error {
		steps := []struct {
			what string
			del  func(context.Context, time.Time) (int64, error)
			at   time.Time
		}{
			{"product_analytics", s.deps.AnalyticsRepo.DeleteBefore, cutoff},
			{"fba_inventory", s.deps.InventoryRepo.DeleteFbaBefore, cutoff},
			{"inventory_point_history", s.deps.PointRepo.DeleteHistoryBefore, cutoff},
			{"sync_task_logs", s.deps.Tracker.DeleteBefore, logCutoff},
		}
		var total int64
		for _, step := range steps {
			n, err := step.del(ctx, step.at)
			if err != nil {
				return errors.Annotatef(err, "cleanup %s", step.what)
			}
			total += n
			s.logger.Info("Cleaned up old rows",
				zap.String("table", step.what),
				zap.String("before", model.FormatDate(step.at)),
				zap.Int64("deleted", n),
			)
		}
		task.Record(&model.RunSummary{Processed: int(total), Persisted: int(total)})
		return nil
	})
}

// SweepOverdueTasks closes tasks left running past the overdue limit.
func (s *Service) SweepOverdueTasks(ctx context.Context) (int64, error) {
	return s.deps.Tracker.SweepOverdue(ctx, s.opts.OverdueAfter)
}
