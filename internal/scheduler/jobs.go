package scheduler

import (
	"context"

	"github.com/juju/errors"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/config"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/syncjob"
)

// Runner executes a named sync job once.
type Runner interface {
	Run(ctx context.Context, name string, p syncjob.Params) error
}

// SyncJobs builds the cron table from configuration.
func SyncJobs(cfg *config.Config, runner Runner) ([]Job, error) {
	daily := []struct {
		name string
		at   string
	}{
		{syncjob.JobAnalyticsDaily, cfg.Sync.ProductAnalytics.DailySyncTime},
		{syncjob.JobAnalyticsHistory, cfg.Sync.ProductAnalytics.HistoryUpdateTime},
		{syncjob.JobFbaInventory, cfg.Sync.FbaInventory.SyncTime},
		{syncjob.JobInventoryDetails, cfg.Sync.InventoryDetails.SyncTime},
	}

	jobs := make([]Job, 0, len(daily)+3)
	for _, d := range daily {
		spec, err := config.DailySpec(d.at)
		if err != nil {
			return nil, errors.Annotatef(err, "job %s", d.name)
		}
		jobs = append(jobs, runJob(runner, d.name, spec, syncjob.Params{Days: cfg.Sync.HistoryRefreshDays}))
	}
	jobs = append(jobs,
		runJob(runner, syncjob.JobCleanup, cfg.Scheduler.CleanupSpec, syncjob.Params{KeepDays: cfg.Sync.KeepDays}),
		runJob(runner, syncjob.JobSweepOverdue, cfg.Scheduler.SweeperSpec, syncjob.Params{}),
		// merge has no trigger of its own; it follows analytics or is run by hand
		runJob(runner, syncjob.JobInventoryMerge, "", syncjob.Params{}),
	)
	return jobs, nil
}

func runJob(runner Runner, name, spec string, p syncjob.Params) Job {
	return Job{
		Name: name,
		Spec: spec,
		Run: func(ctx context.Context) error {
			return runner.Run(ctx, name, p)
		},
	}
}
