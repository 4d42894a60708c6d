package syncjob

import (
	"context"
	"slices"
	"time"

	"github.com/juju/errors"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/model"
)

// Job names accepted by Run and used as scheduler entries.
const (
	JobAnalyticsDaily   = "product_analytics_daily"
	JobAnalyticsHistory = "product_analytics_history"
	JobFbaInventory     = "fba_inventory"
	JobInventoryDetails = "inventory_details"
	JobInventoryMerge   = "inventory_merge"
	JobCleanup          = "cleanup"
	JobSweepOverdue     = "sweep_overdue"
)

// Params tune a single run. Zero values select the job's default.
type Params struct {
	Date     time.Time
	Days     int
	KeepDays int
}

func Jobs() []string {
	return []string{
		JobAnalyticsDaily,
		JobAnalyticsHistory,
		JobFbaInventory,
		JobInventoryDetails,
		JobInventoryMerge,
		JobCleanup,
		JobSweepOverdue,
	}
}

func IsJob(name string) bool {
	return slices.Contains(Jobs(), name)
}

// Run executes the named job once. Jobs that work on a date default to
// yesterday.
func (s *Service) Run(ctx context.Context, name string, p Params) error {
	date := p.Date
	if date.IsZero() {
		date = s.Today().AddDate(0, 0, -1)
	}

	var err error
	switch name {
	case JobAnalyticsDaily:
		_, err = s.SyncAnalyticsByDate(ctx, date)
	case JobAnalyticsHistory:
		_, err = s.SyncAnalyticsHistory(ctx, p.Days)
	case JobFbaInventory:
		_, err = s.SyncFbaInventory(ctx)
	case JobInventoryDetails:
		_, err = s.SyncWarehouseInventory(ctx)
	case JobInventoryMerge:
		_, err = s.RunInventoryMerge(ctx, date)
	case JobCleanup:
		_, err = s.CleanupOldData(ctx, p.KeepDays)
	case JobSweepOverdue:
		_, err = s.SweepOverdueTasks(ctx)
	default:
		return errors.NotFoundf("job %q", name)
	}
	return errors.Annotatef(err, "job %s (%s)", name, model.FormatDate(date))
}
