package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/analytics"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/inventory"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/inventorypoint"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/inventorypoint/merger"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/logger"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/model"
)

type inventoryPointUseCase struct {
	repo      inventorypoint.Repository
	analytics analytics.Repository
	inventory inventory.Repository
	clock     clock.Clock
	logger    logger.ZapLogger
}

func NewInventoryPointUseCase(
	repo inventorypoint.Repository,
	analyticsRepo analytics.Repository,
	inventoryRepo inventory.Repository,
	clk clock.Clock,
	log logger.ZapLogger,
) inventorypoint.UseCase {
	if clk == nil {
		clk = clock.WallClock
	}
	return &inventoryPointUseCase{
		repo:      repo,
		analytics: analyticsRepo,
		inventory: inventoryRepo,
		clock:     clk,
		logger:    log,
	}
}

func (u *inventoryPointUseCase) Merge(ctx context.Context, date time.Time) (*model.MergeStats, error) {
	date = model.DateOf(date)
	day := model.FormatDate(date)

	rows, err := u.analytics.FindByDate(ctx, date)
	if err != nil {
		return nil, errors.Annotatef(err, "load analytics for %s", day)
	}
	windows, err := u.analytics.Windows(ctx, date, WindowDays)
	if err != nil {
		return nil, errors.Annotatef(err, "load %d-day windows for %s", WindowDays, day)
	}
	fba, err := u.inventory.LatestFba(ctx)
	if err != nil {
		return nil, errors.Annotate(err, "load fba inventory")
	}
	stock, err := u.inventory.WarehouseStockBySKU(ctx)
	if err != nil {
		return nil, errors.Annotate(err, "load warehouse stock")
	}

	src := newSources(windows, fba, stock)
	input := make([]merger.SourceRow, 0, len(rows))
	for _, r := range rows {
		input = append(input, src.row(r))
	}

	points, stats := merger.Merge(date, input, u.clock.Now().UTC())

	runID := uuid.NewString()
	if _, err := u.repo.ReplaceByDate(ctx, date, points, runID); err != nil {
		return &stats, errors.Annotatef(err, "persist inventory points for %s", day)
	}

	u.logger.Info("Merged inventory points",
		zap.String("date", day),
		zap.String("run_id", runID),
		zap.Int("original", stats.OriginalCount),
		zap.Int("merged", stats.MergedCount),
		zap.Int("eu_points", stats.EUPoints),
		zap.Int("non_eu_points", stats.NonEUPoints),
		zap.Int("skipped", stats.SkippedRows),
		zap.Float64("compression_ratio", stats.CompressionRatio),
	)
	return &stats, nil
}

func (u *inventoryPointUseCase) Summary(ctx context.Context, date time.Time) (*model.MergeSummary, error) {
	return u.repo.Summary(ctx, date)
}

func (u *inventoryPointUseCase) List(ctx context.Context, date time.Time, marketplace string) ([]model.InventoryPoint, error) {
	return u.repo.List(ctx, date, marketplace)
}

func (u *inventoryPointUseCase) History(ctx context.Context, asin, marketplace string, from, to time.Time) ([]model.InventoryPointHistory, error) {
	if to.Before(from) {
		return nil, errors.NotValidf("history range %s..%s", model.FormatDate(from), model.FormatDate(to))
	}
	return u.repo.History(ctx, asin, marketplace, from, to)
}
