package usecase

import (
	"context"
	"iter"
	"time"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/apperr"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/inventory"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/logger"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/model"
)

type inventoryUseCase struct {
	repo      inventory.Repository
	fba       inventory.FbaScraper
	warehouse inventory.WarehouseScraper
	batchSize int
	logger    logger.ZapLogger
}

func NewInventoryUseCase(
	repo inventory.Repository,
	fba inventory.FbaScraper,
	warehouse inventory.WarehouseScraper,
	batchSize int,
	log logger.ZapLogger,
) inventory.UseCase {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &inventoryUseCase{repo: repo, fba: fba, warehouse: warehouse, batchSize: batchSize, logger: log}
}

func (u *inventoryUseCase) SyncFba(ctx context.Context, today time.Time) (*model.RunSummary, error) {
	summary, err := consume(ctx, today, u.fba.FetchCurrent(ctx, today), u.batchSize, u.repo.UpsertFbaInventory)
	u.logResult("Synced FBA inventory", summary, err)
	return summary, err
}

func (u *inventoryUseCase) SyncWarehouse(ctx context.Context, today time.Time) (*model.RunSummary, error) {
	summary, err := consume(ctx, today, u.warehouse.FetchCurrent(ctx, today), u.batchSize, u.repo.UpsertInventoryDetails)
	u.logResult("Synced warehouse inventory", summary, err)
	return summary, err
}

func (u *inventoryUseCase) logResult(msg string, s *model.RunSummary, err error) {
	fields := []zap.Field{
		zap.Int("processed", s.Processed),
		zap.Int("persisted", s.Persisted),
		zap.Int("failed", s.Failed),
		zap.Int("pages_failed", s.PagesFailed),
	}
	if err != nil {
		u.logger.Error(msg+" failed", append(fields, zap.Error(err))...)
		return
	}
	u.logger.Info(msg, fields...)
}

// consume buffers valid rows and flushes them in batches as the sequence
// is read, so large inventories never sit in memory whole.
func consume[T any](
	ctx context.Context,
	today time.Time,
	rows iter.Seq2[T, error],
	batchSize int,
	upsert func(context.Context, []T) (int, error),
) (*model.RunSummary, error) {
	summary := &model.RunSummary{Date: model.DateOf(today)}
	batch := make([]T, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := upsert(ctx, batch)
		if err != nil {
			return errors.Annotatef(err, "upsert %d rows", len(batch))
		}
		summary.Persisted += n
		batch = batch[:0]
		return nil
	}

	for row, err := range rows {
		if err != nil {
			switch {
			case errors.Is(err, apperr.ErrValidation):
				summary.Processed++
				summary.Failed++
				summary.AddError(err)
			case ctx.Err() != nil || errors.Is(err, apperr.ErrAuth):
				return summary, errors.Trace(err)
			default:
				summary.PagesFailed++
				summary.AddError(err)
			}
			continue
		}
		summary.Processed++
		batch = append(batch, row)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return summary, err
			}
		}
	}
	if err := flush(); err != nil {
		return summary, err
	}
	if summary.Processed == 0 && summary.PagesFailed > 0 {
		return summary, errors.Errorf("no inventory fetched: %d pages failed", summary.PagesFailed)
	}
	return summary, nil
}
