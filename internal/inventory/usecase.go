package inventory

import (
	"context"
	"iter"
	"time"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/model"
)

type FbaScraper interface {
	FetchCurrent(ctx context.Context, today time.Time) iter.Seq2[model.FbaInventory, error]
}

type WarehouseScraper interface {
	FetchCurrent(ctx context.Context, today time.Time) iter.Seq2[model.InventoryDetails, error]
}

type UseCase interface {
	SyncFba(ctx context.Context, today time.Time) (*model.RunSummary, error)
	SyncWarehouse(ctx context.Context, today time.Time) (*model.RunSummary, error)
}
