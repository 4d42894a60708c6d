package inventorypoint

import (
	"context"
	"time"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/model"
)

type UseCase interface {
	// Merge rebuilds the inventory points of date from persisted analytics
	// and inventory, replacing any earlier result for that date.
	Merge(ctx context.Context, date time.Time) (*model.MergeStats, error)
	Summary(ctx context.Context, date time.Time) (*model.MergeSummary, error)
	List(ctx context.Context, date time.Time, marketplace string) ([]model.InventoryPoint, error)
	History(ctx context.Context, asin, marketplace string, from, to time.Time) ([]model.InventoryPointHistory, error)
}
