package inventorypoint

import (
	"context"
	"time"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/model"
)

type Repository interface {
	// ReplaceByDate swaps every point of date for points and appends one
	// history snapshot per point, all in one transaction.
	ReplaceByDate(ctx context.Context, date time.Time, points []model.InventoryPoint, runID string) (int, error)
	List(ctx context.Context, date time.Time, marketplace string) ([]model.InventoryPoint, error)
	Summary(ctx context.Context, date time.Time) (*model.MergeSummary, error)
	History(ctx context.Context, asin, marketplace string, from, to time.Time) ([]model.InventoryPointHistory, error)
	DeleteHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
