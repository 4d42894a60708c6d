package analytics

import (
	"context"
	"time"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/model"
)

type Repository interface {
	// UpsertProductAnalytics writes rows in one transaction, keyed by (asin, sku, data_date).
	UpsertProductAnalytics(ctx context.Context, rows []model.ProductAnalytics) (int, error)
	FindByDate(ctx context.Context, date time.Time) ([]model.ProductAnalytics, error)
	CountByDate(ctx context.Context, date time.Time) (int, error)

	// Windows sums the additive fields per (asin, sku, shop_id) over the
	// days-long window ending at date.
	Windows(ctx context.Context, date time.Time, days int) ([]model.AnalyticsWindow, error)

	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
