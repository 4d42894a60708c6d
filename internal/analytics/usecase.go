package analytics

import (
	"context"
	"iter"
	"time"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/model"
)

// Scraper yields one day of analytics rows. Rejected rows and failed pages
// arrive as errors alongside the valid rows.
type Scraper interface {
	FetchByDate(ctx context.Context, date time.Time) iter.Seq2[model.ProductAnalytics, error]
}

type UseCase interface {
	// Process dedups, validates, derives and upserts one day of rows.
	Process(ctx context.Context, date time.Time, rows iter.Seq2[model.ProductAnalytics, error]) (*model.RunSummary, error)
}
