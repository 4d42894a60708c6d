package usecase

import (
	"context"
	"iter"
	"time"

	"github.com/juju/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/analytics"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/apperr"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/logger"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/model"
)

const defaultBatchSize = 200

type analyticsUseCase struct {
	repo      analytics.Repository
	batchSize int
	validate  bool
	logger    logger.ZapLogger
}

// NewAnalyticsUseCase builds the analytics processor. With validate off only
// the key fields of derived rows are checked.
func NewAnalyticsUseCase(repo analytics.Repository, batchSize int, validate bool, log logger.ZapLogger) analytics.UseCase {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &analyticsUseCase{repo: repo, batchSize: batchSize, validate: validate, logger: log}
}

// Process consumes rows, merges duplicates, drops invalid rows and upserts
// the rest in chunks of batchSize, one transaction per chunk. A persistence
// failure aborts the run; the summary reflects the chunks already written.
func (u *analyticsUseCase) Process(ctx context.Context, date time.Time, rows iter.Seq2[model.ProductAnalytics, error]) (*model.RunSummary, error) {
	date = model.DateOf(date)
	summary := &model.RunSummary{Date: date}
	dedup := newDeduper()

	for row, err := range rows {
		if err == nil {
			dedup.add(row)
			continue
		}
		switch {
		case errors.Is(err, apperr.ErrValidation):
			summary.Processed++
			summary.Failed++
			summary.AddError(err)
		case ctx.Err() != nil || errors.Is(err, apperr.ErrAuth):
			return summary, errors.Annotatef(err, "fetch analytics for %s", model.FormatDate(date))
		default:
			summary.PagesFailed++
			summary.AddError(err)
			u.logger.Warn("Analytics page failed", zap.String("date", model.FormatDate(date)), zap.Error(err))
		}
	}
	summary.Duplicates = dedup.duplicates

	valid := make([]model.ProductAnalytics, 0, len(dedup.order))
	for _, row := range dedup.rows() {
		summary.Processed++
		if !row.DataDate.Equal(date) {
			summary.Failed++
			summary.AddError(apperr.Invalid("data_date", "%s does not match %s for asin %s",
				model.FormatDate(row.DataDate), model.FormatDate(date), row.ASIN))
			continue
		}
		Derive(&row)
		check := row.Validate
		if !u.validate {
			check = row.ValidateKeys
		}
		if err := check(); err != nil {
			summary.Failed++
			summary.AddError(err)
			continue
		}
		valid = append(valid, row)
	}

	if len(valid) == 0 && summary.PagesFailed > 0 {
		return summary, errors.Errorf("no analytics fetched for %s: %d pages failed",
			model.FormatDate(date), summary.PagesFailed)
	}

	for start := 0; start < len(valid); start += u.batchSize {
		end := min(start+u.batchSize, len(valid))
		n, err := u.repo.UpsertProductAnalytics(ctx, valid[start:end])
		if err != nil {
			return summary, errors.Annotatef(err, "upsert analytics rows %d-%d", start, end)
		}
		summary.Persisted += n
	}

	u.logger.Info("Processed product analytics",
		zap.String("date", model.FormatDate(date)),
		zap.Int("processed", summary.Processed),
		zap.Int("persisted", summary.Persisted),
		zap.Int("failed", summary.Failed),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("pages_failed", summary.PagesFailed),
	)
	return summary, nil
}

// Derive fills the traffic ratios that can be computed from the row's own
// bases and rounds money and ratio fields.
func Derive(p *model.ProductAnalytics) {
	if p.ConversionRate == 0 && p.Clicks > 0 {
		p.ConversionRate = safeDiv(float64(p.SalesQuantity), float64(p.Clicks))
	}
	if p.Impressions > 0 {
		p.CTR = safeDiv(float64(p.Clicks), float64(p.Impressions))
	}
	if p.Clicks > 0 {
		p.RevenuePerClick = safeDiv(p.SalesAmount, float64(p.Clicks))
	}

	p.SalesAmount = round(p.SalesAmount, 2)
	p.AdCost = round(p.AdCost, 2)
	p.AdSales = round(p.AdSales, 2)
	p.ProfitAmount = round(p.ProfitAmount, 2)
	p.AvgProfit = round(p.AvgProfit, 2)
	p.CPC = round(p.CPC, 4)
	p.CPA = round(p.CPA, 4)
	p.ACOS = round(p.ACOS, 4)
	p.AdConversionRate = round(p.AdConversionRate, 4)
	p.ConversionRate = round(p.ConversionRate, 4)
	p.CTR = round(p.CTR, 4)
	p.RevenuePerClick = round(p.RevenuePerClick, 4)
	p.ProfitRate = round(p.ProfitRate, 4)
	p.RefundRate = round(p.RefundRate, 4)
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
