package scraper

import (
	"context"
	"iter"
	"time"

	"go.uber.org/zap"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/analytics/dto"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/logger"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/model"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/sellfox"
)

const (
	PageListPath = "/api/productAnalyze/new/pageList.json"

	minPageSize = 100
	maxPageSize = 200
)

type Scraper struct {
	api      sellfox.Poster
	pageSize int
	pages    sellfox.PageOptions
	validate bool
	logger   logger.ZapLogger
}

func NewScraper(api sellfox.Poster, pageSize int, pages sellfox.PageOptions, log logger.ZapLogger) *Scraper {
	pageSize = max(minPageSize, min(pageSize, maxPageSize))
	return &Scraper{api: api, pageSize: pageSize, pages: pages, validate: true, logger: log}
}

// WithValidation toggles the value range checks. Rows missing a key field
// are rejected either way.
func (s *Scraper) WithValidation(enabled bool) *Scraper {
	s.validate = enabled
	return s
}

func (s *Scraper) check(row *model.ProductAnalytics) error {
	if !s.validate {
		return row.ValidateKeys()
	}
	return row.Validate()
}

// FetchByDate pages through the analytics of one day. Invalid rows are
// logged and yielded as validation errors; every valid row carries date as
// its data_date whatever the ERP reported.
func (s *Scraper) FetchByDate(ctx context.Context, date time.Time) iter.Seq2[model.ProductAnalytics, error] {
	date = model.DateOf(date)
	day := model.FormatDate(date)
	fetch := sellfox.FetchPages[dto.RawAnalytics](s.api, PageListPath, func(pageNo int) any {
		return dto.PageListRequest{
			StartDate: day,
			EndDate:   day,
			Currency:  "USD",
			PageNo:    pageNo,
			PageSize:  s.pageSize,
		}
	})

	return func(yield func(model.ProductAnalytics, error) bool) {
		var zero model.ProductAnalytics
		for raw, err := range sellfox.Paginate(ctx, fetch, s.pages) {
			if err != nil {
				if !yield(zero, err) {
					return
				}
				continue
			}
			row := ToModel(raw, date)
			if err := s.check(&row); err != nil {
				s.logger.Warn("Skipping invalid analytics row", zap.String("date", day), zap.Error(err))
				if !yield(zero, err) {
					return
				}
				continue
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

// ToModel maps an ERP row onto a ProductAnalytics dated date.
func ToModel(raw dto.RawAnalytics, date time.Time) model.ProductAnalytics {
	currency := raw.Currency
	if currency == "" {
		currency = "USD"
	}
	return model.ProductAnalytics{
		ASIN:       string(raw.ASIN),
		SKU:        string(raw.SKU),
		ParentASIN: string(raw.ParentASIN),
		MSKU:       string(raw.MSKU),
		SPU:        string(raw.SPU),
		ProductID:  string(raw.ProductID),
		DataDate:   date,

		MarketplaceID: string(raw.MarketplaceID),
		ShopID:        string(raw.ShopID),
		ShopName:      string(raw.ShopName),
		Currency:      currency,

		SalesAmount:   float64(raw.SalesAmount),
		SalesQuantity: int64(raw.SalesQuantity),
		OrderCount:    int64(raw.OrderCount),

		Sessions:    int64(raw.Sessions),
		PageViews:   int64(raw.PageViews),
		Impressions: int64(raw.Impressions),
		Clicks:      int64(raw.Clicks),

		AdCost:           float64(raw.AdCost),
		AdSales:          float64(raw.AdSales),
		AdOrders:         int64(raw.AdOrders),
		CPC:              float64(raw.CPC),
		CPA:              float64(raw.CPA),
		ACOS:             float64(raw.ACOS),
		AdConversionRate: float64(raw.AdConversionRate),
		ConversionRate:   float64(raw.ConversionRate),

		Rating:      float64(raw.Rating),
		RatingCount: int64(raw.RatingCount),
		RefundRate:  float64(raw.RefundRate),

		ProfitAmount: float64(raw.ProfitAmount),
		ProfitRate:   float64(raw.ProfitRate),
		AvgProfit:    float64(raw.AvgProfit),

		FbaInventory:   int64(raw.FbaInventory),
		TotalInventory: int64(raw.TotalInventory),
		AvailableDays:  float64(raw.AvailableDays),

		Title:        string(raw.Title),
		Brand:        string(raw.Brand),
		CategoryName: string(raw.CategoryName),
		DevName:      string(raw.DevName),
		OperatorName: string(raw.OperatorName),
	}
}
