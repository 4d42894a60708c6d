package scraper

import (
	"context"
	"iter"
	"time"

	"go.uber.org/zap"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/inventory/dto"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/logger"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/model"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/sellfox"
)

const FbaPagePath = "/api/inventoryManage/fba/pageList.json"

type FbaScraper struct {
	api      sellfox.Poster
	pageSize int
	pages    sellfox.PageOptions
	validate bool
	logger   logger.ZapLogger
}

func NewFbaScraper(api sellfox.Poster, pageSize int, pages sellfox.PageOptions, log logger.ZapLogger) *FbaScraper {
	if pageSize <= 0 {
		pageSize = 200
	}
	return &FbaScraper{api: api, pageSize: pageSize, pages: pages, validate: true, logger: log}
}

// WithValidation toggles the value range checks. Key fields are always
// checked since rows without them cannot be stored.
func (s *FbaScraper) WithValidation(enabled bool) *FbaScraper {
	s.validate = enabled
	return s
}

// FetchCurrent pages through the current FBA stock, hiding zero-stock and
// deleted products. Every row is stamped with today as its snapshot date.
func (s *FbaScraper) FetchCurrent(ctx context.Context, today time.Time) iter.Seq2[model.FbaInventory, error] {
	today = model.DateOf(today)
	fetch := sellfox.FetchPages[dto.RawFba](s.api, FbaPagePath, func(pageNo int) any {
		return dto.FbaPageRequest{
			PageNo:         pageNo,
			PageSize:       s.pageSize,
			HideZero:       true,
			HideDeletedPrd: true,
			Currency:       "USD",
		}
	})
	return validated(sellfox.Paginate(ctx, fetch, s.pages), func(raw dto.RawFba) model.FbaInventory {
		return FbaToModel(raw, today)
	}, func(row *model.FbaInventory) error {
		if !s.validate {
			return row.ValidateKeys()
		}
		return row.Validate()
	}, s.logger.With(zap.String("source", "fba")))
}

func FbaToModel(raw dto.RawFba, today time.Time) model.FbaInventory {
	row := model.FbaInventory{
		SKU:                    string(raw.SKU),
		ASIN:                   string(raw.ASIN),
		FNSKU:                  string(raw.FNSKU),
		MarketplaceID:          string(raw.MarketplaceID),
		ShopID:                 string(raw.ShopID),
		ShopName:               string(raw.ShopName),
		Available:              int64(raw.Available),
		ReservedCustomerOrders: int64(raw.ReservedCustomerOrders),
		InboundWorking:         int64(raw.InboundWorking),
		InboundShipped:         int64(raw.InboundShipped),
		InboundReceiving:       int64(raw.InboundReceiving),
		Unfulfillable:          int64(raw.Unfulfillable),
		SnapshotDate:           today,
	}
	if raw.TotalInventory != nil {
		row.TotalInventory = int64(*raw.TotalInventory)
	} else {
		row.TotalInventory = row.ComponentSum()
	}
	return row
}

// validated maps raw rows and turns rows failing check into warn-and-skip
// validation errors. Upstream errors pass through.
func validated[R, M any](src iter.Seq2[R, error], mapRow func(R) M, check func(*M) error, log logger.ZapLogger) iter.Seq2[M, error] {
	return func(yield func(M, error) bool) {
		var zero M
		for raw, err := range src {
			if err != nil {
				if !yield(zero, err) {
					return
				}
				continue
			}
			row := mapRow(raw)
			if err := check(&row); err != nil {
				log.Warn("Skipping invalid inventory row", zap.Error(err))
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
