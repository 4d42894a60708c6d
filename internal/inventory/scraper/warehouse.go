package scraper

import (
	"context"
	"iter"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/inventory/dto"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/logger"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/model"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/sellfox"
)

const WarehousePagePath = "/api/warehouseManage/warehouseItemList.json"

type WarehouseScraper struct {
	api      sellfox.Poster
	pageSize int
	pages    sellfox.PageOptions
	validate bool
	logger   logger.ZapLogger
}

func NewWarehouseScraper(api sellfox.Poster, pageSize int, pages sellfox.PageOptions, log logger.ZapLogger) *WarehouseScraper {
	if pageSize <= 0 {
		pageSize = 200
	}
	return &WarehouseScraper{api: api, pageSize: pageSize, pages: pages, validate: true, logger: log}
}

func (s *WarehouseScraper) WithValidation(enabled bool) *WarehouseScraper {
	s.validate = enabled
	return s
}

func (s *WarehouseScraper) FetchCurrent(ctx context.Context, today time.Time) iter.Seq2[model.InventoryDetails, error] {
	today = model.DateOf(today)
	fetch := sellfox.FetchPages[dto.RawWarehouseItem](s.api, WarehousePagePath, func(pageNo int) any {
		return dto.WarehousePageRequest{PageNo: pageNo, PageSize: s.pageSize, IsHidden: true}
	})
	return validated(sellfox.Paginate(ctx, fetch, s.pages), func(raw dto.RawWarehouseItem) model.InventoryDetails {
		return WarehouseToModel(raw, today)
	}, func(row *model.InventoryDetails) error {
		if !s.validate {
			return row.ValidateKeys()
		}
		return row.Validate()
	}, s.logger.With(zap.String("source", "warehouse")))
}

func WarehouseToModel(raw dto.RawWarehouseItem, today time.Time) model.InventoryDetails {
	row := model.InventoryDetails{
		WarehouseID:   string(raw.WarehouseID),
		WarehouseName: string(raw.WarehouseName),
		CommodityID:   string(raw.CommodityID),
		CommoditySKU:  string(raw.CommoditySKU),
		CommodityName: string(raw.CommodityName),
		Quantity:      int64(raw.Quantity),
		Available:     int64(raw.Available),
		Locked:        int64(raw.Locked),
		InTransit:     int64(raw.InTransit),
		SnapshotDate:  today,
	}
	if raw.CostPrice != nil {
		cost := decimal.NewFromFloat(float64(*raw.CostPrice)).Round(2)
		price := cost.InexactFloat64()
		value := cost.Mul(decimal.NewFromInt(row.Quantity)).Round(2).InexactFloat64()
		row.CostPrice, row.TotalValue = &price, &value
	}
	if exp := strings.TrimSpace(raw.Expiry); exp != "" {
		if len(exp) > len(model.DateLayout) {
			exp = exp[:len(model.DateLayout)]
		}
		if t, err := model.ParseDate(exp); err == nil {
			row.ExpiryDate = &t
		}
	}
	return row
}
