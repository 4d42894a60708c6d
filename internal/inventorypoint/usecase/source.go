package usecase

import (
	"github.com/shopspring/decimal"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/inventorypoint/merger"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/model"
)

// WindowDays is the length of the sales window behind sales_7days and the
// daily averages.
const WindowDays = 7

type windowKey struct{ asin, sku, shopID string }

type fbaKey struct{ sku, marketplaceID, shopID string }

// sources joins one day's analytics with the trailing sales window, the
// latest FBA snapshot and warehouse stock.
type sources struct {
	windows   map[windowKey]model.AnalyticsWindow
	fba       map[fbaKey]model.FbaInventory
	warehouse map[string]int64
}

func newSources(windows []model.AnalyticsWindow, fba []model.FbaInventory, stock []model.WarehouseStock) *sources {
	s := &sources{
		windows:   make(map[windowKey]model.AnalyticsWindow, len(windows)),
		fba:       make(map[fbaKey]model.FbaInventory, len(fba)),
		warehouse: make(map[string]int64, len(stock)),
	}
	for _, w := range windows {
		s.windows[windowKey{w.ASIN, w.SKU, w.ShopID}] = w
	}
	for _, f := range fba {
		s.fba[fbaKey{f.SKU, f.MarketplaceID, f.ShopID}] = f
	}
	for _, w := range stock {
		s.warehouse[w.SKU] += w.Available
	}
	return s
}

func (s *sources) row(a model.ProductAnalytics) merger.SourceRow {
	store := a.ShopName
	if store == "" {
		store = a.ShopID
	}
	country := merger.CountryOf(a.MarketplaceID, store)

	r := merger.SourceRow{
		ASIN:          a.ASIN,
		SKU:           a.SKU,
		Store:         store,
		StorePrefix:   merger.StorePrefix(store),
		Country:       country,
		MarketplaceID: a.MarketplaceID,
		ProductName:   a.Title,
		Category:      a.CategoryName,
		SalesPerson:   a.OperatorName,
		DevName:       a.DevName,
		AveragePrice:  averagePrice(country, a.SalesAmount, a.SalesQuantity),
		SalesAmount:   decimal.NewFromFloat(a.SalesAmount).StringFixed(2),
		NetSales:      decimal.NewFromFloat(a.SalesAmount * (1 - a.RefundRate)).Round(2).InexactFloat64(),
		RefundRate:    a.RefundRate,
	}

	if f, ok := s.fba[fbaKey{a.SKU, a.MarketplaceID, a.ShopID}]; ok {
		r.FbaAvailable = f.Available
		r.FbaInbound = f.Inbound()
		r.FbaSellable = f.Available + f.ReservedCustomerOrders
		r.FbaUnsellable = f.Unfulfillable
		r.InboundShipped = f.InboundShipped
	} else {
		r.FbaAvailable = a.FbaInventory
		r.FbaSellable = a.FbaInventory
	}
	r.LocalAvailable = s.warehouse[a.SKU]

	w, ok := s.windows[windowKey{a.ASIN, a.SKU, a.ShopID}]
	if !ok {
		w = model.AnalyticsWindow{
			SalesQuantity: a.SalesQuantity,
			SalesAmount:   a.SalesAmount,
			OrderCount:    a.OrderCount,
			Impressions:   a.Impressions,
			Clicks:        a.Clicks,
			AdCost:        a.AdCost,
			AdOrders:      a.AdOrders,
			AdSales:       a.AdSales,
		}
	}
	r.Sales7Days = w.SalesQuantity
	r.TotalSales = w.SalesAmount
	r.AverageSales = float64(w.SalesQuantity) / WindowDays
	r.OrderCount = w.OrderCount
	r.AdImpressions = w.Impressions
	r.AdClicks = w.Clicks
	r.AdSpend = w.AdCost
	r.AdOrderCount = w.AdOrders
	r.AdSales = w.AdSales
	return r
}

// averagePrice renders the day's unit price with the country's currency
// symbol, e.g. "US$29.99". No units sold gives an empty price.
func averagePrice(country string, amount float64, qty int64) string {
	if qty <= 0 {
		return ""
	}
	price := decimal.NewFromFloat(amount).Div(decimal.NewFromInt(qty))
	return merger.CurrencySymbol(country) + price.StringFixed(2)
}
