package usecase

import "github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/model"

// deduper folds rows sharing (asin, sku, data_date) into one, keeping the
// order in which keys were first seen.
type deduper struct {
	order      []model.AnalyticsKey
	entries    map[model.AnalyticsKey]*dedupEntry
	duplicates int
}

type dedupEntry struct {
	row    model.ProductAnalytics
	merged bool

	// acos weighted by sales_amount, with a plain mean for zero-sales groups
	acosWeighted float64
	acosSum      float64
	count        int
}

func newDeduper() *deduper {
	return &deduper{entries: make(map[model.AnalyticsKey]*dedupEntry)}
}

func (d *deduper) add(row model.ProductAnalytics) {
	key := row.Key()
	e, ok := d.entries[key]
	if !ok {
		d.entries[key] = &dedupEntry{
			row:          row,
			acosWeighted: row.ACOS * row.SalesAmount,
			acosSum:      row.ACOS,
			count:        1,
		}
		d.order = append(d.order, key)
		return
	}
	d.duplicates++
	e.merge(row)
}

func (d *deduper) rows() []model.ProductAnalytics {
	out := make([]model.ProductAnalytics, 0, len(d.order))
	for _, key := range d.order {
		e := d.entries[key]
		if e.merged {
			e.recompute()
		}
		out = append(out, e.row)
	}
	return out
}

func (e *dedupEntry) merge(src model.ProductAnalytics) {
	e.merged = true
	e.count++
	e.acosWeighted += src.ACOS * src.SalesAmount
	e.acosSum += src.ACOS

	dst := &e.row
	dst.SalesAmount += src.SalesAmount
	dst.SalesQuantity += src.SalesQuantity
	dst.OrderCount += src.OrderCount
	dst.Sessions += src.Sessions
	dst.PageViews += src.PageViews
	dst.Impressions += src.Impressions
	dst.Clicks += src.Clicks
	dst.AdCost += src.AdCost
	dst.AdSales += src.AdSales
	dst.AdOrders += src.AdOrders
	dst.ProfitAmount += src.ProfitAmount

	// inventory figures are snapshots, not flows
	dst.FbaInventory = max(dst.FbaInventory, src.FbaInventory)
	dst.TotalInventory = max(dst.TotalInventory, src.TotalInventory)
	dst.AvailableDays = max(dst.AvailableDays, src.AvailableDays)

	if src.RatingCount > dst.RatingCount {
		dst.Rating, dst.RatingCount = src.Rating, src.RatingCount
	}
	if src.RefundRate > dst.RefundRate {
		dst.RefundRate = src.RefundRate
	}

	fill(&dst.ParentASIN, src.ParentASIN)
	fill(&dst.MSKU, src.MSKU)
	fill(&dst.SPU, src.SPU)
	fill(&dst.ProductID, src.ProductID)
	fill(&dst.MarketplaceID, src.MarketplaceID)
	fill(&dst.ShopID, src.ShopID)
	fill(&dst.ShopName, src.ShopName)
	fill(&dst.Title, src.Title)
	fill(&dst.Brand, src.Brand)
	fill(&dst.CategoryName, src.CategoryName)
	fill(&dst.DevName, src.DevName)
	fill(&dst.OperatorName, src.OperatorName)
}

// recompute derives every ratio from the summed bases.
func (e *dedupEntry) recompute() {
	r := &e.row
	clicks := float64(r.Clicks)

	r.CTR = safeDiv(clicks, float64(r.Impressions))
	r.ConversionRate = safeDiv(float64(r.SalesQuantity), clicks)
	r.RevenuePerClick = safeDiv(r.SalesAmount, clicks)
	r.CPC = safeDiv(r.AdCost, clicks)
	r.CPA = safeDiv(r.AdCost, float64(r.AdOrders))
	r.AdConversionRate = min(safeDiv(float64(r.AdOrders), clicks), 1)
	r.ProfitRate = safeDiv(r.ProfitAmount, r.SalesAmount)
	r.AvgProfit = safeDiv(r.ProfitAmount, float64(r.SalesQuantity))

	if r.SalesAmount > 0 {
		r.ACOS = e.acosWeighted / r.SalesAmount
	} else {
		r.ACOS = e.acosSum / float64(e.count)
	}
}

func fill(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}
