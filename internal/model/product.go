package model

import "time"

// ProductAnalytics is one ERP analytics row, unique per (asin, sku, data_date).
type ProductAnalytics struct {
	ID         int64     `db:"id" json:"id"`
	ASIN       string    `db:"asin" json:"asin"`
	SKU        string    `db:"sku" json:"sku"`
	ParentASIN string    `db:"parent_asin" json:"parent_asin"`
	MSKU       string    `db:"msku" json:"msku"`
	SPU        string    `db:"spu" json:"spu"`
	ProductID  string    `db:"product_id" json:"product_id"`
	DataDate   time.Time `db:"data_date" json:"data_date"`

	MarketplaceID string `db:"marketplace_id" json:"marketplace_id"`
	ShopID        string `db:"shop_id" json:"shop_id"`
	ShopName      string `db:"shop_name" json:"shop_name"`
	Currency      string `db:"currency" json:"currency"`

	SalesAmount   float64 `db:"sales_amount" json:"sales_amount"`
	SalesQuantity int64   `db:"sales_quantity" json:"sales_quantity"`
	OrderCount    int64   `db:"order_count" json:"order_count"`

	Sessions    int64 `db:"sessions" json:"sessions"`
	PageViews   int64 `db:"page_views" json:"page_views"`
	Impressions int64 `db:"impressions" json:"impressions"`
	Clicks      int64 `db:"clicks" json:"clicks"`

	AdCost           float64 `db:"ad_cost" json:"ad_cost"`
	AdSales          float64 `db:"ad_sales" json:"ad_sales"`
	AdOrders         int64   `db:"ad_orders" json:"ad_orders"`
	CPC              float64 `db:"cpc" json:"cpc"`
	CPA              float64 `db:"cpa" json:"cpa"`
	ACOS             float64 `db:"acos" json:"acos"`
	AdConversionRate float64 `db:"ad_conversion_rate" json:"ad_conversion_rate"`

	ConversionRate  float64 `db:"conversion_rate" json:"conversion_rate"`
	CTR             float64 `db:"ctr" json:"ctr"`
	RevenuePerClick float64 `db:"revenue_per_click" json:"revenue_per_click"`

	Rating      float64 `db:"rating" json:"rating"`
	RatingCount int64   `db:"rating_count" json:"rating_count"`
	RefundRate  float64 `db:"refund_rate" json:"refund_rate"`

	ProfitAmount float64 `db:"profit_amount" json:"profit_amount"`
	ProfitRate   float64 `db:"profit_rate" json:"profit_rate"`
	AvgProfit    float64 `db:"avg_profit" json:"avg_profit"`

	FbaInventory   int64   `db:"fba_inventory" json:"fba_inventory"`
	TotalInventory int64   `db:"total_inventory" json:"total_inventory"`
	AvailableDays  float64 `db:"available_days" json:"available_days"`

	Title        string `db:"title" json:"title"`
	Brand        string `db:"brand" json:"brand"`
	CategoryName string `db:"category_name" json:"category_name"`
	DevName      string `db:"dev_name" json:"dev_name"`
	OperatorName string `db:"operator_name" json:"operator_name"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AnalyticsKey identifies a ProductAnalytics row.
type AnalyticsKey struct {
	ASIN     string
	SKU      string
	DataDate string
}

func (p *ProductAnalytics) Key() AnalyticsKey {
	return AnalyticsKey{ASIN: p.ASIN, SKU: p.SKU, DataDate: FormatDate(p.DataDate)}
}

// AnalyticsWindow is a 7-day aggregate of one (asin, sku, shop) used to
// build merge input rows.
type AnalyticsWindow struct {
	ASIN          string  `db:"asin"`
	SKU           string  `db:"sku"`
	ShopID        string  `db:"shop_id"`
	SalesQuantity int64   `db:"sales_quantity"`
	SalesAmount   float64 `db:"sales_amount"`
	OrderCount    int64   `db:"order_count"`
	Impressions   int64   `db:"impressions"`
	Clicks        int64   `db:"clicks"`
	AdCost        float64 `db:"ad_cost"`
	AdOrders      int64   `db:"ad_orders"`
	AdSales       float64 `db:"ad_sales"`
	ProfitAmount  float64 `db:"profit_amount"`
}
