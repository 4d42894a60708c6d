package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/juju/errors"
)

type MergeType string

const (
	MergeTypeEU    MergeType = "eu_merged"
	MergeTypeNonEU MergeType = "non_eu_merged"
)

// RegionEU is the canonical marketplace label of merged EU points.
const RegionEU = "EU"

// InventoryPoint is one ASIN in one logical region on one day.
type InventoryPoint struct {
	ASIN               string    `db:"asin" json:"asin"`
	Marketplace        string    `db:"marketplace" json:"marketplace"`
	DataDate           time.Time `db:"data_date" json:"data_date"`
	InventoryPointName string    `db:"inventory_point_name" json:"inventory_point_name"`
	Store              string    `db:"store" json:"store"`

	ProductName  string  `db:"product_name" json:"product_name"`
	SKU          string  `db:"sku" json:"sku"`
	Category     string  `db:"category" json:"category"`
	SalesPerson  string  `db:"sales_person" json:"sales_person"`
	DevName      string  `db:"dev_name" json:"dev_name"`
	AveragePrice string  `db:"average_price" json:"average_price"`
	SalesAmount  string  `db:"sales_amount" json:"sales_amount"`
	NetSales     float64 `db:"net_sales" json:"net_sales"`
	RefundRate   float64 `db:"refund_rate" json:"refund_rate"`

	FbaAvailable   int64 `db:"fba_available" json:"fba_available"`
	FbaInbound     int64 `db:"fba_inbound" json:"fba_inbound"`
	FbaSellable    int64 `db:"fba_sellable" json:"fba_sellable"`
	FbaUnsellable  int64 `db:"fba_unsellable" json:"fba_unsellable"`
	LocalAvailable int64 `db:"local_available" json:"local_available"`
	InboundShipped int64 `db:"inbound_shipped" json:"inbound_shipped"`
	TotalInventory int64 `db:"total_inventory" json:"total_inventory"`

	Sales7Days        int64   `db:"sales_7days" json:"sales_7days"`
	TotalSales        float64 `db:"total_sales" json:"total_sales"`
	AverageSales      float64 `db:"average_sales" json:"average_sales"`
	OrderCount        int64   `db:"order_count" json:"order_count"`
	PromotionalOrders int64   `db:"promotional_orders" json:"promotional_orders"`
	DailySalesAmount  float64 `db:"daily_sales_amount" json:"daily_sales_amount"`

	AdImpressions int64   `db:"ad_impressions" json:"ad_impressions"`
	AdClicks      int64   `db:"ad_clicks" json:"ad_clicks"`
	AdSpend       float64 `db:"ad_spend" json:"ad_spend"`
	AdOrderCount  int64   `db:"ad_order_count" json:"ad_order_count"`
	AdSales       float64 `db:"ad_sales" json:"ad_sales"`
	AdCTR         float64 `db:"ad_ctr" json:"ad_ctr"`
	AdCVR         float64 `db:"ad_cvr" json:"ad_cvr"`
	AdCPC         float64 `db:"ad_cpc" json:"ad_cpc"`
	AdROAS        float64 `db:"ad_roas" json:"ad_roas"`
	ACOAS         float64 `db:"acoas" json:"acoas"`

	TurnoverDays       float64 `db:"turnover_days" json:"turnover_days"`
	IsTurnoverExceeded bool    `db:"is_turnover_exceeded" json:"is_turnover_exceeded"`
	IsLowInventory     bool    `db:"is_low_inventory" json:"is_low_inventory"`
	IsOutOfStock       bool    `db:"is_out_of_stock" json:"is_out_of_stock"`
	IsZeroSales        bool    `db:"is_zero_sales" json:"is_zero_sales"`
	IsEffectivePoint   bool    `db:"is_effective_point" json:"is_effective_point"`

	MergeType    MergeType  `db:"merge_type" json:"merge_type"`
	StoreCount   int        `db:"store_count" json:"store_count"`
	MergedStores StringList `db:"merged_stores" json:"merged_stores"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// InventoryPointHistory is an append-only summary snapshot of a point.
type InventoryPointHistory struct {
	ASIN             string    `db:"asin" json:"asin"`
	Marketplace      string    `db:"marketplace" json:"marketplace"`
	DataDate         time.Time `db:"data_date" json:"data_date"`
	RunID            string    `db:"run_id" json:"run_id"`
	TotalInventory   int64     `db:"total_inventory" json:"total_inventory"`
	AverageSales     float64   `db:"average_sales" json:"average_sales"`
	TurnoverDays     float64   `db:"turnover_days" json:"turnover_days"`
	DailySalesAmount float64   `db:"daily_sales_amount" json:"daily_sales_amount"`
	AdSpend          float64   `db:"ad_spend" json:"ad_spend"`
	AdSales          float64   `db:"ad_sales" json:"ad_sales"`
	ACOAS            float64   `db:"acoas" json:"acoas"`
	SnapshotAt       time.Time `db:"snapshot_at" json:"snapshot_at"`
}

func (p *InventoryPoint) HistorySnapshot(runID string, at time.Time) InventoryPointHistory {
	return InventoryPointHistory{
		ASIN:             p.ASIN,
		Marketplace:      p.Marketplace,
		DataDate:         p.DataDate,
		RunID:            runID,
		TotalInventory:   p.TotalInventory,
		AverageSales:     p.AverageSales,
		TurnoverDays:     p.TurnoverDays,
		DailySalesAmount: p.DailySalesAmount,
		AdSpend:          p.AdSpend,
		AdSales:          p.AdSales,
		ACOAS:            p.ACOAS,
		SnapshotAt:       at,
	}
}

// MergeStats describes one merge run.
type MergeStats struct {
	DataDate         time.Time `json:"data_date"`
	OriginalCount    int       `json:"original_count"`
	MergedCount      int       `json:"merged_count"`
	EUPoints         int       `json:"eu_points"`
	NonEUPoints      int       `json:"non_eu_points"`
	SkippedRows      int       `json:"skipped_rows"`
	CompressionRatio float64   `json:"compression_ratio"`
	Timestamp        time.Time `json:"timestamp"`
}

// RegionSummary is one row of the grouped merge summary.
type RegionSummary struct {
	Marketplace      string  `db:"marketplace" json:"marketplace"`
	Points           int64   `db:"points" json:"points"`
	TurnoverExceeded int64   `db:"turnover_exceeded" json:"turnover_exceeded"`
	LowInventory     int64   `db:"low_inventory" json:"low_inventory"`
	OutOfStock       int64   `db:"out_of_stock" json:"out_of_stock"`
	ZeroSales        int64   `db:"zero_sales" json:"zero_sales"`
	EffectivePoints  int64   `db:"effective_points" json:"effective_points"`
	TotalInventory   int64   `db:"total_inventory" json:"total_inventory"`
	DailySalesAmount float64 `db:"daily_sales_amount" json:"daily_sales_amount"`
	AdSpend          float64 `db:"ad_spend" json:"ad_spend"`
}

type MergeSummary struct {
	DataDate time.Time       `json:"data_date"`
	Regions  []RegionSummary `json:"regions"`
	Total    RegionSummary   `json:"total"`
}

// StringList is stored as a JSON array.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, errors.Trace(err)
	}
	return string(b), nil
}

func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return errors.Errorf("cannot scan %T into StringList", src)
	}
	if len(raw) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(raw, (*[]string)(l))
}
