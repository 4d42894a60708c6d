package dto

import "github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/sellfox"

// PageListRequest is the body of the analytics page-list endpoint.
type PageListRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Currency  string `json:"currency"`
	PageNo    int    `json:"pageNo"`
	PageSize  int    `json:"pageSize"`
}

// RawAnalytics is one row as the ERP returns it. Identifier fields may be
// strings or lists; numerics may be quoted, blank or garbled.
type RawAnalytics struct {
	ASIN       sellfox.First `json:"asinList"`
	SKU        sellfox.First `json:"skuList"`
	ParentASIN sellfox.First `json:"parentAsinList"`
	MSKU       sellfox.First `json:"mskuList"`
	SPU        sellfox.First `json:"spuList"`
	ProductID  sellfox.First `json:"productIdList"`

	MarketplaceID sellfox.First `json:"marketplaceIdList"`
	ShopID        sellfox.First `json:"shopIdList"`
	ShopName      sellfox.First `json:"shopNameList"`
	Currency      string        `json:"currency"`
	DataDate      string        `json:"date"`

	SalesAmount   sellfox.Float `json:"salesAmount"`
	SalesQuantity sellfox.Int   `json:"salesQuantity"`
	OrderCount    sellfox.Int   `json:"orderQuantity"`

	Sessions    sellfox.Int `json:"sessions"`
	PageViews   sellfox.Int `json:"pageViews"`
	Impressions sellfox.Int `json:"impressions"`
	Clicks      sellfox.Int `json:"clicks"`

	AdCost           sellfox.Float   `json:"adCost"`
	AdSales          sellfox.Float   `json:"adSales"`
	AdOrders         sellfox.Int     `json:"adOrderQuantity"`
	CPC              sellfox.Float   `json:"cpc"`
	CPA              sellfox.Float   `json:"cpa"`
	ACOS             sellfox.Percent `json:"acos"`
	AdConversionRate sellfox.Percent `json:"adConversionRate"`
	ConversionRate   sellfox.Percent `json:"conversionRate"`

	Rating      sellfox.Float   `json:"rating"`
	RatingCount sellfox.Int     `json:"ratingCount"`
	RefundRate  sellfox.Percent `json:"refundRate"`

	ProfitAmount sellfox.Float   `json:"profitPrice"`
	ProfitRate   sellfox.Percent `json:"profitRate"`
	AvgProfit    sellfox.Float   `json:"avgProfitPrice"`

	FbaInventory   sellfox.Int   `json:"fbaInventory"`
	TotalInventory sellfox.Int   `json:"totalInventory"`
	AvailableDays  sellfox.Float `json:"availableDays"`

	Title        sellfox.First `json:"title"`
	Brand        sellfox.First `json:"brandName"`
	CategoryName sellfox.First `json:"categoryName"`
	DevName      sellfox.First `json:"devName"`
	OperatorName sellfox.First `json:"operatorName"`
}
