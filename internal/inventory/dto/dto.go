package dto

import "github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/sellfox"

type FbaPageRequest struct {
	PageNo         int    `json:"pageNo"`
	PageSize       int    `json:"pageSize"`
	HideZero       bool   `json:"hideZero"`
	HideDeletedPrd bool   `json:"hideDeletedPrd"`
	Currency       string `json:"currency"`
}

type WarehousePageRequest struct {
	PageNo   int  `json:"pageNo"`
	PageSize int  `json:"pageSize"`
	IsHidden bool `json:"isHidden"`
}

// RawFba is one FBA stock row as the ERP returns it. TotalInventory is nil
// when the ERP omits it.
type RawFba struct {
	SKU           sellfox.First `json:"sku"`
	ASIN          sellfox.First `json:"asin"`
	FNSKU         sellfox.First `json:"fnsku"`
	MarketplaceID sellfox.First `json:"marketplaceId"`
	ShopID        sellfox.First `json:"shopId"`
	ShopName      sellfox.First `json:"shopName"`

	Available              sellfox.Int  `json:"available"`
	ReservedCustomerOrders sellfox.Int  `json:"reservedCustomerorders"`
	InboundWorking         sellfox.Int  `json:"inboundWorking"`
	InboundShipped         sellfox.Int  `json:"inboundShipped"`
	InboundReceiving       sellfox.Int  `json:"inboundReceiving"`
	Unfulfillable          sellfox.Int  `json:"unfulfillable"`
	TotalInventory         *sellfox.Int `json:"totalInventory"`
}

// RawWarehouseItem is one warehouse stock row as the ERP returns it.
type RawWarehouseItem struct {
	WarehouseID   sellfox.First `json:"warehouseId"`
	WarehouseName sellfox.First `json:"warehouseName"`
	CommodityID   sellfox.First `json:"commodityId"`
	CommoditySKU  sellfox.First `json:"commoditySku"`
	CommodityName sellfox.First `json:"commodityName"`

	Quantity  sellfox.Int    `json:"quantity"`
	Available sellfox.Int    `json:"availableQuantity"`
	Locked    sellfox.Int    `json:"lockedQuantity"`
	InTransit sellfox.Int    `json:"transitQuantity"`
	CostPrice *sellfox.Float `json:"costPrice"`
	Expiry    string         `json:"expiryDate"`
}
