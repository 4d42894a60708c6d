package model

import "time"

// FbaInventory is one FBA stock row, unique per (sku, marketplace_id, shop_id).
type FbaInventory struct {
	ID                     int64     `db:"id"`
	SKU                    string    `db:"sku"`
	ASIN                   string    `db:"asin"`
	FNSKU                  string    `db:"fnsku"`
	MarketplaceID          string    `db:"marketplace_id"`
	ShopID                 string    `db:"shop_id"`
	ShopName               string    `db:"shop_name"`
	Available              int64     `db:"available"`
	ReservedCustomerOrders int64     `db:"reserved_customerorders"`
	InboundWorking         int64     `db:"inbound_working"`
	InboundShipped         int64     `db:"inbound_shipped"`
	InboundReceiving       int64     `db:"inbound_receiving"`
	Unfulfillable          int64     `db:"unfulfillable"`
	TotalInventory         int64     `db:"total_inventory"`
	SnapshotDate           time.Time `db:"snapshot_date"`
	UpdatedAt              time.Time `db:"updated_at"`
}

// ComponentSum is the total implied by the individual quantity fields.
func (f *FbaInventory) ComponentSum() int64 {
	return f.Available + f.ReservedCustomerOrders + f.InboundWorking +
		f.InboundShipped + f.InboundReceiving + f.Unfulfillable
}

// Inbound is stock on its way into the fulfilment network.
func (f *FbaInventory) Inbound() int64 {
	return f.InboundWorking + f.InboundShipped + f.InboundReceiving
}

// InventoryDetails is one warehouse stock row, unique per (warehouse_id, commodity_id).
type InventoryDetails struct {
	ID            int64      `db:"id"`
	WarehouseID   string     `db:"warehouse_id"`
	WarehouseName string     `db:"warehouse_name"`
	CommodityID   string     `db:"commodity_id"`
	CommoditySKU  string     `db:"commodity_sku"`
	CommodityName string     `db:"commodity_name"`
	Quantity      int64      `db:"quantity"`
	Available     int64      `db:"available"`
	Locked        int64      `db:"locked"`
	InTransit     int64      `db:"in_transit"`
	CostPrice     *float64   `db:"cost_price"`
	TotalValue    *float64   `db:"total_value"`
	ExpiryDate    *time.Time `db:"expiry_date"`
	SnapshotDate  time.Time  `db:"snapshot_date"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

// WarehouseStock is warehouse availability summed per sku.
type WarehouseStock struct {
	SKU       string `db:"commodity_sku"`
	Available int64  `db:"available"`
}
