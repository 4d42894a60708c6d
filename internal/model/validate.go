package model

import "github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/apperr"

type int64Field struct {
	name  string
	value int64
}

// ValidateKeys checks only the fields the table key is built from.
func (p *ProductAnalytics) ValidateKeys() error {
	switch {
	case p.ASIN == "":
		return apperr.Invalid("asin", "missing")
	case p.SKU == "":
		return apperr.Invalid("sku", "missing for asin %s", p.ASIN)
	case p.DataDate.IsZero():
		return apperr.Invalid("data_date", "missing for asin %s", p.ASIN)
	}
	return nil
}

// Validate reports the first field that breaks a ProductAnalytics invariant.
func (p *ProductAnalytics) Validate() error {
	if err := p.ValidateKeys(); err != nil {
		return err
	}

	for _, f := range []struct {
		name  string
		value float64
	}{
		{"sales_amount", p.SalesAmount},
		{"sales_quantity", float64(p.SalesQuantity)},
		{"order_count", float64(p.OrderCount)},
		{"ad_cost", p.AdCost},
		{"ad_sales", p.AdSales},
		{"ad_orders", float64(p.AdOrders)},
		{"acos", p.ACOS},
		{"rating_count", float64(p.RatingCount)},
		{"fba_inventory", float64(p.FbaInventory)},
		{"total_inventory", float64(p.TotalInventory)},
		{"available_days", p.AvailableDays},
	} {
		if f.value < 0 {
			return apperr.Invalid(f.name, "negative value %v for asin %s", f.value, p.ASIN)
		}
	}

	if p.AdConversionRate < 0 || p.AdConversionRate > 1 {
		return apperr.Invalid("ad_conversion_rate", "%v outside [0, 1] for asin %s", p.AdConversionRate, p.ASIN)
	}
	if p.Rating < 0 || p.Rating > 5 {
		return apperr.Invalid("rating", "%v outside [0, 5] for asin %s", p.Rating, p.ASIN)
	}
	return nil
}

func (f *FbaInventory) ValidateKeys() error {
	switch {
	case f.SKU == "":
		return apperr.Invalid("sku", "missing")
	case f.MarketplaceID == "":
		return apperr.Invalid("marketplace_id", "missing for sku %s", f.SKU)
	case f.ShopID == "":
		return apperr.Invalid("shop_id", "missing for sku %s", f.SKU)
	}
	return nil
}

func (f *FbaInventory) Validate() error {
	if err := f.ValidateKeys(); err != nil {
		return err
	}
	for _, c := range []int64Field{
		{"available", f.Available},
		{"reserved_customerorders", f.ReservedCustomerOrders},
		{"inbound_working", f.InboundWorking},
		{"inbound_shipped", f.InboundShipped},
		{"inbound_receiving", f.InboundReceiving},
		{"unfulfillable", f.Unfulfillable},
		{"total_inventory", f.TotalInventory},
	} {
		if c.value < 0 {
			return apperr.Invalid(c.name, "negative value %d for sku %s", c.value, f.SKU)
		}
	}
	return nil
}

func (d *InventoryDetails) ValidateKeys() error {
	switch {
	case d.WarehouseID == "":
		return apperr.Invalid("warehouse_id", "missing")
	case d.CommodityID == "":
		return apperr.Invalid("commodity_id", "missing in warehouse %s", d.WarehouseID)
	}
	return nil
}

func (d *InventoryDetails) Validate() error {
	if err := d.ValidateKeys(); err != nil {
		return err
	}
	for _, c := range []int64Field{
		{"quantity", d.Quantity},
		{"available", d.Available},
		{"locked", d.Locked},
		{"in_transit", d.InTransit},
	} {
		if c.value < 0 {
			return apperr.Invalid(c.name, "negative value %d for commodity %s", c.value, d.CommodityID)
		}
	}
	if d.CostPrice != nil && *d.CostPrice < 0 {
		return apperr.Invalid("cost_price", "negative for commodity %s", d.CommodityID)
	}
	return nil
}
