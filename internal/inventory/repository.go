package inventory

import (
	"context"
	"time"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/model"
)

type Repository interface {
	// FBA stock, keyed by (sku, marketplace_id, shop_id)
	UpsertFbaInventory(ctx context.Context, rows []model.FbaInventory) (int, error)
	LatestFba(ctx context.Context) ([]model.FbaInventory, error)
	DeleteFbaBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Warehouse stock, keyed by (warehouse_id, commodity_id)
	UpsertInventoryDetails(ctx context.Context, rows []model.InventoryDetails) (int, error)
	WarehouseStockBySKU(ctx context.Context) ([]model.WarehouseStock, error)
}
