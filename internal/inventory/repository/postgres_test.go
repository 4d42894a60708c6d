package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/model"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/postgres/postgrestest"
)

var today = time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

func TestUpsertFbaInventory(t *testing.T) {
	ctx := context.Background()
	repo := NewPGRepository(postgrestest.NewDB(t), nil)

	row := model.FbaInventory{
		SKU: "SKU-1", ASIN: "B08A", MarketplaceID: "ATVPDKIKX0DER", ShopID: "12",
		Available: 10, InboundShipped: 4, TotalInventory: 14, SnapshotDate: today,
	}
	_, err := repo.UpsertFbaInventory(ctx, []model.FbaInventory{row})
	require.NoError(t, err)

	row.Available, row.TotalInventory = 3, 7
	row.SnapshotDate = today.AddDate(0, 0, 1)
	_, err = repo.UpsertFbaInventory(ctx, []model.FbaInventory{row})
	require.NoError(t, err)

	rows, err := repo.LatestFba(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 3, rows[0].Available)
	assert.EqualValues(t, 7, rows[0].TotalInventory)
	assert.True(t, rows[0].SnapshotDate.Equal(today.AddDate(0, 0, 1)))

	deleted, err := repo.DeleteFbaBefore(ctx, today.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestLatestFbaIgnoresOlderSnapshots(t *testing.T) {
	ctx := context.Background()
	repo := NewPGRepository(postgrestest.NewDB(t), nil)

	_, err := repo.UpsertFbaInventory(ctx, []model.FbaInventory{
		{SKU: "SOLD-OUT", MarketplaceID: "ATVPDKIKX0DER", ShopID: "12", Available: 50, TotalInventory: 50, SnapshotDate: today},
		{SKU: "STOCKED", MarketplaceID: "ATVPDKIKX0DER", ShopID: "12", Available: 9, TotalInventory: 9, SnapshotDate: today},
	})
	require.NoError(t, err)

	// next day's feed omits the sold-out SKU
	_, err = repo.UpsertFbaInventory(ctx, []model.FbaInventory{
		{SKU: "STOCKED", MarketplaceID: "ATVPDKIKX0DER", ShopID: "12", Available: 4, TotalInventory: 4, SnapshotDate: today.AddDate(0, 0, 1)},
	})
	require.NoError(t, err)

	rows, err := repo.LatestFba(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "STOCKED", rows[0].SKU)
	assert.EqualValues(t, 4, rows[0].Available)
}

func TestLatestFbaEmpty(t *testing.T) {
	rows, err := NewPGRepository(postgrestest.NewDB(t), nil).LatestFba(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestWarehouseStockBySKU(t *testing.T) {
	ctx := context.Background()
	repo := NewPGRepository(postgrestest.NewDB(t), nil)

	cost := 2.5
	value := 25.0
	expiry := today.AddDate(1, 0, 0)
	_, err := repo.UpsertInventoryDetails(ctx, []model.InventoryDetails{
		{WarehouseID: "W1", CommodityID: "C1", CommoditySKU: "SKU-1", Quantity: 10, Available: 8,
			CostPrice: &cost, TotalValue: &value, ExpiryDate: &expiry, SnapshotDate: today},
		{WarehouseID: "W2", CommodityID: "C1", CommoditySKU: "SKU-1", Quantity: 5, Available: 5, SnapshotDate: today},
		{WarehouseID: "W2", CommodityID: "C9", CommoditySKU: "", Quantity: 1, Available: 1, SnapshotDate: today},
	})
	require.NoError(t, err)

	// re-sync of W1 replaces, not adds
	_, err = repo.UpsertInventoryDetails(ctx, []model.InventoryDetails{
		{WarehouseID: "W1", CommodityID: "C1", CommoditySKU: "SKU-1", Quantity: 10, Available: 6, SnapshotDate: today},
	})
	require.NoError(t, err)

	stock, err := repo.WarehouseStockBySKU(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.WarehouseStock{{SKU: "SKU-1", Available: 11}}, stock)
}
