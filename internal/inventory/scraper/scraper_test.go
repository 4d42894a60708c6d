package scraper

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/apperr"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/inventory/dto"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/logger"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/sellfox"
)

var today = time.Date(2024, 7, 1, 6, 0, 0, 0, time.UTC)

type fakeAPI struct {
	payload string
	bodies  []any
	paths   []string
}

func (f *fakeAPI) Post(_ context.Context, path string, body, out any) error {
	f.paths = append(f.paths, path)
	f.bodies = append(f.bodies, body)
	return json.Unmarshal([]byte(f.payload), out)
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestFbaTotalComputedWhenMissing(t *testing.T) {
	var raw dto.RawFba
	require.NoError(t, json.Unmarshal([]byte(`{
		"sku": "SKU-1", "marketplaceId": "ATVPDKIKX0DER", "shopId": "12",
		"available": 10, "reservedCustomerorders": "2", "inboundWorking": 3,
		"inboundShipped": 4, "inboundReceiving": 5, "unfulfillable": 1
	}`), &raw))
	row := FbaToModel(raw, today)
	assert.EqualValues(t, 25, row.TotalInventory)
	assert.EqualValues(t, 12, row.Inbound())

	require.NoError(t, json.Unmarshal([]byte(`{"sku": "SKU-1", "available": 10, "totalInventory": 40}`), &raw))
	assert.EqualValues(t, 40, FbaToModel(raw, today).TotalInventory)
}

func TestFbaFetchCurrent(t *testing.T) {
	api := &fakeAPI{payload: `{"totalPage": 1, "rows": [
		{"sku": "SKU-1", "asin": "B08A", "marketplaceId": "ATVPDKIKX0DER", "shopId": "12", "available": 7},
		{"sku": "", "marketplaceId": "ATVPDKIKX0DER", "shopId": "12", "available": 3},
		{"sku": "SKU-2", "marketplaceId": "A1PA6795UKMFR9", "shopId": "13", "available": -4}
	]}`}
	s := NewFbaScraper(api, 0, sellfox.PageOptions{Sleep: noSleep}, logger.NewNop())

	var valid, invalid int
	for row, err := range s.FetchCurrent(context.Background(), today) {
		if err != nil {
			assert.True(t, errors.Is(err, apperr.ErrValidation))
			invalid++
			continue
		}
		valid++
		assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), row.SnapshotDate)
	}
	assert.Equal(t, 1, valid)
	assert.Equal(t, 2, invalid)

	require.Len(t, api.bodies, 1)
	assert.Equal(t, FbaPagePath, api.paths[0])
	assert.Equal(t, dto.FbaPageRequest{PageNo: 1, PageSize: 200, HideZero: true, HideDeletedPrd: true, Currency: "USD"}, api.bodies[0])
}

func TestFbaFetchWithoutValidation(t *testing.T) {
	api := &fakeAPI{payload: `{"totalPage": 1, "rows": [
		{"sku": "", "marketplaceId": "ATVPDKIKX0DER", "shopId": "12", "available": 3},
		{"sku": "SKU-2", "marketplaceId": "A1PA6795UKMFR9", "shopId": "13", "available": -4}
	]}`}
	s := NewFbaScraper(api, 0, sellfox.PageOptions{Sleep: noSleep}, logger.NewNop()).WithValidation(false)

	var skus []string
	var invalid int
	for row, err := range s.FetchCurrent(context.Background(), today) {
		if err != nil {
			invalid++
			continue
		}
		skus = append(skus, row.SKU)
	}
	assert.Equal(t, []string{"SKU-2"}, skus)
	assert.Equal(t, 1, invalid)
}

func TestWarehouseMapping(t *testing.T) {
	var raw dto.RawWarehouseItem
	require.NoError(t, json.Unmarshal([]byte(`{
		"warehouseId": "W1", "commodityId": "C1", "commoditySku": "SKU-1",
		"quantity": 12, "availableQuantity": 9, "costPrice": "3.335", "expiryDate": "2025-01-31 00:00:00"
	}`), &raw))
	row := WarehouseToModel(raw, today)

	require.NotNil(t, row.CostPrice)
	require.NotNil(t, row.TotalValue)
	assert.Equal(t, 3.34, *row.CostPrice)
	assert.Equal(t, 40.08, *row.TotalValue)
	require.NotNil(t, row.ExpiryDate)
	assert.Equal(t, "2025-01-31", row.ExpiryDate.Format("2006-01-02"))

	require.NoError(t, json.Unmarshal([]byte(`{"warehouseId": "W1", "commodityId": "C2", "quantity": 1}`), &raw))
	bare := WarehouseToModel(raw, today)
	assert.Nil(t, bare.CostPrice)
	assert.Nil(t, bare.TotalValue)
	assert.Nil(t, bare.ExpiryDate)
}

func TestWarehouseFetchSendsHiddenFlag(t *testing.T) {
	api := &fakeAPI{payload: `{"totalPage": 1, "rows": [{"warehouseId": "W1", "commodityId": "C1", "quantity": 2}]}`}
	s := NewWarehouseScraper(api, 100, sellfox.PageOptions{Sleep: noSleep}, logger.NewNop())

	n := 0
	for _, err := range s.FetchCurrent(context.Background(), today) {
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 1, n)
	assert.Equal(t, WarehousePagePath, api.paths[0])
	assert.Equal(t, dto.WarehousePageRequest{PageNo: 1, PageSize: 100, IsHidden: true}, api.bodies[0])
}
