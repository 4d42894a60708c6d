package repository

import (
	"context"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/model"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/postgres/postgrestest"
)

var (
	day = time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	t0  = time.Date(2024, 7, 2, 3, 0, 0, 0, time.UTC)
)

func points() []model.InventoryPoint {
	return []model.InventoryPoint{
		{
			ASIN: "B01", Marketplace: "EU", InventoryPointName: "B01-EU", Store: "EU aggregate",
			FbaAvailable: 220, FbaInbound: 110, LocalAvailable: 25, TotalInventory: 355,
			AverageSales: 22, TurnoverDays: 16.14, IsLowInventory: true, DailySalesAmount: 40,
			AdSpend: 12.5, MergeType: model.MergeTypeEU, StoreCount: 2,
			MergedStores: model.StringList{"01 StoreA", "02 StoreB"},
		},
		{
			ASIN: "B01", Marketplace: "US", InventoryPointName: "B01-US", Store: "US多店铺汇总",
			FbaAvailable: 0, TotalInventory: 0, IsOutOfStock: true, IsZeroSales: true,
			MergeType: model.MergeTypeNonEU, StoreCount: 2,
		},
		{
			ASIN: "B02", Marketplace: "US", InventoryPointName: "B02-US", Store: "01 Store-US",
			FbaAvailable: 40, TotalInventory: 40, TurnoverDays: 999, IsTurnoverExceeded: true,
			IsZeroSales: true, DailySalesAmount: 20, IsEffectivePoint: true, AdSpend: 3,
			MergeType: model.MergeTypeNonEU, StoreCount: 1,
		},
	}
}

func countHistory(t *testing.T, repo *PGRepository) int {
	var n int
	require.NoError(t, repo.DB.Get(&n, `SELECT count(*) FROM inventory_point_history`))
	return n
}

func TestReplaceByDateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	clk := testclock.NewClock(t0)
	repo := NewPGRepository(postgrestest.NewDB(t), clk)

	n, err := repo.ReplaceByDate(ctx, day, points(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	first, err := repo.List(ctx, day, "")
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, 3, countHistory(t, repo))

	clk.Advance(time.Hour)
	_, err = repo.ReplaceByDate(ctx, day, points(), "run-2")
	require.NoError(t, err)
	second, err := repo.List(ctx, day, "")
	require.NoError(t, err)
	require.Len(t, second, 3)
	assert.Equal(t, 6, countHistory(t, repo), "history grows by one snapshot per point per run")

	for i := range second {
		assert.True(t, second[i].UpdatedAt.After(first[i].UpdatedAt))
		assert.True(t, second[i].CreatedAt.Equal(first[i].CreatedAt))
		first[i].UpdatedAt, second[i].UpdatedAt = time.Time{}, time.Time{}
		first[i].CreatedAt, second[i].CreatedAt = time.Time{}, time.Time{}
	}
	assert.Equal(t, first, second)
	assert.Equal(t, model.StringList{"01 StoreA", "02 StoreB"}, second[0].MergedStores)
}

func TestReplaceByDateDropsStalePoints(t *testing.T) {
	ctx := context.Background()
	repo := NewPGRepository(postgrestest.NewDB(t), testclock.NewClock(t0))

	_, err := repo.ReplaceByDate(ctx, day, points(), "run-1")
	require.NoError(t, err)
	_, err = repo.ReplaceByDate(ctx, day, points()[:1], "run-2")
	require.NoError(t, err)

	got, err := repo.List(ctx, day, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "B01", got[0].ASIN)

	_, err = repo.ReplaceByDate(ctx, day, nil, "run-3")
	require.NoError(t, err)
	got, err = repo.List(ctx, day, "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReplaceByDateLeavesOtherDates(t *testing.T) {
	ctx := context.Background()
	repo := NewPGRepository(postgrestest.NewDB(t), testclock.NewClock(t0))

	_, err := repo.ReplaceByDate(ctx, day, points(), "run-1")
	require.NoError(t, err)
	_, err = repo.ReplaceByDate(ctx, day.AddDate(0, 0, 1), points()[:1], "run-2")
	require.NoError(t, err)

	got, err := repo.List(ctx, day, "US")
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, p := range got {
		assert.Equal(t, "US", p.Marketplace)
	}
}

func TestReplaceByDateRollsBackTogether(t *testing.T) {
	ctx := context.Background()
	repo := NewPGRepository(postgrestest.NewDB(t), testclock.NewClock(t0))

	_, err := repo.ReplaceByDate(ctx, day, points(), "run-1")
	require.NoError(t, err)

	dup := points()
	dup = append(dup, dup[0])
	_, err = repo.ReplaceByDate(ctx, day, dup, "run-2")
	require.Error(t, err)

	got, err := repo.List(ctx, day, "")
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, 3, countHistory(t, repo))
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	repo := NewPGRepository(postgrestest.NewDB(t), testclock.NewClock(t0))
	_, err := repo.ReplaceByDate(ctx, day, points(), "run-1")
	require.NoError(t, err)

	s, err := repo.Summary(ctx, day)
	require.NoError(t, err)
	require.Len(t, s.Regions, 2)

	eu, us := s.Regions[0], s.Regions[1]
	assert.Equal(t, "EU", eu.Marketplace)
	assert.EqualValues(t, 1, eu.Points)
	assert.EqualValues(t, 1, eu.LowInventory)
	assert.EqualValues(t, 355, eu.TotalInventory)

	assert.Equal(t, "US", us.Marketplace)
	assert.EqualValues(t, 2, us.Points)
	assert.EqualValues(t, 1, us.TurnoverExceeded)
	assert.EqualValues(t, 1, us.OutOfStock)
	assert.EqualValues(t, 2, us.ZeroSales)
	assert.EqualValues(t, 1, us.EffectivePoints)

	assert.EqualValues(t, 3, s.Total.Points)
	assert.EqualValues(t, 395, s.Total.TotalInventory)
	assert.InDelta(t, 60, s.Total.DailySalesAmount, 1e-9)
	assert.InDelta(t, 15.5, s.Total.AdSpend, 1e-9)

	empty, err := repo.Summary(ctx, day.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Empty(t, empty.Regions)
	assert.Zero(t, empty.Total.Points)
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	clk := testclock.NewClock(t0)
	repo := NewPGRepository(postgrestest.NewDB(t), clk)

	for i := range 3 {
		_, err := repo.ReplaceByDate(ctx, day.AddDate(0, 0, i), points(), "run")
		require.NoError(t, err)
		clk.Advance(time.Hour)
	}

	rows, err := repo.History(ctx, "B01", "EU", day.AddDate(0, 0, 1), day.AddDate(0, 0, 2))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].DataDate.Equal(day.AddDate(0, 0, 1)))
	assert.EqualValues(t, 355, rows[0].TotalInventory)

	deleted, err := repo.DeleteHistoryBefore(ctx, day.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.EqualValues(t, 6, deleted)
}
