package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/juju/clock"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/model"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/postgres"
)

const insertInventoryPoint = `
    INSERT INTO inventory_points (
        asin, marketplace, data_date, inventory_point_name, store,
        product_name, sku, category, sales_person, dev_name,
        average_price, sales_amount, net_sales, refund_rate,
        fba_available, fba_inbound, fba_sellable, fba_unsellable,
        local_available, inbound_shipped, total_inventory,
        sales_7days, total_sales, average_sales, order_count, promotional_orders, daily_sales_amount,
        ad_impressions, ad_clicks, ad_spend, ad_order_count, ad_sales,
        ad_ctr, ad_cvr, ad_cpc, ad_roas, acoas,
        turnover_days, is_turnover_exceeded, is_low_inventory, is_out_of_stock,
        is_zero_sales, is_effective_point,
        merge_type, store_count, merged_stores,
        created_at, updated_at
    )
    VALUES (
        :asin, :marketplace, :data_date, :inventory_point_name, :store,
        :product_name, :sku, :category, :sales_person, :dev_name,
        :average_price, :sales_amount, :net_sales, :refund_rate,
        :fba_available, :fba_inbound, :fba_sellable, :fba_unsellable,
        :local_available, :inbound_shipped, :total_inventory,
        :sales_7days, :total_sales, :average_sales, :order_count, :promotional_orders, :daily_sales_amount,
        :ad_impressions, :ad_clicks, :ad_spend, :ad_order_count, :ad_sales,
        :ad_ctr, :ad_cvr, :ad_cpc, :ad_roas, :acoas,
        :turnover_days, :is_turnover_exceeded, :is_low_inventory, :is_out_of_stock,
        :is_zero_sales, :is_effective_point,
        :merge_type, :store_count, :merged_stores,
        :created_at, :updated_at
    )
`

const insertHistory = `
    INSERT INTO inventory_point_history (
        asin, marketplace, data_date, run_id,
        total_inventory, average_sales, turnover_days, daily_sales_amount,
        ad_spend, ad_sales, acoas, snapshot_at
    )
    VALUES (
        :asin, :marketplace, :data_date, :run_id,
        :total_inventory, :average_sales, :turnover_days, :daily_sales_amount,
        :ad_spend, :ad_sales, :acoas, :snapshot_at
    )
`

type PGRepository struct {
	DB    *sqlx.DB
	clock clock.Clock
}

func NewPGRepository(db *sqlx.DB, clk clock.Clock) *PGRepository {
	if clk == nil {
		clk = clock.WallClock
	}
	return &PGRepository{DB: db, clock: clk}
}

type pointKey struct{ asin, marketplace string }

func (r *PGRepository) ReplaceByDate(ctx context.Context, date time.Time, points []model.InventoryPoint, runID string) (int, error) {
	date = model.DateOf(date)
	now := r.clock.Now().UTC()

	err := postgres.WithTx(ctx, r.DB, "replace inventory_points", func(tx *sqlx.Tx) error {
		// A re-run keeps the created_at of points that already existed.
		var existing []struct {
			ASIN        string    `db:"asin"`
			Marketplace string    `db:"marketplace"`
			CreatedAt   time.Time `db:"created_at"`
		}
		err := tx.SelectContext(ctx, &existing,
			tx.Rebind(`SELECT asin, marketplace, created_at FROM inventory_points WHERE data_date = ?`), date)
		if err != nil {
			return err
		}
		created := make(map[pointKey]time.Time, len(existing))
		for _, e := range existing {
			created[pointKey{e.ASIN, e.Marketplace}] = e.CreatedAt.UTC()
		}

		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM inventory_points WHERE data_date = ?`), date); err != nil {
			return err
		}
		if len(points) == 0 {
			return nil
		}

		pointStmt, err := tx.PrepareNamedContext(ctx, insertInventoryPoint)
		if err != nil {
			return err
		}
		defer pointStmt.Close()

		historyStmt, err := tx.PrepareNamedContext(ctx, insertHistory)
		if err != nil {
			return err
		}
		defer historyStmt.Close()

		for i := range points {
			p := points[i]
			p.DataDate = date
			p.CreatedAt = now
			if at, ok := created[pointKey{p.ASIN, p.Marketplace}]; ok {
				p.CreatedAt = at
			}
			p.UpdatedAt = now
			if _, err := pointStmt.ExecContext(ctx, &p); err != nil {
				return err
			}
			snap := p.HistorySnapshot(runID, now)
			if _, err := historyStmt.ExecContext(ctx, &snap); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(points), nil
}

func (r *PGRepository) List(ctx context.Context, date time.Time, marketplace string) ([]model.InventoryPoint, error) {
	query := `SELECT * FROM inventory_points WHERE data_date = ?`
	args := []any{model.DateOf(date)}
	if marketplace != "" {
		query += ` AND marketplace = ?`
		args = append(args, marketplace)
	}
	query += ` ORDER BY asin, marketplace`

	var points []model.InventoryPoint
	if err := r.DB.SelectContext(ctx, &points, r.DB.Rebind(query), args...); err != nil {
		return nil, postgres.Classify("select inventory_points", err)
	}
	return points, nil
}

func (r *PGRepository) Summary(ctx context.Context, date time.Time) (*model.MergeSummary, error) {
	date = model.DateOf(date)
	var regions []model.RegionSummary
	err := r.DB.SelectContext(ctx, &regions, r.DB.Rebind(`
        SELECT
            marketplace,
            COUNT(*) AS points,
            SUM(CASE WHEN is_turnover_exceeded THEN 1 ELSE 0 END) AS turnover_exceeded,
            SUM(CASE WHEN is_low_inventory THEN 1 ELSE 0 END) AS low_inventory,
            SUM(CASE WHEN is_out_of_stock THEN 1 ELSE 0 END) AS out_of_stock,
            SUM(CASE WHEN is_zero_sales THEN 1 ELSE 0 END) AS zero_sales,
            SUM(CASE WHEN is_effective_point THEN 1 ELSE 0 END) AS effective_points,
            COALESCE(SUM(total_inventory), 0) AS total_inventory,
            COALESCE(SUM(daily_sales_amount), 0) AS daily_sales_amount,
            COALESCE(SUM(ad_spend), 0) AS ad_spend
        FROM inventory_points
        WHERE data_date = ?
        GROUP BY marketplace
        ORDER BY marketplace
    `), date)
	if err != nil {
		return nil, postgres.Classify("summarize inventory_points", err)
	}

	summary := &model.MergeSummary{DataDate: date, Regions: regions}
	summary.Total.Marketplace = "ALL"
	for _, reg := range regions {
		t := &summary.Total
		t.Points += reg.Points
		t.TurnoverExceeded += reg.TurnoverExceeded
		t.LowInventory += reg.LowInventory
		t.OutOfStock += reg.OutOfStock
		t.ZeroSales += reg.ZeroSales
		t.EffectivePoints += reg.EffectivePoints
		t.TotalInventory += reg.TotalInventory
		t.DailySalesAmount += reg.DailySalesAmount
		t.AdSpend += reg.AdSpend
	}
	return summary, nil
}

func (r *PGRepository) History(ctx context.Context, asin, marketplace string, from, to time.Time) ([]model.InventoryPointHistory, error) {
	var rows []model.InventoryPointHistory
	err := r.DB.SelectContext(ctx, &rows, r.DB.Rebind(`
        SELECT asin, marketplace, data_date, run_id,
               total_inventory, average_sales, turnover_days, daily_sales_amount,
               ad_spend, ad_sales, acoas, snapshot_at
        FROM inventory_point_history
        WHERE asin = ? AND marketplace = ? AND data_date >= ? AND data_date <= ?
        ORDER BY data_date, snapshot_at, id
    `), asin, marketplace, model.DateOf(from), model.DateOf(to))
	if err != nil {
		return nil, postgres.Classify("select inventory_point_history", err)
	}
	return rows, nil
}

func (r *PGRepository) DeleteHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, r.DB.Rebind(`DELETE FROM inventory_point_history WHERE data_date < ?`), model.DateOf(cutoff))
	if err != nil {
		return 0, postgres.Classify("delete inventory_point_history", err)
	}
	return res.RowsAffected()
}
