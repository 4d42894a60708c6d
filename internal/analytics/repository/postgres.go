package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/juju/clock"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/model"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/postgres"
)

const upsertProductAnalytics = `
    INSERT INTO product_analytics (
        asin, sku, parent_asin, msku, spu, product_id, data_date,
        marketplace_id, shop_id, shop_name, currency,
        sales_amount, sales_quantity, order_count,
        sessions, page_views, impressions, clicks,
        ad_cost, ad_sales, ad_orders, cpc, cpa, acos, ad_conversion_rate,
        conversion_rate, ctr, revenue_per_click,
        rating, rating_count, refund_rate,
        profit_amount, profit_rate, avg_profit,
        fba_inventory, total_inventory, available_days,
        title, brand, category_name, dev_name, operator_name,
        created_at, updated_at
    )
    VALUES (
        :asin, :sku, :parent_asin, :msku, :spu, :product_id, :data_date,
        :marketplace_id, :shop_id, :shop_name, :currency,
        :sales_amount, :sales_quantity, :order_count,
        :sessions, :page_views, :impressions, :clicks,
        :ad_cost, :ad_sales, :ad_orders, :cpc, :cpa, :acos, :ad_conversion_rate,
        :conversion_rate, :ctr, :revenue_per_click,
        :rating, :rating_count, :refund_rate,
        :profit_amount, :profit_rate, :avg_profit,
        :fba_inventory, :total_inventory, :available_days,
        :title, :brand, :category_name, :dev_name, :operator_name,
        :created_at, :updated_at
    )
    ON CONFLICT (asin, sku, data_date)
    DO UPDATE SET
        marketplace_id = EXCLUDED.marketplace_id,
        shop_id = EXCLUDED.shop_id,
        shop_name = EXCLUDED.shop_name,
        currency = EXCLUDED.currency,
        sales_amount = EXCLUDED.sales_amount,
        sales_quantity = EXCLUDED.sales_quantity,
        order_count = EXCLUDED.order_count,
        sessions = EXCLUDED.sessions,
        page_views = EXCLUDED.page_views,
        impressions = EXCLUDED.impressions,
        clicks = EXCLUDED.clicks,
        ad_cost = EXCLUDED.ad_cost,
        ad_sales = EXCLUDED.ad_sales,
        ad_orders = EXCLUDED.ad_orders,
        cpc = EXCLUDED.cpc,
        cpa = EXCLUDED.cpa,
        acos = EXCLUDED.acos,
        ad_conversion_rate = EXCLUDED.ad_conversion_rate,
        conversion_rate = EXCLUDED.conversion_rate,
        ctr = EXCLUDED.ctr,
        revenue_per_click = EXCLUDED.revenue_per_click,
        rating = EXCLUDED.rating,
        rating_count = EXCLUDED.rating_count,
        refund_rate = EXCLUDED.refund_rate,
        profit_amount = EXCLUDED.profit_amount,
        profit_rate = EXCLUDED.profit_rate,
        avg_profit = EXCLUDED.avg_profit,
        fba_inventory = EXCLUDED.fba_inventory,
        total_inventory = EXCLUDED.total_inventory,
        available_days = EXCLUDED.available_days,
        title = EXCLUDED.title,
        brand = EXCLUDED.brand,
        category_name = EXCLUDED.category_name,
        dev_name = EXCLUDED.dev_name,
        operator_name = EXCLUDED.operator_name,
        updated_at = EXCLUDED.updated_at
`

const windowSums = `
    SELECT asin, sku, shop_id,
        COALESCE(SUM(sales_quantity), 0) AS sales_quantity,
        COALESCE(SUM(sales_amount), 0)   AS sales_amount,
        COALESCE(SUM(order_count), 0)    AS order_count,
        COALESCE(SUM(impressions), 0)    AS impressions,
        COALESCE(SUM(clicks), 0)         AS clicks,
        COALESCE(SUM(ad_cost), 0)        AS ad_cost,
        COALESCE(SUM(ad_orders), 0)      AS ad_orders,
        COALESCE(SUM(ad_sales), 0)       AS ad_sales,
        COALESCE(SUM(profit_amount), 0)  AS profit_amount
    FROM product_analytics
    WHERE data_date >= ? AND data_date <= ?
    GROUP BY asin, sku, shop_id
    ORDER BY asin, sku, shop_id
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

func (r *PGRepository) UpsertProductAnalytics(ctx context.Context, rows []model.ProductAnalytics) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	now := r.clock.Now().UTC()
	err := postgres.WithTx(ctx, r.DB, "upsert product_analytics", func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareNamedContext(ctx, upsertProductAnalytics)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i := range rows {
			row := rows[i]
			row.DataDate = model.DateOf(row.DataDate)
			row.CreatedAt, row.UpdatedAt = now, now
			if _, err := stmt.ExecContext(ctx, &row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (r *PGRepository) FindByDate(ctx context.Context, date time.Time) ([]model.ProductAnalytics, error) {
	var rows []model.ProductAnalytics
	query := r.DB.Rebind(`SELECT * FROM product_analytics WHERE data_date = ? ORDER BY asin, sku`)
	if err := r.DB.SelectContext(ctx, &rows, query, model.DateOf(date)); err != nil {
		return nil, postgres.Classify("find product_analytics", err)
	}
	return rows, nil
}

func (r *PGRepository) CountByDate(ctx context.Context, date time.Time) (int, error) {
	var count int
	query := r.DB.Rebind(`SELECT count(*) FROM product_analytics WHERE data_date = ?`)
	if err := r.DB.GetContext(ctx, &count, query, model.DateOf(date)); err != nil {
		return 0, postgres.Classify("count product_analytics", err)
	}
	return count, nil
}

func (r *PGRepository) Windows(ctx context.Context, date time.Time, days int) ([]model.AnalyticsWindow, error) {
	if days < 1 {
		days = 1
	}
	end := model.DateOf(date)
	start := end.AddDate(0, 0, -(days - 1))

	var windows []model.AnalyticsWindow
	if err := r.DB.SelectContext(ctx, &windows, r.DB.Rebind(windowSums), start, end); err != nil {
		return nil, postgres.Classify("window product_analytics", err)
	}
	return windows, nil
}

func (r *PGRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, r.DB.Rebind(`DELETE FROM product_analytics WHERE data_date < ?`), model.DateOf(cutoff))
	if err != nil {
		return 0, postgres.Classify("delete product_analytics", err)
	}
	return res.RowsAffected()
}
