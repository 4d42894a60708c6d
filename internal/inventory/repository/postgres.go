package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/juju/clock"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/model"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/postgres"
)

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

func (r *PGRepository) UpsertFbaInventory(ctx context.Context, rows []model.FbaInventory) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	query := `
        INSERT INTO fba_inventory (
            sku, asin, fnsku, marketplace_id, shop_id, shop_name,
            available, reserved_customerorders, inbound_working, inbound_shipped,
            inbound_receiving, unfulfillable, total_inventory,
            snapshot_date, updated_at
        )
        VALUES (
            :sku, :asin, :fnsku, :marketplace_id, :shop_id, :shop_name,
            :available, :reserved_customerorders, :inbound_working, :inbound_shipped,
            :inbound_receiving, :unfulfillable, :total_inventory,
            :snapshot_date, :updated_at
        )
        ON CONFLICT (sku, marketplace_id, shop_id)
        DO UPDATE SET
            asin = EXCLUDED.asin,
            fnsku = EXCLUDED.fnsku,
            shop_name = EXCLUDED.shop_name,
            available = EXCLUDED.available,
            reserved_customerorders = EXCLUDED.reserved_customerorders,
            inbound_working = EXCLUDED.inbound_working,
            inbound_shipped = EXCLUDED.inbound_shipped,
            inbound_receiving = EXCLUDED.inbound_receiving,
            unfulfillable = EXCLUDED.unfulfillable,
            total_inventory = EXCLUDED.total_inventory,
            snapshot_date = EXCLUDED.snapshot_date,
            updated_at = EXCLUDED.updated_at
    `
	now := r.clock.Now().UTC()
	err := postgres.WithTx(ctx, r.DB, "upsert fba_inventory", func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareNamedContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i := range rows {
			row := rows[i]
			row.SnapshotDate = model.DateOf(row.SnapshotDate)
			row.UpdatedAt = now
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

// LatestFba returns the rows of the newest snapshot only. The ERP hides
// zero-stock items, so a key missing from the newest sync has sold out and
// its older row must not count.
func (r *PGRepository) LatestFba(ctx context.Context) ([]model.FbaInventory, error) {
	var rows []model.FbaInventory
	err := r.DB.SelectContext(ctx, &rows, `
        SELECT * FROM fba_inventory
        WHERE snapshot_date = (SELECT MAX(snapshot_date) FROM fba_inventory)
        ORDER BY sku, marketplace_id, shop_id
    `)
	if err != nil {
		return nil, postgres.Classify("select fba_inventory", err)
	}
	return rows, nil
}

func (r *PGRepository) DeleteFbaBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, r.DB.Rebind(`DELETE FROM fba_inventory WHERE snapshot_date < ?`), model.DateOf(cutoff))
	if err != nil {
		return 0, postgres.Classify("delete fba_inventory", err)
	}
	return res.RowsAffected()
}

func (r *PGRepository) UpsertInventoryDetails(ctx context.Context, rows []model.InventoryDetails) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	query := `
        INSERT INTO inventory_details (
            warehouse_id, warehouse_name, commodity_id, commodity_sku, commodity_name,
            quantity, available, locked, in_transit,
            cost_price, total_value, expiry_date, snapshot_date, updated_at
        )
        VALUES (
            :warehouse_id, :warehouse_name, :commodity_id, :commodity_sku, :commodity_name,
            :quantity, :available, :locked, :in_transit,
            :cost_price, :total_value, :expiry_date, :snapshot_date, :updated_at
        )
        ON CONFLICT (warehouse_id, commodity_id)
        DO UPDATE SET
            warehouse_name = EXCLUDED.warehouse_name,
            commodity_sku = EXCLUDED.commodity_sku,
            commodity_name = EXCLUDED.commodity_name,
            quantity = EXCLUDED.quantity,
            available = EXCLUDED.available,
            locked = EXCLUDED.locked,
            in_transit = EXCLUDED.in_transit,
            cost_price = EXCLUDED.cost_price,
            total_value = EXCLUDED.total_value,
            expiry_date = EXCLUDED.expiry_date,
            snapshot_date = EXCLUDED.snapshot_date,
            updated_at = EXCLUDED.updated_at
    `
	now := r.clock.Now().UTC()
	err := postgres.WithTx(ctx, r.DB, "upsert inventory_details", func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareNamedContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i := range rows {
			row := rows[i]
			row.SnapshotDate = model.DateOf(row.SnapshotDate)
			row.UpdatedAt = now
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

func (r *PGRepository) WarehouseStockBySKU(ctx context.Context) ([]model.WarehouseStock, error) {
	var stock []model.WarehouseStock
	err := r.DB.SelectContext(ctx, &stock, `
        SELECT commodity_sku, COALESCE(SUM(available), 0) AS available
        FROM inventory_details
        WHERE commodity_sku <> ''
        GROUP BY commodity_sku
        ORDER BY commodity_sku
    `)
	if err != nil {
		return nil, postgres.Classify("select warehouse stock", err)
	}
	return stock, nil
}
