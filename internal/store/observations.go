package store

import (
	"context"
	"time"
)

// Observation is the last-known stock snapshot for one (SKU, area).
// Exactly one current row exists per pair; each cycle overwrites it.
type Observation struct {
	ProductSKU string  `db:"product_sku"`
	AreaID     string  `db:"area_id"`
	Quantity   int     `db:"quantity"`
	InStock    bool    `db:"in_stock"`
	Price      float64 `db:"price"`
	ObservedMS int64   `db:"observed_at"`
}

func (o Observation) ObservedAt() time.Time { return time.UnixMilli(o.ObservedMS) }

// ObservationsForArea returns the comparison baseline for one area, keyed by SKU.
// A SKU absent from the map has never been observed.
func (s *Store) ObservationsForArea(ctx context.Context, areaID string) (map[string]Observation, error) {
	var rows []Observation
	err := s.db.SelectContext(ctx, &rows, `
		SELECT product_sku, area_id, quantity, in_stock, price, observed_at
		FROM stock_observations
		WHERE area_id = ?
	`, areaID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Observation, len(rows))
	for _, o := range rows {
		out[o.ProductSKU] = o
	}
	return out, nil
}

// ApplyCycleResult commits one area's cycle outcome in a single transaction:
// the opportunistic product cache refresh and the new observation baseline.
// If this fails, the caller must not dispatch the area's intents, otherwise
// the next cycle re-detects the same transitions against the stale baseline.
func (s *Store) ApplyCycleResult(ctx context.Context, areaID string, products []Product, obs []Observation) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range products {
		if err := upsertProduct(ctx, tx, p); err != nil {
			return err
		}
	}
	for _, o := range obs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO stock_observations (product_sku, area_id, quantity, in_stock, price, observed_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(product_sku, area_id) DO UPDATE SET
				quantity = excluded.quantity,
				in_stock = excluded.in_stock,
				price = excluded.price,
				observed_at = excluded.observed_at
		`, o.ProductSKU, areaID, o.Quantity, o.InStock, o.Price, o.ObservedMS); err != nil {
			return err
		}
	}
	return tx.Commit()
}
