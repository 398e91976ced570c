package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

type Product struct {
	SKU       string         `db:"sku"`
	Name      string         `db:"name"`
	Price     float64        `db:"price"`
	Category  sql.NullString `db:"category"`
	UpdatedAt string         `db:"updated_at"`
}

func (s *Store) ProductBySKU(ctx context.Context, sku string) (Product, error) {
	var p Product
	err := s.db.GetContext(ctx, &p, `SELECT * FROM products WHERE sku = ?`, sku)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (s *Store) Products(ctx context.Context) ([]Product, error) {
	var out []Product
	err := s.db.SelectContext(ctx, &out, `SELECT * FROM products ORDER BY name`)
	return out, err
}

func upsertProduct(ctx context.Context, tx *sqlx.Tx, p Product) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO products (sku, name, price, category)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(sku) DO UPDATE SET
			name = excluded.name,
			price = excluded.price,
			category = excluded.category,
			updated_at = CURRENT_TIMESTAMP
	`, p.SKU, p.Name, p.Price, p.Category)
	return err
}
