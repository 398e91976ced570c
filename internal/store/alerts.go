package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Alert records one notification actually delivered to a user.
type Alert struct {
	ID         int64  `db:"id"`
	UserID     int64  `db:"user_id"`
	ProductSKU string `db:"product_sku"`
	Kind       string `db:"kind"`
	Quantity   int    `db:"quantity"`
	NotifiedMS int64  `db:"notified_at"`
}

func (a Alert) NotifiedAt() time.Time { return time.UnixMilli(a.NotifiedMS) }

func (s *Store) RecordAlert(ctx context.Context, userID int64, sku, kind string, quantity int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_alerts (user_id, product_sku, kind, quantity, notified_at)
		VALUES (?, ?, ?, ?, ?)
	`, userID, sku, kind, quantity, time.Now().UnixMilli())
	return err
}

func (s *Store) LastAlert(ctx context.Context, userID int64, sku string) (Alert, error) {
	var a Alert
	err := s.db.GetContext(ctx, &a, `
		SELECT * FROM stock_alerts
		WHERE user_id = ? AND product_sku = ?
		ORDER BY notified_at DESC, id DESC LIMIT 1
	`, userID, sku)
	if errors.Is(err, sql.ErrNoRows) {
		return Alert{}, ErrNotFound
	}
	return a, err
}
