package store

import (
	"context"
	"fmt"
)

type Subscription struct {
	ID         int64  `db:"id"`
	UserID     int64  `db:"user_id"`
	ProductSKU string `db:"product_sku"`
	IsActive   bool   `db:"is_active"`
	CreatedAt  string `db:"created_at"`
}

// Subscriber is one (user, SKU) pair the engine fans a transition out to.
type Subscriber struct {
	UserID     int64  `db:"user_id"`
	ProductSKU string `db:"product_sku"`
	Pincode    string `db:"pincode"`
}

// Subscribe opts a user into a product. Re-subscribing reactivates the
// existing row; the UNIQUE(user_id, product_sku) constraint guarantees at
// most one subscription per pair. The user's active flag follows.
func (s *Store) Subscribe(ctx context.Context, userID int64, sku string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, product_sku, is_active)
		VALUES (?, ?, 1)
		ON CONFLICT(user_id, product_sku) DO UPDATE SET is_active = 1
	`, userID, sku); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET is_active = 1, updated_at = CURRENT_TIMESTAMP WHERE user_id = ?
	`, userID); err != nil {
		return err
	}
	return tx.Commit()
}

// Unsubscribe deactivates (never deletes) a subscription, preserving history.
// A user left with zero active subscriptions goes inactive, which removes
// their area from the engine's consideration.
func (s *Store) Unsubscribe(ctx context.Context, userID int64, sku string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE subscriptions SET is_active = 0
		WHERE user_id = ? AND product_sku = ?
	`, userID, sku); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE users
		SET is_active = EXISTS(
			SELECT 1 FROM subscriptions WHERE user_id = ? AND is_active = 1
		), updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ?
	`, userID, userID); err != nil {
		return err
	}
	return tx.Commit()
}

// ClearSubscriptions deactivates everything a user is subscribed to.
func (s *Store) ClearSubscriptions(ctx context.Context, userID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE subscriptions SET is_active = 0 WHERE user_id = ?
	`, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET is_active = 0, updated_at = CURRENT_TIMESTAMP WHERE user_id = ?
	`, userID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) UserSubscriptions(ctx context.Context, userID int64) ([]Subscription, error) {
	var out []Subscription
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, user_id, product_sku, is_active, created_at
		FROM subscriptions
		WHERE user_id = ? AND is_active = 1
		ORDER BY created_at
	`, userID)
	return out, err
}

// SubscribersForArea returns every active (user, SKU) pair in the area.
// It also verifies the at-most-one-active-subscription invariant; a
// violation is returned wrapped in ErrInvariant so the cycle aborts loudly
// instead of double-notifying.
func (s *Store) SubscribersForArea(ctx context.Context, areaID string) ([]Subscriber, error) {
	type row struct {
		Subscriber
		N int `db:"n"`
	}
	var rows []row
	err := s.db.SelectContext(ctx, &rows, `
		SELECT sub.user_id, sub.product_sku, COALESCE(u.pincode, '') AS pincode, COUNT(*) AS n
		FROM subscriptions sub
		JOIN users u ON u.user_id = sub.user_id
		WHERE u.area_id = ? AND u.is_active = 1 AND sub.is_active = 1
		GROUP BY sub.user_id, sub.product_sku
		ORDER BY sub.user_id, sub.product_sku
	`, areaID)
	if err != nil {
		return nil, err
	}
	out := make([]Subscriber, 0, len(rows))
	for _, r := range rows {
		if r.N > 1 {
			return nil, fmt.Errorf("%w: %d active subscriptions for user=%d sku=%s",
				ErrInvariant, r.N, r.UserID, r.ProductSKU)
		}
		out = append(out, r.Subscriber)
	}
	return out, nil
}
