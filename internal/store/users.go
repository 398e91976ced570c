package store

import (
	"context"
	"database/sql"
	"errors"
)

type User struct {
	UserID    int64          `db:"user_id"`
	Username  sql.NullString `db:"username"`
	FirstName sql.NullString `db:"first_name"`
	Pincode   sql.NullString `db:"pincode"`
	AreaID    sql.NullString `db:"area_id"`
	AreaName  sql.NullString `db:"area_name"`
	IsActive  bool           `db:"is_active"`
	CreatedAt string         `db:"created_at"`
	UpdatedAt string         `db:"updated_at"`
}

type Area struct {
	AreaID    string `db:"area_id"`
	Name      string `db:"name"`
	Pincode   string `db:"pincode"`
	CreatedAt string `db:"created_at"`
}

// UpsertUser registers a user or refreshes their identity fields.
// New users start inactive; the flag follows their active subscriptions.
func (s *Store) UpsertUser(ctx context.Context, userID int64, username, firstName string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, username, first_name)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			updated_at = CURRENT_TIMESTAMP
	`, userID, nullStr(username), nullStr(firstName))
	return err
}

func (s *Store) GetUser(ctx context.Context, userID int64) (User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, `SELECT * FROM users WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// SetUserArea assigns a delivery area to a user, creating the area row on
// first sight. Areas are cheap and reused across users; they are never deleted.
func (s *Store) SetUserArea(ctx context.Context, userID int64, pincode, areaID, areaName string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO areas (area_id, name, pincode) VALUES (?, ?, ?)
		ON CONFLICT(area_id) DO NOTHING
	`, areaID, areaName, pincode); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE users
		SET pincode = ?, area_id = ?, area_name = ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ?
	`, pincode, areaID, areaName, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (s *Store) SetUserActive(ctx context.Context, userID int64, active bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET is_active = ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ?
	`, active, userID)
	return err
}

// ActiveAreas returns the distinct delivery areas that have at least one
// active user with at least one active subscription. Areas with no active
// subscribers are skipped by the engine entirely.
func (s *Store) ActiveAreas(ctx context.Context) ([]Area, error) {
	var out []Area
	err := s.db.SelectContext(ctx, &out, `
		SELECT DISTINCT a.area_id, a.name, a.pincode, a.created_at
		FROM areas a
		JOIN users u ON u.area_id = a.area_id
		JOIN subscriptions sub ON sub.user_id = u.user_id
		WHERE u.is_active = 1 AND sub.is_active = 1
		ORDER BY a.area_id
	`)
	return out, err
}

func nullStr(v string) any {
	if v == "" {
		return nil
	}
	return v
}
