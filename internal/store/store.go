// Package store owns the durable state the reconciliation engine reads and
// writes: users, delivery areas, the product cache, subscriptions, the
// per-(SKU, area) stock observations used as the diff baseline, and the sent
// alert history.
//
// All writes that must be atomic per delivery area go through
// ApplyCycleResult, which runs in a single transaction.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	logx "stockwatch/pkg/logx"
)

// ErrInvariant reports corrupt subscription state (e.g. two active
// subscriptions for one (user, SKU) pair). It is fatal to a cycle and must
// reach the operator, not be silently corrected.
var ErrInvariant = errors.New("subscription state invariant violated")

var ErrNotFound = errors.New("not found")

type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

type Store struct {
	db  *sqlx.DB
	log logx.Logger
}

func Open(cfg Config, log logx.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("store path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sqlx.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	s := &Store{db: db, log: log}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS users(
  user_id    INTEGER PRIMARY KEY,
  username   TEXT,
  first_name TEXT,
  pincode    TEXT,
  area_id    TEXT,
  area_name  TEXT,
  is_active  INTEGER NOT NULL DEFAULT 0,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS areas(
  area_id    TEXT PRIMARY KEY,
  name       TEXT NOT NULL,
  pincode    TEXT NOT NULL,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS products(
  sku        TEXT PRIMARY KEY,
  name       TEXT NOT NULL,
  price      REAL NOT NULL DEFAULT 0,
  category   TEXT,
  updated_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS subscriptions(
  id          INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id     INTEGER NOT NULL REFERENCES users(user_id),
  product_sku TEXT NOT NULL,
  is_active   INTEGER NOT NULL DEFAULT 1,
  created_at  TEXT DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(user_id, product_sku)
);
CREATE INDEX IF NOT EXISTS idx_subscriptions_sku ON subscriptions(product_sku);

CREATE TABLE IF NOT EXISTS stock_observations(
  product_sku TEXT NOT NULL,
  area_id     TEXT NOT NULL,
  quantity    INTEGER NOT NULL DEFAULT 0,
  in_stock    INTEGER NOT NULL DEFAULT 0,
  price       REAL NOT NULL DEFAULT 0,
  observed_at INTEGER NOT NULL,
  PRIMARY KEY(product_sku, area_id)
);

CREATE TABLE IF NOT EXISTS stock_alerts(
  id          INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id     INTEGER NOT NULL,
  product_sku TEXT NOT NULL,
  kind        TEXT NOT NULL,
  quantity    INTEGER NOT NULL DEFAULT 0,
  notified_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stock_alerts_user_sku ON stock_alerts(user_id, product_sku);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}
