package pgorders

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
  user_id TEXT NOT NULL DEFAULT '',
  doc JSONB NOT NULL,
  next_sync_at TIMESTAMPTZ NULL,
  sync_fail_count INT NOT NULL DEFAULT 0,
  last_sync_error TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_user_id_created_at ON orders(user_id, created_at DESC)`,
		// Only linked orders are scheduled, so the index stays small.
		`CREATE INDEX IF NOT EXISTS idx_orders_next_sync_at ON orders(next_sync_at) WHERE next_sync_at IS NOT NULL`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
