package pgorders

import (
	"context"
	"time"

	"github.com/BearBump/ShopShip/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// SyncTask is a linked order picked up for reconciliation.
type SyncTask struct {
	Order     *models.Order
	FailCount int
}

// ClaimDueSyncs picks orders whose next sync is due and leases them, so that a parallel
// worker does not take the same rows until the lease runs out.
// Uses SELECT ... FOR UPDATE SKIP LOCKED.
func (s *Storage) ClaimDueSyncs(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]SyncTask, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
SELECT id, doc, sync_fail_count
FROM orders
WHERE next_sync_at IS NOT NULL
  AND next_sync_at <= $1
ORDER BY next_sync_at ASC
LIMIT $2
FOR UPDATE SKIP LOCKED
`, now.UTC(), limit)
	if err != nil {
		return nil, errors.Wrap(err, "select due syncs")
	}

	var picked []SyncTask
	for rows.Next() {
		var (
			id    string
			doc   []byte
			fails int
		)
		if err := rows.Scan(&id, &doc, &fails); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan due sync")
		}
		o, err := decodeOrder(id, doc)
		if err != nil {
			rows.Close()
			return nil, err
		}
		picked = append(picked, SyncTask{Order: o, FailCount: fails})
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}

	leaseUntil := now.UTC().Add(lease)
	for _, t := range picked {
		if _, err := tx.Exec(ctx, `UPDATE orders SET next_sync_at = $2 WHERE id = $1`, t.Order.ID, leaseUntil); err != nil {
			return nil, errors.Wrap(err, "lease sync")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return picked, nil
}

// ScheduleSync sets the next sync time and clears the failure counter.
func (s *Storage) ScheduleSync(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.Exec(ctx, `
UPDATE orders
SET next_sync_at = $2, sync_fail_count = 0, last_sync_error = NULL
WHERE id = $1
`, id, at.UTC())
	return errors.Wrap(err, "schedule sync")
}

// RecordSyncFailure bumps the failure counter and reschedules the order.
func (s *Storage) RecordSyncFailure(ctx context.Context, id, msg string, next time.Time) error {
	_, err := s.db.Exec(ctx, `
UPDATE orders
SET next_sync_at = $2, sync_fail_count = sync_fail_count + 1, last_sync_error = $3
WHERE id = $1
`, id, next.UTC(), msg)
	return errors.Wrap(err, "record sync failure")
}
