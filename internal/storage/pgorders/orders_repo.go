package pgorders

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/BearBump/ShopShip/internal/apperrors"
	"github.com/BearBump/ShopShip/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

// Fields is a partial update keyed by dotted document path, e.g. "shipping.awbCode".
// Keys not named keep their stored value.
type Fields map[string]any

const uniqueViolation = "23505"

var segmentRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// SaveOrder inserts a new order document and returns its storage id.
// Missing ids are generated; the public order id gets an ORD- prefix.
func (s *Storage) SaveOrder(ctx context.Context, o *models.Order) (string, error) {
	now := time.Now().UTC()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.OrderID == "" {
		o.OrderID = "ORD-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now

	doc, err := json.Marshal(o)
	if err != nil {
		return "", errors.Wrap(err, "marshal order")
	}

	_, err = s.db.Exec(ctx, `
INSERT INTO orders (id, order_id, user_id, doc, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, o.ID, o.OrderID, o.UserID, doc, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return "", apperrors.NewValidation("order already exists", "orderId")
		}
		return "", errors.Wrap(err, "insert order")
	}
	return o.ID, nil
}

// LoadOrder returns the order with the given public order id.
func (s *Storage) LoadOrder(ctx context.Context, orderID string) (*models.Order, error) {
	row := s.db.QueryRow(ctx, `SELECT id, doc FROM orders WHERE order_id = $1`, orderID)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &apperrors.NotFoundError{Resource: "order", ID: orderID}
	}
	if err != nil {
		return nil, errors.Wrap(err, "select order")
	}
	return o, nil
}

// UpdateOrder applies a partial document update to the order with storage id id.
func (s *Storage) UpdateOrder(ctx context.Context, id string, fields Fields) error {
	if len(fields) == 0 {
		return nil
	}
	expr, args, err := buildDocUpdate(fields, 2)
	if err != nil {
		return err
	}

	q := fmt.Sprintf(`UPDATE orders SET doc = %s, updated_at = now() WHERE id = $1`, expr)
	tag, err := s.db.Exec(ctx, q, append([]any{id}, args...)...)
	if err != nil {
		return errors.Wrap(err, "update order")
	}
	if tag.RowsAffected() == 0 {
		return &apperrors.NotFoundError{Resource: "order", ID: id}
	}
	return nil
}

func (s *Storage) ListUserOrders(ctx context.Context, userID string, limit, offset int) ([]*models.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
SELECT id, doc
FROM orders
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`, userID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select user orders")
	}
	defer rows.Close()

	out := make([]*models.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		out = append(out, o)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		id  string
		doc []byte
	)
	if err := row.Scan(&id, &doc); err != nil {
		return nil, err
	}
	return decodeOrder(id, doc)
}

func decodeOrder(id string, doc []byte) (*models.Order, error) {
	var o models.Order
	if err := json.Unmarshal(doc, &o); err != nil {
		return nil, errors.Wrap(err, "unmarshal order")
	}
	o.ID = id
	return &o, nil
}

// buildDocUpdate nests one jsonb_set per path, in key order. Placeholders start at $first.
func buildDocUpdate(fields Fields, first int) (string, []any, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	expr := "doc"
	args := make([]any, 0, 2*len(keys))
	n := first
	for _, k := range keys {
		segs := strings.Split(k, ".")
		for _, seg := range segs {
			if !segmentRe.MatchString(seg) {
				return "", nil, apperrors.NewValidation("invalid update path", k)
			}
		}
		val, err := json.Marshal(fields[k])
		if err != nil {
			return "", nil, errors.Wrapf(err, "marshal field %s", k)
		}
		expr = fmt.Sprintf("jsonb_set(%s, $%d::text[], $%d::jsonb, true)", expr, n, n+1)
		args = append(args, segs, string(val))
		n += 2
	}
	return expr, args, nil
}
