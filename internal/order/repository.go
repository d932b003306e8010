package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound        = errors.New("order not found")
	ErrVersionConflict = errors.New("order was modified concurrently, re-read and retry")
)

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]Order, error)
	ListActiveByCafe(ctx context.Context, cafeID uuid.UUID) ([]Order, error)
	// UpdateStatus applies an optimistic-locked transition: the row is only
	// updated if its version still equals expectedVersion, and the version is
	// incremented by the same statement. changedBy may be uuid.Nil for
	// system-driven transitions.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, expectedVersion int64, changedBy uuid.UUID) (*Order, error)
	// MarkPaid is the placed → paid transition plus the payment reference,
	// under the same version check.
	MarkPaid(ctx context.Context, id uuid.UUID, paymentRef string, expectedVersion int64) (*Order, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, o *Order) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	o.Version = 1

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, cafe_id, customer_id, status, total_amount, payment_ref, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, o.ID, o.CafeID, o.CustomerID, string(o.Status), o.Total, o.PaymentRef, o.Version, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}

	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, menu_item_id, name, unit_price, quantity)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, it.ID, it.OrderID, it.MenuItemID, it.Name, it.UnitPrice, it.Quantity)
		if err != nil {
			return fmt.Errorf("repository: failed to insert order item for order %s: %w", o.ID, err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_status_history (order_id, from_status, to_status, changed_by)
		VALUES ($1, '', $2, $3)
	`, o.ID, string(o.Status), o.CustomerID)
	if err != nil {
		return fmt.Errorf("repository: failed to insert status history for order %s: %w", o.ID, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository: failed to commit transaction: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	var o Order
	err := r.db.QueryRow(ctx, `
		SELECT id, cafe_id, customer_id, status, total_amount, payment_ref, version, created_at, updated_at
		FROM orders WHERE id = $1
	`, id).Scan(&o.ID, &o.CafeID, &o.CustomerID, &o.Status, &o.Total, &o.PaymentRef, &o.Version, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order %s: %w", id, err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, menu_item_id, name, unit_price, quantity
		FROM order_items WHERE order_id = $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query items for order %s: %w", id, err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.Name, &it.UnitPrice, &it.Quantity); err != nil {
			return nil, fmt.Errorf("repository: failed to scan item for order %s: %w", id, err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating items for order %s: %w", id, err)
	}
	o.Items = items

	return &o, nil
}

func (r *postgresRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, cafe_id, customer_id, status, total_amount, payment_ref, version, created_at, updated_at
		FROM orders WHERE customer_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, customerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders for customer %s: %w", customerID, err)
	}
	defer rows.Close()

	return r.collectWithItems(ctx, rows)
}

func (r *postgresRepository) ListActiveByCafe(ctx context.Context, cafeID uuid.UUID) ([]Order, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, cafe_id, customer_id, status, total_amount, payment_ref, version, created_at, updated_at
		FROM orders
		WHERE cafe_id = $1 AND status NOT IN ('completed', 'cancelled')
		ORDER BY created_at
	`, cafeID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query active orders for cafe %s: %w", cafeID, err)
	}
	defer rows.Close()

	return r.collectWithItems(ctx, rows)
}

func (r *postgresRepository) collectWithItems(ctx context.Context, rows pgx.Rows) ([]Order, error) {
	ordersMap := make(map[uuid.UUID]*Order)
	var orderIDs []uuid.UUID

	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.CafeID, &o.CustomerID, &o.Status, &o.Total, &o.PaymentRef, &o.Version, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		o.Items = make([]Item, 0)
		ordersMap[o.ID] = &o
		orderIDs = append(orderIDs, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating orders: %w", err)
	}

	if len(orderIDs) == 0 {
		return []Order{}, nil
	}

	itemRows, err := r.db.Query(ctx, `
		SELECT id, order_id, menu_item_id, name, unit_price, quantity
		FROM order_items WHERE order_id = ANY($1)
	`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var it Item
		if err := itemRows.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.Name, &it.UnitPrice, &it.Quantity); err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item: %w", err)
		}
		if o, ok := ordersMap[it.OrderID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items: %w", err)
	}

	result := make([]Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		result = append(result, *ordersMap[id])
	}
	return result, nil
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, expectedVersion int64, changedBy uuid.UUID) (*Order, error) {
	return r.transition(ctx, id, from, to, expectedVersion, changedBy, nil)
}

func (r *postgresRepository) MarkPaid(ctx context.Context, id uuid.UUID, paymentRef string, expectedVersion int64) (*Order, error) {
	return r.transition(ctx, id, StatusPlaced, StatusPaid, expectedVersion, uuid.Nil, &paymentRef)
}

func (r *postgresRepository) transition(ctx context.Context, id uuid.UUID, from, to Status, expectedVersion int64, changedBy uuid.UUID, paymentRef *string) (_ *Order, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var query string
	if paymentRef != nil {
		query = `
			UPDATE orders
			SET status = $2, payment_ref = $4, version = version + 1, updated_at = now()
			WHERE id = $1 AND version = $3
		`
	} else {
		query = `
			UPDATE orders
			SET status = $2, version = version + 1, updated_at = now()
			WHERE id = $1 AND version = $3
		`
	}

	var cmd pgconn.CommandTag
	if paymentRef != nil {
		cmd, err = tx.Exec(ctx, query, id, string(to), expectedVersion, *paymentRef)
	} else {
		cmd, err = tx.Exec(ctx, query, id, string(to), expectedVersion)
	}
	if err != nil {
		return nil, fmt.Errorf("repository: failed to update status for order %s: %w", id, err)
	}

	if cmd.RowsAffected() == 0 {
		// Distinguish a missing order from a stale version.
		var exists bool
		if err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
			return nil, fmt.Errorf("repository: failed to check order %s existence: %w", id, err)
		}
		if !exists {
			err = ErrNotFound
			return nil, err
		}
		err = ErrVersionConflict
		return nil, err
	}

	var by any
	if changedBy != uuid.Nil {
		by = changedBy
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO order_status_history (order_id, from_status, to_status, changed_by)
		VALUES ($1, $2, $3, $4)
	`, id, string(from), string(to), by)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to insert status history for order %s: %w", id, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("repository: failed to commit transaction: %w", err)
	}

	return r.GetByID(ctx, id)
}
