package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/brechodofuturo/marketplace/internal/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const orderColumns = `id, user_id, status, total_price, shipping_cost, shipping_service, address, created_at, updated_at`

// DecrementStock removes qty units only when at least qty are left. The
// product flips to SOLD when it reaches zero. It returns the remaining stock.
func (t *txRepository) DecrementStock(ctx context.Context, productID int64, qty int) (int, error) {
	query := `UPDATE products
	          SET stock = stock - $2,
	              status = CASE
	                  WHEN status = 'HIDDEN' THEN status
	                  WHEN stock - $2 <= 0 THEN 'SOLD'
	                  ELSE status
	              END,
	              updated_at = NOW()
	          WHERE id = $1 AND stock >= $2
	          RETURNING stock`

	var stock int
	err := t.q.QueryRowContext(ctx, query, productID, qty).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrInsufficientStock
	}
	if err != nil {
		return 0, fmt.Errorf("decrement stock: %w", err)
	}
	return stock, nil
}

// RestoreStock gives qty units back and makes a SOLD product available again.
func (t *txRepository) RestoreStock(ctx context.Context, productID int64, qty int) error {
	query := `UPDATE products
	          SET stock = stock + $2,
	              status = CASE WHEN status = 'SOLD' THEN 'AVAILABLE' ELSE status END,
	              updated_at = NOW()
	          WHERE id = $1`

	res, err := t.q.ExecContext(ctx, query, productID, qty)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	return expectAffected(res, ErrProductNotFound)
}

func (t *txRepository) InsertOrder(ctx context.Context, o *domain.Order) error {
	addr, err := json.Marshal(o.Address)
	if err != nil {
		return fmt.Errorf("marshal order address: %w", err)
	}

	query := `INSERT INTO orders (id, user_id, status, total_price, shipping_cost, shipping_service, address)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING created_at, updated_at`

	err = t.q.QueryRowContext(ctx, query,
		o.ID,
		o.UserID,
		o.Status,
		o.TotalPrice,
		o.ShippingCost,
		o.ShippingService,
		addr,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (t *txRepository) InsertOrderItems(ctx context.Context, orderID uuid.UUID, items []domain.OrderItem) error {
	query := `INSERT INTO order_items (order_id, product_id, product_name, quantity, price_at_purchase)
	          VALUES ($1, $2, $3, $4, $5)`

	for _, it := range items {
		if _, err := t.q.ExecContext(ctx, query, orderID, it.ProductID, it.ProductName, it.Quantity, it.PriceAtPurchase); err != nil {
			return fmt.Errorf("insert order item %d: %w", it.ProductID, err)
		}
	}
	return nil
}

func (t *txRepository) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	row := t.q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	if err := attachOrderItems(ctx, t.q, []*domain.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (t *txRepository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	res, err := t.q.ExecContext(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return expectAffected(res, ErrOrderNotFound)
}

func (r *Repository) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	if err := attachOrderItems(ctx, r.db, []*domain.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repository) ListOrders(ctx context.Context, f domain.OrderFilter, page domain.Page) ([]*domain.Order, int64, error) {
	where := " WHERE TRUE"
	var args []any
	if f.UserID != 0 {
		args = append(args, f.UserID)
		where += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	args = append(args, page.Limit, page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("row iteration error: %w", err)
	}

	if err := attachOrderItems(ctx, r.db, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func attachOrderItems(ctx context.Context, q querier, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*domain.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		o.Items = []domain.OrderItem{}
		byID[o.ID] = o
		ids = append(ids, o.ID.String())
	}

	query := `SELECT order_id, COALESCE(product_id, 0), product_name, quantity, price_at_purchase
	          FROM order_items
	          WHERE order_id = ANY($1::uuid[])
	          ORDER BY id`

	rows, err := q.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID uuid.UUID
		var it domain.OrderItem
		if err := rows.Scan(&orderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.PriceAtPurchase); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}
	return nil
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var addr []byte
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.Status,
		&o.TotalPrice,
		&o.ShippingCost,
		&o.ShippingService,
		&addr,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	if len(addr) > 0 {
		if err := json.Unmarshal(addr, &o.Address); err != nil {
			return nil, fmt.Errorf("unmarshal order address: %w", err)
		}
	}
	return &o, nil
}
