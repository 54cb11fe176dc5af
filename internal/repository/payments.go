package repository

import (
	"context"
	"fmt"

	"github.com/brechodofuturo/marketplace/internal/domain"
	"github.com/google/uuid"
)

func (t *txRepository) InsertPayment(ctx context.Context, p *domain.Payment) error {
	err := t.q.QueryRowContext(ctx,
		`INSERT INTO payments (id, order_id, amount, method, status) VALUES ($1, $2, $3, $4, $5) RETURNING paid_at`,
		p.ID, p.OrderID, p.Amount, p.Method, p.Status).Scan(&p.PaidAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *Repository) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]*domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, amount, method, status, paid_at FROM payments WHERE order_id = $1 ORDER BY paid_at`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	payments := []*domain.Payment{}
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Amount, &p.Method, &p.Status, &p.PaidAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return payments, nil
}
