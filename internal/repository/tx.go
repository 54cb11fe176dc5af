package repository

import (
	"context"

	"github.com/brechodofuturo/marketplace/internal/domain"
	"github.com/google/uuid"
)

// Tx is the set of writes that must happen atomically while an order is
// created, paid or has its status changed.
type Tx interface {
	LockProducts(ctx context.Context, ids []int64) (map[int64]*domain.Product, error)
	DecrementStock(ctx context.Context, productID int64, qty int) (int, error)
	RestoreStock(ctx context.Context, productID int64, qty int) error
	InsertOrder(ctx context.Context, o *domain.Order) error
	InsertOrderItems(ctx context.Context, orderID uuid.UUID, items []domain.OrderItem) error
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error
	InsertPayment(ctx context.Context, p *domain.Payment) error
	InsertOutboxEvent(ctx context.Context, e *OutboxEvent) error
}

type txRepository struct {
	q querier
}

// LockProducts loads the products with SELECT ... FOR UPDATE, so their stock
// cannot change until the transaction ends.
func (t *txRepository) LockProducts(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	return queryProductsByIDs(ctx, t.q, ids, true)
}
