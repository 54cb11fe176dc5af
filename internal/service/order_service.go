package service

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/brechodofuturo/marketplace/internal/domain"
	"github.com/brechodofuturo/marketplace/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CheckoutItem is one requested line. UnitPrice is the price the buyer saw;
// the order is rejected when it no longer matches the product.
type CheckoutItem struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
}

type CheckoutInput struct {
	// Items empty means "check out the cart".
	Items           []CheckoutItem
	Address         *domain.Address
	ShippingCost    decimal.Decimal
	ShippingService string
}

type orderEvent struct {
	OrderID        uuid.UUID          `json:"order_id"`
	UserID         int64              `json:"user_id"`
	Status         domain.OrderStatus `json:"status"`
	PreviousStatus domain.OrderStatus `json:"previous_status,omitempty"`
	TotalPrice     decimal.Decimal    `json:"total_price"`
	ShippingCost   decimal.Decimal    `json:"shipping_cost"`
	Items          []domain.OrderItem `json:"items"`
	OccurredAt     time.Time          `json:"occurred_at"`
}

type OrderService struct {
	store    OrderStore
	users    UserStore
	products ProductStore
	carts    *CartService
	catalog  *ProductService
	log      *slog.Logger
	now      func() time.Time
}

func NewOrderService(
	store OrderStore,
	users UserStore,
	products ProductStore,
	carts *CartService,
	catalog *ProductService,
	log *slog.Logger,
) *OrderService {
	return &OrderService{
		store:    store,
		users:    users,
		products: products,
		carts:    carts,
		catalog:  catalog,
		log:      log,
		now:      time.Now,
	}
}

// Checkout turns the requested items (or the buyer's cart) into a PENDING
// order. Products are validated once up front and again under row locks,
// and stock is decremented in the same transaction that writes the order.
func (s *OrderService) Checkout(ctx context.Context, actor domain.Actor, in CheckoutInput) (*domain.Order, error) {
	if in.ShippingCost.IsNegative() {
		return nil, fmt.Errorf("%w: shipping cost must not be negative", ErrInvalidInput)
	}

	lines := in.Items
	fromCart := len(lines) == 0
	if fromCart {
		var err error
		if lines, err = s.cartLines(ctx, actor.UserID); err != nil {
			return nil, err
		}
	}

	lines, err := mergeLines(lines)
	if err != nil {
		return nil, err
	}

	address, err := s.shippingAddress(ctx, actor.UserID, in.Address)
	if err != nil {
		return nil, err
	}

	ids := lineProductIDs(lines)
	current, err := s.products.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if _, err := checkLines(current, lines, actor.UserID); err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:              uuid.New(),
		UserID:          actor.UserID,
		Status:          domain.OrderStatusPending,
		ShippingCost:    in.ShippingCost,
		ShippingService: in.ShippingService,
		Address:         address,
	}

	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		locked, err := tx.LockProducts(ctx, ids)
		if err != nil {
			return err
		}
		items, err := checkLines(locked, lines, actor.UserID)
		if err != nil {
			return err
		}

		order.Items = items
		order.TotalPrice = domain.ItemsTotal(items)

		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		if err := tx.InsertOrderItems(ctx, order.ID, items); err != nil {
			return err
		}
		for _, it := range items {
			if _, err := tx.DecrementStock(ctx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}
		return s.writeEvent(ctx, tx, repository.EventOrderCreated, order, "")
	})
	if err != nil {
		return nil, err
	}

	s.catalog.Invalidate(ctx, ids...)
	if fromCart {
		if err := s.carts.Clear(ctx, actor.UserID); err != nil {
			s.log.WarnContext(ctx, "clear cart after checkout failed", "user_id", actor.UserID, "error", err)
		}
	}

	s.log.InfoContext(ctx, "order created",
		"order_id", order.ID, "user_id", order.UserID, "total", order.TotalPrice.String(), "items", len(order.Items))
	return order, nil
}

func (s *OrderService) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(o.UserID) {
		return nil, ErrForbidden
	}

	payments, err := s.store.ListPaymentsByOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Payments = payments
	return o, nil
}

func (s *OrderService) ListMine(ctx context.Context, actor domain.Actor, page domain.Page) ([]*domain.Order, int64, error) {
	return s.store.ListOrders(ctx, domain.OrderFilter{UserID: actor.UserID}, page)
}

func (s *OrderService) ListAll(ctx context.Context, actor domain.Actor, status domain.OrderStatus, page domain.Page) ([]*domain.Order, int64, error) {
	if !actor.IsAdmin() {
		return nil, 0, ErrForbidden
	}
	if status != "" && !status.IsValid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	return s.store.ListOrders(ctx, domain.OrderFilter{Status: status}, page)
}

// UpdateStatus moves an order along the status table. Admin only.
func (s *OrderService) UpdateStatus(ctx context.Context, actor domain.Actor, id uuid.UUID, to domain.OrderStatus) (*domain.Order, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if !to.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, to)
	}
	return s.transition(ctx, id, func(o *domain.Order) error {
		if !domain.CanTransitionTo(o.Status, to) {
			return ErrIllegalTransition
		}
		return nil
	}, to, nil)
}

// Cancel cancels an order and gives its stock back. Buyers may cancel
// while the order is PENDING, admins also once it is PAID.
func (s *OrderService) Cancel(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Order, error) {
	return s.transition(ctx, id, func(o *domain.Order) error {
		if !actor.CanManage(o.UserID) {
			return ErrForbidden
		}
		if !domain.CanTransitionTo(o.Status, domain.OrderStatusCancelled) {
			return ErrIllegalTransition
		}
		if o.Status != domain.OrderStatusPending && !actor.IsAdmin() {
			return ErrIllegalTransition
		}
		return nil
	}, domain.OrderStatusCancelled, nil)
}

// Pay records an approved payment for the amount due and marks the order
// PAID. Only the buyer can pay, and only a PENDING order.
func (s *OrderService) Pay(ctx context.Context, actor domain.Actor, id uuid.UUID, method domain.PaymentMethod) (*domain.Order, error) {
	if !method.IsValid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, method)
	}

	var payment *domain.Payment
	o, err := s.transition(ctx, id, func(o *domain.Order) error {
		if o.UserID != actor.UserID {
			return ErrForbidden
		}
		if o.Status != domain.OrderStatusPending {
			return ErrIllegalTransition
		}
		return nil
	}, domain.OrderStatusPaid, func(tx repository.Tx, o *domain.Order) error {
		payment = &domain.Payment{
			ID:      uuid.New(),
			OrderID: o.ID,
			Amount:  o.AmountDue(),
			Method:  method,
			Status:  domain.PaymentStatusApproved,
		}
		return tx.InsertPayment(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	o.Payments = append(o.Payments, payment)
	s.log.InfoContext(ctx, "order paid", "order_id", o.ID, "amount", payment.Amount.String(), "method", method)
	return o, nil
}

// transition locks the order, runs check, applies side effects for the
// target status and writes the status change with its outbox event.
func (s *OrderService) transition(
	ctx context.Context,
	id uuid.UUID,
	check func(o *domain.Order) error,
	to domain.OrderStatus,
	extra func(tx repository.Tx, o *domain.Order) error,
) (*domain.Order, error) {
	var order *domain.Order
	var restored []int64

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := check(o); err != nil {
			return err
		}
		from := o.Status

		if to == domain.OrderStatusCancelled {
			for _, it := range o.Items {
				if it.ProductID == 0 {
					continue // product was deleted after the sale
				}
				if err := tx.RestoreStock(ctx, it.ProductID, it.Quantity); err != nil {
					if errors.Is(err, ErrProductNotFound) {
						continue
					}
					return err
				}
				restored = append(restored, it.ProductID)
			}
			if from == domain.OrderStatusPaid {
				refund, err := s.refundFor(ctx, o)
				if err != nil {
					return err
				}
				if err := tx.InsertPayment(ctx, refund); err != nil {
					return err
				}
			}
		}

		if extra != nil {
			if err := extra(tx, o); err != nil {
				return err
			}
		}

		if err := tx.UpdateOrderStatus(ctx, o.ID, to); err != nil {
			return err
		}
		o.Status = to
		o.UpdatedAt = s.now().UTC()
		order = o
		return s.writeEvent(ctx, tx, repository.EventOrderStatusChanged, o, from)
	})
	if err != nil {
		return nil, err
	}

	if len(restored) > 0 {
		s.catalog.Invalidate(ctx, restored...)
	}
	s.log.InfoContext(ctx, "order status changed", "order_id", order.ID, "status", order.Status)
	return order, nil
}

// refundFor builds the refund of a paid order, using the method of its
// approved payment.
func (s *OrderService) refundFor(ctx context.Context, o *domain.Order) (*domain.Payment, error) {
	payments, err := s.store.ListPaymentsByOrder(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	refund := &domain.Payment{
		ID:      uuid.New(),
		OrderID: o.ID,
		Amount:  o.AmountDue(),
		Method:  domain.PaymentMethodPix,
		Status:  domain.PaymentStatusRefunded,
	}
	for _, p := range payments {
		if p.Status == domain.PaymentStatusApproved {
			refund.Method = p.Method
			refund.Amount = p.Amount
		}
	}
	return refund, nil
}

func (s *OrderService) writeEvent(ctx context.Context, tx repository.Tx, eventType string, o *domain.Order, previous domain.OrderStatus) error {
	payload, err := json.Marshal(orderEvent{
		OrderID:        o.ID,
		UserID:         o.UserID,
		Status:         o.Status,
		PreviousStatus: previous,
		TotalPrice:     o.TotalPrice,
		ShippingCost:   o.ShippingCost,
		Items:          o.Items,
		OccurredAt:     s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return tx.InsertOutboxEvent(ctx, &repository.OutboxEvent{
		AggregateID: o.ID.String(),
		EventType:   eventType,
		Payload:     payload,
	})
}

func (s *OrderService) cartLines(ctx context.Context, userID int64) ([]CheckoutItem, error) {
	cart, err := s.carts.Cart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}
	lines := make([]CheckoutItem, 0, len(cart.Items))
	for _, it := range cart.Items {
		lines = append(lines, CheckoutItem{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.PriceSnapshot})
	}
	return lines, nil
}

func (s *OrderService) shippingAddress(ctx context.Context, userID int64, requested *domain.Address) (domain.Address, error) {
	if requested != nil && !requested.IsZero() {
		return *requested, nil
	}
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return domain.Address{}, err
	}
	if u.Address == nil || u.Address.IsZero() {
		return domain.Address{}, fmt.Errorf("%w: shipping address is required", ErrInvalidInput)
	}
	return *u.Address, nil
}

// mergeLines folds repeated products into one line, sorted by product id.
func mergeLines(lines []CheckoutItem) ([]CheckoutItem, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	byID := make(map[int64]int, len(lines))
	var merged []CheckoutItem
	for _, l := range lines {
		if l.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
		if i, ok := byID[l.ProductID]; ok {
			if !merged[i].UnitPrice.Equal(l.UnitPrice) {
				return nil, fmt.Errorf("%w: product %d listed with two prices", ErrInvalidInput, l.ProductID)
			}
			merged[i].Quantity += l.Quantity
			continue
		}
		byID[l.ProductID] = len(merged)
		merged = append(merged, l)
	}
	slices.SortFunc(merged, func(a, b CheckoutItem) int {
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	return merged, nil
}

// checkLines validates each line against the products and returns the
// order items with the price locked in.
func checkLines(products map[int64]*domain.Product, lines []CheckoutItem, buyerID int64) ([]domain.OrderItem, error) {
	items := make([]domain.OrderItem, 0, len(lines))
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrProductNotFound, l.ProductID)
		}
		if p.SellerID == buyerID {
			return nil, ErrOwnProduct
		}
		if !p.IsPurchasable(l.Quantity) {
			if p.Status != domain.ProductStatusAvailable {
				return nil, fmt.Errorf("%w: %s", ErrProductUnavailable, p.Name)
			}
			return nil, fmt.Errorf("%w: %s", ErrInsufficientStock, p.Name)
		}
		if !p.Price.Equal(l.UnitPrice) {
			return nil, fmt.Errorf("%w: %s", ErrPriceChanged, p.Name)
		}
		items = append(items, domain.OrderItem{
			ProductID:       p.ID,
			ProductName:     p.Name,
			Quantity:        l.Quantity,
			PriceAtPurchase: p.Price,
		})
	}
	return items, nil
}

func lineProductIDs(lines []CheckoutItem) []int64 {
	ids := make([]int64, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	return ids
}
