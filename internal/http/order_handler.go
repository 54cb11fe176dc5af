package http

import (
	"context"
	"net/http"
	"time"

	"github.com/brechodofuturo/marketplace/internal/domain"
	"github.com/brechodofuturo/marketplace/internal/service"
	"github.com/shopspring/decimal"
)

type OrderHandler struct {
	orders  OrderService
	timeout time.Duration
}

func NewOrderHandler(orders OrderService, timeout time.Duration) *OrderHandler {
	return &OrderHandler{orders: orders, timeout: timeout}
}

type CheckoutItemDTO struct {
	ProductID int64            `json:"product_id" validate:"required,gt=0"`
	Quantity  int              `json:"quantity" validate:"required,min=1,max=99"`
	UnitPrice *decimal.Decimal `json:"unit_price" validate:"required"`
}

// CheckoutRequestDTO without items checks out the caller's cart.
type CheckoutRequestDTO struct {
	Items           []CheckoutItemDTO `json:"items" validate:"omitempty,max=50,dive"`
	Address         *AddressDTO       `json:"address"`
	ShippingCost    *decimal.Decimal  `json:"shipping_cost"`
	ShippingService string            `json:"shipping_service" validate:"max=100"`
}

type UpdateStatusRequestDTO struct {
	Status domain.OrderStatus `json:"status" validate:"required,oneof=PENDING PAID SHIPPED DELIVERED CANCELLED"`
}

type PayRequestDTO struct {
	Method domain.PaymentMethod `json:"method" validate:"required,oneof=PIX CREDIT_CARD BOLETO"`
}

// POST /api/orders
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CheckoutRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	in := service.CheckoutInput{
		Address:         req.Address.toDomain(),
		ShippingService: req.ShippingService,
	}
	if req.ShippingCost != nil {
		if req.ShippingCost.IsNegative() {
			respondError(w, http.StatusBadRequest, "invalid_shipping_cost", "Valor de frete inválido")
			return
		}
		in.ShippingCost = *req.ShippingCost
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, service.CheckoutItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: *it.UnitPrice,
		})
	}

	actor, _ := actorFromContext(r.Context())
	o, err := h.orders.Checkout(ctx, actor, in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusCreated, o)
}

// GET /api/orders lists the caller's orders; admins may pass ?all=true
// and ?status= to see everybody's.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor, _ := actorFromContext(r.Context())
	page := pageFromQuery(r)
	q := r.URL.Query()

	var (
		orders []*domain.Order
		total  int64
		err    error
	)
	if q.Get("all") == "true" {
		status := domain.OrderStatus(q.Get("status"))
		if status != "" && !status.IsValid() {
			respondError(w, http.StatusBadRequest, "invalid_status", "Status inválido")
			return
		}
		orders, total, err = h.orders.ListAll(ctx, actor, status, page)
	} else {
		orders, total, err = h.orders.ListMine(ctx, actor, page)
	}
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondList(w, orders, page, total)
}

// GET /api/orders/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	actor, _ := actorFromContext(r.Context())
	o, err := h.orders.Get(ctx, actor, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, o)
}

// PATCH /api/orders/{id}/status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req UpdateStatusRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	actor, _ := actorFromContext(r.Context())
	o, err := h.orders.UpdateStatus(ctx, actor, id, req.Status)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, o)
}

// POST /api/orders/{id}/cancel
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	actor, _ := actorFromContext(r.Context())
	o, err := h.orders.Cancel(ctx, actor, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, o)
}

// POST /api/orders/{id}/pay
func (h *OrderHandler) Pay(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req PayRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	actor, _ := actorFromContext(r.Context())
	o, err := h.orders.Pay(ctx, actor, id, req.Method)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, o)
}
