package http

import (
	"context"
	"net/http"
	"time"
)

type CartHandler struct {
	carts   CartService
	timeout time.Duration
}

func NewCartHandler(carts CartService, timeout time.Duration) *CartHandler {
	return &CartHandler{carts: carts, timeout: timeout}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,min=1,max=99"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=99"`
}

// GET /api/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor, _ := actorFromContext(r.Context())
	view, err := h.carts.Get(ctx, actor.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, view)
}

// POST /api/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	actor, _ := actorFromContext(r.Context())
	view, err := h.carts.AddItem(ctx, actor.UserID, req.ProductID, req.Quantity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusCreated, view)
}

// PUT /api/cart/items/{productId}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := int64Param(w, r, "productId")
	if !ok {
		return
	}
	var req UpdateQuantityRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	actor, _ := actorFromContext(r.Context())
	view, err := h.carts.UpdateQuantity(ctx, actor.UserID, productID, req.Quantity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, view)
}

// DELETE /api/cart/items/{productId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := int64Param(w, r, "productId")
	if !ok {
		return
	}
	actor, _ := actorFromContext(r.Context())
	view, err := h.carts.RemoveItem(ctx, actor.UserID, productID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, view)
}

// DELETE /api/cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor, _ := actorFromContext(r.Context())
	if err := h.carts.Clear(ctx, actor.UserID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondNoContent(w)
}
