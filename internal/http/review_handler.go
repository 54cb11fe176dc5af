package http

import (
	"context"
	"net/http"
	"time"
)

type ReviewHandler struct {
	reviews ReviewService
	timeout time.Duration
}

func NewReviewHandler(reviews ReviewService, timeout time.Duration) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, timeout: timeout}
}

// PUT /api/reviews/{id}
func (h *ReviewHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	var req ReviewRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	actor, _ := actorFromContext(r.Context())
	review, err := h.reviews.Update(ctx, actor, id, req.Rating, req.Comment)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, review)
}

// DELETE /api/reviews/{id}
func (h *ReviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	actor, _ := actorFromContext(r.Context())
	if err := h.reviews.Delete(ctx, actor, id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondNoContent(w)
}
