package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/brechodofuturo/marketplace/internal/service"
	"github.com/go-chi/chi/v5"
)

type CategoryHandler struct {
	categories CategoryService
	timeout    time.Duration
}

func NewCategoryHandler(categories CategoryService, timeout time.Duration) *CategoryHandler {
	return &CategoryHandler{categories: categories, timeout: timeout}
}

type CategoryRequestDTO struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Description string `json:"description" validate:"max=1000"`
	ParentID    *int64 `json:"parent_id" validate:"omitempty,gt=0"`
}

// GET /api/categories?tree=true
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	tree := r.URL.Query().Get("tree") == "true"
	categories, err := h.categories.List(ctx, tree)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, categories)
}

// GET /api/categories/{id} accepts either the numeric id or the slug.
func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	key := chi.URLParam(r, "id")
	var err error
	var res any
	if id, convErr := strconv.ParseInt(key, 10, 64); convErr == nil {
		res, err = h.categories.Get(ctx, id)
	} else {
		res, err = h.categories.GetBySlug(ctx, key)
	}
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, res)
}

// POST /api/categories
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CategoryRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	actor, _ := actorFromContext(r.Context())
	c, err := h.categories.Create(ctx, actor, service.CategoryInput{
		Name:        req.Name,
		Description: req.Description,
		ParentID:    req.ParentID,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusCreated, c)
}

// PUT /api/categories/{id}
func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	var req CategoryRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	actor, _ := actorFromContext(r.Context())
	c, err := h.categories.Update(ctx, actor, id, service.CategoryInput{
		Name:        req.Name,
		Description: req.Description,
		ParentID:    req.ParentID,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, c)
}

// DELETE /api/categories/{id}
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	actor, _ := actorFromContext(r.Context())
	if err := h.categories.Delete(ctx, actor, id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondNoContent(w)
}
