package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/brechodofuturo/marketplace/internal/domain"
	"github.com/brechodofuturo/marketplace/internal/service"
	"github.com/shopspring/decimal"
)

type ProductHandler struct {
	products ProductService
	reviews  ReviewService
	uploader *Uploader
	timeout  time.Duration
}

func NewProductHandler(products ProductService, reviews ReviewService, uploader *Uploader, timeout time.Duration) *ProductHandler {
	return &ProductHandler{products: products, reviews: reviews, uploader: uploader, timeout: timeout}
}

type ProductRequestDTO struct {
	Name        string                  `json:"name" validate:"required,min=2,max=200"`
	Description string                  `json:"description" validate:"max=5000"`
	Price       *decimal.Decimal        `json:"price" validate:"required"`
	Stock       *int                    `json:"stock" validate:"required,gte=0"`
	Condition   domain.ProductCondition `json:"condition" validate:"omitempty,oneof=NEW LIKE_NEW GOOD FAIR"`
	CategoryIDs []int64                 `json:"category_ids" validate:"dive,gt=0"`
	WeightKg    float64                 `json:"weight_kg" validate:"gte=0"`
	WidthCm     float64                 `json:"width_cm" validate:"gte=0"`
	HeightCm    float64                 `json:"height_cm" validate:"gte=0"`
	LengthCm    float64                 `json:"length_cm" validate:"gte=0"`
}

type UpdateProductRequestDTO struct {
	Name        *string                  `json:"name" validate:"omitempty,min=2,max=200"`
	Description *string                  `json:"description" validate:"omitempty,max=5000"`
	Price       *decimal.Decimal         `json:"price"`
	Stock       *int                     `json:"stock" validate:"omitempty,gte=0"`
	Status      *domain.ProductStatus    `json:"status" validate:"omitempty,oneof=AVAILABLE SOLD HIDDEN"`
	Condition   *domain.ProductCondition `json:"condition" validate:"omitempty,oneof=NEW LIKE_NEW GOOD FAIR"`
	CategoryIDs []int64                  `json:"category_ids" validate:"omitempty,dive,gt=0"`
	Images      []string                 `json:"images"`
	WeightKg    *float64                 `json:"weight_kg" validate:"omitempty,gte=0"`
	WidthCm     *float64                 `json:"width_cm" validate:"omitempty,gte=0"`
	HeightCm    *float64                 `json:"height_cm" validate:"omitempty,gte=0"`
	LengthCm    *float64                 `json:"length_cm" validate:"omitempty,gte=0"`
}

type ReviewRequestDTO struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// GET /api/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q := r.URL.Query()
	f := domain.ProductFilter{
		Query:        q.Get("q"),
		CategorySlug: q.Get("category"),
		Status:       domain.ProductStatus(q.Get("status")),
		SortBy:       q.Get("sort"),
		SortDesc:     q.Get("order") == "desc",
	}
	if f.Status != "" && !f.Status.IsValid() {
		respondError(w, http.StatusBadRequest, "invalid_status", "Status inválido")
		return
	}
	if raw := q.Get("seller"); raw != "" {
		seller, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_seller", "Vendedor inválido")
			return
		}
		f.SellerID = seller
	}
	for key, dst := range map[string]**decimal.Decimal{"minPrice": &f.MinPrice, "maxPrice": &f.MaxPrice} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_price", "Preço inválido")
			return
		}
		*dst = &v
	}

	// hidden listings are visible to their seller and to admins only
	if f.Status == domain.ProductStatusHidden {
		actor, ok := actorFromContext(r.Context())
		if !ok {
			respondError(w, http.StatusUnauthorized, "unauthorized", "Autenticação necessária")
			return
		}
		if !actor.IsAdmin() {
			f.SellerID = actor.UserID
		}
	}

	page := pageFromQuery(r)
	products, total, err := h.products.List(ctx, f, page)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondList(w, products, page, total)
}

// GET /api/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	p, err := h.products.Get(ctx, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, p)
}

// POST /api/products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ProductRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	actor, _ := actorFromContext(r.Context())
	p, err := h.products.Create(ctx, actor, service.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
		Stock:       *req.Stock,
		Condition:   req.Condition,
		CategoryIDs: req.CategoryIDs,
		WeightKg:    req.WeightKg,
		WidthCm:     req.WidthCm,
		HeightCm:    req.HeightCm,
		LengthCm:    req.LengthCm,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusCreated, p)
}

// PUT /api/products/{id}
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	var req UpdateProductRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	actor, _ := actorFromContext(r.Context())
	p, err := h.products.Update(ctx, actor, id, service.ProductUpdate{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Status:      req.Status,
		Condition:   req.Condition,
		CategoryIDs: req.CategoryIDs,
		Images:      req.Images,
		WeightKg:    req.WeightKg,
		WidthCm:     req.WidthCm,
		HeightCm:    req.HeightCm,
		LengthCm:    req.LengthCm,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, p)
}

// DELETE /api/products/{id}
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	actor, _ := actorFromContext(r.Context())
	if err := h.products.Delete(ctx, actor, id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondNoContent(w)
}

// POST /api/products/{id}/images (multipart field "images")
func (h *ProductHandler) UploadImages(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	actor, _ := actorFromContext(r.Context())
	if err := h.products.CanManage(ctx, actor, id); err != nil {
		handleServiceError(w, r, err)
		return
	}

	paths, err := h.uploader.SaveImages(r, "images")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	p, err := h.products.AddImages(ctx, actor, id, paths)
	if err != nil {
		h.uploader.Remove(paths)
		handleServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, p)
}

// GET /api/products/{id}/reviews
func (h *ProductHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	page := pageFromQuery(r)
	res, err := h.reviews.ListByProduct(ctx, id, page)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	p := domain.NewPagination(page, res.Total)
	respondJSON(w, http.StatusOK, Envelope{Success: true, Data: res, Pagination: &p})
}

// POST /api/products/{id}/reviews
func (h *ProductHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
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
	review, err := h.reviews.Create(ctx, actor, id, req.Rating, req.Comment)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusCreated, review)
}
