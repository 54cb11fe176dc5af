package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/brechodofuturo/marketplace/internal/cache"
	"github.com/brechodofuturo/marketplace/internal/domain"
	"github.com/shopspring/decimal"
)

type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Condition   domain.ProductCondition
	CategoryIDs []int64
	WeightKg    float64
	WidthCm     float64
	HeightCm    float64
	LengthCm    float64
}

// ProductUpdate carries the fields to change; nil fields are left as they are.
type ProductUpdate struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	Status      *domain.ProductStatus
	Condition   *domain.ProductCondition
	CategoryIDs []int64 // nil keeps the current categories
	Images      []string
	WeightKg    *float64
	WidthCm     *float64
	HeightCm    *float64
	LengthCm    *float64
}

type ProductService struct {
	store ProductStore
	cache cache.ProductCache
	log   *slog.Logger
}

func NewProductService(store ProductStore, c cache.ProductCache, log *slog.Logger) *ProductService {
	return &ProductService{store: store, cache: c, log: log}
}

func (s *ProductService) Create(ctx context.Context, actor domain.Actor, in ProductInput) (*domain.Product, error) {
	if err := validateProductValues(in.Price, in.Stock); err != nil {
		return nil, err
	}

	p := &domain.Product{
		SellerID:    actor.UserID,
		Name:        strings.TrimSpace(in.Name),
		Slug:        domain.Slugify(in.Name),
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		Status:      domain.StatusForStock(domain.ProductStatusAvailable, in.Stock),
		Condition:   in.Condition,
		Images:      []string{},
		WeightKg:    in.WeightKg,
		WidthCm:     in.WidthCm,
		HeightCm:    in.HeightCm,
		LengthCm:    in.LengthCm,
	}
	if err := s.store.CreateProduct(ctx, p, in.CategoryIDs); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "product created", "product_id", p.ID, "seller_id", p.SellerID)
	return s.store.GetProductByID(ctx, p.ID)
}

// Get reads through the product cache. Cache failures are logged and the
// store is used instead.
func (s *ProductService) Get(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := s.cache.Get(ctx, id)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.log.WarnContext(ctx, "product cache get failed", "product_id", id, "error", err)
	}

	p, err = s.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, p); err != nil {
		s.log.WarnContext(ctx, "product cache set failed", "product_id", id, "error", err)
	}
	return p, nil
}

func (s *ProductService) List(ctx context.Context, f domain.ProductFilter, page domain.Page) ([]*domain.Product, int64, error) {
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return nil, 0, fmt.Errorf("%w: minPrice greater than maxPrice", ErrInvalidInput)
	}
	return s.store.ListProducts(ctx, f, page)
}

// Update applies the changed fields to the locked product row. Stock and
// status are only rewritten when the caller sent them; otherwise the values
// checkout left on the row are kept.
func (s *ProductService) Update(ctx context.Context, actor domain.Actor, id int64, upd ProductUpdate) (*domain.Product, error) {
	if upd.Status != nil && !upd.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *upd.Status)
	}

	err := s.store.UpdateProduct(ctx, id, upd.CategoryIDs, func(p *domain.Product) error {
		if !actor.CanManage(p.SellerID) {
			return ErrForbidden
		}
		upd.applyTo(p)
		return validateProductValues(p.Price, p.Stock)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)

	return s.store.GetProductByID(ctx, id)
}

func (upd ProductUpdate) applyTo(p *domain.Product) {
	if upd.Name != nil {
		p.Name = strings.TrimSpace(*upd.Name)
		p.Slug = domain.Slugify(p.Name)
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.Price != nil {
		p.Price = *upd.Price
	}
	if upd.Condition != nil {
		p.Condition = *upd.Condition
	}
	if upd.Images != nil {
		p.Images = upd.Images
	}
	if upd.WeightKg != nil {
		p.WeightKg = *upd.WeightKg
	}
	if upd.WidthCm != nil {
		p.WidthCm = *upd.WidthCm
	}
	if upd.HeightCm != nil {
		p.HeightCm = *upd.HeightCm
	}
	if upd.LengthCm != nil {
		p.LengthCm = *upd.LengthCm
	}
	if upd.Status != nil {
		p.Status = *upd.Status
	}
	if upd.Stock != nil {
		p.Stock = *upd.Stock
	}
	if upd.Stock != nil || upd.Status != nil {
		p.Status = domain.StatusForStock(p.Status, p.Stock)
	}
}

// AddImages appends stored image paths to the product.
func (s *ProductService) AddImages(ctx context.Context, actor domain.Actor, id int64, paths []string) (*domain.Product, error) {
	if err := s.CanManage(ctx, actor, id); err != nil {
		return nil, err
	}
	if err := s.store.AppendProductImages(ctx, id, paths); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return s.store.GetProductByID(ctx, id)
}

// CanManage reports whether the actor may change the product. It is used
// before accepting uploads so files are not written for a forbidden request.
func (s *ProductService) CanManage(ctx context.Context, actor domain.Actor, id int64) error {
	p, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.CanManage(p.SellerID) {
		return ErrForbidden
	}
	return nil
}

func (s *ProductService) Delete(ctx context.Context, actor domain.Actor, id int64) error {
	p, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.CanManage(p.SellerID) {
		return ErrForbidden
	}
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	s.log.InfoContext(ctx, "product deleted", "product_id", id, "by", actor.UserID)
	return nil
}

// Invalidate drops cached copies of the products, e.g. after a checkout
// changed their stock.
func (s *ProductService) Invalidate(ctx context.Context, ids ...int64) {
	s.invalidate(ctx, ids...)
}

func (s *ProductService) invalidate(ctx context.Context, ids ...int64) {
	if err := s.cache.Delete(ctx, ids...); err != nil {
		s.log.WarnContext(ctx, "product cache invalidate failed", "product_ids", ids, "error", err)
	}
}

func validateProductValues(price decimal.Decimal, stock int) error {
	if price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	if stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", ErrInvalidInput)
	}
	return nil
}
