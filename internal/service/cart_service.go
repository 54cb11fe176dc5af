package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/brechodofuturo/marketplace/internal/cache"
	"github.com/brechodofuturo/marketplace/internal/domain"
	"github.com/brechodofuturo/marketplace/internal/repository"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

type CartService struct {
	store    CartStore
	products ProductStore
	cache    cache.CartCache
	log      *slog.Logger
	sfg      singleflight.Group // collapses concurrent cache misses for one user
}

func NewCartService(store CartStore, products ProductStore, c cache.CartCache, log *slog.Logger) *CartService {
	return &CartService{store: store, products: products, cache: c, log: log}
}

// Cart returns the stored cart, or an empty one when the user has none.
func (s *CartService) Cart(ctx context.Context, userID int64) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(strconv.FormatInt(userID, 10), func() (any, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.WarnContext(ctx, "cart cache get failed", "user_id", userID, "error", err)
		}

		// read before the store so an invalidation during the read
		// makes the fill below stale
		version, err := s.cache.Version(ctx, userID)
		if err != nil {
			s.log.WarnContext(ctx, "cart cache version failed", "user_id", userID, "error", err)
		}

		cart, err = s.store.GetCart(ctx, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			now := time.Now().UTC()
			return &domain.Cart{UserID: userID, Items: []domain.CartItem{}, CreatedAt: now, UpdatedAt: now}, nil
		}
		if err != nil {
			return nil, err
		}

		switch err := s.cache.Set(ctx, userID, version, cart); {
		case errors.Is(err, cache.ErrStaleFill):
			s.log.DebugContext(ctx, "cart cache fill dropped", "user_id", userID)
		case err != nil:
			s.log.WarnContext(ctx, "cart cache set failed", "user_id", userID, "error", err)
		}
		return cart, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Cart), nil
}

// Get returns the cart joined with the current product data. Items whose
// product was deleted are left out.
func (s *CartService) Get(ctx context.Context, userID int64) (*domain.CartView, error) {
	cart, err := s.Cart(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(cart.Items))
	for _, it := range cart.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.products.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	view := &domain.CartView{
		UserID:    userID,
		Items:     make([]domain.CartLine, 0, len(cart.Items)),
		Total:     decimal.Zero,
		UpdatedAt: cart.UpdatedAt,
	}
	for _, it := range cart.Items {
		p, ok := products[it.ProductID]
		if !ok {
			continue
		}
		line := domain.CartLine{
			ProductID:     p.ID,
			Name:          p.Name,
			Status:        p.Status,
			Stock:         p.Stock,
			Quantity:      it.Quantity,
			UnitPrice:     p.Price,
			PriceSnapshot: it.PriceSnapshot,
			PriceChanged:  !it.PriceSnapshot.Equal(p.Price),
			Subtotal:      p.Price.Mul(decimal.NewFromInt(int64(it.Quantity))),
		}
		if len(p.Images) > 0 {
			line.Image = p.Images[0]
		}
		view.Items = append(view.Items, line)
		view.ItemCount += it.Quantity
		view.Total = view.Total.Add(line.Subtotal)
	}
	return view, nil
}

// AddItem adds quantity units of a product. Adding a product already in
// the cart increases its quantity and refreshes the price snapshot.
func (s *CartService) AddItem(ctx context.Context, userID, productID int64, quantity int) (*domain.CartView, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	p, err := s.products.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.SellerID == userID {
		return nil, ErrOwnProduct
	}
	if p.Status != domain.ProductStatusAvailable {
		return nil, ErrProductUnavailable
	}

	cart, err := s.Cart(ctx, userID)
	if err != nil {
		return nil, err
	}
	total := quantity
	if existing, ok := cart.Item(productID); ok {
		total += existing.Quantity
	}
	if !p.IsPurchasable(total) {
		return nil, ErrInsufficientStock
	}

	item := domain.CartItem{ProductID: productID, Quantity: total, PriceSnapshot: p.Price}
	if err := s.store.AddItem(ctx, userID, item); err != nil {
		s.log.ErrorContext(ctx, "cart add item failed", "user_id", userID, "product_id", productID, "error", err)
		return nil, err
	}
	s.invalidate(ctx, userID)
	return s.Get(ctx, userID)
}

func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID int64, quantity int) (*domain.CartView, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	p, err := s.products.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if quantity > p.Stock {
		return nil, ErrInsufficientStock
	}

	if err := s.store.UpdateItemQuantity(ctx, userID, productID, quantity); err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID)
	return s.Get(ctx, userID)
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID int64) (*domain.CartView, error) {
	if err := s.store.RemoveItem(ctx, userID, productID); err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID)
	return s.Get(ctx, userID)
}

// Clear empties the cart. Clearing a cart that does not exist is a no-op.
func (s *CartService) Clear(ctx context.Context, userID int64) error {
	err := s.store.DeleteCart(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *CartService) invalidate(ctx context.Context, userID int64) {
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Delete(delCtx, userID); err != nil {
		s.log.WarnContext(ctx, "cart cache invalidate failed", "user_id", userID, "error", err)
	}
}
