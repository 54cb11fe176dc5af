package cache

import (
	"context"
	"errors"

	"github.com/brechodofuturo/marketplace/internal/domain"
)

var (
	ErrCacheMiss = errors.New("cache miss")
	// ErrStaleFill is returned by CartCache.Set when the cart was
	// invalidated after the caller read its version.
	ErrStaleFill = errors.New("cache fill is stale")
)

// CartCache stores carts behind a per-user version. Delete bumps the
// version, and Set only writes when the version it was given is still
// current.
type CartCache interface {
	Get(ctx context.Context, userID int64) (*domain.Cart, error)
	Version(ctx context.Context, userID int64) (int64, error)
	Set(ctx context.Context, userID, version int64, cart *domain.Cart) error
	Delete(ctx context.Context, userID int64) error
}

type ProductCache interface {
	Get(ctx context.Context, productID int64) (*domain.Product, error)
	Set(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, productIDs ...int64) error
}
