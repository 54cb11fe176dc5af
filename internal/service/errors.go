package service

import (
	"errors"

	"github.com/brechodofuturo/marketplace/internal/repository"
)

// Not-found and conflict errors come straight from the stores.
var (
	ErrUserNotFound      = repository.ErrUserNotFound
	ErrEmailTaken        = repository.ErrEmailTaken
	ErrUserHasOrders     = repository.ErrUserHasOrders
	ErrProductNotFound   = repository.ErrProductNotFound
	ErrCategoryNotFound  = repository.ErrCategoryNotFound
	ErrSlugTaken         = repository.ErrSlugTaken
	ErrOrderNotFound     = repository.ErrOrderNotFound
	ErrInsufficientStock = repository.ErrInsufficientStock
	ErrReviewNotFound    = repository.ErrReviewNotFound
	ErrReviewExists      = repository.ErrReviewExists
	ErrItemNotFound      = repository.ErrItemNotFound
)

var (
	ErrForbidden          = errors.New("operation not allowed for this user")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidInput       = errors.New("invalid input")
	ErrProductUnavailable = errors.New("product is not available")
	ErrPriceChanged       = errors.New("product price changed")
	ErrOwnProduct         = errors.New("cannot buy own product")
	ErrEmptyCart          = errors.New("cart is empty, nothing to checkout")
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
	ErrIllegalTransition  = errors.New("illegal transition of order status")
	ErrInvalidRating      = errors.New("rating must be between 1 and 5")
	ErrCategoryCycle      = errors.New("category cannot be its own ancestor")
)
