package service

import (
	"context"

	"github.com/brechodofuturo/marketplace/internal/domain"
	"github.com/brechodofuturo/marketplace/internal/repository"
	"github.com/google/uuid"
)

// The interfaces below are what the services need from persistence.
// *repository.Repository and *repository.CartRepository satisfy them.

type UserStore interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListUsers(ctx context.Context, page domain.Page) ([]*domain.User, int64, error)
	UpdateUser(ctx context.Context, u *domain.User) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
	DeleteUser(ctx context.Context, id int64) error
}

type ProductStore interface {
	CreateProduct(ctx context.Context, p *domain.Product, categoryIDs []int64) error
	GetProductByID(ctx context.Context, id int64) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]*domain.Product, error)
	ListProducts(ctx context.Context, f domain.ProductFilter, page domain.Page) ([]*domain.Product, int64, error)
	UpdateProduct(ctx context.Context, id int64, categoryIDs []int64, apply func(p *domain.Product) error) error
	AppendProductImages(ctx context.Context, id int64, paths []string) error
	DeleteProduct(ctx context.Context, id int64) error
}

type CategoryStore interface {
	CreateCategory(ctx context.Context, c *domain.Category) error
	GetCategoryByID(ctx context.Context, id int64) (*domain.Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	UpdateCategory(ctx context.Context, c *domain.Category) error
	DeleteCategory(ctx context.Context, id int64) error
}

type CartStore interface {
	GetCart(ctx context.Context, userID int64) (*domain.Cart, error)
	AddItem(ctx context.Context, userID int64, item domain.CartItem) error
	UpdateItemQuantity(ctx context.Context, userID, productID int64, quantity int) error
	RemoveItem(ctx context.Context, userID, productID int64) error
	DeleteCart(ctx context.Context, userID int64) error
}

type OrderStore interface {
	WithTx(ctx context.Context, fn func(tx repository.Tx) error) error
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrders(ctx context.Context, f domain.OrderFilter, page domain.Page) ([]*domain.Order, int64, error)
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]*domain.Payment, error)
}

type ReviewStore interface {
	CreateReview(ctx context.Context, r *domain.Review) error
	GetReview(ctx context.Context, id int64) (*domain.Review, error)
	ListReviewsByProduct(ctx context.Context, productID int64, page domain.Page) ([]*domain.Review, int64, error)
	ReviewSummary(ctx context.Context, productID int64) (domain.ReviewSummary, error)
	UpdateReview(ctx context.Context, r *domain.Review) error
	DeleteReview(ctx context.Context, id int64) error
}
