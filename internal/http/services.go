package http

import (
	"context"

	"github.com/brechodofuturo/marketplace/internal/domain"
	"github.com/brechodofuturo/marketplace/internal/service"
	"github.com/brechodofuturo/marketplace/internal/shipping"
	"github.com/google/uuid"
)

// The handlers depend on these views of the services so tests can swap
// them out.

type UserService interface {
	Register(ctx context.Context, in service.RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	Get(ctx context.Context, actor domain.Actor, id int64) (*domain.User, error)
	List(ctx context.Context, actor domain.Actor, page domain.Page) ([]*domain.User, int64, error)
	Update(ctx context.Context, actor domain.Actor, id int64, upd service.UserUpdate) (*domain.User, error)
	ChangePassword(ctx context.Context, actor domain.Actor, id int64, current, next string) error
	Delete(ctx context.Context, actor domain.Actor, id int64) error
}

type ProductService interface {
	Create(ctx context.Context, actor domain.Actor, in service.ProductInput) (*domain.Product, error)
	Get(ctx context.Context, id int64) (*domain.Product, error)
	List(ctx context.Context, f domain.ProductFilter, page domain.Page) ([]*domain.Product, int64, error)
	Update(ctx context.Context, actor domain.Actor, id int64, upd service.ProductUpdate) (*domain.Product, error)
	AddImages(ctx context.Context, actor domain.Actor, id int64, paths []string) (*domain.Product, error)
	CanManage(ctx context.Context, actor domain.Actor, id int64) error
	Delete(ctx context.Context, actor domain.Actor, id int64) error
}

type CategoryService interface {
	Create(ctx context.Context, actor domain.Actor, in service.CategoryInput) (*domain.Category, error)
	Get(ctx context.Context, id int64) (*domain.Category, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Category, error)
	List(ctx context.Context, tree bool) ([]domain.Category, error)
	Update(ctx context.Context, actor domain.Actor, id int64, in service.CategoryInput) (*domain.Category, error)
	Delete(ctx context.Context, actor domain.Actor, id int64) error
}

type CartService interface {
	Get(ctx context.Context, userID int64) (*domain.CartView, error)
	AddItem(ctx context.Context, userID, productID int64, quantity int) (*domain.CartView, error)
	UpdateQuantity(ctx context.Context, userID, productID int64, quantity int) (*domain.CartView, error)
	RemoveItem(ctx context.Context, userID, productID int64) (*domain.CartView, error)
	Clear(ctx context.Context, userID int64) error
}

type OrderService interface {
	Checkout(ctx context.Context, actor domain.Actor, in service.CheckoutInput) (*domain.Order, error)
	Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Order, error)
	ListMine(ctx context.Context, actor domain.Actor, page domain.Page) ([]*domain.Order, int64, error)
	ListAll(ctx context.Context, actor domain.Actor, status domain.OrderStatus, page domain.Page) ([]*domain.Order, int64, error)
	UpdateStatus(ctx context.Context, actor domain.Actor, id uuid.UUID, to domain.OrderStatus) (*domain.Order, error)
	Cancel(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Order, error)
	Pay(ctx context.Context, actor domain.Actor, id uuid.UUID, method domain.PaymentMethod) (*domain.Order, error)
}

type ReviewService interface {
	Create(ctx context.Context, actor domain.Actor, productID int64, rating int, comment string) (*domain.Review, error)
	ListByProduct(ctx context.Context, productID int64, page domain.Page) (*service.ReviewPage, error)
	Update(ctx context.Context, actor domain.Actor, id int64, rating int, comment string) (*domain.Review, error)
	Delete(ctx context.Context, actor domain.Actor, id int64) error
}

type ShippingService interface {
	Quote(ctx context.Context, toPostalCode string, items []shipping.Item) ([]shipping.Quote, error)
}

// CarrierAuthorizer runs the authorization-code grant with the carrier.
type CarrierAuthorizer interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*domain.CarrierToken, error)
}
