package service

import (
	"context"
	"testing"

	"github.com/brechodofuturo/marketplace/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductCreate_DerivesSlugAndStatus(t *testing.T) {
	store := newMemStore()
	svc := NewProductService(store, newMemProductCache(), discardLogger())
	seller := domain.Actor{UserID: 5, Role: domain.RoleCustomer}

	p, err := svc.Create(context.Background(), seller, ProductInput{Name: "Jaqueta de Couro Legítimo", Price: dec("150"), Stock: 1})
	require.NoError(t, err)
	assert.Equal(t, "jaqueta-de-couro-legitimo", p.Slug)
	assert.Equal(t, int64(5), p.SellerID)
	assert.Equal(t, domain.ProductStatusAvailable, p.Status)

	empty, err := svc.Create(context.Background(), seller, ProductInput{Name: "Esgotado", Price: dec("10"), Stock: 0})
	require.NoError(t, err)
	assert.Equal(t, domain.ProductStatusSold, empty.Status)

	_, err = svc.Create(context.Background(), seller, ProductInput{Name: "x", Price: dec("-1"), Stock: 1})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestProductGet_CacheAside(t *testing.T) {
	store := newMemStore()
	pc := newMemProductCache()
	svc := NewProductService(store, pc, discardLogger())
	p := store.addProduct(&domain.Product{SellerID: 1, Name: "Óculos", Price: dec("30"), Stock: 1})

	got, err := svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Óculos", got.Name)

	cached, err := pc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, cached.ID)

	_, err = svc.Get(context.Background(), 404)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductUpdate_OwnerOrAdmin(t *testing.T) {
	store := newMemStore()
	pc := newMemProductCache()
	svc := NewProductService(store, pc, discardLogger())
	ctx := context.Background()
	p := store.addProduct(&domain.Product{SellerID: 1, Name: "Óculos", Price: dec("30"), Stock: 1})
	_, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)

	stock := 0
	_, err = svc.Update(ctx, domain.Actor{UserID: 2, Role: domain.RoleCustomer}, p.ID, ProductUpdate{Stock: &stock})
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := svc.Update(ctx, domain.Actor{UserID: 1, Role: domain.RoleCustomer}, p.ID, ProductUpdate{Stock: &stock})
	require.NoError(t, err)
	assert.Equal(t, domain.ProductStatusSold, updated.Status)

	_, err = pc.Get(ctx, p.ID)
	assert.Error(t, err, "update invalidates the cached copy")

	stock = 4
	price := dec("35.00")
	updated, err = svc.Update(ctx, domain.Actor{UserID: 9, Role: domain.RoleAdmin}, p.ID, ProductUpdate{Stock: &stock, Price: &price})
	require.NoError(t, err)
	assert.Equal(t, domain.ProductStatusAvailable, updated.Status)
	assert.True(t, updated.Price.Equal(price))

	hidden := domain.ProductStatusHidden
	updated, err = svc.Update(ctx, domain.Actor{UserID: 1, Role: domain.RoleCustomer}, p.ID, ProductUpdate{Status: &hidden})
	require.NoError(t, err)
	assert.Equal(t, domain.ProductStatusHidden, updated.Status)
}

func TestProductAddImagesAndDelete(t *testing.T) {
	store := newMemStore()
	svc := NewProductService(store, newMemProductCache(), discardLogger())
	ctx := context.Background()
	owner := domain.Actor{UserID: 1, Role: domain.RoleCustomer}
	p := store.addProduct(&domain.Product{SellerID: 1, Name: "Óculos", Price: dec("30"), Stock: 1, Images: []string{"/uploads/1.jpg"}})

	assert.ErrorIs(t, svc.CanManage(ctx, domain.Actor{UserID: 3}, p.ID), ErrForbidden)

	updated, err := svc.AddImages(ctx, owner, p.ID, []string{"/uploads/2.jpg"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/uploads/1.jpg", "/uploads/2.jpg"}, updated.Images)

	assert.ErrorIs(t, svc.Delete(ctx, domain.Actor{UserID: 3}, p.ID), ErrForbidden)
	require.NoError(t, svc.Delete(ctx, owner, p.ID))
	_, err = svc.Get(ctx, p.ID)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductList_PriceRange(t *testing.T) {
	svc := NewProductService(newMemStore(), newMemProductCache(), discardLogger())
	lo, hi := dec("50"), dec("10")

	_, _, err := svc.List(context.Background(), domain.ProductFilter{MinPrice: &lo, MaxPrice: &hi}, domain.NewPage(1, 10))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestProductUpdate_KeepsStockTakenByConcurrentCheckout(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	svc := NewProductService(f.store, newMemProductCache(), discardLogger())
	vase := f.product("Vaso de cerâmica", "80.00", 1)

	var checkoutErr error
	f.store.onProductUpdate = func() {
		f.store.onProductUpdate = nil
		_, checkoutErr = f.orders.Checkout(ctx, f.buyer, CheckoutInput{
			Items: []CheckoutItem{{ProductID: vase.ID, Quantity: 1, UnitPrice: dec("80.00")}},
		})
	}

	desc := "Peça única, sem lascas"
	updated, err := svc.Update(ctx, domain.Actor{UserID: f.seller.ID, Role: domain.RoleCustomer}, vase.ID, ProductUpdate{Description: &desc})
	require.NoError(t, err)
	require.NoError(t, checkoutErr)

	assert.Equal(t, desc, updated.Description)
	assert.Equal(t, 0, updated.Stock)
	assert.Equal(t, domain.ProductStatusSold, updated.Status)
}

func TestProductUpdate_ForbiddenLeavesRowUntouched(t *testing.T) {
	store := newMemStore()
	svc := NewProductService(store, newMemProductCache(), discardLogger())
	p := store.addProduct(&domain.Product{SellerID: 1, Name: "Óculos", Description: "original", Price: dec("30"), Stock: 1})

	desc := "alterado"
	_, err := svc.Update(context.Background(), domain.Actor{UserID: 2, Role: domain.RoleCustomer}, p.ID, ProductUpdate{Description: &desc})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, "original", store.product(p.ID).Description)

	_, err = svc.Update(context.Background(), domain.Actor{UserID: 1}, 404, ProductUpdate{Description: &desc})
	assert.ErrorIs(t, err, ErrProductNotFound)
}
