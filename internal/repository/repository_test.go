package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/brechodofuturo/marketplace/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "./migrations",
	}

	repo, err := NewRepository(creds)
	require.NoError(t, err)

	err = repo.RunMigrations(creds)
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func createTestUser(t *testing.T, repo *Repository, email string) *domain.User {
	u := &domain.User{
		Name:         "Maria",
		Email:        email,
		PasswordHash: "hash",
		Role:         domain.RoleCustomer,
	}
	require.NoError(t, repo.CreateUser(context.Background(), u))
	return u
}

func createTestProduct(t *testing.T, repo *Repository, sellerID int64, price string, stock int) *domain.Product {
	p := &domain.Product{
		SellerID: sellerID,
		Name:     "Jaqueta jeans",
		Slug:     "jaqueta-jeans",
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		Status:   domain.ProductStatusAvailable,
	}
	require.NoError(t, repo.CreateProduct(context.Background(), p, nil))
	return p
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	u := createTestUser(t, repo, "maria@example.com")
	assert.NotZero(t, u.ID)

	dup := &domain.User{Name: "Outra", Email: "maria@example.com", PasswordHash: "x", Role: domain.RoleCustomer}
	err := repo.CreateUser(ctx, dup)
	assert.ErrorIs(t, err, ErrEmailTaken)

	got, err := repo.GetUserByEmail(ctx, "maria@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Nil(t, got.Address)
}

func TestUpdateUser_Address(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	u := createTestUser(t, repo, "ana@example.com")
	u.Address = &domain.Address{Street: "Rua A", Number: "10", City: "Recife", State: "PE", PostalCode: "50000000"}
	require.NoError(t, repo.UpdateUser(ctx, u))

	got, err := repo.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Address)
	assert.Equal(t, "Recife", got.Address.City)

	_, err = repo.GetUserByID(ctx, 9999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestProducts_CreateListAndFilter(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seller := createTestUser(t, repo, "seller@example.com")

	cat := &domain.Category{Name: "Roupas", Slug: "roupas"}
	require.NoError(t, repo.CreateCategory(ctx, cat))

	p := &domain.Product{
		SellerID: seller.ID,
		Name:     "Vestido floral",
		Slug:     "vestido-floral",
		Price:    decimal.RequireFromString("59.90"),
		Stock:    1,
		Status:   domain.ProductStatusAvailable,
	}
	require.NoError(t, repo.CreateProduct(ctx, p, []int64{cat.ID}))
	createTestProduct(t, repo, seller.ID, "120.00", 2)

	got, err := repo.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("59.90")))
	require.Len(t, got.Categories, 1)
	assert.Equal(t, "roupas", got.Categories[0].Slug)

	list, total, err := repo.ListProducts(ctx, domain.ProductFilter{CategorySlug: "roupas"}, domain.NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, p.ID, list[0].ID)

	maxPrice := decimal.RequireFromString("100")
	list, total, err = repo.ListProducts(ctx, domain.ProductFilter{MaxPrice: &maxPrice}, domain.NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, list, 1)

	list, _, err = repo.ListProducts(ctx, domain.ProductFilter{Query: "VESTIDO"}, domain.NewPage(1, 10))
	require.NoError(t, err)
	assert.Len(t, list, 1)

	err = repo.CreateProduct(ctx, &domain.Product{SellerID: seller.ID, Name: "x", Slug: "x", Status: domain.ProductStatusAvailable}, []int64{777})
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestDecrementStock_IsConditional(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seller := createTestUser(t, repo, "seller@example.com")
	p := createTestProduct(t, repo, seller.ID, "10.00", 2)

	err := repo.WithTx(ctx, func(tx Tx) error {
		_, err := tx.DecrementStock(ctx, p.ID, 3)
		return err
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	var left int
	err = repo.WithTx(ctx, func(tx Tx) error {
		var err error
		left, err = tx.DecrementStock(ctx, p.ID, 2)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 0, left)

	got, err := repo.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
	assert.Equal(t, domain.ProductStatusSold, got.Status)

	err = repo.WithTx(ctx, func(tx Tx) error {
		return tx.RestoreStock(ctx, p.ID, 1)
	})
	require.NoError(t, err)

	got, err = repo.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stock)
	assert.Equal(t, domain.ProductStatusAvailable, got.Status)
}

func TestLockProducts_LastUnitGoesToOneBuyer(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seller := createTestUser(t, repo, "seller@example.com")
	p := createTestProduct(t, repo, seller.ID, "45.00", 1)

	buy := func() error {
		return repo.WithTx(ctx, func(tx Tx) error {
			locked, err := tx.LockProducts(ctx, []int64{p.ID})
			if err != nil {
				return err
			}
			if locked[p.ID].Stock < 1 {
				return ErrInsufficientStock
			}
			// hold the row so the other buyer has to wait on it
			time.Sleep(100 * time.Millisecond)
			_, err = tx.DecrementStock(ctx, p.ID, 1)
			return err
		})
	}

	start := make(chan struct{})
	results := make(chan error, 2)
	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results <- buy()
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	var committed, rejected int
	for err := range results {
		switch {
		case err == nil:
			committed++
		case errors.Is(err, ErrInsufficientStock):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, committed)
	assert.Equal(t, 1, rejected)

	got, err := repo.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
	assert.Equal(t, domain.ProductStatusSold, got.Status)
}

func TestUpdateProduct_WaitsForCheckoutLock(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seller := createTestUser(t, repo, "seller@example.com")
	p := createTestProduct(t, repo, seller.ID, "80.00", 1)

	locked := make(chan struct{})
	checkoutDone := make(chan error, 1)
	go func() {
		checkoutDone <- repo.WithTx(ctx, func(tx Tx) error {
			if _, err := tx.LockProducts(ctx, []int64{p.ID}); err != nil {
				return err
			}
			if _, err := tx.DecrementStock(ctx, p.ID, 1); err != nil {
				return err
			}
			close(locked)
			time.Sleep(200 * time.Millisecond)
			return nil
		})
	}()

	<-locked
	var seenStock int
	err := repo.UpdateProduct(ctx, p.ID, nil, func(row *domain.Product) error {
		seenStock = row.Stock
		row.Description = "Peça única"
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, <-checkoutDone)

	assert.Equal(t, 0, seenStock, "update must see the committed decrement")
	got, err := repo.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Peça única", got.Description)
	assert.Equal(t, 0, got.Stock)
	assert.Equal(t, domain.ProductStatusSold, got.Status)

	err = repo.UpdateProduct(ctx, 999999, nil, func(*domain.Product) error { return nil })
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestAppendProductImages_ConcurrentUploads(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seller := createTestUser(t, repo, "seller@example.com")
	p := createTestProduct(t, repo, seller.ID, "20.00", 1)

	var wg sync.WaitGroup
	for i := range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.AppendProductImages(ctx, p.ID, []string{fmt.Sprintf("/uploads/products/%d.jpg", i)}))
		}()
	}
	wg.Wait()

	got, err := repo.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, got.Images, 5)

	assert.ErrorIs(t, repo.AppendProductImages(ctx, 999999, []string{"/x.jpg"}), ErrProductNotFound)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	buyer := createTestUser(t, repo, "buyer@example.com")
	seller := createTestUser(t, repo, "seller@example.com")
	p := createTestProduct(t, repo, seller.ID, "10.00", 5)

	boom := errors.New("boom")
	orderID := uuid.New()
	err := repo.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.DecrementStock(ctx, p.ID, 2); err != nil {
			return err
		}
		o := &domain.Order{ID: orderID, UserID: buyer.ID, Status: domain.OrderStatusPending, TotalPrice: decimal.NewFromInt(20)}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := repo.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)

	_, err = repo.GetOrder(ctx, orderID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrders_InsertGetAndList(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	buyer := createTestUser(t, repo, "buyer@example.com")
	seller := createTestUser(t, repo, "seller@example.com")
	p := createTestProduct(t, repo, seller.ID, "25.50", 3)

	order := &domain.Order{
		ID:         uuid.New(),
		UserID:     buyer.ID,
		Status:     domain.OrderStatusPending,
		TotalPrice: decimal.RequireFromString("51.00"),
		Address:    domain.Address{City: "Natal", PostalCode: "59000000"},
		Items: []domain.OrderItem{
			{ProductID: p.ID, ProductName: p.Name, Quantity: 2, PriceAtPurchase: p.Price},
		},
	}
	err := repo.WithTx(ctx, func(tx Tx) error {
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		if err := tx.InsertOrderItems(ctx, order.ID, order.Items); err != nil {
			return err
		}
		return tx.InsertOutboxEvent(ctx, &OutboxEvent{
			AggregateID: order.ID.String(),
			EventType:   EventOrderCreated,
			Payload:     []byte(`{"order_id":"` + order.ID.String() + `"}`),
		})
	})
	require.NoError(t, err)

	got, err := repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, got.Status)
	assert.Equal(t, "Natal", got.Address.City)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].PriceAtPurchase.Equal(decimal.RequireFromString("25.50")))
	assert.True(t, got.TotalPrice.Equal(domain.ItemsTotal(got.Items)))

	mine, total, err := repo.ListOrders(ctx, domain.OrderFilter{UserID: buyer.ID}, domain.NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, mine, 1)

	_, total, err = repo.ListOrders(ctx, domain.OrderFilter{Status: domain.OrderStatusPaid}, domain.NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventOrderCreated, events[0].EventType)

	require.NoError(t, repo.MarkEventAsProcessed(ctx, events[0].ID))
	events, err = repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)

	err = repo.DeleteUser(ctx, buyer.ID)
	assert.ErrorIs(t, err, ErrUserHasOrders)
}

func TestReviews_OnePerUserAndProduct(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seller := createTestUser(t, repo, "seller@example.com")
	buyer := createTestUser(t, repo, "buyer@example.com")
	p := createTestProduct(t, repo, seller.ID, "10.00", 1)

	rv := &domain.Review{ProductID: p.ID, UserID: buyer.ID, Rating: 4, Comment: "Ótimo estado"}
	require.NoError(t, repo.CreateReview(ctx, rv))

	err := repo.CreateReview(ctx, &domain.Review{ProductID: p.ID, UserID: buyer.ID, Rating: 2})
	assert.ErrorIs(t, err, ErrReviewExists)

	require.NoError(t, repo.CreateReview(ctx, &domain.Review{ProductID: p.ID, UserID: seller.ID, Rating: 5}))

	summary, err := repo.ReviewSummary(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Count)
	assert.InDelta(t, 4.5, summary.Average, 0.001)

	list, total, err := repo.ListReviewsByProduct(ctx, p.ID, domain.NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)
	assert.Equal(t, "Maria", list[0].UserName)
}

func TestCarrierToken_SingleRowUpsert(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	_, err := repo.GetCarrierToken(ctx)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	first := &domain.CarrierToken{AccessToken: "a1", RefreshToken: "r1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, repo.SaveCarrierToken(ctx, first))

	second := &domain.CarrierToken{AccessToken: "a2", RefreshToken: "r2", ExpiresAt: time.Now().Add(2 * time.Hour)}
	require.NoError(t, repo.SaveCarrierToken(ctx, second))

	got, err := repo.GetCarrierToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a2", got.AccessToken)
	assert.Equal(t, "r2", got.RefreshToken)
}

func TestCategories_SlugUnique(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	parent := &domain.Category{Name: "Calçados", Slug: "calcados"}
	require.NoError(t, repo.CreateCategory(ctx, parent))

	err := repo.CreateCategory(ctx, &domain.Category{Name: "Calçados", Slug: "calcados"})
	assert.ErrorIs(t, err, ErrSlugTaken)

	child := &domain.Category{Name: "Tênis", Slug: "tenis", ParentID: &parent.ID}
	require.NoError(t, repo.CreateCategory(ctx, child))

	missing := int64(4242)
	err = repo.CreateCategory(ctx, &domain.Category{Name: "x", Slug: "x", ParentID: &missing})
	assert.ErrorIs(t, err, ErrCategoryNotFound)

	all, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
