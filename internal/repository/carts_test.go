package repository

import (
	"context"
	"testing"
	"time"

	"github.com/brechodofuturo/marketplace/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupTestMongo(t *testing.T) (*CartRepository, func()) {
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	repo := NewCartRepository(db)
	require.NoError(t, repo.CreateIndexes(ctx))

	cleanup := func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return repo, cleanup
}

func TestGetCart_NotFound(t *testing.T) {
	repo, cleanup := setupTestMongo(t)
	defer cleanup()

	cart, err := repo.GetCart(context.Background(), 42)
	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.Nil(t, cart)
}

func TestAddItem_CreatesCartAndKeepsSnapshot(t *testing.T) {
	repo, cleanup := setupTestMongo(t)
	defer cleanup()

	ctx := context.Background()
	item := domain.CartItem{ProductID: 1, Quantity: 2, PriceSnapshot: decimal.RequireFromString("49.90")}
	require.NoError(t, repo.AddItem(ctx, 7, item))

	cart, err := repo.GetCart(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), cart.UserID)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.True(t, cart.Items[0].PriceSnapshot.Equal(decimal.RequireFromString("49.90")))
	assert.False(t, cart.CreatedAt.IsZero())
}

func TestAddItem_ExistingLineIsReplaced(t *testing.T) {
	repo, cleanup := setupTestMongo(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, repo.AddItem(ctx, 7, domain.CartItem{ProductID: 1, Quantity: 1, PriceSnapshot: decimal.NewFromInt(10)}))
	require.NoError(t, repo.AddItem(ctx, 7, domain.CartItem{ProductID: 1, Quantity: 3, PriceSnapshot: decimal.NewFromInt(12)}))

	cart, err := repo.GetCart(ctx, 7)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.True(t, cart.Items[0].PriceSnapshot.Equal(decimal.NewFromInt(12)))
}

func TestUpdateAndRemoveItem(t *testing.T) {
	repo, cleanup := setupTestMongo(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, repo.AddItem(ctx, 7, domain.CartItem{ProductID: 1, Quantity: 1, PriceSnapshot: decimal.NewFromInt(10)}))
	require.NoError(t, repo.AddItem(ctx, 7, domain.CartItem{ProductID: 2, Quantity: 1, PriceSnapshot: decimal.NewFromInt(20)}))

	require.NoError(t, repo.UpdateItemQuantity(ctx, 7, 2, 4))
	assert.ErrorIs(t, repo.UpdateItemQuantity(ctx, 7, 99, 1), ErrItemNotFound)

	require.NoError(t, repo.RemoveItem(ctx, 7, 1))
	assert.ErrorIs(t, repo.RemoveItem(ctx, 7, 1), ErrItemNotFound)

	cart, err := repo.GetCart(ctx, 7)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(2), cart.Items[0].ProductID)
	assert.Equal(t, 4, cart.Items[0].Quantity)

	require.NoError(t, repo.DeleteCart(ctx, 7))
	assert.ErrorIs(t, repo.DeleteCart(ctx, 7), ErrCartNotFound)
}

func TestContextCancellation(t *testing.T) {
	repo, cleanup := setupTestMongo(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(10 * time.Millisecond)

	_, err := repo.GetCart(ctx, 7)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "context")
}
