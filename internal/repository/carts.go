package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brechodofuturo/marketplace/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const cartTTL = 90 * 24 * time.Hour

// cartDocument is the stored form of a cart. Prices are kept as decimal
// strings since the driver has no codec for decimal.Decimal.
type cartDocument struct {
	UserID    int64              `bson:"user_id"`
	Items     []cartItemDocument `bson:"items"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

type cartItemDocument struct {
	ProductID     int64     `bson:"product_id"`
	Quantity      int       `bson:"quantity"`
	PriceSnapshot string    `bson:"price_snapshot"`
	AddedAt       time.Time `bson:"added_at"`
}

func newCartItemDocument(it domain.CartItem) cartItemDocument {
	return cartItemDocument{
		ProductID:     it.ProductID,
		Quantity:      it.Quantity,
		PriceSnapshot: it.PriceSnapshot.String(),
		AddedAt:       it.AddedAt,
	}
}

func (d *cartDocument) toDomain() (*domain.Cart, error) {
	cart := &domain.Cart{
		UserID:    d.UserID,
		Items:     make([]domain.CartItem, 0, len(d.Items)),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for _, it := range d.Items {
		price, err := decimal.NewFromString(it.PriceSnapshot)
		if err != nil {
			return nil, fmt.Errorf("parse price snapshot of product %d: %w", it.ProductID, err)
		}
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID:     it.ProductID,
			Quantity:      it.Quantity,
			PriceSnapshot: price,
			AddedAt:       it.AddedAt,
		})
	}
	return cart, nil
}

// CartRepository stores one document per user in the carts collection.
type CartRepository struct {
	collection *mongo.Collection
}

func NewCartRepository(db *mongo.Database) *CartRepository {
	return &CartRepository{collection: db.Collection("carts")}
}

func (c *CartRepository) GetCart(ctx context.Context, userID int64) (*domain.Cart, error) {
	var doc cartDocument
	err := c.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return doc.toDomain()
}

// AddItem stores item in the user's cart, replacing the quantity and price
// snapshot of an existing line for the same product. The cart is created on
// first use.
func (c *CartRepository) AddItem(ctx context.Context, userID int64, item domain.CartItem) error {
	now := time.Now().UTC()
	if item.AddedAt.IsZero() {
		item.AddedAt = now
	}

	res, err := c.collection.UpdateOne(ctx,
		bson.M{"user_id": userID, "items.product_id": item.ProductID},
		bson.M{"$set": bson.M{
			"items.$.quantity":       item.Quantity,
			"items.$.price_snapshot": item.PriceSnapshot.String(),
			"updated_at":             now,
		}})
	if err != nil {
		return fmt.Errorf("failed to update existing item: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	_, err = c.collection.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{
			"$push":        bson.M{"items": newCartItemDocument(item)},
			"$set":         bson.M{"updated_at": now},
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to add new item: %w", err)
	}
	return nil
}

func (c *CartRepository) UpdateItemQuantity(ctx context.Context, userID, productID int64, quantity int) error {
	res, err := c.collection.UpdateOne(ctx,
		bson.M{"user_id": userID, "items.product_id": productID},
		bson.M{"$set": bson.M{
			"items.$.quantity": quantity,
			"updated_at":       time.Now().UTC(),
		}})
	if err != nil {
		return fmt.Errorf("failed to update item quantity: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (c *CartRepository) RemoveItem(ctx context.Context, userID, productID int64) error {
	res, err := c.collection.UpdateOne(ctx,
		bson.M{"user_id": userID, "items.product_id": productID},
		bson.M{
			"$pull": bson.M{"items": bson.M{"product_id": productID}},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		})
	if err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (c *CartRepository) DeleteCart(ctx context.Context, userID int64) error {
	res, err := c.collection.DeleteOne(ctx, bson.M{"user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrCartNotFound
	}
	return nil
}

// CreateIndexes enforces one cart per user and expires carts untouched for
// 90 days.
func (c *CartRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(cartTTL.Seconds())),
		},
	}

	if _, err := c.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
