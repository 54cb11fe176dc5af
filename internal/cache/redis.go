package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/brechodofuturo/marketplace/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	cartBaseTTL   = 15 * time.Minute
	cartMaxJitter = 5 * time.Minute
	productTTL    = 5 * time.Minute
)

// outlives any cart entry so a bump is not forgotten while a fill that
// read the older version can still land
const cartVersionTTL = 24 * time.Hour

type RedisCartCache struct {
	client  *redis.Client
	baseTTL time.Duration
	jitter  func() time.Duration
}

func NewRedisCartCache(client *redis.Client) *RedisCartCache {
	return &RedisCartCache{
		client:  client,
		baseTTL: cartBaseTTL,
		// whole minutes so entries written together do not expire together
		jitter: func() time.Duration {
			return time.Duration(rand.IntN(int(cartMaxJitter/time.Minute)+1)) * time.Minute
		},
	}
}

func (r *RedisCartCache) Get(ctx context.Context, userID int64) (*domain.Cart, error) {
	var cart domain.Cart
	if err := getJSON(ctx, r.client, cartKey(userID), &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *RedisCartCache) Version(ctx context.Context, userID int64) (int64, error) {
	v, err := r.client.Get(ctx, cartVersionKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get failed: %w", err)
	}
	return v, nil
}

// Set writes the cart only if no Delete ran since version was read. The
// version key is watched so a concurrent bump aborts the write.
func (r *RedisCartCache) Set(ctx context.Context, userID, version int64, cart *domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart %d failed: %w", userID, err)
	}
	verKey := cartVersionKey(userID)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, verKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("redis get failed: %w", err)
		}
		if current != version {
			return ErrStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, cartKey(userID), data, r.baseTTL+r.jitter())
			return nil
		})
		return err
	}, verKey)
	switch {
	case err == nil, errors.Is(err, ErrStaleFill):
		return err
	case errors.Is(err, redis.TxFailedErr):
		return ErrStaleFill
	default:
		return fmt.Errorf("redis set failed: %w", err)
	}
}

func (r *RedisCartCache) Delete(ctx context.Context, userID int64) error {
	verKey := cartVersionKey(userID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, verKey)
		pipe.Expire(ctx, verKey, cartVersionTTL)
		pipe.Del(ctx, cartKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

type RedisProductCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisProductCache(client *redis.Client) *RedisProductCache {
	return &RedisProductCache{client: client, ttl: productTTL}
}

func (r *RedisProductCache) Get(ctx context.Context, productID int64) (*domain.Product, error) {
	var p domain.Product
	if err := getJSON(ctx, r.client, productKey(productID), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *RedisProductCache) Set(ctx context.Context, product *domain.Product) error {
	return setJSON(ctx, r.client, productKey(product.ID), product, r.ttl)
}

func (r *RedisProductCache) Delete(ctx context.Context, productIDs ...int64) error {
	if len(productIDs) == 0 {
		return nil
	}
	keys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = productKey(id)
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func getJSON(ctx context.Context, client *redis.Client, key string, dst any) error {
	data, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("redis get failed: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("unmarshal %s failed: %w", key, err)
	}
	return nil
}

func setJSON(ctx context.Context, client *redis.Client, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s failed: %w", key, err)
	}
	if err := client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func cartKey(userID int64) string {
	return fmt.Sprintf("cart:%d", userID)
}

func cartVersionKey(userID int64) string {
	return fmt.Sprintf("cart:%d:version", userID)
}

func productKey(productID int64) string {
	return fmt.Sprintf("product:%d", productID)
}
