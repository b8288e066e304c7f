// Package storage persists the product collection as a single serialized
// value under one key, the get/set contract the ledger is written
// against.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"inventory-service/internal/model"
	"inventory-service/pkg/config"

	"github.com/redis/go-redis/v9"
)

// ErrCorrupt marks a stored payload that could not be decoded. Callers
// treat it as an empty collection rather than a hard failure.
var ErrCorrupt = errors.New("stored product collection is not valid JSON")

const productsKey = "products"

// RedisStore keeps the collection in Redis under a single key.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisClient builds a Redis client from configuration and verifies
// the connection.
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisStore wraps a Redis client as the product collection store.
// The key is prefixed so several environments can share one instance.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, key: prefix + productsKey}
}

// Get reads the whole collection. An absent key is an empty collection,
// not an error.
func (s *RedisStore) Get(ctx context.Context) ([]model.Product, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("storage get error: %w", err)
	}

	var products []model.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return products, nil
}

// Set writes the whole collection in a single call.
func (s *RedisStore) Set(ctx context.Context, products []model.Product) error {
	data, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("storage marshal error: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("storage set error: %w", err)
	}
	return nil
}

// Ping checks the Redis connection, used by the health endpoint.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
