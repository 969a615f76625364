package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmehra2102/qr-order-flow/internal/cart/domain"
	"github.com/redis/go-redis/v9"
)

// Store keeps carts in redis for the lifetime of the slip and no longer.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Get returns the slip's cart, or an empty one when none was saved.
func (s *Store) Get(ctx context.Context, slipID, shopID string) (domain.Cart, error) {
	data, err := s.client.Get(ctx, cartKey(slipID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.New(slipID, shopID), nil
	}
	if err != nil {
		return domain.Cart{}, fmt.Errorf("redis get failed: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return domain.Cart{}, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	if cart.Lines == nil {
		cart.Lines = map[string]domain.Line{}
	}
	return cart, nil
}

func (s *Store) Save(ctx context.Context, cart domain.Cart) error {
	if cart.IsEmpty() {
		return s.Delete(ctx, cart.SlipID)
	}
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := s.client.Set(ctx, cartKey(cart.SlipID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, slipID string) error {
	if err := s.client.Del(ctx, cartKey(slipID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cartKey(slipID string) string {
	return fmt.Sprintf("cart:%s", slipID)
}
