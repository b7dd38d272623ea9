package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/verdantshop/verdant/internal/cache"
)

// TTL is how long an untouched cart is retained.
const TTL = 30 * 24 * time.Hour

type Store struct {
	cache cache.Provider
}

func NewStore(provider cache.Provider) *Store {
	return &Store{cache: provider}
}

// Load returns the saved cart. A missing or unreadable payload yields an empty cart.
func (s *Store) Load(ctx context.Context, cartID string) (*Cart, error) {
	raw, err := s.cache.Get(ctx, cache.CartKey(cartID))
	if errors.Is(err, cache.ErrNotFound) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return Decode(raw), nil
}

func (s *Store) Save(ctx context.Context, cartID string, c *Cart) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	if err := s.cache.Set(ctx, cache.CartKey(cartID), string(payload), TTL); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, cartID string) error {
	return s.cache.Delete(ctx, cache.CartKey(cartID))
}

// Decode parses a stored cart, dropping malformed lines and merging duplicates.
func Decode(raw string) *Cart {
	var stored Cart
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return New()
	}

	c := New()
	for _, item := range stored.Items {
		if item.Quantity <= 0 || item.PriceCents < 0 {
			continue
		}
		c.Add(item)
	}
	return c
}
