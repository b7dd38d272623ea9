package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type WishlistStore struct {
	pool *pgxpool.Pool
}

func NewWishlistStore(pool *pgxpool.Pool) *WishlistStore {
	return &WishlistStore{pool: pool}
}

// Toggle adds the product to the user's wishlist, or removes it if present.
// It reports whether the product is on the wishlist afterwards.
func (s *WishlistStore) Toggle(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	cmdTag, err := s.pool.Exec(ctx, `DELETE FROM wishlist_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return false, err
	}
	if cmdTag.RowsAffected() > 0 {
		return false, nil
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO wishlist_items (user_id, product_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, product_id) DO NOTHING
	`, userID, productID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, ErrProductNotFound
		}
		return false, err
	}
	return true, nil
}

func (s *WishlistStore) List(ctx context.Context, userID uuid.UUID) ([]WishlistItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT w.user_id, w.created_at,
			p.id, p.slug, p.name, p.scientific_name, p.category, p.description,
			p.price_cents, p.stock, p.images, p.created_at, p.updated_at
		FROM wishlist_items w
		JOIN products p ON p.id = w.product_id
		WHERE w.user_id = $1
		ORDER BY w.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (WishlistItem, error) {
		var (
			item    WishlistItem
			product Product
			images  []byte
		)
		err := row.Scan(
			&item.UserID, &item.CreatedAt,
			&product.ID, &product.Slug, &product.Name, &product.ScientificName, &product.Category,
			&product.Description, &product.PriceCents, &product.Stock, &images,
			&product.CreatedAt, &product.UpdatedAt,
		)
		if err != nil {
			return WishlistItem{}, err
		}
		if err := json.Unmarshal(images, &product.Images); err != nil {
			return WishlistItem{}, fmt.Errorf("failed to decode images for product %s: %w", product.ID, err)
		}
		item.ProductID = product.ID
		item.Product = &product
		return item, nil
	})
}
