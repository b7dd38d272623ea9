package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReviewStore struct {
	pool *pgxpool.Pool
}

func NewReviewStore(pool *pgxpool.Pool) *ReviewStore {
	return &ReviewStore{pool: pool}
}

func (s *ReviewStore) Create(ctx context.Context, review *Review) error {
	rating, err := intToInt32(review.Rating, "rating")
	if err != nil {
		return err
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO reviews (product_id, user_id, rating, comment)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, review.ProductID, review.UserID, rating, review.Comment).Scan(&review.ID, &review.CreatedAt)
	if isForeignKeyViolation(err) {
		return ErrProductNotFound
	}
	return err
}

func (s *ReviewStore) ListByProduct(ctx context.Context, productID uuid.UUID) ([]Review, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.id, r.product_id, r.user_id, u.name, r.rating, r.comment, r.created_at
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		WHERE r.product_id = $1
		ORDER BY r.created_at DESC
	`, productID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Review, error) {
		var review Review
		err := row.Scan(
			&review.ID,
			&review.ProductID,
			&review.UserID,
			&review.UserName,
			&review.Rating,
			&review.Comment,
			&review.CreatedAt,
		)
		return review, err
	})
}
