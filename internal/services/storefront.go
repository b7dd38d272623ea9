package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/verdantshop/verdant/internal/catalog"
	"github.com/verdantshop/verdant/internal/db"
	"github.com/verdantshop/verdant/internal/logging"
)

const maxReviewCommentLength = 2000

type ReviewInput struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type ReviewSummary struct {
	Reviews []db.Review `json:"reviews"`
	Count   int         `json:"count"`
	Average float64     `json:"average"`
}

// PublicSettings is the part of settings.Service exposed to shoppers.
type PublicSettings interface {
	Public(ctx context.Context) (map[string]string, error)
}

// StorefrontService serves the public catalog and the signed-in shopper's
// wishlist and reviews.
type StorefrontService struct {
	products  ProductRepository
	wishlists WishlistRepository
	reviews   ReviewRepository
	settings  PublicSettings
	logger    *slog.Logger
}

func NewStorefrontService(products ProductRepository, wishlists WishlistRepository, reviews ReviewRepository, settings PublicSettings, logger *slog.Logger) *StorefrontService {
	return &StorefrontService{
		products:  products,
		wishlists: wishlists,
		reviews:   reviews,
		settings:  settings,
		logger:    logger,
	}
}

func (s *StorefrontService) SearchProducts(ctx context.Context, filter catalog.Filter) ([]db.Product, error) {
	products, err := s.products.Search(ctx, filter.Normalize())
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	return products, nil
}

func (s *StorefrontService) ProductBySlug(ctx context.Context, slug string) (*db.Product, error) {
	product, err := s.products.GetBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	return product, nil
}

func (s *StorefrontService) ProductByID(ctx context.Context, id uuid.UUID) (*db.Product, error) {
	product, err := s.products.GetByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	return product, nil
}

func (s *StorefrontService) Categories(ctx context.Context) ([]string, error) {
	return s.products.Categories(ctx)
}

// ToggleWishlist reports whether the product is on the wishlist afterwards.
func (s *StorefrontService) ToggleWishlist(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	added, err := s.wishlists.Toggle(ctx, userID, productID)
	if errors.Is(err, db.ErrProductNotFound) {
		return false, ErrProductNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to toggle wishlist: %w", err)
	}
	logging.FromContext(ctx, s.logger).Debug("wishlist toggled", "user_id", userID, "product_id", productID, "added", added)
	return added, nil
}

func (s *StorefrontService) ListWishlist(ctx context.Context, userID uuid.UUID) ([]db.WishlistItem, error) {
	return s.wishlists.List(ctx, userID)
}

func (s *StorefrontService) SubmitReview(ctx context.Context, userID uuid.UUID, slug string, input ReviewInput) (*db.Review, error) {
	if input.Rating < 1 || input.Rating > 5 {
		return nil, UserError{Message: "Rating must be between 1 and 5"}
	}
	comment := strings.TrimSpace(input.Comment)
	if len(comment) > maxReviewCommentLength {
		return nil, UserError{Message: fmt.Sprintf("Comment must be at most %d characters", maxReviewCommentLength)}
	}

	product, err := s.ProductBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	review := &db.Review{
		ProductID: product.ID,
		UserID:    userID,
		Rating:    input.Rating,
		Comment:   comment,
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		if errors.Is(err, db.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to save review: %w", err)
	}
	return review, nil
}

func (s *StorefrontService) ListReviews(ctx context.Context, slug string) (*ReviewSummary, error) {
	product, err := s.ProductBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	reviews, err := s.reviews.ListByProduct(ctx, product.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return summarizeReviews(reviews), nil
}

func (s *StorefrontService) PublicSettings(ctx context.Context) (map[string]string, error) {
	if s.settings == nil {
		return map[string]string{}, nil
	}
	return s.settings.Public(ctx)
}

// summarizeReviews rounds the average to one decimal place.
func summarizeReviews(reviews []db.Review) *ReviewSummary {
	summary := &ReviewSummary{Reviews: reviews, Count: len(reviews)}
	if summary.Reviews == nil {
		summary.Reviews = []db.Review{}
	}
	if len(reviews) == 0 {
		return summary
	}

	total := 0
	for _, review := range reviews {
		total += review.Rating
	}
	summary.Average = math.Round(float64(total)/float64(len(reviews))*10) / 10
	return summary
}
