package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verdantshop/verdant/internal/catalog"
)

var ErrDuplicateSlug = errors.New("product slug already exists")

const productColumns = `id, slug, name, scientific_name, category, description, price_cents, stock, images, created_at, updated_at`

type ProductStore struct {
	pool *pgxpool.Pool
}

func NewProductStore(pool *pgxpool.Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

// Search lists in-stock products matching the filter.
func (s *ProductStore) Search(ctx context.Context, filter catalog.Filter) ([]Product, error) {
	query, args := catalog.BuildSearchQuery(productColumns, filter)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

func (s *ProductStore) GetBySlug(ctx context.Context, slug string) (*Product, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE slug = $1`, slug)
	return scanProductRow(row)
}

func (s *ProductStore) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return scanProductRow(row)
}

// ListAll returns every product, including those out of stock, for the back office.
func (s *ProductStore) ListAll(ctx context.Context, limit, offset int) ([]Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

func (s *ProductStore) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT category
		FROM products
		WHERE category <> ''
		ORDER BY category
	`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *ProductStore) LowStock(ctx context.Context, threshold, limit int) ([]Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE stock <= $1 ORDER BY stock ASC, name ASC LIMIT $2`,
		threshold, limit,
	)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

func (s *ProductStore) Create(ctx context.Context, product *Product) error {
	images, err := encodeImages(product.Images)
	if err != nil {
		return err
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO products (slug, name, scientific_name, category, description, price_cents, stock, images)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`,
		product.Slug, product.Name, product.ScientificName, product.Category,
		product.Description, product.PriceCents, product.Stock, images,
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	return mapProductWriteError(err)
}

func (s *ProductStore) Update(ctx context.Context, product *Product) error {
	images, err := encodeImages(product.Images)
	if err != nil {
		return err
	}

	err = s.pool.QueryRow(ctx, `
		UPDATE products
		SET slug = $1, name = $2, scientific_name = $3, category = $4, description = $5,
			price_cents = $6, stock = $7, images = $8, updated_at = NOW()
		WHERE id = $9
		RETURNING created_at, updated_at
	`,
		product.Slug, product.Name, product.ScientificName, product.Category,
		product.Description, product.PriceCents, product.Stock, images, product.ID,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	return mapProductWriteError(err)
}

// UpsertBySlug inserts or overwrites the product with the same slug.
func (s *ProductStore) UpsertBySlug(ctx context.Context, product *Product) (bool, error) {
	images, err := encodeImages(product.Images)
	if err != nil {
		return false, err
	}

	var created bool
	err = s.pool.QueryRow(ctx, `
		INSERT INTO products (slug, name, scientific_name, category, description, price_cents, stock, images)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (slug) DO UPDATE
		SET name = EXCLUDED.name,
			scientific_name = EXCLUDED.scientific_name,
			category = EXCLUDED.category,
			description = EXCLUDED.description,
			price_cents = EXCLUDED.price_cents,
			stock = EXCLUDED.stock,
			images = EXCLUDED.images,
			updated_at = NOW()
		RETURNING id, created_at, updated_at, (xmax = 0)
	`,
		product.Slug, product.Name, product.ScientificName, product.Category,
		product.Description, product.PriceCents, product.Stock, images,
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt, &created)
	if err != nil {
		return false, err
	}
	return created, nil
}

func (s *ProductStore) UpdateStock(ctx context.Context, id uuid.UUID, stock int) error {
	stockInt32, err := intToInt32(stock, "stock")
	if err != nil {
		return err
	}

	cmdTag, err := s.pool.Exec(ctx, `UPDATE products SET stock = $1, updated_at = NOW() WHERE id = $2`, stockInt32, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a product. Order items keep their name and price snapshot.
func (s *ProductStore) Delete(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		product Product
		images  []byte
	)
	err := row.Scan(
		&product.ID,
		&product.Slug,
		&product.Name,
		&product.ScientificName,
		&product.Category,
		&product.Description,
		&product.PriceCents,
		&product.Stock,
		&images,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return Product{}, err
	}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &product.Images); err != nil {
			return Product{}, fmt.Errorf("failed to decode images for product %s: %w", product.ID, err)
		}
	}
	if product.Images == nil {
		product.Images = []string{}
	}
	return product, nil
}

func scanProductRow(row pgx.Row) (*Product, error) {
	product, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func collectProducts(rows pgx.Rows) ([]Product, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Product, error) {
		return scanProduct(row)
	})
}

func encodeImages(images []string) ([]byte, error) {
	if images == nil {
		images = []string{}
	}
	return json.Marshal(images)
}

func mapProductWriteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if isUniqueViolation(err) {
		return ErrDuplicateSlug
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
