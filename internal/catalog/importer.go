package catalog

import (
	"context"
	"fmt"

	"github.com/verdantshop/verdant/internal/models"
)

// ProductUpserter persists imported products keyed by slug.
type ProductUpserter interface {
	UpsertBySlug(ctx context.Context, product *models.Product) (created bool, err error)
}

type ImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// Importer loads a YAML catalog document into the product store.
type Importer struct {
	parser    *Parser
	validator *Validator
	products  ProductUpserter
}

func NewImporter(products ProductUpserter) *Importer {
	return &Importer{
		parser:    NewParser(),
		validator: NewValidator(),
		products:  products,
	}
}

// Import validates the whole document before writing anything, so a bad entry
// leaves the catalog untouched.
func (i *Importer) Import(ctx context.Context, content []byte) (ImportResult, error) {
	file, err := i.parser.Parse(content)
	if err != nil {
		return ImportResult{}, err
	}
	if err := i.validator.Validate(file); err != nil {
		return ImportResult{}, err
	}

	products := make([]models.Product, 0, len(file.Products))
	for _, entry := range file.Products {
		product, err := entry.Product()
		if err != nil {
			return ImportResult{}, err
		}
		products = append(products, product)
	}

	var result ImportResult
	for idx := range products {
		created, err := i.products.UpsertBySlug(ctx, &products[idx])
		if err != nil {
			return result, fmt.Errorf("failed to import %s: %w", products[idx].Slug, err)
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}
	return result, nil
}
