package catalog

import (
	"fmt"
	"regexp"
	"strings"
)

type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

var slugRegex = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{0,78}[a-z0-9])?$`)

// IsValidSlug reports whether slug is lower-case alphanumerics joined by single hyphens.
func IsValidSlug(slug string) bool {
	return slugRegex.MatchString(slug) && !strings.Contains(slug, "--")
}

func (v *Validator) Validate(file *ImportFile) error {
	if file == nil || len(file.Products) == 0 {
		return fmt.Errorf("at least one product is required")
	}

	slugs := make(map[string]bool, len(file.Products))
	for i := range file.Products {
		product := &file.Products[i]
		if err := v.validateProduct(product); err != nil {
			return fmt.Errorf("product %d validation failed: %w", i, err)
		}

		slug := strings.ToLower(strings.TrimSpace(product.Slug))
		if slugs[slug] {
			return fmt.Errorf("duplicate slug: %s", slug)
		}
		slugs[slug] = true
	}

	return nil
}

// ValidateEntry checks a single product entry.
func (v *Validator) ValidateEntry(product *ProductEntry) error {
	if product == nil {
		return fmt.Errorf("product is required")
	}
	return v.validateProduct(product)
}

func (v *Validator) validateProduct(product *ProductEntry) error {
	slug := strings.ToLower(strings.TrimSpace(product.Slug))
	if slug == "" {
		return fmt.Errorf("product slug is required")
	}
	if !IsValidSlug(slug) {
		return fmt.Errorf("product slug %q must contain only lower-case letters, digits and single hyphens", product.Slug)
	}

	if strings.TrimSpace(product.Name) == "" {
		return fmt.Errorf("product name is required")
	}

	priceCents, err := ParsePriceCents(product.Price)
	if err != nil {
		return err
	}
	if priceCents <= 0 {
		return fmt.Errorf("product price must be positive")
	}

	if product.Stock < 0 {
		return fmt.Errorf("product stock must be zero or positive")
	}

	return nil
}
