package catalog

// Package catalog provides product catalog import, filtering, and pricing.

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/verdantshop/verdant/internal/models"
)

// ImportFile is the YAML document accepted by the admin catalog import.
type ImportFile struct {
	Products []ProductEntry `yaml:"products"`
}

// ProductEntry is a product as written by an administrator, either in the
// YAML import or in the product form. Price is a USD amount such as "49.99".
type ProductEntry struct {
	Slug           string   `yaml:"slug" json:"slug"`
	Name           string   `yaml:"name" json:"name"`
	ScientificName string   `yaml:"scientific_name" json:"scientific_name"`
	Category       string   `yaml:"category" json:"category"`
	Description    string   `yaml:"description" json:"description"`
	Price          string   `yaml:"price" json:"price"`
	Stock          int      `yaml:"stock" json:"stock"`
	Images         []string `yaml:"images" json:"images"`
}

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(content []byte) (*ImportFile, error) {
	var file ImportFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &file, nil
}

func (p *Parser) ParseFromString(content string) (*ImportFile, error) {
	return p.Parse([]byte(content))
}

// Product converts a validated entry into a product row.
func (e ProductEntry) Product() (models.Product, error) {
	priceCents, err := ParsePriceCents(e.Price)
	if err != nil {
		return models.Product{}, fmt.Errorf("product %s: %w", e.Slug, err)
	}

	images := make([]string, 0, len(e.Images))
	for _, image := range e.Images {
		if trimmed := strings.TrimSpace(image); trimmed != "" {
			images = append(images, trimmed)
		}
	}

	return models.Product{
		Slug:           strings.ToLower(strings.TrimSpace(e.Slug)),
		Name:           strings.TrimSpace(e.Name),
		ScientificName: strings.TrimSpace(e.ScientificName),
		Category:       strings.TrimSpace(e.Category),
		Description:    strings.TrimSpace(e.Description),
		PriceCents:     priceCents,
		Stock:          e.Stock,
		Images:         images,
	}, nil
}
