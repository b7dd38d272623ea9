package cart

// Package cart holds a shopper's pending lines before checkout.

import (
	"github.com/google/uuid"
)

type Item struct {
	ProductID  uuid.UUID `json:"product_id"`
	Slug       string    `json:"slug,omitempty"`
	Name       string    `json:"name"`
	Image      string    `json:"image,omitempty"`
	PriceCents int64     `json:"price_cents"`
	Quantity   int       `json:"quantity"`
}

func (i Item) LineTotalCents() int64 {
	return i.PriceCents * int64(i.Quantity)
}

// Cart is an ordered collection of items with at most one entry per product.
type Cart struct {
	Items []Item `json:"items"`
}

func New() *Cart {
	return &Cart{Items: []Item{}}
}

// Add appends item, or increases the quantity of the existing entry for the
// same product. The stored price and name are refreshed from item.
func (c *Cart) Add(item Item) {
	if item.Quantity <= 0 {
		item.Quantity = 1
	}
	if idx := c.indexOf(item.ProductID); idx >= 0 {
		existing := &c.Items[idx]
		existing.Quantity += item.Quantity
		existing.PriceCents = item.PriceCents
		if item.Name != "" {
			existing.Name = item.Name
		}
		return
	}
	c.Items = append(c.Items, item)
}

// SetQuantity replaces the quantity of a product. Zero or less removes it.
// It reports whether the product was in the cart.
func (c *Cart) SetQuantity(productID uuid.UUID, quantity int) bool {
	idx := c.indexOf(productID)
	if idx < 0 {
		return false
	}
	if quantity <= 0 {
		c.removeAt(idx)
		return true
	}
	c.Items[idx].Quantity = quantity
	return true
}

func (c *Cart) Remove(productID uuid.UUID) bool {
	idx := c.indexOf(productID)
	if idx < 0 {
		return false
	}
	c.removeAt(idx)
	return true
}

func (c *Cart) Clear() {
	c.Items = []Item{}
}

func (c *Cart) TotalCents() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.LineTotalCents()
	}
	return total
}

// Count is the number of units across all lines.
func (c *Cart) Count() int {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) indexOf(productID uuid.UUID) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) removeAt(idx int) {
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
}
