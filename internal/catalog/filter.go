package catalog

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultLimit = 24
	MaxLimit     = 100

	// variegatedCategory is matched against product names rather than the
	// category column, since variegated cultivars are listed under their
	// base category.
	variegatedCategory = "variegated"
)

type Sort string

const (
	SortNewest    Sort = "newest"
	SortPriceAsc  Sort = "price_asc"
	SortPriceDesc Sort = "price_desc"
)

func (s Sort) Valid() bool {
	switch s {
	case SortNewest, SortPriceAsc, SortPriceDesc:
		return true
	default:
		return false
	}
}

// Filter narrows the storefront product listing. Zero values mean "no constraint".
type Filter struct {
	Category      string
	Query         string
	MinPriceCents *int64
	MaxPriceCents *int64
	Sort          Sort
	Limit         int
	Offset        int
}

// FilterFromQuery reads a Filter from URL query parameters
// (category, q, minPrice, maxPrice, sort, limit, offset).
func FilterFromQuery(values url.Values) (Filter, error) {
	filter := Filter{
		Category: strings.TrimSpace(values.Get("category")),
		Query:    strings.TrimSpace(values.Get("q")),
		Sort:     Sort(strings.TrimSpace(values.Get("sort"))),
	}

	var err error
	if filter.MinPriceCents, err = parseOptionalPrice(values.Get("minPrice"), "minPrice"); err != nil {
		return Filter{}, err
	}
	if filter.MaxPriceCents, err = parseOptionalPrice(values.Get("maxPrice"), "maxPrice"); err != nil {
		return Filter{}, err
	}
	if filter.Limit, err = parseOptionalInt(values.Get("limit"), "limit"); err != nil {
		return Filter{}, err
	}
	if filter.Offset, err = parseOptionalInt(values.Get("offset"), "offset"); err != nil {
		return Filter{}, err
	}

	return filter.Normalize(), nil
}

// Normalize applies defaults and clamps paging.
func (f Filter) Normalize() Filter {
	f.Category = strings.TrimSpace(f.Category)
	f.Query = strings.TrimSpace(f.Query)
	if !f.Sort.Valid() {
		f.Sort = SortNewest
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// BuildSearchQuery renders the filter into a parameterized SELECT over products.
// Only products with stock on hand are returned.
func BuildSearchQuery(columns string, f Filter) (string, []any) {
	f = f.Normalize()

	conditions := []string{"stock > 0"}
	args := make([]any, 0, 6)
	next := func(value any) string {
		args = append(args, value)
		return "$" + strconv.Itoa(len(args))
	}

	if f.Category != "" {
		if strings.EqualFold(f.Category, variegatedCategory) {
			conditions = append(conditions, "name ILIKE "+next("%"+escapeLike(f.Category)+"%"))
		} else {
			conditions = append(conditions, "LOWER(category) = LOWER("+next(f.Category)+")")
		}
	}
	if f.Query != "" {
		pattern := next("%" + escapeLike(f.Query) + "%")
		conditions = append(conditions, "(name ILIKE "+pattern+" OR scientific_name ILIKE "+pattern+")")
	}
	if f.MinPriceCents != nil {
		conditions = append(conditions, "price_cents >= "+next(*f.MinPriceCents))
	}
	if f.MaxPriceCents != nil {
		conditions = append(conditions, "price_cents <= "+next(*f.MaxPriceCents))
	}

	var order string
	switch f.Sort {
	case SortPriceAsc:
		order = "price_cents ASC, created_at DESC"
	case SortPriceDesc:
		order = "price_cents DESC, created_at DESC"
	default:
		order = "created_at DESC"
	}

	query := fmt.Sprintf(
		"SELECT %s FROM products WHERE %s ORDER BY %s LIMIT %s OFFSET %s",
		columns,
		strings.Join(conditions, " AND "),
		order,
		next(f.Limit),
		next(f.Offset),
	)
	return query, args
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}

func parseOptionalPrice(raw, name string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	cents, err := ParsePriceCents(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be a non-negative amount with at most two decimals", name)
	}
	return &cents, nil
}

func parseOptionalInt(raw, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return value, nil
}
