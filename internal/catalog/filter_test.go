package catalog

import (
	"net/url"
	"strings"
	"testing"
)

const testColumns = "id, name"

func TestBuildSearchQueryPriceRangeIsInclusiveAndInStock(t *testing.T) {
	t.Parallel()

	filter, err := FilterFromQuery(url.Values{"minPrice": {"50"}, "maxPrice": {"100"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	query, args := BuildSearchQuery(testColumns, filter)

	for _, fragment := range []string{"stock > 0", "price_cents >= $1", "price_cents <= $2", "ORDER BY created_at DESC"} {
		if !strings.Contains(query, fragment) {
			t.Fatalf("expected query to contain %q, got %s", fragment, query)
		}
	}
	if len(args) != 4 {
		t.Fatalf("expected 4 args, got %d: %v", len(args), args)
	}
	if args[0] != int64(5000) || args[1] != int64(10000) {
		t.Fatalf("unexpected price args: %v", args[:2])
	}
	if args[2] != DefaultLimit || args[3] != 0 {
		t.Fatalf("unexpected paging args: %v", args[2:])
	}
}

func TestBuildSearchQueryCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		category string
		fragment string
		arg      string
	}{
		{
			name:     "exact category match",
			category: "Aroid",
			fragment: "LOWER(category) = LOWER($1)",
			arg:      "Aroid",
		},
		{
			name:     "variegated matches on name",
			category: "variegated",
			fragment: "name ILIKE $1",
			arg:      "%variegated%",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			query, args := BuildSearchQuery(testColumns, Filter{Category: tt.category})
			if !strings.Contains(query, tt.fragment) {
				t.Fatalf("expected %q in %s", tt.fragment, query)
			}
			if args[0] != tt.arg {
				t.Fatalf("expected arg %q, got %v", tt.arg, args[0])
			}
		})
	}
}

func TestBuildSearchQueryTextSearchEscapesWildcards(t *testing.T) {
	t.Parallel()

	query, args := BuildSearchQuery(testColumns, Filter{Query: "50%_off"})
	if !strings.Contains(query, "(name ILIKE $1 OR scientific_name ILIKE $1)") {
		t.Fatalf("unexpected query: %s", query)
	}
	if args[0] != `%50\%\_off%` {
		t.Fatalf("unexpected pattern: %v", args[0])
	}
}

func TestBuildSearchQuerySort(t *testing.T) {
	t.Parallel()

	asc, _ := BuildSearchQuery(testColumns, Filter{Sort: SortPriceAsc})
	if !strings.Contains(asc, "ORDER BY price_cents ASC") {
		t.Fatalf("unexpected ascending query: %s", asc)
	}
	desc, _ := BuildSearchQuery(testColumns, Filter{Sort: SortPriceDesc})
	if !strings.Contains(desc, "ORDER BY price_cents DESC") {
		t.Fatalf("unexpected descending query: %s", desc)
	}
}

func TestFilterNormalize(t *testing.T) {
	t.Parallel()

	got := Filter{Sort: "cheapest", Limit: 500, Offset: -3}.Normalize()
	if got.Sort != SortNewest {
		t.Fatalf("expected newest sort, got %q", got.Sort)
	}
	if got.Limit != MaxLimit {
		t.Fatalf("expected limit clamp to %d, got %d", MaxLimit, got.Limit)
	}
	if got.Offset != 0 {
		t.Fatalf("expected offset 0, got %d", got.Offset)
	}
}

func TestFilterFromQueryParsesPriceBoundsExactly(t *testing.T) {
	t.Parallel()

	filter, err := FilterFromQuery(url.Values{"minPrice": {"50.01"}, "maxPrice": {"125.5"}})
	if err != nil {
		t.Fatalf("FilterFromQuery() error = %v", err)
	}
	if filter.MinPriceCents == nil || *filter.MinPriceCents != 5001 {
		t.Fatalf("unexpected min price %v", filter.MinPriceCents)
	}
	if filter.MaxPriceCents == nil || *filter.MaxPriceCents != 12550 {
		t.Fatalf("unexpected max price %v", filter.MaxPriceCents)
	}
}

func TestFilterFromQueryRejectsBadNumbers(t *testing.T) {
	t.Parallel()

	for _, values := range []url.Values{
		{"minPrice": {"cheap"}},
		{"maxPrice": {"-5"}},
		{"minPrice": {"50.004"}},
		{"maxPrice": {"49.995"}},
		{"limit": {"ten"}},
	} {
		if _, err := FilterFromQuery(values); err == nil {
			t.Fatalf("expected error for %v", values)
		}
	}
}
