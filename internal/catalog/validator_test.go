package catalog

import "testing"

func TestValidator_Validate(t *testing.T) {
	t.Parallel()

	valid := ProductEntry{Slug: "philodendron-pink-princess", Name: "Pink Princess", Price: "45", Stock: 3}

	tests := []struct {
		name    string
		file    *ImportFile
		wantErr bool
	}{
		{
			name:    "valid document",
			file:    &ImportFile{Products: []ProductEntry{valid}},
			wantErr: false,
		},
		{
			name:    "empty document",
			file:    &ImportFile{},
			wantErr: true,
		},
		{
			name: "missing name",
			file: &ImportFile{Products: []ProductEntry{
				{Slug: "alocasia", Price: "10"},
			}},
			wantErr: true,
		},
		{
			name: "bad slug",
			file: &ImportFile{Products: []ProductEntry{
				{Slug: "Alocasia Dragon Scale", Name: "Alocasia", Price: "10"},
			}},
			wantErr: true,
		},
		{
			name: "zero price",
			file: &ImportFile{Products: []ProductEntry{
				{Slug: "alocasia", Name: "Alocasia", Price: "0"},
			}},
			wantErr: true,
		},
		{
			name: "negative stock",
			file: &ImportFile{Products: []ProductEntry{
				{Slug: "alocasia", Name: "Alocasia", Price: "10", Stock: -1},
			}},
			wantErr: true,
		},
		{
			name:    "duplicate slug",
			file:    &ImportFile{Products: []ProductEntry{valid, valid}},
			wantErr: true,
		},
	}

	validator := NewValidator()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := validator.Validate(tt.file)
			if tt.wantErr && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	}
}

func TestIsValidSlug(t *testing.T) {
	t.Parallel()

	for slug, want := range map[string]bool{
		"hoya-carnosa":  true,
		"hoya":          true,
		"-hoya":         false,
		"hoya--carnosa": false,
		"Hoya":          false,
		"":              false,
	} {
		if got := IsValidSlug(slug); got != want {
			t.Fatalf("IsValidSlug(%q) = %v, want %v", slug, got, want)
		}
	}
}

func TestValidator_ValidateEntry(t *testing.T) {
	t.Parallel()

	v := NewValidator()
	if err := v.ValidateEntry(nil); err == nil {
		t.Fatalf("expected error for nil entry")
	}
	if err := v.ValidateEntry(&ProductEntry{Slug: "hoya-kerrii", Name: "Hoya Kerrii", Price: "9.99"}); err != nil {
		t.Fatalf("expected valid entry, got %v", err)
	}
	if err := v.ValidateEntry(&ProductEntry{Slug: "Hoya Kerrii", Name: "Hoya Kerrii", Price: "9.99"}); err == nil {
		t.Fatalf("expected error for slug with spaces")
	}
}
