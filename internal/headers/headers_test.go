package headers

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedup(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{name: "unique", in: []string{"Title", "Content"}, want: []string{"Title", "Content"}},
		{name: "pair", in: []string{"URL", "URL"}, want: []string{"URL", "URL_1"}},
		{name: "triple", in: []string{"A", "A", "A"}, want: []string{"A", "A_1", "A_2"}},
		{name: "collision with existing", in: []string{"A", "A", "A_1"}, want: []string{"A", "A_2", "A_1"}},
		{name: "empty names", in: []string{"", ""}, want: []string{"", "_1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Dedup(tt.in))
		})
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		want    map[Role]string
	}{
		{
			name:    "required only",
			headers: []string{"Title", "Content"},
			want:    map[Role]string{Title: "Title", Content: "Content"},
		},
		{
			name:    "scenario header",
			headers: []string{"ID", "Title", "Content", "Categories", "URL"},
			want: map[Role]string{
				Title: "Title", Content: "Content", Identifier: "ID",
				Category: "Categories", FeaturedImageURL: "URL",
			},
		},
		{
			name:    "first alias wins",
			headers: []string{"Title", "Content", "image_url", "url"},
			want:    map[Role]string{Title: "Title", Content: "Content", FeaturedImageURL: "url"},
		},
		{
			name:    "spanish categories and layout",
			headers: []string{"Title", "Content", "Categorías", "_elementor_data", "post_date", "post_status", "Type"},
			want: map[Role]string{
				Title: "Title", Content: "Content", Category: "Categorías", LayoutJSON: "_elementor_data",
				Date: "post_date", Status: "post_status", PostType: "Type",
			},
		},
		{
			name:    "duplicate required header keeps first",
			headers: []string{"Title", "Title", "Content"},
			want:    map[Role]string{Title: "Title", Content: "Content"},
		},
	}

	r := NewResolver(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.headers)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Fields)
			assert.Len(t, got.Headers, len(tt.headers))
		})
	}
}

func TestResolve_MissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		role    Role
	}{
		{name: "no title", headers: []string{"Content", "URL"}, role: Title},
		{name: "no content", headers: []string{"Title"}, role: Content},
		{name: "case sensitive", headers: []string{"title", "Content"}, role: Title},
	}

	r := NewResolver(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(tt.headers)
			var missing *MissingRequiredFieldError
			require.True(t, errors.As(err, &missing))
			assert.Equal(t, tt.role, missing.Role)
		})
	}
}

func TestResolved_HasAndIndex(t *testing.T) {
	got, err := NewResolver(nil).Resolve([]string{"Title", "Content", "URL", "URL"})
	require.NoError(t, err)

	assert.True(t, got.Has(FeaturedImageURL))
	assert.False(t, got.Has(Category))
	assert.Equal(t, map[string]int{"Title": 0, "Content": 1, "URL": 2, "URL_1": 3}, got.Index())
}

func TestLoadAliases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases.yaml")
	require.NoError(t, os.WriteFile(path, []byte("featured_image_url:\n  - Imagen\n  - URL\n"), 0o644))

	aliases, err := LoadAliases(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Imagen", "URL"}, aliases[FeaturedImageURL])
	assert.Equal(t, DefaultAliases()[Category], aliases[Category])

	got, err := NewResolver(aliases).Resolve([]string{"Title", "Content", "URL", "Imagen"})
	require.NoError(t, err)
	assert.Equal(t, "Imagen", got.Fields[FeaturedImageURL])
}

func TestLoadAliases_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown role", content: "colour:\n  - Color\n"},
		{name: "empty list", content: "date: []\n"},
		{name: "not yaml map", content: "- a\n- b\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "aliases.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := LoadAliases(path)
			assert.Error(t, err)
		})
	}
}
