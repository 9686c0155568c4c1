package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"img", "img"},
		{"My Photo", "my-photo"},
		{"Café Olé", "cafe-ole"},
		{"año_2024", "ano_2024"},
		{"--weird!!name--", "weird-name"},
		{"ÑANDÚ", "nandu"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestDerivedName(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"http://example.com/img.jpg", "img"},
		{"https://cdn.other.net/a/b/IMG.JPEG?w=300#top", "img"},
		{"http://example.com/photos/Playa%20Linda.png", "playa-linda"},
		{"http://example.com/photo", "photo"},
		{"http://example.com/dir/", ""},
		{"not a url/pic.gif", "pic"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, DerivedName(tt.url))
		})
	}
}

func TestMimeType(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"a.jpg", "image/jpeg"},
		{"a.JPEG", "image/jpeg"},
		{"a.png", "image/png"},
		{"a.gif", "image/gif"},
		{"a", "image/jpeg"},
		{"a.unknownext", "image/jpeg"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MimeType(tt.name), tt.name)
	}
}

func TestIsImageFilename(t *testing.T) {
	assert.True(t, IsImageFilename("x.JPG"))
	assert.True(t, IsImageFilename("x.jpeg"))
	assert.False(t, IsImageFilename("x.webp"))
	assert.False(t, IsImageFilename("jpg"))
}
