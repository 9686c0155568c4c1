package core

import (
	"testing"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTransformTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"HELLO WORLD", "Hello world"},
		{"MCDONALD'S", "Mcdonald's"},
		{"  my first post  ", "My first post"},
		{"MY FIRST POST", "My first post"},
		{"élan VITAL", "Élan vital"},
		{"ÑANDÚ", "Ñandú"},
		{"bad \xff\xfe bytes", "Bad  bytes"},
		{"\xff  padded", "Padded"},
		{"", ""},
		{"   ", ""},
		{"1st place", "1st place"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := TransformTitle(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, TransformTitle(got), "transform must be idempotent")
		})
	}
}

func TestTransformTitle_Shape(t *testing.T) {
	inputs := []string{"ABC DEF", "aBc", "Ünïcödé TITLE", "x", "ÀÉÎ õü"}
	for _, in := range inputs {
		got := TransformTitle(in)
		first, size := utf8.DecodeRuneInString(got)
		assert.True(t, unicode.IsUpper(first), "first rune of %q", got)
		for _, r := range got[size:] {
			assert.False(t, unicode.IsUpper(r), "rest of %q", got)
		}
	}
}

func TestParseDate(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{name: "valid", in: "2023-05-06 07:08:09", want: time.Date(2023, 5, 6, 7, 8, 9, 0, time.UTC)},
		{name: "trimmed", in: " 2023-05-06 07:08:09 ", want: time.Date(2023, 5, 6, 7, 8, 9, 0, time.UTC)},
		{name: "date only", in: "2023-05-06", want: now},
		{name: "iso T", in: "2023-05-06T07:08:09", want: now},
		{name: "impossible month", in: "2023-13-06 07:08:09", want: now},
		{name: "empty", in: "", want: now},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDate(tt.in, now))
		})
	}
}
