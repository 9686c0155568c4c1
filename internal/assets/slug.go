// Package assets fetches remote images, deduplicates them by derived name,
// and stores their bytes.
package assets

import (
	"mime"
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const defaultMimeType = "image/jpeg"

var (
	imageExt  = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif)$`)
	slugStrip = regexp.MustCompile(`[^a-z0-9_]+`)
)

// Slugify folds accents, lowercases s and collapses every run of other
// characters into a single dash.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	return strings.Trim(slugStrip.ReplaceAllString(folded, "-"), "-")
}

// DerivedName is the dedup identity of an asset URL: the slug of its
// basename without extension.
func DerivedName(rawURL string) string {
	base := basename(rawURL)
	return Slugify(strings.TrimSuffix(base, path.Ext(base)))
}

// basename returns the last path segment of rawURL, ignoring any query or
// fragment.
func basename(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" || strings.HasSuffix(p, "/") {
		return ""
	}
	return path.Base(p)
}

// IsImageFilename reports whether name carries a recognized image
// extension.
func IsImageFilename(name string) bool {
	return imageExt.MatchString(name)
}

// MimeType infers the media type from a filename, defaulting to JPEG.
func MimeType(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		return defaultMimeType
	}
	t := mime.TypeByExtension(ext)
	if t == "" {
		return defaultMimeType
	}
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		return mt
	}
	return t
}
