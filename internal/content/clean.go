// Package content post-processes imported HTML bodies.
package content

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const emojiPrefix = "https://static.xx.fbcdn.net/images/emoji.php/"

var (
	blockOpen  = regexp.MustCompile(`<!-- wp:[a-z/]+ -->`)
	blockClose = regexp.MustCompile(`<!-- /wp:[a-z/]+ -->`)
	imgTag     = regexp.MustCompile(`(?i)<img\s[^>]*>`)
)

// Result describes what Clean changed.
type Result struct {
	HTML    string
	Markers int
	Emoji   []string
}

// Changed reports whether the output differs from the input.
func (r Result) Changed() bool {
	return r.Markers > 0 || len(r.Emoji) > 0
}

// Clean strips block editor comment markers and replaces hotlinked emoji
// images with their alt text, escaped for the HTML body.
func Clean(body string) Result {
	var res Result

	count := func(s string) string {
		res.Markers++
		return ""
	}
	out := blockOpen.ReplaceAllStringFunc(body, count)
	out = blockClose.ReplaceAllStringFunc(out, count)

	out = imgTag.ReplaceAllStringFunc(out, func(tag string) string {
		alt, ok := emojiAlt(tag)
		if !ok {
			return tag
		}
		res.Emoji = append(res.Emoji, alt)
		return html.EscapeString(alt)
	})

	res.HTML = out
	return res
}

// emojiAlt parses a single <img> tag and returns its alt text when the
// source is the emoji CDN.
func emojiAlt(tag string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(tag))
	if err != nil {
		return "", false
	}
	img := doc.Find("img").First()
	src, _ := img.Attr("src")
	if !strings.HasPrefix(src, emojiPrefix) || len(src) == len(emojiPrefix) {
		return "", false
	}
	alt, ok := img.Attr("alt")
	if !ok || alt == "" {
		return "", false
	}
	return alt, true
}
