package core

import (
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DateLayout is the only accepted row date format.
const DateLayout = "2006-01-02 15:04:05"

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`)

// TransformTitle trims the title, drops invalid UTF-8, lowercases it and
// uppercases the first letter. Applying it twice yields the same result.
func TransformTitle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToValidUTF8(s, "")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	s = cases.Lower(language.Und).String(s)
	first, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(first)) + s[size:]
}

// ParseDate returns the row date when it is an exact, valid
// "YYYY-MM-DD HH:MM:SS" value and now otherwise.
func ParseDate(s string, now time.Time) time.Time {
	s = strings.TrimSpace(s)
	if !datePattern.MatchString(s) {
		return now
	}
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return now
	}
	return t
}
