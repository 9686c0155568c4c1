// Package gallery extracts gallery image URLs from page-builder layout JSON.
//
// The layout is a list of sections; each section holds elements, and each
// element may hold further elements. Gallery widgets are looked for at the
// innermost of these three levels. Nodes of an unexpected shape are ignored.
package gallery

import (
	"encoding/json"
	"fmt"
)

// ParseError reports layout text that is not a JSON array.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("layout json: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

const widgetGallery = "gallery"

// Extract returns the URLs of every gallery item in document order.
// Duplicates are kept.
func Extract(text string) ([]string, error) {
	var root any
	if err := json.Unmarshal([]byte(text), &root); err != nil {
		return nil, &ParseError{Err: err}
	}
	sections, ok := root.([]any)
	if !ok {
		return nil, &ParseError{Err: fmt.Errorf("root is %s, not an array", kind(root))}
	}

	var urls []string
	for _, section := range sections {
		for _, element := range children(section) {
			for _, widget := range children(element) {
				urls = append(urls, galleryURLs(widget)...)
			}
		}
	}
	return urls, nil
}

// children returns node["elements"] when node is an object holding an array.
func children(node any) []any {
	obj, ok := node.(map[string]any)
	if !ok {
		return nil
	}
	list, _ := obj["elements"].([]any)
	return list
}

func galleryURLs(node any) []string {
	obj, ok := node.(map[string]any)
	if !ok {
		return nil
	}
	if t, _ := obj["widgetType"].(string); t != widgetGallery {
		return nil
	}
	settings, ok := obj["settings"].(map[string]any)
	if !ok {
		return nil
	}
	items, _ := settings["gallery"].([]any)

	var urls []string
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if u, ok := entry["url"].(string); ok && u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

func kind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "an object"
	case string:
		return "a string"
	case float64:
		return "a number"
	case bool:
		return "a boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
