// Package headers maps a CSV header row onto the semantic fields the
// importer understands.
package headers

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Role is a semantic field a column can fill.
type Role string

const (
	Title            Role = "title"
	Content          Role = "content"
	Identifier       Role = "identifier"
	PostType         Role = "post_type"
	Status           Role = "status"
	Date             Role = "date"
	Category         Role = "category"
	FeaturedImageURL Role = "featured_image_url"
	LayoutJSON       Role = "layout_json"
)

// OptionalRoles lists the roles that may be absent, in resolution order.
var OptionalRoles = []Role{Identifier, PostType, Status, Date, Category, FeaturedImageURL, LayoutJSON}

// Required column names. These must match exactly.
var requiredColumns = map[Role]string{
	Title:   "Title",
	Content: "Content",
}

// Aliases is an ordered list of accepted column names per optional role.
type Aliases map[Role][]string

// DefaultAliases is the alias table used when no override file is supplied.
func DefaultAliases() Aliases {
	return Aliases{
		Identifier:       {"ID", "id", "Post ID"},
		PostType:         {"Post Type", "post_type", "Type"},
		Status:           {"Status", "post_status"},
		Date:             {"Date", "post_date"},
		Category:         {"Categorías", "Categories", "category"},
		FeaturedImageURL: {"URL", "url", "Featured Image", "featured_image", "image_url", "Image URL"},
		LayoutJSON:       {"_elementor_data", "elementor_data", "Elementor Data"},
	}
}

// LoadAliases reads a YAML map of role to alias list. Roles present in the
// file replace the default list; absent roles keep it.
func LoadAliases(path string) (Aliases, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read aliases file: %w", err)
	}

	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse aliases file %s: %w", path, err)
	}

	aliases := DefaultAliases()
	for name, list := range raw {
		role := Role(name)
		if _, ok := aliases[role]; !ok {
			return nil, fmt.Errorf("aliases file %s: unknown role %q", path, name)
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("aliases file %s: role %q has no aliases", path, name)
		}
		aliases[role] = list
	}
	return aliases, nil
}

// MissingRequiredFieldError reports a required column absent from the header.
type MissingRequiredFieldError struct {
	Role   Role
	Column string
}

func (e *MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("missing required column %q", e.Column)
}

// Resolved is the outcome of header resolution for one file.
type Resolved struct {
	// Headers is the header row after duplicate names were suffixed.
	Headers []string
	// Fields maps each resolved role to its column name.
	Fields map[Role]string
}

// Has reports whether role was resolved to a column.
func (r Resolved) Has(role Role) bool {
	_, ok := r.Fields[role]
	return ok
}

// Index maps column names to their position in Headers.
func (r Resolved) Index() map[string]int {
	idx := make(map[string]int, len(r.Headers))
	for i, h := range r.Headers {
		idx[h] = i
	}
	return idx
}

// Resolver matches header rows against an alias table.
type Resolver struct {
	aliases Aliases
}

// NewResolver returns a Resolver using aliases, or the defaults when nil.
func NewResolver(aliases Aliases) *Resolver {
	if aliases == nil {
		aliases = DefaultAliases()
	}
	return &Resolver{aliases: aliases}
}

// Resolve dedups the header names and maps roles onto them.
func (r *Resolver) Resolve(raw []string) (Resolved, error) {
	names := Dedup(raw)

	present := make(map[string]bool, len(names))
	for _, n := range names {
		present[n] = true
	}

	fields := make(map[Role]string)
	for _, role := range []Role{Title, Content} {
		col := requiredColumns[role]
		if !present[col] {
			return Resolved{}, &MissingRequiredFieldError{Role: role, Column: col}
		}
		fields[role] = col
	}

	for _, role := range OptionalRoles {
		for _, alias := range r.aliases[role] {
			if present[alias] {
				fields[role] = alias
				break
			}
		}
	}

	return Resolved{Headers: names, Fields: fields}, nil
}

// Dedup suffixes repeated names with _1, _2, ... in order of appearance.
// The first occurrence keeps its name. A suffixed name that collides with an
// existing column keeps incrementing.
func Dedup(raw []string) []string {
	taken := make(map[string]bool, len(raw))
	for _, n := range raw {
		taken[n] = false
	}

	out := make([]string, len(raw))
	next := make(map[string]int)
	for i, n := range raw {
		if used, seen := taken[n]; seen && !used {
			taken[n] = true
			out[i] = n
			continue
		}
		for {
			next[n]++
			candidate := n + "_" + strconv.Itoa(next[n])
			if _, exists := taken[candidate]; !exists {
				taken[candidate] = true
				out[i] = candidate
				break
			}
		}
	}
	return out
}
