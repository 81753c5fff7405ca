// Package taxonomy maps Swedish police event type labels onto the fixed
// eight-way category set used by both the aggregation pipeline and the
// drill-down query engine. The mapping is loaded once from a versioned
// YAML definition and the resulting value is immutable; both consumers
// receive the same instance so classification cannot diverge.
package taxonomy

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// CategoryOther is the catch-all for unmapped type labels.
const CategoryOther = "other"

// categories in display order, catch-all last.
var categories = []string{
	"traffic",
	"property",
	"violence",
	"narcotics",
	"fraud",
	"public_order",
	"weapons",
	CategoryOther,
}

// typeInfo is the per-label entry of the definition file.
type typeInfo struct {
	English  string `yaml:"english"`
	Category string `yaml:"category"`
}

type definition struct {
	Version int                 `yaml:"version"`
	Types   map[string]typeInfo `yaml:"types"`
}

// Taxonomy is the loaded, immutable type-to-category mapping.
type Taxonomy struct {
	version       int
	types         map[string]typeInfo
	categoryTypes map[string][]string
}

// Load reads and validates a taxonomy definition file. Structural defects
// (unknown category, a named category with no types, empty definition) are
// configuration errors surfaced here, never at classification time.
func Load(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy definition: %w", err)
	}
	return Parse(data)
}

// Parse builds a Taxonomy from raw YAML definition bytes.
func Parse(data []byte) (*Taxonomy, error) {
	var def definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy definition: %w", err)
	}
	if len(def.Types) == 0 {
		return nil, fmt.Errorf("taxonomy definition contains no types")
	}

	valid := make(map[string]bool, len(categories))
	for _, c := range categories {
		valid[c] = true
	}

	categoryTypes := make(map[string][]string, len(categories))
	for label, info := range def.Types {
		if !valid[info.Category] {
			return nil, fmt.Errorf("type %q has unknown category %q", label, info.Category)
		}
		if info.Category == CategoryOther {
			// "other" is determined at runtime, never enumerated
			return nil, fmt.Errorf("type %q may not be assigned to %q explicitly", label, CategoryOther)
		}
		categoryTypes[info.Category] = append(categoryTypes[info.Category], label)
	}

	// every named category must have at least one type
	for _, c := range categories {
		if c == CategoryOther {
			continue
		}
		if len(categoryTypes[c]) == 0 {
			return nil, fmt.Errorf("category %q has no types", c)
		}
		sort.Strings(categoryTypes[c])
	}

	return &Taxonomy{
		version:       def.Version,
		types:         def.Types,
		categoryTypes: categoryTypes,
	}, nil
}

// Version returns the definition file version.
func (t *Taxonomy) Version() int {
	return t.version
}

// Classify returns the category for a Swedish type label. The mapping is
// total: exact-match lookup, unmapped labels fall into "other".
func (t *Taxonomy) Classify(label string) string {
	if info, ok := t.types[label]; ok {
		return info.Category
	}
	return CategoryOther
}

// English returns the English translation for a type label, falling back
// to the Swedish label itself when no translation is defined.
func (t *Taxonomy) English(label string) string {
	if info, ok := t.types[label]; ok && info.English != "" {
		return info.English
	}
	return label
}

// Categories returns all category names in display order, "other" last.
func Categories() []string {
	out := make([]string, len(categories))
	copy(out, categories)
	return out
}

// TypesFor returns the member type labels of a named category, sorted.
// The "other" category has no static members; it returns an empty slice.
func (t *Taxonomy) TypesFor(category string) []string {
	members := t.categoryTypes[category]
	out := make([]string, len(members))
	copy(out, members)
	return out
}

// CategoryTypes returns the full category-to-types mapping for the named
// categories. "other" is present with an empty slice.
func (t *Taxonomy) CategoryTypes() map[string][]string {
	out := make(map[string][]string, len(categories))
	for _, c := range categories {
		out[c] = t.TypesFor(c)
	}
	return out
}

// KnownTypes returns every type label in the definition, sorted.
func (t *Taxonomy) KnownTypes() []string {
	out := make([]string, 0, len(t.types))
	for label := range t.types {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}
