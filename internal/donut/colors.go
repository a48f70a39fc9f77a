package donut

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// FallbackColor is used for categories missing from a ColorTable.
const FallbackColor = "gray"

// ColorTable maps category names to display colors. It is built once and never
// mutated afterwards, so it is safe to share between goroutines.
type ColorTable struct {
	colors   map[string]string
	order    []string
	fallback string
}

// LegendEntry is one row of a color legend.
type LegendEntry struct {
	Category string `json:"category"`
	Color    string `json:"color"`
}

// DefaultColors is the process-wide table for the demo categories.
var DefaultColors = mustColorTable([]LegendEntry{
	{Category: "population", Color: "#FFD700"},
	{Category: "revenue", Color: "#1E90FF"},
	{Category: "growth", Color: "#32CD32"},
})

// NewColorTable builds a table from entries. Colors must be hex ("#rrggbb" or
// "#rgb") and are normalized to lower-case "#rrggbb". Later entries for the
// same category replace earlier ones but keep the first position.
func NewColorTable(entries []LegendEntry) (*ColorTable, error) {
	t := &ColorTable{
		colors:   make(map[string]string, len(entries)),
		fallback: FallbackColor,
	}
	for _, e := range entries {
		if e.Category == "" {
			return nil, fmt.Errorf("color table: empty category")
		}
		c, err := colorful.Hex(e.Color)
		if err != nil {
			return nil, fmt.Errorf("color table: category %q: %w", e.Category, err)
		}
		if _, ok := t.colors[e.Category]; !ok {
			t.order = append(t.order, e.Category)
		}
		t.colors[e.Category] = c.Hex()
	}
	return t, nil
}

// WithOverrides returns a new table holding t's entries followed by overrides.
// t itself is left untouched.
func (t *ColorTable) WithOverrides(overrides []LegendEntry) (*ColorTable, error) {
	entries := t.Legend()
	entries = append(entries, overrides...)
	return NewColorTable(entries)
}

// Lookup returns the color for category, or the gray fallback.
func (t *ColorTable) Lookup(category string) string {
	if c, ok := t.colors[category]; ok {
		return c
	}
	return t.fallback
}

// Legend returns the table's entries in definition order.
func (t *ColorTable) Legend() []LegendEntry {
	out := make([]LegendEntry, 0, len(t.order))
	for _, cat := range t.order {
		out = append(out, LegendEntry{Category: cat, Color: t.colors[cat]})
	}
	return out
}

// ParseColorOverrides parses "category=#hex,category=#hex". Entries are returned
// sorted by category so the resulting legend is stable regardless of input order.
func ParseColorOverrides(s string) ([]LegendEntry, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out []LegendEntry
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		cat, col, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("color override %q: expected category=#hex", part)
		}
		out = append(out, LegendEntry{Category: strings.TrimSpace(cat), Color: strings.TrimSpace(col)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func mustColorTable(entries []LegendEntry) *ColorTable {
	t, err := NewColorTable(entries)
	if err != nil {
		panic(err)
	}
	return t
}
