package taxonomy

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Index is an immutable, ordered view of the program's topics. It is
// safe for concurrent use because nothing mutates it after construction.
type Index struct {
	nodes []Node
}

// New builds an index over nodes, preserving their order.
func New(nodes []Node) *Index {
	return &Index{nodes: slices.Clone(nodes)}
}

// Load reads a program file. A missing or malformed file yields an empty
// index and a warning so that resolution can still run in fallback mode.
func Load(path string) *Index {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("program file unavailable, using empty taxonomy", "path", path, "error", err)
		return New(nil)
	}

	idx, err := Parse(data, filepath.Ext(path))
	if err != nil {
		slog.Warn("skipping invalid program file, using empty taxonomy", "path", path, "error", err)
		return New(nil)
	}

	slog.Info("taxonomy loaded", "path", path, "topics", idx.Len())
	return idx
}

// Parse decodes a program document. ext selects the decoder: ".yaml" and
// ".yml" use YAML, anything else is treated as JSON.
func Parse(data []byte, ext string) (*Index, error) {
	var units []programUnit
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &units); err != nil {
			return nil, fmt.Errorf("decode yaml program: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &units); err != nil {
			return nil, fmt.Errorf("decode json program: %w", err)
		}
	}

	var nodes []Node
	for _, u := range units {
		category := u.Category
		if category == "" {
			category = defaultCategory
		}
		semester := u.Semester
		if semester == 0 {
			semester = defaultSemester
		}
		for _, sub := range u.Subcategories {
			name := sub.Name
			if name == "" {
				name = defaultSubcategory
			}
			for _, topic := range sub.Topics {
				nodes = append(nodes, Node{
					Topic:       topic,
					Category:    category,
					Subcategory: name,
					Semester:    semester,
				})
			}
		}
	}
	return &Index{nodes: nodes}, nil
}

// Len returns the number of topics.
func (x *Index) Len() int {
	return len(x.nodes)
}

// AllNodes returns every node in program order. The slice is a copy.
func (x *Index) AllNodes() []Node {
	return slices.Clone(x.nodes)
}

// Categories returns the distinct categories in first-seen order.
func (x *Index) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range x.nodes {
		if !seen[n.Category] {
			seen[n.Category] = true
			out = append(out, n.Category)
		}
	}
	return out
}

// Subcategories returns the distinct subcategories of category in
// first-seen order.
func (x *Index) Subcategories(category string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range x.nodes {
		if n.Category != category || seen[n.Subcategory] {
			continue
		}
		seen[n.Subcategory] = true
		out = append(out, n.Subcategory)
	}
	return out
}

// RelatedTopics returns the first limit topics filed under the given
// category and subcategory, in program order.
func (x *Index) RelatedTopics(category, subcategory string, limit int) []string {
	var out []string
	for _, n := range x.nodes {
		if len(out) >= limit {
			break
		}
		if n.Category == category && n.Subcategory == subcategory {
			out = append(out, n.Topic)
		}
	}
	return out
}

// Semester returns the semester of the first node filed under category
// and subcategory.
func (x *Index) Semester(category, subcategory string) (int, bool) {
	for _, n := range x.nodes {
		if n.Category == category && n.Subcategory == subcategory {
			return n.Semester, true
		}
	}
	return 0, false
}
