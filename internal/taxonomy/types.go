// Package taxonomy holds the academic program structure and resolves
// free-text topics onto it.
package taxonomy

// Node is one topic of the academic program. Identity is the
// (Category, Subcategory, Topic) triple.
type Node struct {
	Topic       string `json:"topic"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	Semester    int    `json:"semester"`
}

// Mapping is a node matched against a query, with the similarity that
// selected it. A score of 1.0 means the query equalled the topic after
// normalization.
type Mapping struct {
	Node
	SimilarityScore float64 `json:"similarity_score"`
}

// Program file layout: a list of teaching units, each a category with
// its semester and nested subcategories.
type programUnit struct {
	Category      string           `json:"category" yaml:"category"`
	Semester      int              `json:"semester" yaml:"semester"`
	Subcategories []programSubunit `json:"subcategories" yaml:"subcategories"`
}

type programSubunit struct {
	Name   string   `json:"name" yaml:"name"`
	Topics []string `json:"topics" yaml:"topics"`
}

const (
	defaultCategory    = "Unknown"
	defaultSubcategory = "Unknown"
	defaultSemester    = 1
)
