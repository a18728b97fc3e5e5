package taxonomy

import (
	"log/slog"
	"strings"
)

const (
	// DefaultThreshold is the minimum similarity a fuzzy match needs.
	DefaultThreshold = 0.6

	containmentScore = 0.8
	stemScore        = 0.7
	stemLength       = 6

	FallbackCategory    = "General"
	FallbackSubcategory = "General"
)

// Resolver fuzzy-matches free text against an Index.
type Resolver struct {
	index     *Index
	threshold float64
}

// NewResolver creates a resolver over index. A non-positive threshold
// selects DefaultThreshold.
func NewResolver(index *Index, threshold float64) *Resolver {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if index == nil {
		index = New(nil)
	}
	return &Resolver{index: index, threshold: threshold}
}

// Index returns the index the resolver searches.
func (r *Resolver) Index() *Index {
	return r.index
}

// Resolve matches query using the resolver's threshold.
func (r *Resolver) Resolve(query string) (Mapping, bool) {
	return r.ResolveWithThreshold(query, r.threshold)
}

// ResolveWithThreshold returns the best-scoring node for query. An exact
// match after normalization returns immediately with score 1.0. Otherwise
// a node replaces the current best only when its score is strictly higher
// and at least threshold, so the first-seen node wins ties.
func (r *Resolver) ResolveWithThreshold(query string, threshold float64) (Mapping, bool) {
	q := Normalize(query)

	var (
		best      Mapping
		bestScore float64
		found     bool
	)
	for _, n := range r.index.nodes {
		t := Normalize(n.Topic)
		if q == t {
			return Mapping{Node: n, SimilarityScore: 1.0}, true
		}

		score := Score(q, t)
		if score > bestScore && score >= threshold {
			best = Mapping{Node: n, SimilarityScore: score}
			bestScore = score
			found = true
		}
	}

	if found {
		slog.Debug("topic resolved",
			"query", query,
			"topic", best.Topic,
			"similarity", best.SimilarityScore,
		)
	} else {
		slog.Debug("no taxonomy match", "query", query, "threshold", threshold)
	}
	return best, found
}

// Score is the similarity of two normalized strings as used for
// resolution: the character-run ratio, raised to 0.8 when one string
// contains the other and to 0.7 when they share a six-letter word stem.
func Score(q, t string) float64 {
	score := Ratio(q, t)
	if q != "" && t != "" && (strings.Contains(t, q) || strings.Contains(q, t)) {
		score = max(score, containmentScore)
	}
	if sharedStem(q, t, stemLength) {
		score = max(score, stemScore)
	}
	return min(score, 1.0)
}

// Fallback is the mapping callers substitute when resolution finds
// nothing.
func Fallback(topic string) Mapping {
	return Mapping{
		Node: Node{
			Topic:       topic,
			Category:    FallbackCategory,
			Subcategory: FallbackSubcategory,
			Semester:    defaultSemester,
		},
		SimilarityScore: 0.0,
	}
}
