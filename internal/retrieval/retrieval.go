// Package retrieval builds search queries for a resolved topic, calls the
// document search backend and digests the hits into prompt-ready text.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/p-n-ai/pai-lessons/internal/taxonomy"
)

// DefaultLimit is the number of documents requested per lesson.
const DefaultLimit = 15

// Document is one search hit. RelevanceScore is whatever the backend
// reports and may be zero.
type Document struct {
	Title          string  `json:"title"`
	Content        string  `json:"content"`
	Category       string  `json:"category"`
	Subcategory    string  `json:"subcategory"`
	Topic          string  `json:"topic"`
	Difficulty     string  `json:"difficulty"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Gateway searches supporting documents. Implementations never fail: a
// backend error is logged and reported as no results.
type Gateway interface {
	Search(ctx context.Context, terms []string, limit int) []Document
}

// QueryTerms builds the ordered search terms for a lesson: the requested
// topic, the matched taxonomy topic, its category and subcategory, the
// learner's weak concepts and finally the related topics. Backends may
// weight early terms more heavily, so the order is fixed. Blank terms
// are skipped.
func QueryTerms(topic string, node taxonomy.Node, weakConcepts, related []string) []string {
	terms := make([]string, 0, 4+len(weakConcepts)+len(related))
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			terms = append(terms, s)
		}
	}
	add(topic)
	add(node.Topic)
	add(node.Category)
	add(node.Subcategory)
	for _, w := range weakConcepts {
		add(w)
	}
	for _, r := range related {
		add(r)
	}
	return terms
}

const (
	// SummaryDocs is how many documents are quoted in a prompt.
	SummaryDocs = 3
	// SummaryChars caps each quoted document.
	SummaryChars = 300

	emptySummary = "Generate from general medical knowledge."
)

// Summarize renders up to maxDocs documents as "- title: content..." lines,
// each body cut to maxChars runes.
func Summarize(docs []Document, maxDocs, maxChars int) string {
	if len(docs) == 0 {
		return emptySummary
	}

	var b strings.Builder
	for i, d := range docs {
		if i >= maxDocs {
			break
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		title := d.Title
		if title == "" {
			title = "Document"
		}
		fmt.Fprintf(&b, "- %s: %s...", title, truncate(d.Content, maxChars))
	}
	return b.String()
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
