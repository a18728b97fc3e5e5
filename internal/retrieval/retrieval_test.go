package retrieval_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/p-n-ai/pai-lessons/internal/retrieval"
	"github.com/p-n-ai/pai-lessons/internal/taxonomy"
)

func TestQueryTerms_Order(t *testing.T) {
	node := taxonomy.Node{
		Topic:       "Cardiovascular System",
		Category:    "UE 5 - Anatomy",
		Subcategory: "Systems and Apparatus",
		Semester:    1,
	}

	got := retrieval.QueryTerms("cardiology", node,
		[]string{"heart_anatomy", " ", "cardiac_physiology"},
		[]string{"Cardiovascular System", "Respiratory System"},
	)
	want := []string{
		"cardiology",
		"Cardiovascular System",
		"UE 5 - Anatomy",
		"Systems and Apparatus",
		"heart_anatomy",
		"cardiac_physiology",
		"Cardiovascular System",
		"Respiratory System",
	}

	if len(got) != len(want) {
		t.Fatalf("QueryTerms() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("term[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name string
		docs []retrieval.Document
		want string
	}{
		{
			name: "empty",
			want: "Generate from general medical knowledge.",
		},
		{
			name: "truncates and caps",
			docs: []retrieval.Document{
				{Title: "A", Content: "abcdef"},
				{Title: "", Content: "xy"},
				{Title: "C", Content: "ééééé"},
				{Title: "D", Content: "dropped"},
			},
			want: "- A: abcd...\n- Document: xy...\n- C: éééé...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := retrieval.Summarize(tt.docs, 3, 4)
			if got != tt.want {
				t.Errorf("Summarize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStaticGateway(t *testing.T) {
	g := &retrieval.StaticGateway{Docs: []retrieval.Document{{Title: "a"}, {Title: "b"}, {Title: "c"}}}

	docs := g.Search(context.Background(), []string{"x"}, 2)
	if len(docs) != 2 {
		t.Fatalf("len = %d, want 2", len(docs))
	}
	if g.LastLimit != 2 || g.LastTerms[0] != "x" {
		t.Errorf("recorded query = %v/%d", g.LastTerms, g.LastLimit)
	}
	if got := (retrieval.NopGateway{}).Search(context.Background(), []string{"x"}, 5); len(got) != 0 {
		t.Errorf("NopGateway returned %d docs", len(got))
	}
}

func TestTypesenseGateway_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/lesson_documents/documents/search" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("X-TYPESENSE-API-KEY") != "test-key" {
			t.Errorf("unexpected api key header: %q", r.Header.Get("X-TYPESENSE-API-KEY"))
		}
		if q := r.URL.Query().Get("q"); q != "cardiology UE 5 - Anatomy" {
			t.Errorf("q = %q", q)
		}
		if pp := r.URL.Query().Get("per_page"); pp != "15" {
			t.Errorf("per_page = %q, want 15", pp)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"found":          1,
			"out_of":         1,
			"page":           1,
			"search_time_ms": 1,
			"hits": []map[string]any{
				{
					"document": map[string]any{
						"id":               "1",
						"title":            "Heart",
						"abstract":         "The heart pumps blood.",
						"difficulty_level": "beginner",
					},
					"text_match": 100,
				},
			},
		})
	}))
	defer server.Close()

	g := retrieval.NewTypesenseGateway(retrieval.TypesenseConfig{URL: server.URL, APIKey: "test-key"})
	docs := g.Search(context.Background(), []string{"cardiology", "UE 5 - Anatomy"}, retrieval.DefaultLimit)

	if len(docs) != 1 {
		t.Fatalf("len(docs) = %d, want 1", len(docs))
	}
	d := docs[0]
	if d.Title != "Heart" || d.Content != "The heart pumps blood." {
		t.Errorf("doc = %+v", d)
	}
	if d.Difficulty != "beginner" {
		t.Errorf("difficulty = %q, want beginner", d.Difficulty)
	}
	if d.RelevanceScore != 100 {
		t.Errorf("relevance = %v, want 100", d.RelevanceScore)
	}
}

func TestTypesenseGateway_FailureIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "Not found."}`))
	}))
	defer server.Close()

	g := retrieval.NewTypesenseGateway(retrieval.TypesenseConfig{URL: server.URL, APIKey: "k"})
	if docs := g.Search(context.Background(), []string{"x"}, 5); len(docs) != 0 {
		t.Errorf("expected no docs on error, got %d", len(docs))
	}
}

func TestTypesenseGateway_Unreachable(t *testing.T) {
	g := retrieval.NewTypesenseGateway(retrieval.TypesenseConfig{
		URL:     "http://127.0.0.1:1",
		APIKey:  "k",
		Timeout: 200 * time.Millisecond,
	})

	docs := g.Search(context.Background(), []string{"x"}, 5)
	if len(docs) != 0 {
		t.Errorf("expected no docs, got %d", len(docs))
	}
	if err := g.HealthCheck(context.Background()); err == nil || !strings.Contains(err.Error(), "search") {
		t.Errorf("HealthCheck() error = %v", err)
	}
}
