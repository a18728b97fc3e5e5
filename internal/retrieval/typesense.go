package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/typesense/typesense-go/v4/typesense"
	"github.com/typesense/typesense-go/v4/typesense/api"
	"github.com/typesense/typesense-go/v4/typesense/api/pointer"
)

const (
	defaultCollection = "lesson_documents"
	defaultQueryBy    = "title,content"
	defaultTimeout    = 5 * time.Second
)

// TypesenseConfig configures the Typesense search backend.
type TypesenseConfig struct {
	URL        string
	APIKey     string
	Collection string
	QueryBy    string
	Timeout    time.Duration
}

// TypesenseGateway searches a Typesense collection.
type TypesenseGateway struct {
	client     *typesense.Client
	collection string
	queryBy    string
	timeout    time.Duration
}

// NewTypesenseGateway creates a gateway for cfg, applying defaults for
// unset fields.
func NewTypesenseGateway(cfg TypesenseConfig) *TypesenseGateway {
	if cfg.Collection == "" {
		cfg.Collection = defaultCollection
	}
	if cfg.QueryBy == "" {
		cfg.QueryBy = defaultQueryBy
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(cfg.Timeout),
	)
	return &TypesenseGateway{
		client:     client,
		collection: cfg.Collection,
		queryBy:    cfg.QueryBy,
		timeout:    cfg.Timeout,
	}
}

// Search joins terms into one full-text query. Errors and timeouts are
// logged and yield no documents.
func (g *TypesenseGateway) Search(ctx context.Context, terms []string, limit int) []Document {
	if len(terms) == 0 || limit <= 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &api.SearchCollectionParams{
		Q:       pointer.String(strings.Join(terms, " ")),
		QueryBy: pointer.String(g.queryBy),
		PerPage: pointer.Int(limit),
	}

	result, err := g.client.Collection(g.collection).Documents().Search(ctx, params)
	if err != nil {
		slog.Warn("document search failed",
			"collection", g.collection,
			"error", err,
		)
		return nil
	}
	if result == nil || result.Hits == nil {
		return nil
	}

	docs := make([]Document, 0, len(*result.Hits))
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		d := documentFromHit(*hit.Document)
		if hit.TextMatch != nil {
			d.RelevanceScore = float64(*hit.TextMatch)
		}
		docs = append(docs, d)
	}

	slog.Debug("documents retrieved", "collection", g.collection, "count", len(docs))
	return docs
}

// HealthCheck reports whether the Typesense server is reachable.
func (g *TypesenseGateway) HealthCheck(ctx context.Context) error {
	ok, err := g.client.Health(ctx, g.timeout)
	if err != nil {
		return fmt.Errorf("search health check: %w", err)
	}
	if !ok {
		return fmt.Errorf("search backend unhealthy")
	}
	return nil
}

func documentFromHit(fields map[string]any) Document {
	str := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := fields[k].(string); ok && v != "" {
				return v
			}
		}
		return ""
	}
	return Document{
		Title:       str("title"),
		Content:     str("content", "abstract"),
		Category:    str("category"),
		Subcategory: str("subcategory"),
		Topic:       str("topic"),
		Difficulty:  str("difficulty", "difficulty_level"),
	}
}
