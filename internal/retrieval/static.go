package retrieval

import "context"

// NopGateway finds nothing. It is used when no search backend is
// configured.
type NopGateway struct{}

func (NopGateway) Search(context.Context, []string, int) []Document { return nil }

// StaticGateway serves a fixed document list and records the last query.
type StaticGateway struct {
	Docs      []Document
	LastTerms []string
	LastLimit int
}

func (g *StaticGateway) Search(_ context.Context, terms []string, limit int) []Document {
	g.LastTerms = terms
	g.LastLimit = limit
	if limit >= 0 && limit < len(g.Docs) {
		return append([]Document(nil), g.Docs[:limit]...)
	}
	return append([]Document(nil), g.Docs...)
}
