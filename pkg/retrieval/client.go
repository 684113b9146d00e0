package retrieval

import "context"

// ScoredDocument is one backend hit for one query. RawScore is in the
// backend's own scale (cosine similarity for the vector index, ts_rank for
// the lexical index); no ordering relationship between backends is assumed.
type ScoredDocument struct {
	SourceID string
	Title    string
	URL      string
	Content  string
	RawScore float64
}

// Client is the single capability both retrieval backends expose. Hybrid
// behavior is built by composing two Clients, not by a mode flag.
type Client interface {
	Search(ctx context.Context, query string, k int) ([]ScoredDocument, error)

	// Scoped returns a copy of the client restricted to the given authors.
	// An empty list means no restriction. The receiver is not modified.
	Scoped(allowedAuthors []string) Client
}
