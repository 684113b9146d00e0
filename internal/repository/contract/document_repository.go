package contract

import (
	"context"

	"rag-agent-be/internal/model"
)

// ScoredDocument wraps a Document with the raw score assigned by one backend.
// Vector scores are cosine similarities, lexical scores are ts_rank values;
// the two scales are not comparable and are normalized downstream.
type ScoredDocument struct {
	Document *model.Document
	Score    float64
}

type DocumentRepository interface {
	// SearchSimilarWithScore runs a cosine similarity search over the
	// embedding index. allowedAuthors narrows the corpus; empty means no
	// author restriction.
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, allowedAuthors []string) ([]*ScoredDocument, error)

	// SearchLexicalWithScore runs a ranked full-text search over title and
	// content with the same author scoping rules.
	SearchLexicalWithScore(ctx context.Context, query string, limit int, allowedAuthors []string) ([]*ScoredDocument, error)
}
