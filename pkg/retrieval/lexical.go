package retrieval

import (
	"context"
	"fmt"

	"rag-agent-be/internal/repository/contract"
)

// LexicalClient searches the full-text index with term ranking.
type LexicalClient struct {
	repo    contract.DocumentRepository
	authors []string
}

var _ Client = &LexicalClient{}

func NewLexicalClient(repo contract.DocumentRepository) *LexicalClient {
	return &LexicalClient{repo: repo}
}

func (c *LexicalClient) Scoped(allowedAuthors []string) Client {
	scoped := *c
	scoped.authors = allowedAuthors
	return &scoped
}

func (c *LexicalClient) Search(ctx context.Context, query string, k int) ([]ScoredDocument, error) {
	rows, err := c.repo.SearchLexicalWithScore(ctx, query, k, c.authors)
	if err != nil {
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}
	return dedupeBySource(rows), nil
}
